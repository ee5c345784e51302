package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
)

// knownSignals lists the payload keys that carry sensor signals.
var knownSignals = []hazard.Signal{
	hazard.Temperature,
	hazard.Humidity,
	hazard.SoilMoisture,
	hazard.RainLevel,
	hazard.AirQuality,
	hazard.Distance,
}

// reservedKeys are assigned by the service and dropped from payloads.
var reservedKeys = map[string]struct{}{
	"timestamp": {},
	"risk":      {},
	"id":        {},
	"_id":       {},
}

// SensorInput is a decoded sensor payload.
type SensorInput struct {
	Signals map[hazard.Signal]float64
	// Extra holds payload fields that are not signals, e.g. a device id.
	Extra map[string]any
}

// ParseSensorPayload splits a JSON object into signals and extra fields.
// Signal values may be JSON numbers or numeric strings; anything else is a
// validation error naming the field. An empty payload is rejected.
func ParseSensorPayload(payload map[string]any) (SensorInput, error) {
	if len(payload) == 0 {
		return SensorInput{}, errors.Newf("no JSON received").
			Component("engine").
			Category(errors.CategoryValidation).
			Build()
	}

	in := SensorInput{Signals: make(map[hazard.Signal]float64)}
	for key, raw := range payload {
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		sig := hazard.Signal(key)
		if !slices.Contains(knownSignals, sig) {
			if in.Extra == nil {
				in.Extra = make(map[string]any)
			}
			in.Extra[key] = raw
			continue
		}
		if raw == nil {
			continue
		}
		v, err := toFloat(raw)
		if err != nil {
			return SensorInput{}, errors.New(fmt.Errorf("field %s: %w", key, err)).
				Component("engine").
				Category(errors.CategoryValidation).
				Context("field", key).
				Build()
		}
		in.Signals[sig] = v
	}
	return in, nil
}

// DecodeSensorJSON decodes a raw JSON object and parses it.
func DecodeSensorJSON(data []byte) (SensorInput, error) {
	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return SensorInput{}, errors.New(err).
			Component("engine").
			Category(errors.CategoryValidation).
			Context("operation", "decode_sensor_json").
			Build()
	}
	return ParseSensorPayload(payload)
}

func toFloat(raw any) (float64, error) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, err
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		v = f
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return v, nil
}

// toRecord converts a classified reading into its stored form.
func toRecord(in SensorInput, r hazard.Reading, label hazard.RiskLabel) *datastore.SensorReading {
	opt := func(s hazard.Signal) *float64 {
		if v, ok := in.Signals[s]; ok {
			return &v
		}
		return nil
	}
	return &datastore.SensorReading{
		Temperature:  opt(hazard.Temperature),
		Humidity:     opt(hazard.Humidity),
		SoilMoisture: opt(hazard.SoilMoisture),
		RainLevel:    opt(hazard.RainLevel),
		AirQuality:   opt(hazard.AirQuality),
		Distance:     opt(hazard.Distance),
		Extra:        in.Extra,
		Risk:         string(label),
		Timestamp:    r.Timestamp,
	}
}
