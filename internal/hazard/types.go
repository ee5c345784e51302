// Package hazard turns sensor readings into candidate hazard notifications.
package hazard

import (
	"fmt"
	"strings"
	"time"

	"github.com/mhews/mhews/internal/errors"
)

// Type is a hazard category. Each type has its own cooldown window.
type Type string

const (
	Flood    Type = "FLOOD"
	Rain     Type = "RAIN"
	Air      Type = "AIR"
	Fire     Type = "FIRE"
	RiskHigh Type = "RISK_HIGH"
	Manual   Type = "MANUAL"
)

// AllTypes lists every hazard type in evaluation order.
var AllTypes = []Type{Flood, Rain, Air, Fire, RiskHigh, Manual}

// ParseType converts a case-insensitive name to a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllTypes {
		if t == known {
			return t, nil
		}
	}
	return "", errors.Newf("unknown hazard type %q", s).
		Component("hazard").
		Category(errors.CategoryValidation).
		Build()
}

// Tier is the severity class of a crossed cutoff.
type Tier string

const (
	TierWarn     Tier = "WARN"
	TierCritical Tier = "CRITICAL"
)

// RiskLabel is the classifier output.
type RiskLabel string

const (
	LabelLow     RiskLabel = "LOW"
	LabelMedium  RiskLabel = "MEDIUM"
	LabelHigh    RiskLabel = "HIGH"
	LabelUnknown RiskLabel = "UNKNOWN"
)

// ParseRiskLabel maps arbitrary classifier output onto a known label.
// Anything unrecognised becomes LabelUnknown.
func ParseRiskLabel(s string) RiskLabel {
	switch l := RiskLabel(strings.ToUpper(strings.TrimSpace(s))); l {
	case LabelLow, LabelMedium, LabelHigh:
		return l
	default:
		return LabelUnknown
	}
}

// Signal names a sensor channel.
type Signal string

const (
	Temperature  Signal = "temperature"
	Humidity     Signal = "humidity"
	SoilMoisture Signal = "soil_moisture"
	RainLevel    Signal = "rain_level"
	AirQuality   Signal = "air_quality"
	Distance     Signal = "distance"
)

// safeDefaults are substituted for absent signals. They never trip a cutoff.
var safeDefaults = map[Signal]float64{
	Distance: 999,
}

// SafeDefault returns the value assumed when a signal is missing.
func SafeDefault(s Signal) float64 {
	return safeDefaults[s]
}

// Reading is one classified sensor sample.
type Reading struct {
	Signals   map[Signal]float64
	Timestamp time.Time
}

// Value returns the raw value and whether it was present.
func (r Reading) Value(s Signal) (float64, bool) {
	v, ok := r.Signals[s]
	return v, ok
}

// ValueOrSafe returns the raw value or the safe default for an absent signal.
func (r Reading) ValueOrSafe(s Signal) float64 {
	if v, ok := r.Signals[s]; ok {
		return v
	}
	return SafeDefault(s)
}

// Candidate is a proposed notification, not yet gated by cooldown.
type Candidate struct {
	Type      Type
	Tier      Tier
	Values    map[Signal]float64 // raw values the candidate was derived from
	Timestamp time.Time
	Message   string
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s/%s", c.Type, c.Tier)
}
