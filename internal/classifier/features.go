// Package classifier maps a sensor reading to a risk label using either an
// on-device TensorFlow Lite model or a remote inference endpoint.
package classifier

import "github.com/mhews/mhews/internal/hazard"

// BaseFeatureCount is the number of features derived from one reading.
const BaseFeatureCount = 10

// Features builds the model input vector for a reading:
//
//	temperature, humidity, soil_moisture, rain_level, air_quality, distance,
//	water_level, moisture_index, dryness_index, heat_index
//
// Absent signals count as 0. The vector is zero padded up to width; a width
// smaller than BaseFeatureCount truncates it.
func Features(r hazard.Reading, width int) []float32 {
	get := func(s hazard.Signal) float64 {
		v, _ := r.Value(s)
		return v
	}

	temperature := get(hazard.Temperature)
	humidity := get(hazard.Humidity)
	soil := get(hazard.SoilMoisture)
	rain := get(hazard.RainLevel)
	air := get(hazard.AirQuality)
	distance := get(hazard.Distance)

	waterLevel := (soil + rain) / 2
	moistureIndex := soil*0.6 + rain*0.4
	drynessIndex := 100 - moistureIndex
	heatIndex := temperature + humidity*0.1

	base := [BaseFeatureCount]float64{
		temperature, humidity, soil, rain, air, distance,
		waterLevel, moistureIndex, drynessIndex, heatIndex,
	}

	if width <= 0 {
		width = BaseFeatureCount
	}
	out := make([]float32, width)
	for i := 0; i < width && i < BaseFeatureCount; i++ {
		out[i] = float32(base[i])
	}
	return out
}

// LabelForClass maps a predicted class index to a risk label.
func LabelForClass(class int) hazard.RiskLabel {
	switch class {
	case 0:
		return hazard.LabelLow
	case 1:
		return hazard.LabelMedium
	case 2:
		return hazard.LabelHigh
	default:
		return hazard.LabelUnknown
	}
}
