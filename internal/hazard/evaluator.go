package hazard

import (
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is used for the human-readable time in messages.
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// signalCheck binds a hazard type to the signal that drives it.
type signalCheck struct {
	hazard Type
	signal Signal
	render map[Tier]func(value string) string
}

// checks run in this order; the order is part of the output contract.
var checks = []signalCheck{
	{
		hazard: Flood,
		signal: Distance,
		render: map[Tier]func(string) string{
			TierCritical: func(v string) string {
				return "MHEWS CRITICAL FLOOD ALERT\nWater sensor: " + v + "cm (DANGER LEVEL)\nImmediate evacuation may be required."
			},
			TierWarn: func(v string) string {
				return "MHEWS Flood Warning\nWater rising. Distance: " + v + "cm.\nMonitor closely and prepare to evacuate."
			},
		},
	},
	{
		hazard: Rain,
		signal: RainLevel,
		render: map[Tier]func(string) string{
			TierCritical: func(v string) string {
				return "MHEWS Heavy Rain CRITICAL\nRain sensor: " + v + "/100\nFlash flood risk. Move to higher ground."
			},
			TierWarn: func(v string) string {
				return "MHEWS Rain Advisory\nRain intensity: " + v + "/100 (HIGH)\nAvoid low-lying areas."
			},
		},
	},
	{
		hazard: Air,
		signal: AirQuality,
		render: map[Tier]func(string) string{
			TierCritical: func(v string) string {
				return "MHEWS Air Quality CRITICAL\nAQI: " + v + " PPM - Hazardous.\nStay indoors. Wear masks immediately."
			},
			TierWarn: func(v string) string {
				return "MHEWS Air Quality Warning\nAQI: " + v + " PPM - Unhealthy.\nLimit outdoor exposure."
			},
		},
	},
	{
		hazard: Fire,
		signal: Temperature,
		render: map[Tier]func(string) string{
			TierCritical: func(v string) string {
				return "MHEWS Extreme Heat / Fire Risk\nTemperature: " + v + "C (CRITICAL)\nExtreme fire danger conditions."
			},
			TierWarn: func(v string) string {
				return "MHEWS Heat Warning\nTemperature: " + v + "C (HIGH)\nHigh fire risk. Stay alert."
			},
		},
	},
}

// Evaluator compares readings against a threshold policy.
type Evaluator struct {
	policy *Policy
}

// NewEvaluator creates an evaluator. A nil policy uses DefaultPolicy.
func NewEvaluator(policy *Policy) *Evaluator {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Evaluator{policy: policy}
}

// Evaluate returns the candidates for one reading: at most one per signal in
// FLOOD, RAIN, AIR, FIRE order, then RISK_HIGH when the label is HIGH.
func (e *Evaluator) Evaluate(r Reading, label RiskLabel) []Candidate {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.UTC().Format(TimestampLayout)

	var out []Candidate
	for _, chk := range checks {
		cutoff, ok := e.policy.Lookup(chk.signal)
		if !ok {
			continue
		}

		value := r.ValueOrSafe(chk.signal)
		tier, tripped := cutoff.Classify(value)
		if !tripped {
			continue
		}

		out = append(out, Candidate{
			Type:      chk.hazard,
			Tier:      tier,
			Values:    map[Signal]float64{chk.signal: value},
			Timestamp: ts,
			Message:   chk.render[tier](formatValue(value)) + "\nTime: " + stamp,
		})
	}

	if label == LabelHigh {
		values := map[Signal]float64{
			Temperature: r.ValueOrSafe(Temperature),
			RainLevel:   r.ValueOrSafe(RainLevel),
			Distance:    r.ValueOrSafe(Distance),
			AirQuality:  r.ValueOrSafe(AirQuality),
		}
		out = append(out, Candidate{
			Type:      RiskHigh,
			Tier:      TierCritical,
			Values:    values,
			Timestamp: ts,
			Message: fmt.Sprintf("MHEWS SYSTEM ALERT - HIGH RISK\nML model predicts HIGH hazard risk.\nTemp:%sC Rain:%s Water:%scm AQI:%s\nTime: %s",
				formatValue(values[Temperature]),
				formatValue(values[RainLevel]),
				formatValue(values[Distance]),
				formatValue(values[AirQuality]),
				stamp),
		})
	}

	return out
}

// formatValue prints the shortest exact representation (40, 40.5).
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
