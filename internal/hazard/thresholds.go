package hazard

import "github.com/mhews/mhews/internal/conf"

// Direction tells which side of a cutoff is dangerous.
type Direction int

const (
	// Rising trips when value >= cutoff.
	Rising Direction = iota
	// Falling trips when value <= cutoff.
	Falling
)

// Cutoff holds the warn and critical limits for one signal.
type Cutoff struct {
	Warn      float64
	Critical  float64
	Direction Direction
}

func (c Cutoff) crosses(value, limit float64) bool {
	if c.Direction == Falling {
		return value <= limit
	}
	return value >= limit
}

// Classify returns the tier reached by value. Critical is checked first, so
// a value never yields both tiers.
func (c Cutoff) Classify(value float64) (Tier, bool) {
	switch {
	case c.crosses(value, c.Critical):
		return TierCritical, true
	case c.crosses(value, c.Warn):
		return TierWarn, true
	default:
		return "", false
	}
}

// Policy maps signals to cutoffs. Signals without an entry are never evaluated.
type Policy struct {
	cutoffs map[Signal]Cutoff
}

// NewPolicy builds a policy from an explicit table.
func NewPolicy(cutoffs map[Signal]Cutoff) *Policy {
	p := &Policy{cutoffs: make(map[Signal]Cutoff, len(cutoffs))}
	for s, c := range cutoffs {
		p.cutoffs[s] = c
	}
	return p
}

// DefaultPolicy returns the stock cutoffs.
func DefaultPolicy() *Policy {
	return NewPolicy(map[Signal]Cutoff{
		Distance:     {Warn: 100, Critical: 50, Direction: Falling},
		RainLevel:    {Warn: 70, Critical: 90, Direction: Rising},
		AirQuality:   {Warn: 150, Critical: 250, Direction: Rising},
		Temperature:  {Warn: 40, Critical: 45, Direction: Rising},
		SoilMoisture: {Warn: 80, Critical: 95, Direction: Rising},
	})
}

// PolicyFromSettings builds a policy from configured thresholds.
func PolicyFromSettings(t *conf.ThresholdSettings) *Policy {
	return NewPolicy(map[Signal]Cutoff{
		Distance:     {Warn: t.Distance.Warn, Critical: t.Distance.Critical, Direction: Falling},
		RainLevel:    {Warn: t.RainLevel.Warn, Critical: t.RainLevel.Critical, Direction: Rising},
		AirQuality:   {Warn: t.AirQuality.Warn, Critical: t.AirQuality.Critical, Direction: Rising},
		Temperature:  {Warn: t.Temperature.Warn, Critical: t.Temperature.Critical, Direction: Rising},
		SoilMoisture: {Warn: t.SoilMoisture.Warn, Critical: t.SoilMoisture.Critical, Direction: Rising},
	})
}

// Lookup returns the cutoff for a signal.
func (p *Policy) Lookup(s Signal) (Cutoff, bool) {
	c, ok := p.cutoffs[s]
	return c, ok
}
