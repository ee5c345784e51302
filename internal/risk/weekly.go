// Package risk folds stored readings into a trailing seven day risk summary.
package risk

import (
	"context"
	"math"
	"time"

	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/hazard"
)

// Days is the length of the summary window.
const Days = 7

// LabelNone marks a day without readings.
const LabelNone = "NONE"

var scoreByLabel = map[hazard.RiskLabel]int{
	hazard.LabelUnknown: 0,
	hazard.LabelLow:     1,
	hazard.LabelMedium:  2,
	hazard.LabelHigh:    3,
}

var labelByScore = map[int]hazard.RiskLabel{
	0: hazard.LabelUnknown,
	1: hazard.LabelLow,
	2: hazard.LabelMedium,
	3: hazard.LabelHigh,
}

// Score maps a stored risk label to its numeric score. Unrecognised labels
// score 0.
func Score(label string) int {
	return scoreByLabel[hazard.ParseRiskLabel(label)]
}

// DaySummary is one day of the weekly summary.
type DaySummary struct {
	Name  string  `json:"name"`
	Date  string  `json:"date"`
	Risk  float64 `json:"risk"`
	Label string  `json:"risk_label"`
	Count int     `json:"count"`
	total int
}

// ReadingSource is the store capability the aggregator needs.
type ReadingSource interface {
	ReadingsBetween(ctx context.Context, from, to time.Time) ([]datastore.SensorReading, error)
}

// Aggregator builds weekly summaries from stored readings.
type Aggregator struct {
	source ReadingSource
	now    func() time.Time
}

// NewAggregator creates an aggregator over source.
func NewAggregator(source ReadingSource) *Aggregator {
	return &Aggregator{source: source, now: time.Now}
}

// Window returns the [from, to) range covered by the summary for now:
// from is UTC midnight six days before today, to is tomorrow's midnight.
func Window(now time.Time) (from, to time.Time) {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -(Days - 1)), today.AddDate(0, 0, 1)
}

// Weekly returns seven day summaries, oldest first.
func (a *Aggregator) Weekly(ctx context.Context) ([]DaySummary, error) {
	from, to := Window(a.now())
	readings, err := a.source.ReadingsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return Summarize(from, readings), nil
}

// Summarize buckets readings into the seven days starting at from.
// Readings outside the window are ignored.
func Summarize(from time.Time, readings []datastore.SensorReading) []DaySummary {
	days := make([]DaySummary, Days)
	for i := range days {
		start := from.AddDate(0, 0, i)
		days[i] = DaySummary{
			Name: start.Format("Mon"),
			Date: start.Format(time.DateOnly),
		}
	}

	for i := range readings {
		r := &readings[i]
		idx := int(r.Timestamp.UTC().Sub(from) / (24 * time.Hour))
		if r.Timestamp.Before(from) || idx >= Days {
			continue
		}
		days[idx].total += Score(r.Risk)
		days[idx].Count++
	}

	for i := range days {
		d := &days[i]
		if d.Count == 0 {
			d.Label = LabelNone
			continue
		}
		avg := float64(d.total) / float64(d.Count)
		d.Risk = math.Round(avg*100) / 100
		label, ok := labelByScore[int(math.RoundToEven(avg))]
		if !ok {
			d.Label = LabelNone
			continue
		}
		d.Label = string(label)
	}
	return days
}
