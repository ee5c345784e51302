// Package cooldown decides whether a hazard notification is still inside its
// per-type quiet period.
package cooldown

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
	"github.com/mhews/mhews/internal/logger"
)

// DefaultFallback applies to hazard types without a configured cooldown.
const DefaultFallback = 30 * time.Minute

// DefaultDurations are the built-in cooldown windows.
var DefaultDurations = map[hazard.Type]time.Duration{
	hazard.Flood:    30 * time.Minute,
	hazard.Fire:     20 * time.Minute,
	hazard.Air:      60 * time.Minute,
	hazard.Rain:     30 * time.Minute,
	hazard.RiskHigh: 15 * time.Minute,
	hazard.Manual:   0,
}

// Store is the slice of the datastore the tracker reads from.
type Store interface {
	LatestNotificationTime(ctx context.Context, hazardType string) (time.Time, bool, error)
}

// Tracker answers cooldown queries from the notification history, caching
// the most recent send time per type for the length of its window.
type Tracker struct {
	store     Store
	durations map[hazard.Type]time.Duration
	fallback  time.Duration
	recent    *cache.Cache
	mu        sync.Mutex // serialises cache refreshes
	log       logger.Logger
}

// New creates a tracker with explicit windows. Types missing from durations
// use fallback.
func New(store Store, durations map[hazard.Type]time.Duration, fallback time.Duration) *Tracker {
	d := make(map[hazard.Type]time.Duration, len(durations))
	for k, v := range durations {
		d[k] = v
	}
	return &Tracker{
		store:     store,
		durations: d,
		fallback:  fallback,
		// No janitor: expired entries are never returned by Get and the key
		// space is bounded by the number of hazard types.
		recent: cache.New(cache.NoExpiration, 0),
		log:    logger.Global().Module("cooldown"),
	}
}

// NewFromSettings builds a tracker from the notification section, layering
// configured minutes over DefaultDurations.
func NewFromSettings(store Store, settings *conf.NotificationSettings) *Tracker {
	durations := make(map[hazard.Type]time.Duration, len(DefaultDurations))
	for k, v := range DefaultDurations {
		durations[k] = v
	}
	for name, minutes := range settings.CooldownMinutes() {
		durations[hazard.Type(strings.ToUpper(name))] = time.Duration(minutes) * time.Minute
	}

	fallback := DefaultFallback
	if settings.DefaultCooldown > 0 {
		fallback = time.Duration(settings.DefaultCooldown) * time.Minute
	}
	return New(store, durations, fallback)
}

// Duration returns the cooldown window for a hazard type.
func (t *Tracker) Duration(hazardType hazard.Type) time.Duration {
	if d, ok := t.durations[hazardType]; ok {
		return d
	}
	return t.fallback
}

// IsSuppressed reports whether a notification of hazardType was sent within
// its window ending at now. A zero window never suppresses.
func (t *Tracker) IsSuppressed(ctx context.Context, hazardType hazard.Type, now time.Time) (bool, error) {
	window := t.Duration(hazardType)
	if window <= 0 {
		return false, nil
	}
	cutoff := now.Add(-window)

	if last, ok := t.cached(hazardType); ok && !last.Before(cutoff) {
		return true, nil
	}

	last, found, err := t.store.LatestNotificationTime(ctx, string(hazardType))
	if err != nil {
		return false, errors.New(err).
			Component("cooldown").
			Category(errors.CategoryDatabase).
			Context("hazard_type", string(hazardType)).
			Context("operation", "is_suppressed").
			Build()
	}
	if !found {
		return false, nil
	}

	suppressed := !last.Before(cutoff)
	if suppressed {
		t.remember(hazardType, last, last.Add(window).Sub(now))
		t.log.Debug("hazard in cooldown",
			logger.String("hazard_type", string(hazardType)),
			logger.Time("last_sent", last),
			logger.Duration("window", window))
	}
	return suppressed, nil
}

// Record notes that hazardType was sent at the given time. The persistent
// NotificationRecord written by the caller remains the source of truth.
func (t *Tracker) Record(_ context.Context, hazardType hazard.Type, at time.Time) error {
	window := t.Duration(hazardType)
	if window <= 0 {
		return nil
	}
	t.remember(hazardType, at, window)
	return nil
}

func (t *Tracker) cached(hazardType hazard.Type) (time.Time, bool) {
	v, ok := t.recent.Get(string(hazardType))
	if !ok {
		return time.Time{}, false
	}
	last, ok := v.(time.Time)
	return last, ok
}

// remember keeps the newest send time seen for a type for ttl.
func (t *Tracker) remember(hazardType hazard.Type, at time.Time, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.cached(hazardType); ok && prev.After(at) {
		return
	}
	t.recent.Set(string(hazardType), at.UTC(), ttl)
}
