package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/hazard"
)

// fakeGateway records sends and fails for recipients listed in failFor.
type fakeGateway struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]error
	delay   time.Duration
	seq     int
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Send(ctx context.Context, _, to, _ string) (Receipt, error) {
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.failFor[to]; ok {
		return Receipt{}, err
	}
	g.seq++
	g.sent = append(g.sent, to)
	return Receipt{SID: fmt.Sprintf("SM%03d", g.seq), Status: "queued"}, nil
}

func (g *fakeGateway) sentTo() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.sent...)
}

// memoryCooldown is a map-backed Cooldown.
type memoryCooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[hazard.Type]time.Time
	err    error
}

func newMemoryCooldown(window time.Duration) *memoryCooldown {
	return &memoryCooldown{window: window, last: make(map[hazard.Type]time.Time)}
}

func (c *memoryCooldown) IsSuppressed(_ context.Context, t hazard.Type, now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.window == 0 || t == hazard.Manual {
		return false, nil
	}
	last, ok := c.last[t]
	return ok && !last.Before(now.Add(-c.window)), nil
}

func (c *memoryCooldown) Record(_ context.Context, t hazard.Type, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[t] = at
	return nil
}

func (c *memoryCooldown) recorded(t hazard.Type) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.last[t]
	return ok
}

// memoryStore collects saved notification records.
type memoryStore struct {
	mu      sync.Mutex
	records []datastore.NotificationRecord
}

func (s *memoryStore) SaveNotification(_ context.Context, n *datastore.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *n)
	return nil
}

func (s *memoryStore) all() []datastore.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]datastore.NotificationRecord(nil), s.records...)
}
