package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/cooldown"
	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
	"github.com/mhews/mhews/internal/notification"
	"github.com/mhews/mhews/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

type fixedClassifier struct{ label hazard.RiskLabel }

func (c fixedClassifier) Classify(context.Context, hazard.Reading) hazard.RiskLabel { return c.label }

type fakeDispatcher struct {
	mu     sync.Mutex
	calls  []hazard.Type
	delays map[hazard.Type]time.Duration
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, t hazard.Type, _ string, _ []string) notification.DispatchResult {
	if delay := d.delays[t]; delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return notification.DispatchResult{Reason: ctx.Err().Error()}
		}
	}
	d.mu.Lock()
	d.calls = append(d.calls, t)
	d.mu.Unlock()
	return notification.DispatchResult{Sent: true, Count: 1}
}

func (d *fakeDispatcher) types() []hazard.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]hazard.Type(nil), d.calls...)
}

type memoryReadings struct {
	mu   sync.Mutex
	rows []datastore.SensorReading
	err  error
}

func (s *memoryReadings) SaveReading(_ context.Context, r *datastore.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, *r)
	return nil
}

func nominal() map[hazard.Signal]float64 {
	return map[hazard.Signal]float64{
		hazard.Temperature: 28,
		hazard.RainLevel:   10,
		hazard.AirQuality:  40,
		hazard.Distance:    300,
	}
}

func TestProcessReading_NominalLowRisk(t *testing.T) {
	d := &fakeDispatcher{}
	store := &memoryReadings{}
	e := New(fixedClassifier{hazard.LabelLow}, hazard.NewEvaluator(nil), d, store)

	out, err := e.ProcessReading(context.Background(), SensorInput{Signals: nominal()})
	require.NoError(t, err)
	assert.Equal(t, hazard.LabelLow, out.Risk)
	assert.Empty(t, out.Dispatches)
	assert.Empty(t, d.types())

	require.Len(t, store.rows, 1)
	assert.Equal(t, "LOW", store.rows[0].Risk)
	assert.Equal(t, time.UTC, store.rows[0].Timestamp.Location())
	require.NotNil(t, store.rows[0].Distance)
	assert.InDelta(t, 300, *store.rows[0].Distance, 0)
	assert.Nil(t, store.rows[0].Humidity, "absent signals stay absent")
}

func TestProcessReading_HighRiskAlwaysEmitsRiskHigh(t *testing.T) {
	d := &fakeDispatcher{}
	e := New(fixedClassifier{hazard.LabelHigh}, hazard.NewEvaluator(nil), d, &memoryReadings{})

	out, err := e.ProcessReading(context.Background(), SensorInput{Signals: nominal()})
	require.NoError(t, err)
	require.Len(t, out.Dispatches, 1)
	assert.Equal(t, hazard.RiskHigh, out.Dispatches[0].Type)
	assert.Equal(t, hazard.TierCritical, out.Dispatches[0].Tier)
	assert.True(t, out.Dispatches[0].Result.Sent)
}

func TestProcessReading_DispatchesEveryCandidate(t *testing.T) {
	d := &fakeDispatcher{}
	m, err := metrics.NewEngineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	e := New(fixedClassifier{hazard.LabelMedium}, hazard.NewEvaluator(nil), d, &memoryReadings{}, WithMetrics(m))

	signals := nominal()
	signals[hazard.Distance] = 40
	signals[hazard.RainLevel] = 75
	out, err := e.ProcessReading(context.Background(), SensorInput{Signals: signals})
	require.NoError(t, err)

	require.Len(t, out.Dispatches, 2)
	assert.Equal(t, hazard.Flood, out.Dispatches[0].Type)
	assert.Equal(t, hazard.TierCritical, out.Dispatches[0].Tier)
	assert.Equal(t, hazard.Rain, out.Dispatches[1].Type)
	assert.Equal(t, hazard.TierWarn, out.Dispatches[1].Tier)
	assert.ElementsMatch(t, []hazard.Type{hazard.Flood, hazard.Rain}, d.types())

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ReadingsTotal.WithLabelValues("MEDIUM")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.HazardCandidatesTotal.WithLabelValues("FLOOD", "CRITICAL")), 0)
}

func TestProcessReading_SlowHazardDoesNotStallOthers(t *testing.T) {
	d := &fakeDispatcher{delays: map[hazard.Type]time.Duration{hazard.Flood: 5 * time.Second}}
	e := New(fixedClassifier{hazard.LabelLow}, hazard.NewEvaluator(nil), d, &memoryReadings{},
		WithCandidateTimeout(100*time.Millisecond))

	signals := nominal()
	signals[hazard.Distance] = 10
	signals[hazard.Temperature] = 47

	start := time.Now()
	out, err := e.ProcessReading(context.Background(), SensorInput{Signals: signals})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, out.Dispatches, 2)
	assert.False(t, out.Dispatches[0].Result.Sent)
	assert.Equal(t, context.DeadlineExceeded.Error(), out.Dispatches[0].Result.Reason)
	assert.True(t, out.Dispatches[1].Result.Sent, "FIRE is delivered despite the stuck FLOOD send")
}

func TestProcessReading_CallerCancelDoesNotAbortDispatch(t *testing.T) {
	d := &fakeDispatcher{delays: map[hazard.Type]time.Duration{hazard.Flood: 50 * time.Millisecond}}
	e := New(fixedClassifier{hazard.LabelLow}, hazard.NewEvaluator(nil), d, &memoryReadings{})

	ctx, cancel := context.WithCancel(context.Background())
	signals := nominal()
	signals[hazard.Distance] = 10
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	out, err := e.ProcessReading(ctx, SensorInput{Signals: signals})
	require.NoError(t, err)
	require.Len(t, out.Dispatches, 1)
	assert.True(t, out.Dispatches[0].Result.Sent)
}

func TestProcessReading_StoreErrorStopsPipeline(t *testing.T) {
	d := &fakeDispatcher{}
	store := &memoryReadings{err: errors.NewStd("disk I/O error")}
	e := New(fixedClassifier{hazard.LabelHigh}, hazard.NewEvaluator(nil), d, store)

	_, err := e.ProcessReading(context.Background(), SensorInput{Signals: nominal()})
	require.Error(t, err)
	assert.Empty(t, d.types())
}

func TestManualSend(t *testing.T) {
	d := &fakeDispatcher{}
	e := New(fixedClassifier{hazard.LabelLow}, hazard.NewEvaluator(nil), d, &memoryReadings{})

	_, err := e.ManualSend(context.Background(), "   ", nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	res, err := e.ManualSend(context.Background(), "evacuate zone B", []string{"+15551111111"})
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, []hazard.Type{hazard.Manual}, d.types())
}

type countingGateway struct {
	mu    sync.Mutex
	count int
}

func (g *countingGateway) Name() string { return "counting" }

func (g *countingGateway) Send(context.Context, string, string, string) (notification.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count++
	return notification.Receipt{SID: "SM1", Status: "queued"}, nil
}

// Two flood readings minutes apart: the first notifies, the second is
// suppressed by the cooldown derived from stored history.
func TestProcessReading_CooldownAcrossReadings(t *testing.T) {
	settings := &conf.Settings{}
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "engine.db")
	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	gw := &countingGateway{}
	tracker := cooldown.New(store, cooldown.DefaultDurations, cooldown.DefaultFallback)
	dispatcher := notification.NewDispatcher(gw, tracker, store, nil, notification.Config{
		DefaultRecipients: []string{"+15551111111"},
		Timeout:           time.Second,
	})
	e := New(fixedClassifier{hazard.LabelLow}, hazard.NewEvaluator(nil), dispatcher, store)

	signals := nominal()
	signals[hazard.Distance] = 40

	first, err := e.ProcessReading(context.Background(), SensorInput{Signals: signals})
	require.NoError(t, err)
	require.Len(t, first.Dispatches, 1)
	assert.True(t, first.Dispatches[0].Result.Sent)

	second, err := e.ProcessReading(context.Background(), SensorInput{Signals: signals})
	require.NoError(t, err)
	require.Len(t, second.Dispatches, 1)
	assert.False(t, second.Dispatches[0].Result.Sent)
	assert.Equal(t, notification.ReasonCooldown, second.Dispatches[0].Result.Reason)
	assert.Equal(t, 1, gw.count)

	logged, err := store.RecentNotifications(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}
