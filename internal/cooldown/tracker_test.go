package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mhews/mhews/internal/conf"
	mock_datastore "github.com/mhews/mhews/internal/datastore/mocks"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestDuration_DefaultsAndFallback(t *testing.T) {
	t.Parallel()
	tr := New(&mock_datastore.MockInterface{}, DefaultDurations, DefaultFallback)

	assert.Equal(t, 30*time.Minute, tr.Duration(hazard.Flood))
	assert.Equal(t, 20*time.Minute, tr.Duration(hazard.Fire))
	assert.Equal(t, 60*time.Minute, tr.Duration(hazard.Air))
	assert.Equal(t, 30*time.Minute, tr.Duration(hazard.Rain))
	assert.Equal(t, 15*time.Minute, tr.Duration(hazard.RiskHigh))
	assert.Zero(t, tr.Duration(hazard.Manual))
	assert.Equal(t, 30*time.Minute, tr.Duration(hazard.Type("QUAKE")))
}

func TestIsSuppressed_Window(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hazard   hazard.Type
		lastSent time.Time
		found    bool
		want     bool
	}{
		{"never sent", hazard.Flood, time.Time{}, false, false},
		{"inside window", hazard.Flood, now.Add(-10 * time.Minute), true, true},
		{"exactly at boundary", hazard.Flood, now.Add(-30 * time.Minute), true, true},
		{"just outside window", hazard.Flood, now.Add(-30*time.Minute - time.Second), true, false},
		{"fire uses 20 minutes", hazard.Fire, now.Add(-25 * time.Minute), true, false},
		{"air uses 60 minutes", hazard.Air, now.Add(-59 * time.Minute), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &mock_datastore.MockInterface{}
			store.On("LatestNotificationTime", mock.Anything, string(tt.hazard)).
				Return(tt.lastSent, tt.found, nil)

			tr := New(store, DefaultDurations, DefaultFallback)
			got, err := tr.IsSuppressed(context.Background(), tt.hazard, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			store.AssertExpectations(t)
		})
	}
}

func TestIsSuppressed_ZeroWindowSkipsStore(t *testing.T) {
	t.Parallel()
	store := &mock_datastore.MockInterface{}
	tr := New(store, DefaultDurations, DefaultFallback)

	got, err := tr.IsSuppressed(context.Background(), hazard.Manual, now)
	require.NoError(t, err)
	assert.False(t, got)
	store.AssertNotCalled(t, "LatestNotificationTime", mock.Anything, mock.Anything)
}

func TestRecord_ServesFromCache(t *testing.T) {
	t.Parallel()
	store := &mock_datastore.MockInterface{}
	tr := New(store, DefaultDurations, DefaultFallback)
	ctx := context.Background()

	sent := time.Now()
	require.NoError(t, tr.Record(ctx, hazard.Rain, sent))

	got, err := tr.IsSuppressed(ctx, hazard.Rain, sent.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, got)
	store.AssertNotCalled(t, "LatestNotificationTime", mock.Anything, mock.Anything)
}

func TestRecord_CacheMissFallsBackToStore(t *testing.T) {
	t.Parallel()
	store := &mock_datastore.MockInterface{}
	store.On("LatestNotificationTime", mock.Anything, "RAIN").Return(time.Time{}, false, nil).Once()
	tr := New(store, DefaultDurations, DefaultFallback)
	ctx := context.Background()

	sent := time.Now()
	require.NoError(t, tr.Record(ctx, hazard.Rain, sent))

	// Past the window the cached entry no longer suppresses, so the store is asked.
	got, err := tr.IsSuppressed(ctx, hazard.Rain, sent.Add(31*time.Minute))
	require.NoError(t, err)
	assert.False(t, got)
	store.AssertExpectations(t)
}

func TestRecord_KeepsNewest(t *testing.T) {
	t.Parallel()
	tr := New(&mock_datastore.MockInterface{}, DefaultDurations, DefaultFallback)
	ctx := context.Background()

	newer := time.Now()
	require.NoError(t, tr.Record(ctx, hazard.Flood, newer))
	require.NoError(t, tr.Record(ctx, hazard.Flood, newer.Add(-time.Hour)))

	last, ok := tr.cached(hazard.Flood)
	require.True(t, ok)
	assert.True(t, last.Equal(newer.UTC()))
}

func TestIsSuppressed_StoreError(t *testing.T) {
	t.Parallel()
	store := &mock_datastore.MockInterface{}
	store.On("LatestNotificationTime", mock.Anything, "FLOOD").
		Return(time.Time{}, false, errors.NewStd("connection refused"))

	tr := New(store, DefaultDurations, DefaultFallback)
	_, err := tr.IsSuppressed(context.Background(), hazard.Flood, now)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestNewFromSettings_Overrides(t *testing.T) {
	t.Parallel()
	settings := &conf.NotificationSettings{
		Cooldown:        map[string]int{"flood": 5, "QUAKE": 90},
		DefaultCooldown: 45,
	}
	tr := NewFromSettings(&mock_datastore.MockInterface{}, settings)

	assert.Equal(t, 5*time.Minute, tr.Duration(hazard.Flood))
	assert.Equal(t, 90*time.Minute, tr.Duration(hazard.Type("QUAKE")))
	assert.Equal(t, 20*time.Minute, tr.Duration(hazard.Fire), "unset types keep built-in window")
	assert.Equal(t, 45*time.Minute, tr.Duration(hazard.Type("TSUNAMI")))
}
