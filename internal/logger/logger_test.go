package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestModuleLoggerWritesModuleAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC).Module("notification")

	log.With(String("hazard_type", "FLOOD")).Info("dispatch completed", Int("delivered", 2))

	out := buf.String()
	assert.Contains(t, out, "module=notification")
	assert.Contains(t, out, "hazard_type=FLOOD")
	assert.Contains(t, out, "delivered=2")
	assert.Contains(t, out, `msg="dispatch completed"`)
}

func TestModuleLoggerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn, time.UTC)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestNestedModuleNames(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC).Module("notification").Module("twilio")
	log.Info("sent")

	assert.Contains(t, buf.String(), "module=notification.twilio")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	ctx := WithTraceID(context.Background(), "req-42")
	log.WithContext(ctx).Info("handled")
	log.WithContext(context.Background()).Info("untraced")

	assert.Contains(t, buf.String(), "trace_id=req-42")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("trace_id")))
}

func TestCentralLoggerModuleLevels(t *testing.T) {
	t.Parallel()

	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "warn",
		Console:      &ConsoleOutput{Enabled: false},
		ModuleLevels: map[string]string{"engine": "debug"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })

	assert.Equal(t, parseLogLevel("debug"), cl.moduleLevelLocked("engine.dispatch"))
	assert.Equal(t, parseLogLevel("warn"), cl.moduleLevelLocked("datastore"))
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestGormAdapterTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	adapter := NewGormLoggerAdapter(NewSlogLogger(&buf, LogLevelTrace, time.UTC), 10*time.Millisecond)
	ctx := context.Background()

	adapter.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Contains(t, buf.String(), "level=TRACE")

	buf.Reset()
	adapter.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 2", 1 }, nil)
	assert.Contains(t, buf.String(), "slow statement")

	buf.Reset()
	adapter.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 3", 0 }, errors.New("disk I/O error"))
	assert.Contains(t, buf.String(), "statement failed")

	buf.Reset()
	adapter.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 4", 0 }, gorm.ErrRecordNotFound)
	assert.NotContains(t, buf.String(), "statement failed")
}
