package errors

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderCarriesContext(t *testing.T) {
	ee := Newf("alert %s not found", "AL-2026-001").
		Component("alerts").
		Category(CategoryNotFound).
		Priority("bogus").
		Context("alert_id", "AL-2026-001").
		Timing("resolve_alert", 1500*time.Millisecond).
		Build()

	assert.Equal(t, "alerts", ee.GetComponent())
	assert.Equal(t, PriorityMedium, ee.GetPriority())
	assert.True(t, IsNotFound(ee))
	assert.False(t, IsValidation(ee))

	ctx := ee.GetContext()
	assert.Equal(t, "AL-2026-001", ctx["alert_id"])
	assert.Equal(t, "resolve_alert", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])
}

func TestIsCategoryThroughWrapping(t *testing.T) {
	base := New(NewStd("no valid recipients")).Category(CategoryValidation).Build()
	wrapped := fmt.Errorf("dispatch: %w", base)

	assert.True(t, IsCategory(wrapped, CategoryValidation))
	assert.False(t, IsCategory(wrapped, CategoryDatabase))
	assert.False(t, IsCategory(NewStd("plain"), CategoryValidation))
}

func TestErrorHooksActivateFullPath(t *testing.T) {
	t.Cleanup(ClearErrorHooks)

	var seen []*EnhancedError
	AddErrorHook(func(ee *EnhancedError) { seen = append(seen, ee) })

	ee := New(NewStd("connection refused")).Build()

	require.Len(t, seen, 1)
	assert.Same(t, ee, seen[0])
	assert.Equal(t, CategoryNetwork, ee.Category)
}

func TestBasicURLScrub(t *testing.T) {
	scrubbed := basicURLScrub("Error at https://api.example.com?api_key=secret123&token=abc")
	assert.Equal(t, "Error at https://api.example.com?[REDACTED]", scrubbed)

	scrubbed = basicURLScrub("Config error: api_key=secret123 is invalid")
	assert.Contains(t, scrubbed, "[API_KEY_REDACTED]")

	scrubbed = basicURLScrub("send to +91 98765 43210 failed")
	assert.NotContains(t, scrubbed, "98765")
	assert.True(t, strings.Contains(scrubbed, "[PHONE_REDACTED]"))
}
