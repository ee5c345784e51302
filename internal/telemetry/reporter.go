package telemetry

import (
	"github.com/mhews/mhews/internal/errors"
)

// reporter forwards enhanced errors to Sentry, skipping categories that
// describe bad client input rather than service faults.
type reporter struct {
	sentry *errors.SentryReporter
}

func newReporter() *reporter {
	return &reporter{sentry: errors.NewSentryReporter(true)}
}

func (r *reporter) IsEnabled() bool { return true }

func (r *reporter) ReportError(ee *errors.EnhancedError) {
	switch ee.Category {
	case errors.CategoryValidation, errors.CategoryNotFound:
		return
	}
	r.sentry.ReportError(ee)
}
