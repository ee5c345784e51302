package notification

import (
	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/httpclient"
	"github.com/mhews/mhews/internal/observability/metrics"
)

// NewGatewayFromSettings builds the configured gateway wrapped in its guards.
func NewGatewayFromSettings(settings *conf.GatewaySettings, m *metrics.NotificationMetrics) (*GuardedGateway, error) {
	var inner Gateway
	switch settings.Type {
	case "", "twilio":
		client := httpclient.New(&httpclient.Config{DefaultTimeout: settings.Timeout})
		inner = NewTwilioGateway(&settings.Twilio, client, settings.Timeout)
	case "shoutrrr":
		g, err := NewShoutrrrGateway(settings.Shoutrrr.URLTemplate, settings.Timeout)
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		return nil, errors.Newf("unsupported gateway type %q", settings.Type).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return NewGuardedGateway(inner, settings, m), nil
}
