package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings. The Twilio and
// ALERT_PHONE_1 names are kept for compatibility with existing deployments.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"gateway.twilio.accountsid", "TWILIO_ACCOUNT_SID", nil},
		{"gateway.twilio.authtoken", "TWILIO_AUTH_TOKEN", nil},
		{"gateway.twilio.from", "TWILIO_FROM", validateEnvPhone},
		{"notification.primaryrecipient", "ALERT_PHONE_1", validateEnvPhone},
		{"notification.recipients", "MHEWS_RECIPIENTS", nil},

		{"gateway.type", "MHEWS_GATEWAY", validateEnvOneOf("twilio", "shoutrrr")},
		{"gateway.shoutrrr.urltemplate", "MHEWS_SHOUTRRR_URL", nil},

		{"database.type", "MHEWS_DATABASE_TYPE", validateEnvOneOf("sqlite", "mysql")},
		{"database.sqlite.path", "MHEWS_SQLITE_PATH", nil},
		{"database.mysql.host", "MHEWS_MYSQL_HOST", nil},
		{"database.mysql.port", "MHEWS_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "MHEWS_MYSQL_USERNAME", nil},
		{"database.mysql.password", "MHEWS_MYSQL_PASSWORD", nil},
		{"database.mysql.database", "MHEWS_MYSQL_DATABASE", nil},

		{"webserver.port", "MHEWS_PORT", validateEnvPort},
		{"classifier.type", "MHEWS_CLASSIFIER", validateEnvOneOf("tflite", "http", "none")},
		{"classifier.modelpath", "MHEWS_MODEL_PATH", nil},
		{"classifier.endpoint", "MHEWS_CLASSIFIER_ENDPOINT", nil},

		{"mqtt.enabled", "MHEWS_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "MHEWS_MQTT_BROKER", nil},
		{"mqtt.username", "MHEWS_MQTT_USERNAME", nil},
		{"mqtt.password", "MHEWS_MQTT_PASSWORD", nil},

		{"sentry.enabled", "MHEWS_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "MHEWS_SENTRY_DSN", nil},
		{"debug", "MHEWS_DEBUG", validateEnvBool},
	}
}

// bindEnvVars binds every environment variable and validates values that are set
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// validateEnvPhone accepts E.164-like numbers; placeholders are allowed and
// filtered later by the dispatcher.
func validateEnvPhone(value string) error {
	digits := strings.TrimPrefix(strings.TrimSpace(value), "+")
	if len(digits) < 6 {
		return fmt.Errorf("phone number too short")
	}
	for _, r := range digits {
		if (r < '0' || r > '9') && r != 'X' && r != ' ' && r != '-' {
			return fmt.Errorf("unexpected character %q in phone number", r)
		}
	}
	return nil
}

func validateEnvOneOf(allowed ...string) func(string) error {
	return func(value string) error {
		for _, a := range allowed {
			if strings.EqualFold(value, a) {
				return nil
			}
		}
		return fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
	}
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars(v)
}
