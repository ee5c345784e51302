package conf

import (
	"fmt"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and normalises enum values.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateDatabaseSettings,
		validateGatewaySettings,
		validateNotificationSettings,
		validateThresholdSettings,
		validateClassifierSettings,
		validateMQTTSettings,
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	s.Database.Type = strings.ToLower(s.Database.Type)
	switch s.Database.Type {
	case "sqlite":
		if s.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path must be set")
		}
	case "mysql":
		if s.Database.MySQL.Host == "" || s.Database.MySQL.Database == "" {
			return fmt.Errorf("database.mysql.host and database.mysql.database must be set")
		}
	default:
		return fmt.Errorf("database.type must be sqlite or mysql, got %q", s.Database.Type)
	}
	return nil
}

func validateGatewaySettings(s *Settings) error {
	s.Gateway.Type = strings.ToLower(s.Gateway.Type)
	switch s.Gateway.Type {
	case "twilio":
		if s.Gateway.Twilio.BaseURL == "" {
			return fmt.Errorf("gateway.twilio.baseurl must be set")
		}
	case "shoutrrr":
		if s.Gateway.Shoutrrr.URLTemplate == "" {
			return fmt.Errorf("gateway.shoutrrr.urltemplate must be set when gateway.type is shoutrrr")
		}
	default:
		return fmt.Errorf("gateway.type must be twilio or shoutrrr, got %q", s.Gateway.Type)
	}

	if s.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	if s.Gateway.RateLimit.Enabled && (s.Gateway.RateLimit.PerSecond <= 0 || s.Gateway.RateLimit.Burst < 1) {
		return fmt.Errorf("gateway.ratelimit requires persecond > 0 and burst >= 1")
	}
	if s.Gateway.CircuitBreaker.Enabled && s.Gateway.CircuitBreaker.MaxFailures < 1 {
		return fmt.Errorf("gateway.circuitbreaker.maxfailures must be at least 1")
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	if s.Notification.DefaultCooldown < 0 {
		return fmt.Errorf("notification.defaultcooldown must not be negative")
	}
	for hazard, minutes := range s.Notification.Cooldown {
		if minutes < 0 {
			return fmt.Errorf("notification.cooldown.%s must not be negative", hazard)
		}
	}
	if s.Notification.DispatchTimeout <= 0 {
		return fmt.Errorf("notification.dispatchtimeout must be positive")
	}
	return nil
}

func validateThresholdSettings(s *Settings) error {
	var errs []string

	// Distance trips when the reading falls at or below the cutoff.
	if s.Thresholds.Distance.Critical > s.Thresholds.Distance.Warn {
		errs = append(errs, "thresholds.distance.critical must not exceed warn")
	}

	rising := map[string]CutoffSettings{
		"rainlevel":    s.Thresholds.RainLevel,
		"airquality":   s.Thresholds.AirQuality,
		"temperature":  s.Thresholds.Temperature,
		"soilmoisture": s.Thresholds.SoilMoisture,
	}
	for name, c := range rising {
		if c.Critical < c.Warn {
			errs = append(errs, fmt.Sprintf("thresholds.%s.critical must not be below warn", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateClassifierSettings(s *Settings) error {
	s.Classifier.Type = strings.ToLower(s.Classifier.Type)
	switch s.Classifier.Type {
	case "tflite":
		if s.Classifier.ModelPath == "" {
			return fmt.Errorf("classifier.modelpath must be set for the tflite classifier")
		}
	case "http":
		if s.Classifier.Endpoint == "" {
			return fmt.Errorf("classifier.endpoint must be set for the http classifier")
		}
	case "none":
	default:
		return fmt.Errorf("classifier.type must be tflite, http or none, got %q", s.Classifier.Type)
	}
	if s.Classifier.FeatureWidth < 0 {
		return fmt.Errorf("classifier.featurewidth must not be negative")
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	if s.MQTT.Broker == "" || s.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.broker and mqtt.topic must be set when mqtt is enabled")
	}
	if s.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}
