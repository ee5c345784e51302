// Package conf loads and validates mhews settings through viper.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mhews/mhews/internal/logger"
)

// CutoffSettings holds the warn and critical cutoffs for one sensor signal.
type CutoffSettings struct {
	Warn     float64
	Critical float64
}

// ThresholdSettings contains per-signal cutoffs.
type ThresholdSettings struct {
	Distance     CutoffSettings // cm to water surface, lower is worse
	RainLevel    CutoffSettings // 0-100 intensity
	AirQuality   CutoffSettings // PPM
	Temperature  CutoffSettings // Celsius
	SoilMoisture CutoffSettings // configured for completeness, not evaluated
}

// WebServerSettings contains settings for the HTTP API.
type WebServerSettings struct {
	Enabled     bool
	Port        string
	CORSOrigins []string // allowed origins, "*" allows all
	Debug       bool
}

// SQLiteSettings contains settings for the SQLite store.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains settings for the MySQL store.
type MySQLSettings struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DatabaseSettings selects and configures the persistent store.
type DatabaseSettings struct {
	Type          string // sqlite or mysql
	SQLite        SQLiteSettings
	MySQL         MySQLSettings
	SlowThreshold time.Duration // statements slower than this are logged at WARN
}

// TwilioSettings contains Twilio REST credentials.
type TwilioSettings struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

// ShoutrrrSettings configures the shoutrrr gateway. URLTemplate may contain
// a {to} placeholder replaced with the recipient.
type ShoutrrrSettings struct {
	URLTemplate string
}

// CircuitBreakerSettings configures the breaker wrapped around the gateway.
type CircuitBreakerSettings struct {
	Enabled             bool
	MaxFailures         int
	Timeout             time.Duration
	HalfOpenMaxRequests int
}

// RateLimitSettings bounds outbound gateway calls.
type RateLimitSettings struct {
	Enabled   bool
	PerSecond float64
	Burst     int
}

// GatewaySettings selects and configures the notification gateway.
type GatewaySettings struct {
	Type           string // twilio or shoutrrr
	Timeout        time.Duration
	Twilio         TwilioSettings
	Shoutrrr       ShoutrrrSettings
	CircuitBreaker CircuitBreakerSettings
	RateLimit      RateLimitSettings
}

// NotificationSettings configures the dispatcher.
type NotificationSettings struct {
	PrimaryRecipient  string         // usually from ALERT_PHONE_1
	Recipients        []string       // additional default recipients
	PlaceholderMarker string         // recipients containing this are skipped
	DispatchTimeout   time.Duration  // upper bound for one hazard dispatch
	Cooldown          map[string]int // minutes per hazard type
	DefaultCooldown   int            // minutes for unconfigured hazard types
}

// DefaultRecipients returns the primary recipient followed by the configured
// list, without duplicates or empty entries.
func (n *NotificationSettings) DefaultRecipients() []string {
	seen := make(map[string]struct{}, len(n.Recipients)+1)
	out := make([]string, 0, len(n.Recipients)+1)
	for _, r := range append([]string{n.PrimaryRecipient}, n.Recipients...) {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// CooldownMinutes returns the configured cooldown per upper-cased hazard type.
// Viper lower-cases map keys, so they are normalised here.
func (n *NotificationSettings) CooldownMinutes() map[string]int {
	out := make(map[string]int, len(n.Cooldown))
	for k, v := range n.Cooldown {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// ClassifierSettings selects the risk classifier backend.
type ClassifierSettings struct {
	Type         string // tflite, http or none
	ModelPath    string
	Threads      int
	Endpoint     string
	Timeout      time.Duration
	FeatureWidth int // expected input width for the http backend
}

// MQTTSettings configures sensor ingestion over MQTT.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:port
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool
	Listen  string
}

// SentrySettings contains opt-in error reporting settings.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
	Debug       bool
}

// Settings contains all configuration options.
type Settings struct {
	Debug bool

	// Runtime values, not stored in config file
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`

	Main struct {
		Name string // node name, reported in health checks
	}

	WebServer    WebServerSettings
	Database     DatabaseSettings
	Gateway      GatewaySettings
	Notification NotificationSettings
	Thresholds   ThresholdSettings
	Classifier   ClassifierSettings
	MQTT         MQTTSettings
	Telemetry    TelemetrySettings
	Sentry       SentrySettings
	Logging      logger.LoggingConfig
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration from the default search paths into the global
// viper instance so that cobra flags bound to viper take precedence.
func Load() (*Settings, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("error getting default config paths: %w", err)
	}

	settings, err := load(viper.GetViper(), configPaths)
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// LoadFrom reads configuration from the given directories using a private
// viper instance. The first directory receives a default config file when
// none exists.
func LoadFrom(configPaths ...string) (*Settings, error) {
	return load(viper.New(), configPaths)
}

func load(v *viper.Viper, configPaths []string) (*Settings, error) {
	if err := initViper(v, configPaths); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

func initViper(v *viper.Viper, configPaths []string) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			if len(configPaths) == 0 {
				return nil
			}
			return createDefaultConfig(v, configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the current defaults as config.yaml and reads it back.
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	defaults := &Settings{}
	if err := v.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error building default config: %w", err)
	}

	// Credentials supplied through the environment stay out of the file.
	defaults.Gateway.Twilio.AuthToken = ""
	defaults.Database.MySQL.Password = ""
	defaults.MQTT.Password = ""
	defaults.Sentry.DSN = ""

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, defaults); err != nil {
		return err
	}

	logger.Global().Module("conf").Info("created default config file", logger.String("path", configPath))
	return v.ReadInConfig()
}

// GetSettings returns the settings loaded by Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
