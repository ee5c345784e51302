package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for every setting.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("main.name", "mhews")

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.port", "5000")
	v.SetDefault("webserver.corsorigins", []string{"*"})
	v.SetDefault("webserver.debug", false)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.enabled", true)
	v.SetDefault("database.sqlite.path", "mhews.db")
	v.SetDefault("database.mysql.enabled", false)
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")
	v.SetDefault("database.mysql.database", "mhews")
	v.SetDefault("database.slowthreshold", 200*time.Millisecond)

	v.SetDefault("gateway.type", "twilio")
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("gateway.twilio.baseurl", "https://api.twilio.com")
	v.SetDefault("gateway.circuitbreaker.enabled", true)
	v.SetDefault("gateway.circuitbreaker.maxfailures", 5)
	v.SetDefault("gateway.circuitbreaker.timeout", 30*time.Second)
	v.SetDefault("gateway.circuitbreaker.halfopenmaxrequests", 1)
	v.SetDefault("gateway.ratelimit.enabled", true)
	v.SetDefault("gateway.ratelimit.persecond", 5.0)
	v.SetDefault("gateway.ratelimit.burst", 10)

	v.SetDefault("notification.recipients", []string{})
	v.SetDefault("notification.placeholdermarker", "XXXXXXXXXX")
	v.SetDefault("notification.dispatchtimeout", 30*time.Second)
	v.SetDefault("notification.cooldown", map[string]int{
		"FLOOD":     30,
		"FIRE":      20,
		"AIR":       60,
		"RAIN":      30,
		"RISK_HIGH": 15,
		"MANUAL":    0,
	})
	v.SetDefault("notification.defaultcooldown", 30)

	v.SetDefault("thresholds.distance.warn", 100.0)
	v.SetDefault("thresholds.distance.critical", 50.0)
	v.SetDefault("thresholds.rainlevel.warn", 70.0)
	v.SetDefault("thresholds.rainlevel.critical", 90.0)
	v.SetDefault("thresholds.airquality.warn", 150.0)
	v.SetDefault("thresholds.airquality.critical", 250.0)
	v.SetDefault("thresholds.temperature.warn", 40.0)
	v.SetDefault("thresholds.temperature.critical", 45.0)
	v.SetDefault("thresholds.soilmoisture.warn", 80.0)
	v.SetDefault("thresholds.soilmoisture.critical", 95.0)

	v.SetDefault("classifier.type", "tflite")
	v.SetDefault("classifier.modelpath", "model/risk_model.tflite")
	v.SetDefault("classifier.threads", 1)
	v.SetDefault("classifier.timeout", 5*time.Second)
	v.SetDefault("classifier.featurewidth", 10)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "mhews/sensors/+")
	v.SetDefault("mqtt.clientid", "mhews")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.listen", "0.0.0.0:8090")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.environment", "production")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "UTC")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.console.format", "text")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/mhews.log")
	v.SetDefault("logging.file_output.level", "info")
}
