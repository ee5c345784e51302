package datastore

import (
	"time"

	"gorm.io/datatypes"
)

// SensorReading is one stored sensor payload together with the risk label
// the classifier assigned to it. Signal columns are nullable so an absent
// signal stays distinguishable from a zero value.
type SensorReading struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty"`
	SoilMoisture *float64 `json:"soil_moisture,omitempty"`
	RainLevel    *float64 `json:"rain_level,omitempty"`
	AirQuality   *float64 `json:"air_quality,omitempty"`
	Distance     *float64 `json:"distance,omitempty"`
	// Extra keeps any payload fields that are not known signals.
	Extra     datatypes.JSONMap `json:"extra,omitempty"`
	Risk      string            `gorm:"size:16;index" json:"risk"`
	Timestamp time.Time         `gorm:"index" json:"timestamp"`
}

// NotificationRecord is one successful dispatch of a hazard notification.
type NotificationRecord struct {
	ID               uint                        `gorm:"primaryKey" json:"id"`
	HazardType       string                      `gorm:"size:32;index:idx_notification_type_sent,priority:1" json:"hazard_type"`
	Message          string                      `gorm:"type:text" json:"message"`
	Recipients       datatypes.JSONSlice[string] `json:"recipients"`
	GatewayMessageID string                      `gorm:"size:64" json:"gateway_message_id"`
	SentAt           time.Time                   `gorm:"index:idx_notification_type_sent,priority:2" json:"sent_at"`
}

// AlertRecord is an operator-managed alert.
type AlertRecord struct {
	ID         uint                        `gorm:"primaryKey" json:"-"`
	AlertID    string                      `gorm:"size:32;uniqueIndex" json:"id"`
	Type       string                      `gorm:"size:64" json:"type"`
	Severity   string                      `gorm:"size:32" json:"severity"`
	Location   string                      `gorm:"size:255" json:"location"`
	Message    string                      `gorm:"type:text" json:"message"`
	Channels   datatypes.JSONSlice[string] `json:"channels"`
	Status     string                      `gorm:"size:16;index" json:"status"`
	Timestamp  time.Time                   `gorm:"index" json:"timestamp"`
	ResolvedAt *time.Time                  `json:"resolved_at,omitempty"`
	SMSResult  datatypes.JSON              `json:"sms_result,omitempty"`
}

// AlertSequence tracks the last alert sequence number handed out per year.
// Sequence numbers are never reused, even after the alert is deleted.
type AlertSequence struct {
	Year    int `gorm:"primaryKey;autoIncrement:false"`
	LastSeq int `gorm:"not null"`
}

// Alert statuses.
const (
	AlertStatusActive   = "Active"
	AlertStatusResolved = "Resolved"
)

func allModels() []any {
	return []any{&SensorReading{}, &NotificationRecord{}, &AlertRecord{}, &AlertSequence{}}
}
