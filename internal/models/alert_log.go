package models

import "time"

// Alert event kinds recorded in the alert log.
const (
	EventThresholdReached = "threshold_reached"
	EventRecovered        = "recovered"
	EventAlertRepeat      = "alert_repeat"
)

// AlertLog is one row of the append-only alert transition log.
type AlertLog struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TargetID  string    `json:"target_id" gorm:"not null;index"`
	EventType string    `json:"event_type" gorm:"not null"`
	Message   string    `json:"message" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
}

// TableName specifies the table name for AlertLog
func (AlertLog) TableName() string {
	return "alert_log"
}
