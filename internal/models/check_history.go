package models

import "time"

// CheckHistory is one row of the append-only probe history for a target.
// Rows are never mutated after insert.
type CheckHistory struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TargetID     string    `json:"target_id" gorm:"not null;index:idx_history_target_time"`
	Timestamp    time.Time `json:"timestamp" gorm:"not null;index:idx_history_target_time"`
	Status       string    `json:"status" gorm:"not null"` // up or down
	ResponseTime *float64  `json:"response_time"`          // seconds
	ErrorMessage string    `json:"error_message"`
}

// TableName specifies the table name for CheckHistory
func (CheckHistory) TableName() string {
	return "check_history"
}
