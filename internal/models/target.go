package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
)

// Check kinds supported by the prober.
const (
	KindPing  = "ping"
	KindHTTP  = "http"
	KindHTTPS = "https"
)

// Target lifecycle statuses.
const (
	StatusUnknown = "unknown"
	StatusUp      = "up"
	StatusDown    = "down"
)

// Audio urgency tiers.
const (
	AudioUrgent = "urgent"
	AudioNormal = "normal"
	AudioSilent = "silent"
)

// Target is a monitored endpoint.
type Target struct {
	ID               string     `json:"id" gorm:"primaryKey;type:uuid"`
	Name             string     `json:"name" gorm:"not null"`
	Type             string     `json:"type" gorm:"not null;index"`
	Address          string     `json:"address" gorm:"not null"`
	DeviceType       string     `json:"device_type" gorm:"default:'other'"`
	CheckInterval    int        `json:"check_interval" gorm:"default:60"`    // seconds
	FailureThreshold int        `json:"failure_threshold" gorm:"default:3"`  // consecutive failures to alert
	CurrentFailures  int        `json:"current_failures" gorm:"default:0"`
	Status           string     `json:"status" gorm:"default:'unknown';index"`
	LastCheck        *time.Time `json:"last_check"`
	LastStatusChange *time.Time `json:"last_status_change"`
	TotalChecks      int64      `json:"total_checks" gorm:"default:0"`
	FailedChecks     int64      `json:"failed_checks" gorm:"default:0"`
	Enabled          bool       `json:"enabled" gorm:"default:true;index"`
	AudioBehavior    string     `json:"audio_behavior" gorm:"default:'normal'"`
	AudioDownAlert   string     `json:"audio_down_alert"`
	AudioUpAlert     string     `json:"audio_up_alert"`
	Acknowledged     bool       `json:"acknowledged" gorm:"default:false"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at"`
	TotalUptime      int64      `json:"total_uptime" gorm:"default:0"`   // seconds, only increases
	TotalDowntime    int64      `json:"total_downtime" gorm:"default:0"` // seconds, only increases
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Target
func (Target) TableName() string {
	return "targets"
}

// BeforeCreate hook assigns an ID when none is set
func (t *Target) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Alerting reports whether the target's persisted counters place it past
// its failure threshold while unacknowledged. Used to reconstruct the
// active-alert set after a restart.
func (t *Target) Alerting() bool {
	return t.CurrentFailures >= t.FailureThreshold && !t.Acknowledged
}
