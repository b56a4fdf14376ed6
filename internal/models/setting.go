package models

import "time"

// Setting categories accepted by the settings store.
const (
	SettingsSMTP       = "smtp"
	SettingsWebhook    = "webhook"
	SettingsSystem     = "system"
	SettingsMonitoring = "monitoring"
)

// Setting is one key/value pair of runtime configuration, grouped by category.
type Setting struct {
	ID        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Category  string    `json:"category" gorm:"not null;uniqueIndex:idx_settings_category_key"`
	Key       string    `json:"key" gorm:"not null;uniqueIndex:idx_settings_category_key"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Setting
func (Setting) TableName() string {
	return "settings"
}
