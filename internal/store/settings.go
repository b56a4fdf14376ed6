package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fuomag9/webstatus/internal/models"
)

var validCategories = map[string]bool{
	models.SettingsSMTP:       true,
	models.SettingsWebhook:    true,
	models.SettingsSystem:     true,
	models.SettingsMonitoring: true,
}

// SaveSettings upserts a set of key/value pairs under one category.
func (s *Store) SaveSettings(ctx context.Context, category string, values map[string]string) error {
	if !validCategories[category] {
		return fmt.Errorf("invalid settings category: %s", category)
	}

	now := time.Now().UTC()
	rows := make([]models.Setting, 0, len(values))
	for k, v := range values {
		rows = append(rows, models.Setting{Category: category, Key: k, Value: v, UpdatedAt: now})
	}
	if len(rows) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetSettingsByCategory returns all key/value pairs for a category.
func (s *Store) GetSettingsByCategory(ctx context.Context, category string) (map[string]string, error) {
	if !validCategories[category] {
		return nil, fmt.Errorf("invalid settings category: %s", category)
	}

	var rows []models.Setting
	err := s.db.WithContext(ctx).Where("category = ?", category).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}

	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Key] = r.Value
	}
	return values, nil
}

// GetSetting returns one setting value, or "" when unset.
func (s *Store) GetSetting(ctx context.Context, category, key string) (string, error) {
	var row models.Setting
	err := s.db.WithContext(ctx).Where("category = ? AND key = ?", category, key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to fetch setting: %w", err)
	}
	return row.Value, nil
}
