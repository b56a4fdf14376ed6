// Package store implements the persistence layer on top of GORM. It is the
// single source of truth for target state: the monitor supervisor and the
// alert aggregator treat their in-memory views as advisory caches and defer
// to what this package returns.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fuomag9/webstatus/internal/models"
)

// ErrNotFound is returned when a target does not exist.
var ErrNotFound = errors.New("target not found")

// Store wraps a GORM handle with the queries the rest of the system needs.
type Store struct {
	db *gorm.DB
}

// New creates a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateTarget inserts a new target and returns it with its generated ID.
func (s *Store) CreateTarget(ctx context.Context, t *models.Target) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create target: %w", err)
	}
	return nil
}

// GetTarget fetches one target by ID.
func (s *Store) GetTarget(ctx context.Context, id string) (*models.Target, error) {
	var t models.Target
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch target: %w", err)
	}
	return &t, nil
}

// GetAllTargets returns every target ordered by name.
func (s *Store) GetAllTargets(ctx context.Context) ([]models.Target, error) {
	var targets []models.Target
	err := s.db.WithContext(ctx).Order("name").Find(&targets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch targets: %w", err)
	}
	return targets, nil
}

// GetEnabledTargets returns every enabled target ordered by name.
func (s *Store) GetEnabledTargets(ctx context.Context) ([]models.Target, error) {
	var targets []models.Target
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("name").Find(&targets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch enabled targets: %w", err)
	}
	return targets, nil
}

// DownUnacknowledgedTargets returns the targets eligible for alerting:
// down, enabled, not acknowledged and not silent, ordered urgent first.
// The aggregator relies on this ordering to pick the most urgent target.
func (s *Store) DownUnacknowledgedTargets(ctx context.Context) ([]models.Target, error) {
	var targets []models.Target
	err := s.db.WithContext(ctx).
		Where("status = ? AND enabled = ? AND acknowledged = ? AND audio_behavior != ?",
			models.StatusDown, true, false, models.AudioSilent).
		Order("CASE audio_behavior WHEN 'urgent' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END").
		Find(&targets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch down targets: %w", err)
	}
	return targets, nil
}

// UpdateTarget applies a partial update. Only whitelisted columns are written.
func (s *Store) UpdateTarget(ctx context.Context, id string, updates map[string]interface{}) error {
	allowed := map[string]bool{
		"name": true, "type": true, "address": true, "device_type": true,
		"check_interval": true, "failure_threshold": true, "enabled": true,
		"audio_behavior": true, "audio_down_alert": true, "audio_up_alert": true,
	}
	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if allowed[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.Target{}).Where("id = ?", id).Updates(filtered)
	if res.Error != nil {
		return fmt.Errorf("failed to update target: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTarget removes a target. Its check history rows cascade.
func (s *Store) DeleteTarget(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Target{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete target: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AcknowledgeTarget marks a down target as acknowledged.
func (s *Store) AcknowledgeTarget(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Target{}).Where("id = ?", id).
		Updates(map[string]interface{}{"acknowledged": true, "acknowledged_at": now})
	if res.Error != nil {
		return fmt.Errorf("failed to acknowledge target: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UnacknowledgeTarget clears a target's acknowledgment.
func (s *Store) UnacknowledgeTarget(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Target{}).Where("id = ?", id).
		Updates(map[string]interface{}{"acknowledged": false, "acknowledged_at": nil})
	if res.Error != nil {
		return fmt.Errorf("failed to unacknowledge target: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTargetStatus persists the outcome of one check. When the status
// changed since the previous check, the elapsed time spent in the previous
// status is accumulated into total_uptime or total_downtime and the
// acknowledgment is cleared on a transition to up. Runs in one transaction
// so the accounting is atomic with the status write.
func (s *Store) UpdateTargetStatus(ctx context.Context, id, status string, failures int) error {
	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev models.Target
		if err := tx.Select("status", "last_status_change").First(&prev, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		failedInc := 0
		if status == models.StatusDown {
			failedInc = 1
		}

		updates := map[string]interface{}{
			"status":           status,
			"current_failures": failures,
			"last_check":       now,
			"total_checks":     gorm.Expr("total_checks + 1"),
			"failed_checks":    gorm.Expr("failed_checks + ?", failedInc),
		}

		if prev.Status != status {
			updates["last_status_change"] = now

			var delta int64
			if prev.LastStatusChange != nil {
				delta = int64(now.Sub(*prev.LastStatusChange).Seconds())
			}
			if delta > 0 {
				switch prev.Status {
				case models.StatusUp:
					updates["total_uptime"] = gorm.Expr("total_uptime + ?", delta)
				case models.StatusDown:
					updates["total_downtime"] = gorm.Expr("total_downtime + ?", delta)
				}
			}

			// Acknowledgment only covers one down episode.
			if status == models.StatusUp {
				updates["acknowledged"] = false
				updates["acknowledged_at"] = nil
			}
		}

		return tx.Model(&models.Target{}).Where("id = ?", id).Updates(updates).Error
	})
}

// AddCheckHistory appends one probe outcome to the history.
func (s *Store) AddCheckHistory(ctx context.Context, targetID, status string, responseTime *float64, errMsg string) error {
	row := models.CheckHistory{
		TargetID:     targetID,
		Timestamp:    time.Now().UTC(),
		Status:       status,
		ResponseTime: responseTime,
		ErrorMessage: errMsg,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to add check history: %w", err)
	}
	return nil
}

// GetCheckHistory returns the most recent history rows for a target.
func (s *Store) GetCheckHistory(ctx context.Context, targetID string, limit int) ([]models.CheckHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.CheckHistory
	err := s.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch check history: %w", err)
	}
	return rows, nil
}

// AddAlertLog appends one alert transition to the alert log.
func (s *Store) AddAlertLog(ctx context.Context, targetID, eventType, message string) error {
	row := models.AlertLog{
		TargetID:  targetID,
		EventType: eventType,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to add alert log: %w", err)
	}
	return nil
}

// GetAlertLog returns recent alert log rows, optionally filtered by target.
func (s *Store) GetAlertLog(ctx context.Context, targetID string, limit int) ([]models.AlertLog, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit)
	if targetID != "" {
		q = q.Where("target_id = ?", targetID)
	}
	var rows []models.AlertLog
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch alert log: %w", err)
	}
	return rows, nil
}

// CleanupOldHistory deletes check history older than the retention window.
func (s *Store) CleanupOldHistory(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.CheckHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cleanup check history: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CleanupOldAlerts deletes alert log rows older than the retention window.
func (s *Store) CleanupOldAlerts(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.AlertLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cleanup alert log: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// StatusCounts summarizes targets for the system status endpoint.
type StatusCounts struct {
	Total   int64 `json:"total_targets"`
	Enabled int64 `json:"enabled_targets"`
	Up      int64 `json:"targets_up"`
	Down    int64 `json:"targets_down"`
	Unknown int64 `json:"targets_unknown"`
}

// CountTargets returns per-status target counts.
func (s *Store) CountTargets(ctx context.Context) (*StatusCounts, error) {
	var counts StatusCounts
	db := s.db.WithContext(ctx).Model(&models.Target{})

	if err := db.Count(&counts.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count targets: %w", err)
	}
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.Target{}).
		Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count targets by status: %w", err)
	}
	for _, r := range rows {
		switch r.Status {
		case models.StatusUp:
			counts.Up = r.N
		case models.StatusDown:
			counts.Down = r.N
		default:
			counts.Unknown = r.N
		}
	}
	if err := s.db.WithContext(ctx).Model(&models.Target{}).
		Where("enabled = ?", true).Count(&counts.Enabled).Error; err != nil {
		return nil, fmt.Errorf("failed to count enabled targets: %w", err)
	}
	return &counts, nil
}
