// Package uptime computes availability statistics from the check history.
package uptime

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Calculator computes uptime statistics for targets.
type Calculator struct {
	db *gorm.DB
}

// NewCalculator creates a Calculator.
func NewCalculator(db *gorm.DB) *Calculator {
	return &Calculator{db: db}
}

// Stats is availability over one time window.
type Stats struct {
	TargetID         string  `json:"target_id"`
	UptimePercentage float64 `json:"uptime_percentage"`
	TotalChecks      int64   `json:"total_checks"`
	UpChecks         int64   `json:"up_checks"`
	DownChecks       int64   `json:"down_checks"`
	AvgResponseTime  float64 `json:"avg_response_time"` // seconds, up checks only
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
}

// Summary bundles the standard reporting windows for one target.
type Summary struct {
	TargetID string `json:"target_id"`
	Last24h  *Stats `json:"last_24h"`
	Last7d   *Stats `json:"last_7d"`
	Last30d  *Stats `json:"last_30d"`
	Last90d  *Stats `json:"last_90d"`
}

type aggRow struct {
	TotalChecks     int64
	UpChecks        int64
	DownChecks      int64
	AvgResponseTime *float64
}

// ForPeriod computes availability over the trailing duration.
func (c *Calculator) ForPeriod(ctx context.Context, targetID string, duration time.Duration) (*Stats, error) {
	end := time.Now().UTC()
	return c.ForRange(ctx, targetID, end.Add(-duration), end)
}

// ForRange computes availability between two instants.
func (c *Calculator) ForRange(ctx context.Context, targetID string, start, end time.Time) (*Stats, error) {
	var row aggRow
	err := c.db.WithContext(ctx).
		Table("check_history").
		Select(`COUNT(*) AS total_checks,
			SUM(CASE WHEN status = 'up' THEN 1 ELSE 0 END) AS up_checks,
			SUM(CASE WHEN status = 'down' THEN 1 ELSE 0 END) AS down_checks,
			AVG(CASE WHEN status = 'up' THEN response_time ELSE NULL END) AS avg_response_time`).
		Where("target_id = ? AND timestamp >= ? AND timestamp <= ?", targetID, start, end).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute uptime: %w", err)
	}

	stats := &Stats{
		TargetID:    targetID,
		TotalChecks: row.TotalChecks,
		UpChecks:    row.UpChecks,
		DownChecks:  row.DownChecks,
		StartTime:   start.Format(time.RFC3339),
		EndTime:     end.Format(time.RFC3339),
	}
	if row.TotalChecks > 0 {
		stats.UptimePercentage = float64(row.UpChecks) / float64(row.TotalChecks) * 100
	}
	if row.AvgResponseTime != nil {
		stats.AvgResponseTime = *row.AvgResponseTime
	}
	return stats, nil
}

// Summarize computes the standard 24h/7d/30d/90d windows for one target.
func (c *Calculator) Summarize(ctx context.Context, targetID string) (*Summary, error) {
	summary := &Summary{TargetID: targetID}
	for _, w := range []struct {
		dur  time.Duration
		dest **Stats
	}{
		{24 * time.Hour, &summary.Last24h},
		{7 * 24 * time.Hour, &summary.Last7d},
		{30 * 24 * time.Hour, &summary.Last30d},
		{90 * 24 * time.Hour, &summary.Last90d},
	} {
		stats, err := c.ForPeriod(ctx, targetID, w.dur)
		if err != nil {
			return nil, err
		}
		*w.dest = stats
	}
	return summary, nil
}

// DailyPoint is availability for one calendar day.
type DailyPoint struct {
	Date             string  `json:"date"`
	UptimePercentage float64 `json:"uptime_percentage"`
	TotalChecks      int64   `json:"total_checks"`
	UpChecks         int64   `json:"up_checks"`
}

// DailyHistory returns per-day availability for the trailing number of days.
func (c *Calculator) DailyHistory(ctx context.Context, targetID string, days int) ([]DailyPoint, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	type dayRow struct {
		Date        time.Time
		TotalChecks int64
		UpChecks    int64
	}
	var rows []dayRow
	err := c.db.WithContext(ctx).
		Table("check_history").
		Select(`DATE_TRUNC('day', timestamp) AS date,
			COUNT(*) AS total_checks,
			SUM(CASE WHEN status = 'up' THEN 1 ELSE 0 END) AS up_checks`).
		Where("target_id = ? AND timestamp >= ? AND timestamp <= ?", targetID, start, end).
		Group("DATE_TRUNC('day', timestamp)").
		Order("date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily uptime: %w", err)
	}

	points := make([]DailyPoint, 0, len(rows))
	for _, r := range rows {
		p := DailyPoint{
			Date:        r.Date.Format("2006-01-02"),
			TotalChecks: r.TotalChecks,
			UpChecks:    r.UpChecks,
		}
		if r.TotalChecks > 0 {
			p.UptimePercentage = float64(r.UpChecks) / float64(r.TotalChecks) * 100
		}
		points = append(points, p)
	}
	return points, nil
}

// HourlyPoint is availability for one hour bucket.
type HourlyPoint struct {
	Hour             string  `json:"hour"`
	UptimePercentage float64 `json:"uptime_percentage"`
	TotalChecks      int64   `json:"total_checks"`
	UpChecks         int64   `json:"up_checks"`
}

// HourlyHistory returns per-hour availability for the trailing 24 hours.
func (c *Calculator) HourlyHistory(ctx context.Context, targetID string) ([]HourlyPoint, error) {
	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)

	type hourRow struct {
		Hour        time.Time
		TotalChecks int64
		UpChecks    int64
	}
	var rows []hourRow
	err := c.db.WithContext(ctx).
		Table("check_history").
		Select(`DATE_TRUNC('hour', timestamp) AS hour,
			COUNT(*) AS total_checks,
			SUM(CASE WHEN status = 'up' THEN 1 ELSE 0 END) AS up_checks`).
		Where("target_id = ? AND timestamp >= ? AND timestamp <= ?", targetID, start, end).
		Group("DATE_TRUNC('hour', timestamp)").
		Order("hour ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute hourly uptime: %w", err)
	}

	points := make([]HourlyPoint, 0, len(rows))
	for _, r := range rows {
		p := HourlyPoint{
			Hour:        r.Hour.Format("2006-01-02 15:00:00"),
			TotalChecks: r.TotalChecks,
			UpChecks:    r.UpChecks,
		}
		if r.TotalChecks > 0 {
			p.UptimePercentage = float64(r.UpChecks) / float64(r.TotalChecks) * 100
		}
		points = append(points, p)
	}
	return points, nil
}
