package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fuomag9/webstatus/internal/alerts"
	"github.com/fuomag9/webstatus/internal/models"
	"github.com/fuomag9/webstatus/internal/monitor"
	"github.com/fuomag9/webstatus/internal/store"
	"github.com/fuomag9/webstatus/internal/uptime"
)

// TargetCreateRequest is the payload for creating a target. Zero-valued
// tuning fields are filled from the device type's preset.
type TargetCreateRequest struct {
	Name             string `json:"name" validate:"required,min=1,max=255"`
	Type             string `json:"type" validate:"required,oneof=ping http https"`
	Address          string `json:"address" validate:"required,min=1,max=512"`
	DeviceType       string `json:"device_type" validate:"omitempty,oneof=server network workstation mobile printer iot storage other"`
	CheckInterval    int    `json:"check_interval" validate:"omitempty,min=10,max=86400"`
	FailureThreshold int    `json:"failure_threshold" validate:"omitempty,min=1,max=100"`
	AudioBehavior    string `json:"audio_behavior" validate:"omitempty,oneof=urgent normal silent"`
	AudioDownAlert   string `json:"audio_down_alert" validate:"omitempty,max=255"`
	AudioUpAlert     string `json:"audio_up_alert" validate:"omitempty,max=255"`
	Enabled          *bool  `json:"enabled"`
}

// TargetUpdateRequest is the payload for partial target updates. Only
// non-nil fields are applied.
type TargetUpdateRequest struct {
	Name             *string `json:"name" validate:"omitempty,min=1,max=255"`
	Type             *string `json:"type" validate:"omitempty,oneof=ping http https"`
	Address          *string `json:"address" validate:"omitempty,min=1,max=512"`
	DeviceType       *string `json:"device_type" validate:"omitempty,oneof=server network workstation mobile printer iot storage other"`
	CheckInterval    *int    `json:"check_interval" validate:"omitempty,min=10,max=86400"`
	FailureThreshold *int    `json:"failure_threshold" validate:"omitempty,min=1,max=100"`
	AudioBehavior    *string `json:"audio_behavior" validate:"omitempty,oneof=urgent normal silent"`
	AudioDownAlert   *string `json:"audio_down_alert" validate:"omitempty,max=255"`
	AudioUpAlert     *string `json:"audio_up_alert" validate:"omitempty,max=255"`
	Enabled          *bool   `json:"enabled"`
}

// HandleGetTargets returns all targets.
func HandleGetTargets(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targets, err := st.GetAllTargets(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("failed to list targets")
			respondError(w, http.StatusInternalServerError, "Failed to list targets")
			return
		}
		respondJSON(w, http.StatusOK, targets)
	}
}

// HandleGetTarget returns one target.
func HandleGetTarget(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := st.GetTarget(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Target not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to fetch target")
			return
		}
		respondJSON(w, http.StatusOK, target)
	}
}

// HandleCreateTarget creates a target and starts monitoring it.
func HandleCreateTarget(st *store.Store, mgr *monitor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TargetCreateRequest
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}
		deviceType := req.DeviceType
		if deviceType == "" {
			deviceType = "other"
		}

		target := &models.Target{
			Name:             req.Name,
			Type:             req.Type,
			Address:          req.Address,
			DeviceType:       deviceType,
			CheckInterval:    req.CheckInterval,
			FailureThreshold: req.FailureThreshold,
			AudioBehavior:    req.AudioBehavior,
			AudioDownAlert:   req.AudioDownAlert,
			AudioUpAlert:     req.AudioUpAlert,
			Status:           models.StatusUnknown,
			Enabled:          enabled,
		}
		applyPreset(target)

		if err := st.CreateTarget(r.Context(), target); err != nil {
			log.Error().Err(err).Str("name", req.Name).Msg("failed to create target")
			respondError(w, http.StatusInternalServerError, "Failed to create target")
			return
		}

		if target.Enabled {
			mgr.StartTarget(target)
		}

		log.Info().Str("target", target.Name).Str("id", target.ID).Msg("target created")
		respondJSON(w, http.StatusCreated, target)
	}
}

// HandleUpdateTarget applies a partial update, restarts or stops the
// target's loop to pick it up, and re-evaluates alert state.
func HandleUpdateTarget(st *store.Store, mgr *monitor.Manager, agg *alerts.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req TargetUpdateRequest
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}

		updates := make(map[string]interface{})
		setIf := func(column string, v interface{}, present bool) {
			if present {
				updates[column] = v
			}
		}
		setIf("name", deref(req.Name), req.Name != nil)
		setIf("type", deref(req.Type), req.Type != nil)
		setIf("address", deref(req.Address), req.Address != nil)
		setIf("device_type", deref(req.DeviceType), req.DeviceType != nil)
		setIf("audio_behavior", deref(req.AudioBehavior), req.AudioBehavior != nil)
		setIf("audio_down_alert", deref(req.AudioDownAlert), req.AudioDownAlert != nil)
		setIf("audio_up_alert", deref(req.AudioUpAlert), req.AudioUpAlert != nil)
		if req.CheckInterval != nil {
			updates["check_interval"] = *req.CheckInterval
		}
		if req.FailureThreshold != nil {
			updates["failure_threshold"] = *req.FailureThreshold
		}
		if req.Enabled != nil {
			updates["enabled"] = *req.Enabled
		}

		if len(updates) == 0 {
			respondError(w, http.StatusBadRequest, "No fields to update")
			return
		}

		if err := st.UpdateTarget(r.Context(), id, updates); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Target not found")
				return
			}
			log.Error().Err(err).Str("target_id", id).Msg("failed to update target")
			respondError(w, http.StatusInternalServerError, "Failed to update target")
			return
		}

		target, err := st.GetTarget(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch updated target")
			return
		}

		if target.Enabled {
			mgr.StartTarget(target)
		} else {
			mgr.StopTarget(target.ID)
		}

		// Disabling or re-tiering a down target changes alert eligibility.
		if _, err := agg.Evaluate(r.Context()); err != nil {
			log.Error().Err(err).Msg("alert evaluation after update failed")
		}

		respondJSON(w, http.StatusOK, target)
	}
}

// HandleDeleteTarget stops monitoring and removes the target.
func HandleDeleteTarget(st *store.Store, mgr *monitor.Manager, agg *alerts.Aggregator, state *alerts.StateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		mgr.StopTarget(id)

		if err := st.DeleteTarget(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Target not found")
				return
			}
			log.Error().Err(err).Str("target_id", id).Msg("failed to delete target")
			respondError(w, http.StatusInternalServerError, "Failed to delete target")
			return
		}

		state.ClearWebhookState(id)
		state.ClearEmailState(id)
		if _, err := agg.Evaluate(r.Context()); err != nil {
			log.Error().Err(err).Msg("alert evaluation after delete failed")
		}

		log.Info().Str("target_id", id).Msg("target deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleCheckNow runs an immediate out-of-band check.
func HandleCheckNow(st *store.Store, mgr *monitor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := mgr.CheckNow(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Target not found")
				return
			}
			log.Error().Err(err).Str("target_id", id).Msg("manual check failed")
			respondError(w, http.StatusInternalServerError, "Check failed")
			return
		}

		target, err := st.GetTarget(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch target")
			return
		}
		respondJSON(w, http.StatusOK, target)
	}
}

// HandleAcknowledgeTarget silences notifications for an ongoing outage.
func HandleAcknowledgeTarget(st *store.Store, agg *alerts.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := st.AcknowledgeTarget(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Target not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to acknowledge target")
			return
		}

		if _, err := agg.Evaluate(r.Context()); err != nil {
			log.Error().Err(err).Msg("alert evaluation after acknowledge failed")
		}

		log.Info().Str("target_id", id).Msg("target acknowledged")
		respondJSON(w, http.StatusOK, map[string]string{"message": "Target acknowledged"})
	}
}

// HandleUnacknowledgeTarget re-arms notifications for a target.
func HandleUnacknowledgeTarget(st *store.Store, agg *alerts.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := st.UnacknowledgeTarget(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Target not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to unacknowledge target")
			return
		}

		if _, err := agg.Evaluate(r.Context()); err != nil {
			log.Error().Err(err).Msg("alert evaluation after unacknowledge failed")
		}

		log.Info().Str("target_id", id).Msg("target unacknowledged")
		respondJSON(w, http.StatusOK, map[string]string{"message": "Target unacknowledged"})
	}
}

// HandleGetTargetHistory returns recent check history rows.
func HandleGetTargetHistory(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := st.GetCheckHistory(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch history")
			return
		}
		respondJSON(w, http.StatusOK, rows)
	}
}

// TargetStatistics summarizes a target's lifetime counters.
type TargetStatistics struct {
	TargetID         string  `json:"target_id"`
	TotalChecks      int64   `json:"total_checks"`
	FailedChecks     int64   `json:"failed_checks"`
	SuccessRate      float64 `json:"success_rate"`
	TotalUptime      int64   `json:"total_uptime"`   // seconds
	TotalDowntime    int64   `json:"total_downtime"` // seconds
	CurrentFailures  int     `json:"current_failures"`
	FailureThreshold int     `json:"failure_threshold"`
	Status           string  `json:"status"`
}

// HandleGetTargetStatistics returns a target's lifetime counters.
func HandleGetTargetStatistics(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := st.GetTarget(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Target not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to fetch target")
			return
		}

		stats := TargetStatistics{
			TargetID:         target.ID,
			TotalChecks:      target.TotalChecks,
			FailedChecks:     target.FailedChecks,
			TotalUptime:      target.TotalUptime,
			TotalDowntime:    target.TotalDowntime,
			CurrentFailures:  target.CurrentFailures,
			FailureThreshold: target.FailureThreshold,
			Status:           target.Status,
		}
		if target.TotalChecks > 0 {
			stats.SuccessRate = float64(target.TotalChecks-target.FailedChecks) / float64(target.TotalChecks) * 100
		}
		respondJSON(w, http.StatusOK, stats)
	}
}

// HandleGetTargetUptime returns availability over the standard windows.
func HandleGetTargetUptime(st *store.Store, calc *uptime.Calculator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := st.GetTarget(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Target not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to fetch target")
			return
		}

		summary, err := calc.Summarize(r.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("target_id", id).Msg("uptime computation failed")
			respondError(w, http.StatusInternalServerError, "Failed to compute uptime")
			return
		}
		respondJSON(w, http.StatusOK, summary)
	}
}

// HandleGetTargetUptimeDaily returns per-day availability points.
func HandleGetTargetUptimeDaily(calc *uptime.Calculator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, _ := strconv.Atoi(r.URL.Query().Get("days"))
		if days <= 0 || days > 365 {
			days = 30
		}
		points, err := calc.DailyHistory(r.Context(), chi.URLParam(r, "id"), days)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to compute uptime history")
			return
		}
		respondJSON(w, http.StatusOK, points)
	}
}

// HandleGetTargetUptimeHourly returns per-hour availability for 24 hours.
func HandleGetTargetUptimeHourly(calc *uptime.Calculator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		points, err := calc.HourlyHistory(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to compute uptime history")
			return
		}
		respondJSON(w, http.StatusOK, points)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
