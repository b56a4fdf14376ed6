package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fuomag9/webstatus/internal/alerts"
	"github.com/fuomag9/webstatus/internal/jobs"
	"github.com/fuomag9/webstatus/internal/monitor"
	"github.com/fuomag9/webstatus/internal/store"
)

var startedAt = time.Now().UTC()

// SystemStatus is the dashboard summary.
type SystemStatus struct {
	store.StatusCounts
	ActiveAlerts  int    `json:"active_alerts"`
	IsAlerting    bool   `json:"is_alerting"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Version       string `json:"version"`
}

// HandleGetSystemStatus returns the dashboard summary.
func HandleGetSystemStatus(st *store.Store, mgr *monitor.Manager, state *alerts.StateStore, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := st.CountTargets(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("failed to count targets")
			respondError(w, http.StatusInternalServerError, "Failed to fetch system status")
			return
		}

		respondJSON(w, http.StatusOK, SystemStatus{
			StatusCounts:  *counts,
			ActiveAlerts:  len(mgr.ActiveAlerts()),
			IsAlerting:    state.State().IsAlerting,
			UptimeSeconds: int64(time.Since(startedAt).Seconds()),
			Version:       version,
		})
	}
}

// HandleHealth is the unauthenticated liveness probe.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// HandleRunCleanup triggers the retention jobs immediately.
func HandleRunCleanup(scheduler *jobs.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheduler.RunCleanupNow()
		respondJSON(w, http.StatusOK, map[string]string{"message": "Cleanup complete"})
	}
}
