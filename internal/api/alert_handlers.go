package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fuomag9/webstatus/internal/alerts"
	"github.com/fuomag9/webstatus/internal/store"
)

// HandleGetAlertLog returns recent alert transitions, optionally filtered by
// target.
func HandleGetAlertLog(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := st.GetAlertLog(r.Context(), r.URL.Query().Get("target_id"), limit)
		if err != nil {
			log.Error().Err(err).Msg("failed to fetch alert log")
			respondError(w, http.StatusInternalServerError, "Failed to fetch alert log")
			return
		}
		respondJSON(w, http.StatusOK, rows)
	}
}

// HandleGetAlertState returns the global alert snapshot. Polled at high
// frequency by browser clients; must never touch the database.
func HandleGetAlertState(state *alerts.StateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, state.State())
	}
}

// HandleStopAlerts silences the current audible alert without acknowledging
// any target; the next evaluation may re-raise it.
func HandleStopAlerts(state *alerts.StateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state.ClearAlert("")
		log.Info().Msg("audible alert stopped by user")
		respondJSON(w, http.StatusOK, map[string]string{"message": "Alerts stopped"})
	}
}
