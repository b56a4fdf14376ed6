package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fuomag9/webstatus/internal/models"
	"github.com/fuomag9/webstatus/internal/notification"
	"github.com/fuomag9/webstatus/internal/store"
)

// SMTPSettingsRequest is the payload for updating mail settings.
type SMTPSettingsRequest struct {
	Host     string `json:"host" validate:"omitempty,max=255"`
	Port     int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Username string `json:"username" validate:"omitempty,max=255"`
	Password string `json:"password" validate:"omitempty,max=255"`
	From     string `json:"from" validate:"omitempty,max=255"`
	To       string `json:"to" validate:"omitempty,max=1024"`
	Enabled  bool   `json:"enabled"`
}

// WebhookSettingsRequest is the payload for updating webhook settings.
type WebhookSettingsRequest struct {
	URL     string `json:"url" validate:"omitempty,url,max=1024"`
	Enabled bool   `json:"enabled"`
}

// HandleGetSMTPSettings returns the stored mail settings with the password
// masked.
func HandleGetSMTPSettings(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values, err := st.GetSettingsByCategory(r.Context(), models.SettingsSMTP)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch settings")
			return
		}
		if values["password"] != "" {
			values["password"] = "********"
		}
		respondJSON(w, http.StatusOK, values)
	}
}

// HandleUpdateSMTPSettings persists mail settings and reconfigures the
// notifier without a restart.
func HandleUpdateSMTPSettings(st *store.Store, smtp *notification.SMTPNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SMTPSettingsRequest
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}

		values := map[string]string{
			"host":     req.Host,
			"port":     strconv.Itoa(req.Port),
			"username": req.Username,
			"from":     req.From,
			"to":       req.To,
			"enabled":  strconv.FormatBool(req.Enabled),
		}
		// A masked or empty password keeps the stored one.
		if req.Password != "" && req.Password != "********" {
			values["password"] = req.Password
		}

		if err := st.SaveSettings(r.Context(), models.SettingsSMTP, values); err != nil {
			log.Error().Err(err).Msg("failed to save smtp settings")
			respondError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}

		stored, err := st.GetSettingsByCategory(r.Context(), models.SettingsSMTP)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to reload settings")
			return
		}
		smtp.UpdateConfig(notification.ConfigFromSettings(stored))

		respondJSON(w, http.StatusOK, map[string]string{"message": "SMTP settings updated"})
	}
}

// HandleTestSMTP sends a test email to the given recipient.
func HandleTestSMTP(smtp *notification.SMTPNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Recipient string `json:"recipient" validate:"required,email"`
		}
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
		if err := smtp.SendTest(r.Context(), req.Recipient); err != nil {
			respondError(w, http.StatusBadGateway, "Test email failed: "+err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "Test email sent"})
	}
}

// HandleGetWebhookSettings returns the stored webhook settings.
func HandleGetWebhookSettings(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values, err := st.GetSettingsByCategory(r.Context(), models.SettingsWebhook)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch settings")
			return
		}
		respondJSON(w, http.StatusOK, values)
	}
}

// HandleUpdateWebhookSettings persists webhook settings and reconfigures
// the notifier without a restart.
func HandleUpdateWebhookSettings(st *store.Store, webhook *notification.Webhook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WebhookSettingsRequest
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}

		values := map[string]string{
			"url":     req.URL,
			"enabled": strconv.FormatBool(req.Enabled),
		}
		if err := st.SaveSettings(r.Context(), models.SettingsWebhook, values); err != nil {
			log.Error().Err(err).Msg("failed to save webhook settings")
			respondError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}

		webhook.UpdateConfig(req.URL, req.Enabled)
		respondJSON(w, http.StatusOK, map[string]string{"message": "Webhook settings updated"})
	}
}

// HandleTestWebhook posts a test payload to the configured endpoint.
func HandleTestWebhook(webhook *notification.Webhook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := webhook.SendTest(r.Context()); err != nil {
			respondError(w, http.StatusBadGateway, "Test webhook failed: "+err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "Test webhook sent"})
	}
}
