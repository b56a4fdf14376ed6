package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fuomag9/webstatus/internal/alerts"
	"github.com/fuomag9/webstatus/internal/audio"
	"github.com/fuomag9/webstatus/internal/config"
	"github.com/fuomag9/webstatus/internal/discovery"
	"github.com/fuomag9/webstatus/internal/jobs"
	"github.com/fuomag9/webstatus/internal/monitor"
	"github.com/fuomag9/webstatus/internal/notification"
	"github.com/fuomag9/webstatus/internal/store"
	"github.com/fuomag9/webstatus/internal/uptime"
	"github.com/fuomag9/webstatus/internal/websocket"
)

// Version reported by the system status endpoint.
const Version = "1.0.0"

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      *store.Store
	Manager    *monitor.Manager
	Aggregator *alerts.Aggregator
	AlertState *alerts.StateStore
	Webhook    *notification.Webhook
	SMTP       *notification.SMTPNotifier
	Hub        *websocket.Hub
	Audio      *audio.Library
	Scanner    *discovery.Scanner
	Uptime     *uptime.Calculator
	Scheduler  *jobs.Scheduler
	Log        zerolog.Logger
}

// NewRouter builds the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		// Auth
		r.Group(func(r chi.Router) {
			r.Use(RateLimitLogin())
			r.Post("/auth/login", HandleLogin(d.DB, d.Config))
		})
		r.Post("/auth/logout", HandleLogout())
		r.Post("/auth/setup", HandleSetup(d.DB, d.Config))
		r.Get("/auth/setup", HandleGetSetupStatus(d.DB))

		// Protected API
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Config.JWTSecret, d.DB))

			r.Get("/user/me", HandleGetCurrentUser())

			// Targets
			r.Get("/targets", HandleGetTargets(d.Store))
			r.Post("/targets", HandleCreateTarget(d.Store, d.Manager))
			r.Get("/targets/{id}", HandleGetTarget(d.Store))
			r.Put("/targets/{id}", HandleUpdateTarget(d.Store, d.Manager, d.Aggregator))
			r.Delete("/targets/{id}", HandleDeleteTarget(d.Store, d.Manager, d.Aggregator, d.AlertState))
			r.Post("/targets/{id}/check", HandleCheckNow(d.Store, d.Manager))
			r.Post("/targets/{id}/acknowledge", HandleAcknowledgeTarget(d.Store, d.Aggregator))
			r.Delete("/targets/{id}/acknowledge", HandleUnacknowledgeTarget(d.Store, d.Aggregator))
			r.Get("/targets/{id}/history", HandleGetTargetHistory(d.Store))
			r.Get("/targets/{id}/statistics", HandleGetTargetStatistics(d.Store))
			r.Get("/targets/{id}/uptime", HandleGetTargetUptime(d.Store, d.Uptime))
			r.Get("/targets/{id}/uptime/daily", HandleGetTargetUptimeDaily(d.Uptime))
			r.Get("/targets/{id}/uptime/hourly", HandleGetTargetUptimeHourly(d.Uptime))

			// Alerts
			r.Get("/alerts", HandleGetAlertLog(d.Store))
			r.Post("/alerts/stop", HandleStopAlerts(d.AlertState))

			// Discovery
			r.Post("/discover/subnet", HandleDiscoverSubnet(d.Scanner))
			r.Post("/discover/host", HandleDiscoverHost(d.Scanner))
			r.Post("/discover/import", HandleImportDevices(d.Store, d.Manager))

			// Audio library
			r.Get("/audio/library", HandleGetAudioLibrary(d.Audio))
			r.Get("/audio/library/category/{category}", HandleGetAudioByCategory(d.Audio))
			r.Get("/audio/library/scan", HandleScanAudioFiles(d.Audio))
			r.Post("/audio/library/alert", HandleAddAudioAlert(d.Audio))
			r.Delete("/audio/library/alert/{id}", HandleDeleteAudioAlert(d.Audio))
			r.Post("/audio/library/upload", HandleUploadAudio(d.Audio, d.Config.SoundsDir))

			// Settings
			r.Get("/settings/smtp", HandleGetSMTPSettings(d.Store))
			r.Post("/settings/smtp", HandleUpdateSMTPSettings(d.Store, d.SMTP))
			r.Post("/settings/smtp/test", HandleTestSMTP(d.SMTP))
			r.Get("/settings/webhook", HandleGetWebhookSettings(d.Store))
			r.Post("/settings/webhook", HandleUpdateWebhookSettings(d.Store, d.Webhook))
			r.Post("/settings/webhook/test", HandleTestWebhook(d.Webhook))

			// System
			r.Get("/status", HandleGetSystemStatus(d.Store, d.Manager, d.AlertState, Version))
			r.Get("/device-presets", HandleGetDevicePresets())
			r.Post("/maintenance/cleanup", HandleRunCleanup(d.Scheduler))
		})

		// Polled by the dashboard at high frequency; stays unauthenticated
		// like the health probe so the alert banner works pre-login.
		r.Get("/alerts/state", HandleGetAlertState(d.AlertState))

		r.Get("/health", HandleHealth())
	})

	// Sound files for browser playback.
	r.Get("/sounds/{filename}", HandleServeAudio(d.Audio))

	// WebSocket push
	r.Get("/ws", d.Hub.HandleWebSocket)

	return r
}
