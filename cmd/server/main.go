package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fuomag9/webstatus/internal/alerts"
	"github.com/fuomag9/webstatus/internal/api"
	"github.com/fuomag9/webstatus/internal/audio"
	"github.com/fuomag9/webstatus/internal/config"
	"github.com/fuomag9/webstatus/internal/database"
	"github.com/fuomag9/webstatus/internal/discovery"
	"github.com/fuomag9/webstatus/internal/jobs"
	"github.com/fuomag9/webstatus/internal/models"
	"github.com/fuomag9/webstatus/internal/monitor"
	"github.com/fuomag9/webstatus/internal/notification"
	"github.com/fuomag9/webstatus/internal/probe"
	"github.com/fuomag9/webstatus/internal/store"
	"github.com/fuomag9/webstatus/internal/uptime"
	"github.com/fuomag9/webstatus/internal/websocket"
)

func main() {
	cfg := config.Load()
	logger := setupLogger(cfg)
	log.Logger = logger

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get database connection")
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	st := store.New(db)

	// Notification channels, configured from stored settings.
	webhook := notification.NewWebhook(logger)
	smtp := notification.NewSMTPNotifier(logger)
	loadNotifierSettings(st, webhook, smtp, logger)

	// Alert state, aggregation and websocket push.
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	hub := websocket.NewHub(cfg.JWTSecret, cfg.CORSOrigins, logger)
	go hub.Run(hubCtx)

	library := audio.NewLibrary(cfg.SoundsDir, logger)
	alertState := alerts.NewStateStore(logger)
	aggregator := alerts.NewAggregator(st, alertState, library, logger)
	fanout := alerts.NewFanout(st, alertState, aggregator, library, webhook, smtp, hub, logger)

	// Monitoring core.
	registry := probe.NewRegistry(cfg.Monitoring)
	manager := monitor.NewManager(st, registry, cfg.Monitoring, logger)
	manager.RegisterListener(fanout.Listener())

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := manager.Start(startCtx); err != nil {
		startCancel()
		logger.Fatal().Err(err).Msg("failed to start monitor manager")
	}
	startCancel()
	defer manager.Stop()

	// Settle the alert state for targets that were down before the restart.
	evalCtx, evalCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := aggregator.Evaluate(evalCtx); err != nil {
		logger.Error().Err(err).Msg("initial alert evaluation failed")
	}
	evalCancel()

	scheduler := jobs.NewScheduler(st, logger)
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(api.Deps{
		Config:     cfg,
		DB:         db,
		Store:      st,
		Manager:    manager,
		Aggregator: aggregator,
		AlertState: alertState,
		Webhook:    webhook,
		SMTP:       smtp,
		Hub:        hub,
		Audio:      library,
		Scanner:    discovery.NewScanner(registry, logger),
		Uptime:     uptime.NewCalculator(db),
		Scheduler:  scheduler,
		Log:        logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Port).Str("env", cfg.Environment).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}

func setupLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Environment == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// loadNotifierSettings applies persisted notification settings at startup.
func loadNotifierSettings(st *store.Store, webhook *notification.Webhook, smtp *notification.SMTPNotifier, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if values, err := st.GetSettingsByCategory(ctx, models.SettingsWebhook); err != nil {
		logger.Error().Err(err).Msg("failed to load webhook settings")
	} else {
		enabled, _ := strconv.ParseBool(values["enabled"])
		webhook.UpdateConfig(values["url"], enabled)
	}

	if values, err := st.GetSettingsByCategory(ctx, models.SettingsSMTP); err != nil {
		logger.Error().Err(err).Msg("failed to load smtp settings")
	} else {
		smtp.UpdateConfig(notification.ConfigFromSettings(values))
	}
}
