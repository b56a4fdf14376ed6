package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port        int
	Database    DatabaseConfig
	Monitoring  MonitoringConfig
	JWTSecret   string
	Environment string
	LogLevel    string
	CORSOrigins []string
	SoundsDir   string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type         string // postgres
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// MonitoringConfig holds the probing and alerting defaults consumed by the
// monitor supervisor. Per-target interval/threshold live on the target itself.
type MonitoringConfig struct {
	PingTimeout         int // seconds, per check
	HTTPTimeout         int // seconds, per check
	PingPacketCount     int // ICMP packets per check
	PingMinSuccess      int // packets that must return for success
	AlertRepeatInterval int // seconds between alert_repeat events per target
	ConfigRefreshChecks int // loop refreshes target config every N checks
}

// Load loads configuration from environment variables
func Load() *Config {
	env := getEnv("ENVIRONMENT", "production")
	jwtSecret := loadJWTSecret(env)

	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Database: DatabaseConfig{
			Type:         getEnv("DATABASE_TYPE", "postgres"),
			DSN:          getEnv("DATABASE_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Monitoring: MonitoringConfig{
			PingTimeout:         getEnvInt("PING_TIMEOUT", 3),
			HTTPTimeout:         getEnvInt("HTTP_TIMEOUT", 10),
			PingPacketCount:     getEnvInt("PING_PACKET_COUNT", 3),
			PingMinSuccess:      getEnvInt("PING_MIN_SUCCESS", 1),
			AlertRepeatInterval: getEnvInt("ALERT_REPEAT_INTERVAL", 300),
			ConfigRefreshChecks: getEnvInt("CONFIG_REFRESH_CHECKS", 10),
		},
		JWTSecret:   jwtSecret,
		Environment: env,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: loadCORSOrigins(env),
		SoundsDir:   getEnv("SOUNDS_DIR", "sounds"),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	return cfg
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "webstatus")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "webstatus")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}

		// Check for insecure default secrets
		insecureSecrets := []string{
			"change-this-secret-in-production",
			"change-me-in-production",
			"secret",
			"password",
			"changeme",
		}
		for _, insecure := range insecureSecrets {
			if c.JWTSecret == insecure {
				return fmt.Errorf("JWT_SECRET is set to an insecure default value. Please set a strong random secret")
			}
		}
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	if c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	m := c.Monitoring
	if m.PingTimeout < 1 || m.HTTPTimeout < 1 {
		return fmt.Errorf("check timeouts must be at least 1 second")
	}
	if m.PingPacketCount < 1 {
		return fmt.Errorf("PING_PACKET_COUNT must be at least 1")
	}
	if m.PingMinSuccess < 1 || m.PingMinSuccess > m.PingPacketCount {
		return fmt.Errorf("PING_MIN_SUCCESS must be between 1 and PING_PACKET_COUNT")
	}
	if m.AlertRepeatInterval < 10 {
		return fmt.Errorf("ALERT_REPEAT_INTERVAL must be at least 10 seconds")
	}
	if m.ConfigRefreshChecks < 1 {
		return fmt.Errorf("CONFIG_REFRESH_CHECKS must be at least 1")
	}

	return nil
}

// CheckTimeout returns the configured probe timeout in seconds for a check kind.
func (c *Config) CheckTimeout(kind string) int {
	if kind == "ping" {
		return c.Monitoring.PingTimeout
	}
	return c.Monitoring.HTTPTimeout
}

func loadJWTSecret(env string) string {
	secret := os.Getenv("JWT_SECRET")

	// If JWT_SECRET is not set, generate a random one for development
	if secret == "" {
		if env == "production" {
			log.Fatal("FATAL: JWT_SECRET environment variable is required in production")
		}

		log.Println("WARNING: JWT_SECRET not set. Generating random secret for development.")
		log.Println("WARNING: This secret will change on restart. Set JWT_SECRET in production!")
		return generateRandomSecret()
	}

	if len(secret) < 16 {
		log.Fatal("FATAL: JWT_SECRET must be at least 16 characters long")
	}

	return secret
}

func loadCORSOrigins(env string) []string {
	if appURL := getAppURL(); appURL != "" {
		return []string{appURL}
	}

	if env == "development" {
		return []string{"http://localhost:3000", "http://localhost:8080"}
	}

	// In production, require explicit CORS configuration
	log.Println("WARNING: APP_URL not set. Using default localhost origins.")
	log.Println("WARNING: Set APP_URL environment variable for production deployments.")
	return []string{"http://localhost:3000", "http://localhost:8080"}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate random secret:", err)
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

func getAppURL() string {
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		return ""
	}
	return strings.TrimRight(appURL, "/")
}
