package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuomag9/webstatus/internal/models"
)

// SMTPConfig holds mail server configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string // comma-separated recipients
	Enabled  bool
}

// SMTPNotifier sends email notifications for alert transitions.
type SMTPNotifier struct {
	mu  sync.RWMutex
	cfg SMTPConfig
	log zerolog.Logger

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates a disabled SMTPNotifier; call UpdateConfig to
// enable it.
func NewSMTPNotifier(log zerolog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		log:      log.With().Str("component", "smtp").Logger(),
		sendMail: smtp.SendMail,
	}
}

// UpdateConfig swaps the mail configuration.
func (s *SMTPNotifier) UpdateConfig(cfg SMTPConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	cfg.Enabled = cfg.Enabled && cfg.Host != "" && cfg.From != "" && cfg.To != ""
	s.cfg = cfg

	if cfg.Enabled {
		s.log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("smtp notifier enabled")
	} else {
		s.log.Info().Msg("smtp notifier disabled")
	}
}

// Enabled reports whether the notifier is configured and active.
func (s *SMTPNotifier) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Enabled
}

// ConfigFromSettings builds an SMTPConfig from the settings store values.
func ConfigFromSettings(values map[string]string) SMTPConfig {
	port, _ := strconv.Atoi(values["port"])
	enabled, _ := strconv.ParseBool(values["enabled"])
	return SMTPConfig{
		Host:     values["host"],
		Port:     port,
		Username: values["username"],
		Password: values["password"],
		From:     values["from"],
		To:       values["to"],
		Enabled:  enabled,
	}
}

// SendAlert emails an alert for a target transition. status is "down" or
// "up" and selects the subject line.
func (s *SMTPNotifier) SendAlert(ctx context.Context, target *models.Target, status, message string) error {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	if !cfg.Enabled {
		return fmt.Errorf("smtp not enabled")
	}

	subject := buildSubject(target, status)
	body := buildTextBody(target, status, message)
	return s.deliver(cfg, subject, body)
}

// SendTest emails a test message to one recipient.
func (s *SMTPNotifier) SendTest(ctx context.Context, recipient string) error {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	if cfg.Host == "" || cfg.From == "" {
		return fmt.Errorf("smtp host and from address are required")
	}
	cfg.To = recipient
	cfg.Enabled = true

	return s.deliver(cfg, "webstatus test email",
		"This is a test email from webstatus.\n\nIf you received this, SMTP notifications are working.")
}

func (s *SMTPNotifier) deliver(cfg SMTPConfig, subject, body string) error {
	recipients := strings.Split(cfg.To, ",")
	for i, r := range recipients {
		recipients[i] = strings.TrimSpace(r)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	if err := s.sendMail(addr, auth, cfg.From, recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.log.Info().Str("subject", subject).Msg("email sent")
	return nil
}

func buildSubject(target *models.Target, status string) string {
	if status == models.StatusUp {
		return fmt.Sprintf("[webstatus] RECOVERED: %s is back UP", target.Name)
	}
	return fmt.Sprintf("[webstatus] ALERT: %s is DOWN", target.Name)
}

func buildTextBody(target *models.Target, status, message string) string {
	var b strings.Builder
	if status == models.StatusUp {
		fmt.Fprintf(&b, "%s has recovered.\n\n", target.Name)
	} else {
		fmt.Fprintf(&b, "%s is DOWN.\n\n", target.Name)
	}
	fmt.Fprintf(&b, "Target:  %s\n", target.Name)
	fmt.Fprintf(&b, "Address: %s://%s\n", target.Type, target.Address)
	fmt.Fprintf(&b, "Status:  %s\n", strings.ToUpper(status))
	if message != "" {
		fmt.Fprintf(&b, "Details: %s\n", message)
	}
	fmt.Fprintf(&b, "Time:    %s\n", time.Now().UTC().Format(time.RFC3339))
	return b.String()
}
