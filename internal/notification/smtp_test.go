package notification

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/webstatus/internal/models"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingSMTP() (*SMTPNotifier, *capturedMail) {
	captured := &capturedMail{}
	n := NewSMTPNotifier(zerolog.Nop())
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = string(msg)
		return nil
	}
	return n, captured
}

func enabledConfig() SMTPConfig {
	return SMTPConfig{
		Host:    "mail.example.com",
		From:    "alerts@example.com",
		To:      "ops@example.com, oncall@example.com",
		Enabled: true,
	}
}

func TestSMTPNotifier_DisabledWithoutRequiredFields(t *testing.T) {
	n, _ := newCapturingSMTP()

	n.UpdateConfig(SMTPConfig{Host: "mail.example.com", Enabled: true})
	assert.False(t, n.Enabled(), "missing from/to keeps the notifier disabled")

	n.UpdateConfig(enabledConfig())
	assert.True(t, n.Enabled())
}

func TestSMTPNotifier_SendAlertDown(t *testing.T) {
	n, captured := newCapturingSMTP()
	n.UpdateConfig(enabledConfig())

	target := &models.Target{Name: "web-01", Type: models.KindHTTPS, Address: "example.com"}
	err := n.SendAlert(context.Background(), target, models.StatusDown, "HTTP 500")
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:587", captured.addr, "default port applied")
	assert.Equal(t, "alerts@example.com", captured.from)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, captured.to)
	assert.Contains(t, captured.msg, "Subject: [webstatus] ALERT: web-01 is DOWN")
	assert.Contains(t, captured.msg, "HTTP 500")
	assert.Contains(t, captured.msg, "https://example.com")
}

func TestSMTPNotifier_SendAlertRecovery(t *testing.T) {
	n, captured := newCapturingSMTP()
	n.UpdateConfig(enabledConfig())

	target := &models.Target{Name: "web-01", Type: models.KindPing, Address: "192.0.2.1"}
	err := n.SendAlert(context.Background(), target, models.StatusUp, "")
	require.NoError(t, err)

	assert.Contains(t, captured.msg, "Subject: [webstatus] RECOVERED: web-01 is back UP")
}

func TestSMTPNotifier_SendAlertWhenDisabled(t *testing.T) {
	n, _ := newCapturingSMTP()
	target := &models.Target{Name: "web-01"}
	assert.Error(t, n.SendAlert(context.Background(), target, models.StatusDown, "down"))
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(map[string]string{
		"host":     "mail.example.com",
		"port":     "2525",
		"username": "u",
		"password": "p",
		"from":     "a@example.com",
		"to":       "b@example.com",
		"enabled":  "true",
	})

	assert.Equal(t, "mail.example.com", cfg.Host)
	assert.Equal(t, 2525, cfg.Port)
	assert.True(t, cfg.Enabled)
}
