package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_DisabledByDefault(t *testing.T) {
	w := NewWebhook(zerolog.Nop())
	assert.False(t, w.Enabled())
	assert.Error(t, w.SendTest(context.Background()))
}

func TestWebhook_UpdateConfigRequiresURL(t *testing.T) {
	w := NewWebhook(zerolog.Nop())
	w.UpdateConfig("", true)
	assert.False(t, w.Enabled(), "enabled without a URL stays disabled")

	w.UpdateConfig("http://example.com/hook", true)
	assert.True(t, w.Enabled())

	w.UpdateConfig("http://example.com/hook", false)
	assert.False(t, w.Enabled())
}

func TestWebhook_ThresholdReachedPayload(t *testing.T) {
	var mu sync.Mutex
	var got webhookPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(zerolog.Nop())
	w.UpdateConfig(srv.URL, true)

	err := w.SendThresholdReached(context.Background(), "web-01", "id-1", 3, 3, "connection refused")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "threshold_reached", got.EventType)
	assert.Equal(t, "id-1", got.Target.ID)
	assert.Equal(t, "web-01", got.Target.Name)
	assert.Equal(t, 3, got.Failures)
	assert.Equal(t, 3, got.Threshold)
	assert.Contains(t, got.Message, "web-01 is DOWN")
	assert.Contains(t, got.Message, "connection refused")
	assert.NotEmpty(t, got.Timestamp)
}

func TestWebhook_RecoveryPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(zerolog.Nop())
	w.UpdateConfig(srv.URL, true)

	require.NoError(t, w.SendRecovery(context.Background(), "web-01", "id-1"))
	assert.Equal(t, "recovered", got.EventType)
	assert.Contains(t, got.Message, "web-01 is back UP")
}

func TestWebhook_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(zerolog.Nop())
	w.UpdateConfig(srv.URL, true)

	err := w.SendTest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
