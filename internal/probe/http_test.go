package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/webstatus/internal/config"
	"github.com/fuomag9/webstatus/internal/models"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		PingTimeout:     1,
		HTTPTimeout:     2,
		PingPacketCount: 1,
		PingMinSuccess:  1,
	}
}

func httpTarget(address string) *models.Target {
	return &models.Target{Name: "test", Type: models.KindHTTP, Address: address}
}

func TestHTTPChecker_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := newHTTPChecker(models.KindHTTP, testMonitoringConfig())
	res := checker.Check(context.Background(), httpTarget(srv.URL))

	assert.True(t, res.Success)
	assert.Empty(t, res.Err)
	require.NotNil(t, res.ResponseTime)
	assert.Greater(t, *res.ResponseTime, 0.0)
}

func TestHTTPChecker_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	checker := newHTTPChecker(models.KindHTTP, testMonitoringConfig())
	res := checker.Check(context.Background(), httpTarget(srv.URL))

	assert.False(t, res.Success)
	assert.Equal(t, "HTTP 500", res.Err)
}

func TestHTTPChecker_ClientErrorIsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	checker := newHTTPChecker(models.KindHTTP, testMonitoringConfig())
	res := checker.Check(context.Background(), httpTarget(srv.URL))

	assert.False(t, res.Success)
	assert.Equal(t, "HTTP 404", res.Err)
}

func TestHTTPChecker_RedirectNotFollowed(t *testing.T) {
	var followed bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/next" {
			followed = true
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/next", http.StatusFound)
	}))
	defer srv.Close()

	checker := newHTTPChecker(models.KindHTTP, testMonitoringConfig())
	res := checker.Check(context.Background(), httpTarget(srv.URL))

	// A 302 is success in its own right; the redirect target is never hit.
	assert.True(t, res.Success)
	assert.False(t, followed)
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	checker := newHTTPChecker(models.KindHTTP, testMonitoringConfig())
	res := checker.Check(context.Background(), httpTarget(url))

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Err)
}

func TestHTTPChecker_SchemePrepended(t *testing.T) {
	checker := newHTTPChecker(models.KindHTTPS, testMonitoringConfig())
	assert.Equal(t, "https://example.com", checker.checkURL("example.com"))
	assert.Equal(t, "http://example.com", checker.checkURL("http://example.com"))
}

func TestHTTPChecker_Validate(t *testing.T) {
	checker := newHTTPChecker(models.KindHTTP, testMonitoringConfig())
	assert.Error(t, checker.Validate(httpTarget("  ")))
	assert.NoError(t, checker.Validate(httpTarget("example.com")))
}

func TestRegistry_UnknownKind(t *testing.T) {
	reg := NewRegistry(testMonitoringConfig())
	res := reg.Check(context.Background(), &models.Target{Name: "x", Type: "ftp", Address: "example.com"})

	assert.False(t, res.Success)
	assert.True(t, strings.Contains(res.Err, "ftp"))
}

func TestRegistry_Timeouts(t *testing.T) {
	reg := NewRegistry(testMonitoringConfig())

	// Ping: per-packet timeout times packet count plus inter-packet slack.
	assert.Greater(t, reg.Timeout(models.KindPing).Seconds(), 0.0)
	assert.Equal(t, 2.0, reg.Timeout(models.KindHTTP).Seconds())
	assert.Equal(t, 2.0, reg.Timeout(models.KindHTTPS).Seconds())
}
