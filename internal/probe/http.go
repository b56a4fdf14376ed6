package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fuomag9/webstatus/internal/config"
	"github.com/fuomag9/webstatus/internal/models"
)

// HTTPChecker issues GET requests against http or https targets. Redirects
// are not followed so that http and https endpoints are monitored
// independently of each other.
type HTTPChecker struct {
	kind    string
	client  *http.Client
	timeout time.Duration
}

func newHTTPChecker(kind string, cfg config.MonitoringConfig) *HTTPChecker {
	timeout := time.Duration(cfg.HTTPTimeout) * time.Second

	// One pooled client per checker; it carries no check-specific state.
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 5 * time.Second,
			}).DialContext,
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &HTTPChecker{kind: kind, client: client, timeout: timeout}
}

func (h *HTTPChecker) Kind() string {
	return h.kind
}

func (h *HTTPChecker) Validate(target *models.Target) error {
	address := strings.TrimSpace(target.Address)
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if _, err := url.Parse(h.checkURL(address)); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return nil
}

// checkURL prepends the checker's scheme when the address has none.
func (h *HTTPChecker) checkURL(address string) string {
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return address
	}
	return h.kind + "://" + address
}

func (h *HTTPChecker) Check(ctx context.Context, target *models.Target) *Result {
	result := &Result{Timestamp: time.Now().UTC()}

	checkURL := h.checkURL(strings.TrimSpace(target.Address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		result.Err = fmt.Sprintf("invalid URL: %v", err)
		return result
	}
	req.Header.Set("User-Agent", "webstatus/1.0")

	start := time.Now()
	resp, err := h.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		result.Err = classifyHTTPError(err, h.timeout)
		return result
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused by the pool.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	result.ResponseTime = seconds(elapsed)

	// 2xx and 3xx count as success.
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Success = true
		return result
	}

	result.Err = fmt.Sprintf("HTTP %d", resp.StatusCode)
	return result
}

// classifyHTTPError maps transport failures to distinct, stable error strings
// so that down reasons are recognizable in history and notifications.
func classifyHTTPError(err error, timeout time.Duration) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("DNS error: %v", dnsErr)
	}

	var certErr *tls.CertificateVerificationError
	var hostErr x509.HostnameError
	var unknownAuthErr x509.UnknownAuthorityError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &unknownAuthErr) {
		return fmt.Sprintf("SSL error: %v", err)
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return fmt.Sprintf("SSL error: %v", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("HTTP timeout after %s", timeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("HTTP timeout after %s", timeout)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("connection error: %v", opErr.Err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Sprintf("HTTP error: %v", urlErr.Err)
	}

	return fmt.Sprintf("HTTP error: %v", err)
}
