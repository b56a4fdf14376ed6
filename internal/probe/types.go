// Package probe executes single checks against targets. Probers convert every
// infrastructure failure into a failed Result; they never return errors to
// the supervisor loop.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/fuomag9/webstatus/internal/config"
	"github.com/fuomag9/webstatus/internal/models"
)

// Result is the immutable outcome of one probe.
type Result struct {
	Timestamp    time.Time
	Success      bool
	ResponseTime *float64 // seconds, nil when the check never connected
	Err          string   // empty on success
}

func seconds(d time.Duration) *float64 {
	s := d.Seconds()
	return &s
}

// Checker performs a single check kind.
type Checker interface {
	// Kind returns the check kind name (e.g. "ping", "http")
	Kind() string

	// Check performs the check. Failures are reported in the Result.
	Check(ctx context.Context, target *models.Target) *Result

	// Validate validates the target's address for this kind
	Validate(target *models.Target) error
}

// Registry holds the configured checkers keyed by kind.
type Registry struct {
	checkers map[string]Checker
	cfg      config.MonitoringConfig
}

// NewRegistry builds a registry with the ping, http and https checkers.
func NewRegistry(cfg config.MonitoringConfig) *Registry {
	r := &Registry{checkers: make(map[string]Checker), cfg: cfg}
	r.register(newPingChecker(cfg))
	r.register(newHTTPChecker(models.KindHTTP, cfg))
	r.register(newHTTPChecker(models.KindHTTPS, cfg))
	return r
}

func (r *Registry) register(c Checker) {
	r.checkers[c.Kind()] = c
}

// Get returns the checker for a kind.
func (r *Registry) Get(kind string) (Checker, bool) {
	c, ok := r.checkers[kind]
	return c, ok
}

// Check dispatches to the checker for the target's kind. An unknown kind is a
// failed check, not an error.
func (r *Registry) Check(ctx context.Context, target *models.Target) *Result {
	c, ok := r.checkers[target.Type]
	if !ok {
		return &Result{
			Timestamp: time.Now().UTC(),
			Success:   false,
			Err:       fmt.Sprintf("unknown check kind: %s", target.Type),
		}
	}
	return c.Check(ctx, target)
}

// Timeout returns the configured probe timeout for a kind. The supervisor
// loop adds its own fixed buffer on top of this for the hard outer timeout.
func (r *Registry) Timeout(kind string) time.Duration {
	if kind == models.KindPing {
		// A ping check sends every packet before giving up, so the budget
		// covers the whole train plus the roughly 1s default send interval.
		total := r.cfg.PingTimeout*r.cfg.PingPacketCount + r.cfg.PingPacketCount
		return time.Duration(total) * time.Second
	}
	return time.Duration(r.cfg.HTTPTimeout) * time.Second
}
