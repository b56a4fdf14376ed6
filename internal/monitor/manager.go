// Package monitor implements the monitoring core: one restartable probing
// loop per target under a supervisor, a pure transition state machine, and
// alert event fan-out to registered listeners.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuomag9/webstatus/internal/config"
	"github.com/fuomag9/webstatus/internal/models"
	"github.com/fuomag9/webstatus/internal/probe"
)

// Store is the slice of the persistence layer the supervisor needs.
type Store interface {
	GetTarget(ctx context.Context, id string) (*models.Target, error)
	GetEnabledTargets(ctx context.Context) ([]models.Target, error)
	UpdateTargetStatus(ctx context.Context, id, status string, failures int) error
	AddCheckHistory(ctx context.Context, targetID, status string, responseTime *float64, errMsg string) error
	AddAlertLog(ctx context.Context, targetID, eventType, message string) error
}

// Prober executes one check against a target.
type Prober interface {
	Check(ctx context.Context, target *models.Target) *probe.Result
	Timeout(kind string) time.Duration
}

// outerTimeoutBuffer is added on top of the probe timeout for the hard
// per-check guard; it is the only thing preventing a hung prober from
// stalling a target's schedule indefinitely.
const outerTimeoutBuffer = 5 * time.Second

// Manager owns the set of per-target monitoring loops.
type Manager struct {
	store  Store
	prober Prober
	cfg    config.MonitoringConfig
	log    zerolog.Logger

	mu    sync.Mutex // guards loops
	loops map[string]*loop

	alertMu      sync.Mutex // guards activeAlerts and lastAlert
	activeAlerts map[string]struct{}
	lastAlert    map[string]time.Time

	listenerMu sync.RWMutex
	listeners  []Listener

	reloadMu sync.Mutex // serializes Reload against itself
}

// NewManager creates a Manager.
func NewManager(store Store, prober Prober, cfg config.MonitoringConfig, log zerolog.Logger) *Manager {
	return &Manager{
		store:        store,
		prober:       prober,
		cfg:          cfg,
		log:          log.With().Str("component", "monitor").Logger(),
		loops:        make(map[string]*loop),
		activeAlerts: make(map[string]struct{}),
		lastAlert:    make(map[string]time.Time),
	}
}

// RegisterListener adds a listener invoked on every alert event.
func (m *Manager) RegisterListener(fn Listener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Start loads every enabled target, reconstructs the active-alert set from
// persisted state, and starts one loop per target.
func (m *Manager) Start(ctx context.Context) error {
	targets, err := m.store.GetEnabledTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load enabled targets: %w", err)
	}

	m.restoreAlertState(targets)

	for i := range targets {
		m.StartTarget(&targets[i])
	}

	m.log.Info().Int("targets", len(targets)).Msg("monitor manager started")
	return nil
}

// Stop cancels every loop and waits for each to fully exit. No background
// work survives this call.
func (m *Manager) Stop() {
	m.mu.Lock()
	stopping := make([]*loop, 0, len(m.loops))
	for id, l := range m.loops {
		stopping = append(stopping, l)
		delete(m.loops, id)
	}
	m.mu.Unlock()

	for _, l := range stopping {
		l.cancel()
		<-l.done
	}

	m.log.Info().Msg("monitor manager stopped")
}

// restoreAlertState rebuilds the in-memory active-alert set from persisted
// counters so recovery events fire correctly after a process restart. A
// target was alerting iff it had reached its threshold unacknowledged.
func (m *Manager) restoreAlertState(targets []models.Target) {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()

	restored := 0
	for i := range targets {
		t := &targets[i]
		if t.Alerting() {
			m.activeAlerts[t.ID] = struct{}{}
			restored++
			m.log.Info().
				Str("target", t.Name).
				Int("failures", t.CurrentFailures).
				Int("threshold", t.FailureThreshold).
				Msg("restored alert state")
		}
	}
	if restored > 0 {
		m.log.Info().Int("count", restored).Msg("restored alert state from storage")
	}
}

// StartTarget starts (or restarts) the loop for one target. When a loop for
// the same target is already running, it is stopped cleanly first so the new
// loop picks up fresh configuration.
func (m *Manager) StartTarget(target *models.Target) {
	m.StopTarget(target.ID)

	snapshot := *target
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{
		target: &snapshot,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.loops[target.ID] = l
	m.mu.Unlock()

	go func() {
		m.runLoop(ctx, l)
		if ctx.Err() == nil {
			// Loop exited on its own (crash or vanished target); free the
			// slot so a reload can recreate it.
			m.clearLoop(l)
		}
	}()

	m.log.Info().
		Str("target", target.Name).
		Str("kind", target.Type).
		Str("address", target.Address).
		Int("interval", target.CheckInterval).
		Msg("started monitoring")
}

// StopTarget stops the loop for one target and returns only after the loop
// has fully exited, so a subsequent restart cannot race its last iteration.
func (m *Manager) StopTarget(id string) {
	m.mu.Lock()
	l, ok := m.loops[id]
	if ok {
		delete(m.loops, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	l.cancel()
	<-l.done
	m.log.Info().Str("target_id", id).Msg("stopped monitoring")
}

// clearLoop removes a loop's slot if it is still the registered one.
func (m *Manager) clearLoop(l *loop) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.loops[l.target.ID]; ok && cur == l {
		delete(m.loops, l.target.ID)
	}
}

// Reload diffs the running set against the enabled targets in storage:
// loops for disabled or deleted targets are stopped, everything else is
// restarted to pick up configuration changes. Safe to call concurrently
// with itself.
func (m *Manager) Reload(ctx context.Context) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	targets, err := m.store.GetEnabledTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load enabled targets: %w", err)
	}

	enabled := make(map[string]struct{}, len(targets))
	for i := range targets {
		enabled[targets[i].ID] = struct{}{}
	}

	m.mu.Lock()
	var toStop []string
	for id := range m.loops {
		if _, ok := enabled[id]; !ok {
			toStop = append(toStop, id)
		}
	}
	m.mu.Unlock()

	for _, id := range toStop {
		m.StopTarget(id)
	}
	for i := range targets {
		m.StartTarget(&targets[i])
	}

	m.log.Info().Int("targets", len(targets)).Msg("reload complete")
	return nil
}

// CheckNow runs one check cycle for a target out-of-band, without touching
// the loop's own schedule.
func (m *Manager) CheckNow(ctx context.Context, id string) error {
	target, err := m.store.GetTarget(ctx, id)
	if err != nil {
		return err
	}
	m.checkOnce(ctx, target)
	return nil
}

// ActiveAlerts returns a snapshot of the target IDs currently alerting.
func (m *Manager) ActiveAlerts() []string {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	ids := make([]string, 0, len(m.activeAlerts))
	for id := range m.activeAlerts {
		ids = append(ids, id)
	}
	return ids
}

// Running reports whether a loop exists for the target.
func (m *Manager) Running(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loops[id]
	return ok
}

// emit delivers an event to every registered listener. A listener failure is
// logged and contained; it never breaks the emitting loop.
func (m *Manager) emit(event Event) {
	m.listenerMu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenerMu.RUnlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error().
						Interface("panic", r).
						Str("target", event.TargetName).
						Str("event", event.Type).
						Msg("alert listener panicked")
				}
			}()
			fn(event)
		}()
	}
}
