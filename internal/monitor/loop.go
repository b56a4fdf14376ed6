package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/fuomag9/webstatus/internal/models"
	"github.com/fuomag9/webstatus/internal/probe"
	"github.com/fuomag9/webstatus/internal/store"
)

// loop is one long-lived, individually cancellable monitoring task.
type loop struct {
	target *models.Target // local snapshot, refreshed from storage periodically
	cancel context.CancelFunc
	done   chan struct{}
}

// runLoop is the body of a target's monitoring goroutine. It checks, feeds
// the state machine, persists, sleeps, and repeats until cancelled. A panic
// terminates only this loop: it is logged as a defect and the slot is freed;
// every other target keeps being monitored.
func (m *Manager) runLoop(ctx context.Context, l *loop) {
	defer close(l.done)
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().
				Interface("panic", r).
				Str("target", l.target.Name).
				Str("target_id", l.target.ID).
				Bytes("stack", debug.Stack()).
				Msg("monitoring loop crashed")
		}
	}()

	m.log.Debug().Str("target", l.target.Name).Msg("monitoring loop started")

	checkCount := 0
	for {
		// Periodic resynchronization with storage: picks up interval,
		// threshold and enable changes without a full restart.
		if checkCount%m.cfg.ConfigRefreshChecks == 0 {
			fresh, err := m.store.GetTarget(ctx, l.target.ID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				m.log.Warn().
					Str("target_id", l.target.ID).
					Msg("target no longer exists, stopping monitoring")
				return
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				m.log.Error().Err(err).Str("target", l.target.Name).Msg("config refresh failed")
			default:
				l.target = fresh
			}
		}
		checkCount++

		m.checkOnce(ctx, l.target)

		interval := l.target.CheckInterval
		if interval <= 0 {
			interval = 60
		}

		timer := time.NewTimer(time.Duration(interval) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.log.Debug().Str("target", l.target.Name).Msg("monitoring cancelled")
			return
		case <-timer.C:
		}
	}
}

// checkOnce performs a single check cycle for a target: probe, state
// machine, persistence, event emission. Storage errors are logged and do not
// terminate the surrounding loop.
func (m *Manager) checkOnce(ctx context.Context, target *models.Target) {
	probeTimeout := m.prober.Timeout(target.Type)
	outer := probeTimeout + outerTimeoutBuffer

	cctx, cancel := context.WithTimeout(ctx, outer)
	defer cancel()

	// The hard outer select guards against a prober that ignores its
	// context; the loop must never hang on a misbehaving check.
	resCh := make(chan *probe.Result, 1)
	go func() {
		resCh <- m.prober.Check(cctx, target)
	}()

	var res *probe.Result
	select {
	case res = <-resCh:
	case <-time.After(outer):
		secs := outer.Seconds()
		res = &probe.Result{
			Timestamp:    time.Now().UTC(),
			Success:      false,
			ResponseTime: &secs,
			Err:          fmt.Sprintf("check timeout exceeded (%s)", outer),
		}
		m.log.Error().Str("target", target.Name).Dur("timeout", outer).Msg("check exceeded hard timeout")
	}

	now := time.Now().UTC()

	m.alertMu.Lock()
	st := State{
		Failures:    target.CurrentFailures,
		Threshold:   target.FailureThreshold,
		LastAlertAt: m.lastAlert[target.ID],
	}
	_, st.Alerting = m.activeAlerts[target.ID]
	m.alertMu.Unlock()

	repeat := time.Duration(m.cfg.AlertRepeatInterval) * time.Second
	out := Apply(st, res.Success, repeat, now)

	if res.Success {
		m.log.Info().
			Str("target", target.Name).
			Float64("response_time", derefSeconds(res.ResponseTime)).
			Msg("check up")
	} else {
		m.log.Warn().
			Str("target", target.Name).
			Int("failures", out.Failures).
			Int("threshold", st.Threshold).
			Str("error", res.Err).
			Msg("check down")
	}

	// Storage is updated before callbacks run so the aggregator's queries
	// observe the new state.
	if err := m.store.UpdateTargetStatus(ctx, target.ID, out.Status, out.Failures); err != nil {
		if ctx.Err() != nil {
			return
		}
		m.log.Error().Err(err).Str("target", target.Name).Msg("failed to persist target status")
		return
	}
	if err := m.store.AddCheckHistory(ctx, target.ID, out.Status, res.ResponseTime, res.Err); err != nil {
		m.log.Error().Err(err).Str("target", target.Name).Msg("failed to append check history")
	}

	// Keep the local snapshot coherent between refreshes.
	target.Status = out.Status
	target.CurrentFailures = out.Failures

	switch out.Event {
	case models.EventThresholdReached:
		m.handleThresholdReached(ctx, target, out.Failures, res.Err, now)
	case models.EventRecovered:
		m.handleRecovery(ctx, target, out.PreviousFailures, now)
	case models.EventAlertRepeat:
		m.handleAlertRepeat(ctx, target, out.Failures, now)
	}
}

func derefSeconds(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (m *Manager) handleThresholdReached(ctx context.Context, target *models.Target, failures int, errMsg string, now time.Time) {
	m.alertMu.Lock()
	m.activeAlerts[target.ID] = struct{}{}
	m.lastAlert[target.ID] = now
	m.alertMu.Unlock()

	m.log.Error().
		Str("target", target.Name).
		Int("failures", failures).
		Int("threshold", target.FailureThreshold).
		Msg("failure threshold reached")

	logMsg := fmt.Sprintf("Target down after %d consecutive failures: %s", failures, errMsg)
	if err := m.store.AddAlertLog(ctx, target.ID, models.EventThresholdReached, logMsg); err != nil {
		m.log.Error().Err(err).Str("target", target.Name).Msg("failed to append alert log")
	}

	msg := fmt.Sprintf("%s is DOWN", target.Name)
	if errMsg != "" {
		msg += " - " + errMsg
	}
	m.emit(Event{
		TargetID:         target.ID,
		TargetName:       target.Name,
		Type:             models.EventThresholdReached,
		Timestamp:        now,
		Message:          msg,
		CurrentFailures:  failures,
		FailureThreshold: target.FailureThreshold,
	})
}

func (m *Manager) handleRecovery(ctx context.Context, target *models.Target, previousFailures int, now time.Time) {
	m.alertMu.Lock()
	delete(m.activeAlerts, target.ID)
	delete(m.lastAlert, target.ID)
	m.alertMu.Unlock()

	m.log.Info().Str("target", target.Name).Msg("target recovered")

	logMsg := fmt.Sprintf("Target recovered after %d failures", previousFailures)
	if err := m.store.AddAlertLog(ctx, target.ID, models.EventRecovered, logMsg); err != nil {
		m.log.Error().Err(err).Str("target", target.Name).Msg("failed to append alert log")
	}

	m.emit(Event{
		TargetID:         target.ID,
		TargetName:       target.Name,
		Type:             models.EventRecovered,
		Timestamp:        now,
		Message:          fmt.Sprintf("%s has recovered", target.Name),
		CurrentFailures:  0,
		FailureThreshold: target.FailureThreshold,
	})
}

func (m *Manager) handleAlertRepeat(ctx context.Context, target *models.Target, failures int, now time.Time) {
	m.alertMu.Lock()
	m.lastAlert[target.ID] = now
	m.alertMu.Unlock()

	m.log.Warn().Str("target", target.Name).Int("failures", failures).Msg("target still down")

	logMsg := fmt.Sprintf("Target still down after %d checks", failures)
	if err := m.store.AddAlertLog(ctx, target.ID, models.EventAlertRepeat, logMsg); err != nil {
		m.log.Error().Err(err).Str("target", target.Name).Msg("failed to append alert log")
	}

	m.emit(Event{
		TargetID:         target.ID,
		TargetName:       target.Name,
		Type:             models.EventAlertRepeat,
		Timestamp:        now,
		Message:          fmt.Sprintf("%s is still DOWN", target.Name),
		CurrentFailures:  failures,
		FailureThreshold: target.FailureThreshold,
	})
}
