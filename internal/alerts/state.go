// Package alerts tracks the single global alert the system is currently
// sounding, aggregates urgency across every down target, and fans alert
// events out to the notification channels.
package alerts

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// recoveryTTL is how long a recovery event stays visible to polling clients
// before it self-expires.
const recoveryTTL = 30 * time.Second

// ActiveAlert describes the one target currently driving the audible alert.
type ActiveAlert struct {
	TargetID        string    `json:"target_id"`
	TargetName      string    `json:"target_name"`
	AudioFile       string    `json:"audio_file"`
	EventType       string    `json:"event_type"` // always "down"
	IntervalSeconds int       `json:"interval_seconds"`
	StartedAt       time.Time `json:"started_at"`
}

// RecoveryEvent describes the most recent recovery, shown to clients for a
// bounded window.
type RecoveryEvent struct {
	TargetID   string    `json:"target_id"`
	TargetName string    `json:"target_name"`
	AudioFile  string    `json:"audio_file"`
	EventType  string    `json:"event_type"` // always "up"
	Timestamp  time.Time `json:"timestamp"`
}

// AlertView is an ActiveAlert with the next scheduled play time computed at
// read time; the play time is never stored.
type AlertView struct {
	ActiveAlert
	NextPlayTime time.Time `json:"next_play_time"`
}

// Snapshot is the state returned to polling clients.
type Snapshot struct {
	IsAlerting   bool           `json:"is_alerting"`
	CurrentAlert *AlertView     `json:"current_alert"`
	LastRecovery *RecoveryEvent `json:"last_recovery"`
}

// StateStore is the O(1) in-memory record of at most one active alert and
// one recent recovery. All mutation goes through a single mutex so that
// concurrent transitions from many target loops cannot interleave into an
// inconsistent record. It also carries the per-channel notification dedup
// flags, which share the same lifecycle (set while down, cleared on
// recovery).
type StateStore struct {
	mu sync.Mutex

	currentAlert *ActiveAlert
	lastRecovery *RecoveryEvent

	webhookSent map[string]struct{}
	emailSent   map[string]struct{}

	recoveryTimer *time.Timer
	ttl           time.Duration
	now           func() time.Time

	log zerolog.Logger
}

// NewStateStore creates a StateStore.
func NewStateStore(log zerolog.Logger) *StateStore {
	return &StateStore{
		webhookSent: make(map[string]struct{}),
		emailSent:   make(map[string]struct{}),
		ttl:         recoveryTTL,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With().Str("component", "alert_state").Logger(),
	}
}

// SetAlert makes a target the active alert. When the same target is already
// active this is a no-op so the original start time, and with it the repeat
// schedule, is preserved. A different target replaces the record with a
// fresh start time and clears any pending recovery so a stale recovery
// sound cannot interleave with the new alert.
func (s *StateStore) SetAlert(targetID, targetName, audioFile string, intervalSeconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentAlert != nil && s.currentAlert.TargetID == targetID {
		s.log.Debug().Str("target", targetName).Msg("alert continues, start time preserved")
		return
	}

	s.currentAlert = &ActiveAlert{
		TargetID:        targetID,
		TargetName:      targetName,
		AudioFile:       audioFile,
		EventType:       "down",
		IntervalSeconds: intervalSeconds,
		StartedAt:       s.now(),
	}

	if s.lastRecovery != nil {
		s.log.Debug().Str("target", targetName).Msg("clearing stale recovery state for new alert")
		s.lastRecovery = nil
	}
	s.stopRecoveryTimerLocked()

	s.log.Info().
		Str("target", targetName).
		Int("interval", intervalSeconds).
		Str("audio", audioFile).
		Msg("alert state set")
}

// ClearAlert clears the active alert. With a non-empty targetID the clear
// only applies when that target is the active alert, so a late evaluation
// cannot clobber a newer alert for a different target.
func (s *StateStore) ClearAlert(targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if targetID != "" {
		if s.currentAlert != nil && s.currentAlert.TargetID == targetID {
			s.log.Info().Str("target_id", targetID).Msg("alert cleared")
			s.currentAlert = nil
		}
		return
	}

	if s.currentAlert != nil {
		s.log.Info().Msg("all alerts cleared")
	}
	s.currentAlert = nil
}

// SetRecovery records a recovery event and (re)schedules its expiry.
func (s *StateStore) SetRecovery(targetID, targetName, audioFile string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRecovery = &RecoveryEvent{
		TargetID:   targetID,
		TargetName: targetName,
		AudioFile:  audioFile,
		EventType:  "up",
		Timestamp:  s.now(),
	}

	s.log.Info().Str("target", targetName).Str("audio", audioFile).Msg("recovery state set")

	s.stopRecoveryTimerLocked()
	s.recoveryTimer = time.AfterFunc(s.ttl, s.expireRecovery)
}

// expireRecovery drops the recovery record once it has aged out, so polling
// clients do not replay the same recovery indefinitely.
func (s *StateStore) expireRecovery() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRecovery == nil {
		return
	}
	if s.now().Sub(s.lastRecovery.Timestamp) >= s.ttl {
		s.log.Debug().Str("target", s.lastRecovery.TargetName).Msg("recovery event expired")
		s.lastRecovery = nil
	}
}

func (s *StateStore) stopRecoveryTimerLocked() {
	if s.recoveryTimer != nil {
		s.recoveryTimer.Stop()
		s.recoveryTimer = nil
	}
}

// State returns the current snapshot. O(1), no I/O; safe to poll at high
// frequency. NextPlayTime is recomputed from the stored start time:
// started_at plus the next whole interval boundary after now.
func (s *StateStore) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{LastRecovery: s.lastRecovery}
	if s.currentAlert == nil {
		return snap
	}

	alert := *s.currentAlert
	interval := time.Duration(alert.IntervalSeconds) * time.Second
	elapsed := s.now().Sub(alert.StartedAt)
	passed := int(elapsed / interval)

	snap.IsAlerting = true
	snap.CurrentAlert = &AlertView{
		ActiveAlert:  alert,
		NextPlayTime: alert.StartedAt.Add(time.Duration(passed+1) * interval),
	}
	return snap
}

// ShouldSendWebhook reports whether the target has not yet received a down
// webhook this episode.
func (s *StateStore) ShouldSendWebhook(targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, sent := s.webhookSent[targetID]
	return !sent
}

// MarkWebhookSent records that a down webhook went out for the target.
func (s *StateStore) MarkWebhookSent(targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhookSent[targetID] = struct{}{}
}

// ClearWebhookState resets the webhook dedup flag on recovery.
func (s *StateStore) ClearWebhookState(targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.webhookSent, targetID)
}

// ShouldSendEmail reports whether the target has not yet received a down
// email this episode.
func (s *StateStore) ShouldSendEmail(targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, sent := s.emailSent[targetID]
	return !sent
}

// MarkEmailSent records that a down email went out for the target.
func (s *StateStore) MarkEmailSent(targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emailSent[targetID] = struct{}{}
}

// ClearEmailState resets the email dedup flag on recovery.
func (s *StateStore) ClearEmailState(targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.emailSent, targetID)
}
