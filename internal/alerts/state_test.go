package alerts

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateStore() *StateStore {
	return NewStateStore(zerolog.Nop())
}

func TestStateStore_SetAlertPreservesStartTime(t *testing.T) {
	s := newTestStateStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.SetAlert("t1", "web", "down.aiff", 30)
	first := s.State()
	require.True(t, first.IsAlerting)
	assert.Equal(t, base, first.CurrentAlert.StartedAt)

	// Re-evaluating the same target later must not reset the schedule.
	s.now = func() time.Time { return base.Add(42 * time.Second) }
	s.SetAlert("t1", "web", "down.aiff", 30)
	assert.Equal(t, base, s.State().CurrentAlert.StartedAt)
}

func TestStateStore_SetAlertReplacesDifferentTarget(t *testing.T) {
	s := newTestStateStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.SetAlert("t1", "web", "down.aiff", 120)
	s.SetRecovery("t9", "db", "up.aiff")

	s.now = func() time.Time { return base.Add(time.Minute) }
	s.SetAlert("t2", "router", "urgent.aiff", 30)

	snap := s.State()
	require.True(t, snap.IsAlerting)
	assert.Equal(t, "t2", snap.CurrentAlert.TargetID)
	assert.Equal(t, base.Add(time.Minute), snap.CurrentAlert.StartedAt)
	assert.Nil(t, snap.LastRecovery, "new alert clears pending recovery")
}

func TestStateStore_ClearAlertTargetMatch(t *testing.T) {
	s := newTestStateStore()
	s.SetAlert("t1", "web", "down.aiff", 30)

	// Mismatched ID must not clobber the active alert.
	s.ClearAlert("t2")
	assert.True(t, s.State().IsAlerting)

	s.ClearAlert("t1")
	assert.False(t, s.State().IsAlerting)

	// Unconditional clear.
	s.SetAlert("t3", "db", "down.aiff", 30)
	s.ClearAlert("")
	assert.False(t, s.State().IsAlerting)
}

func TestStateStore_NextPlayTime(t *testing.T) {
	s := newTestStateStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.SetAlert("t1", "web", "down.aiff", 30)

	// 70s in: two intervals have passed, next boundary is started+90s.
	s.now = func() time.Time { return base.Add(70 * time.Second) }
	snap := s.State()
	require.NotNil(t, snap.CurrentAlert)
	assert.Equal(t, base.Add(90*time.Second), snap.CurrentAlert.NextPlayTime)

	// Immediately after the alert starts, the first play is one interval out.
	s.now = func() time.Time { return base }
	assert.Equal(t, base.Add(30*time.Second), s.State().CurrentAlert.NextPlayTime)
}

func TestStateStore_RecoveryExpires(t *testing.T) {
	s := newTestStateStore()
	s.ttl = 20 * time.Millisecond

	s.SetRecovery("t1", "web", "up.aiff")
	require.NotNil(t, s.State().LastRecovery)

	assert.Eventually(t, func() bool {
		return s.State().LastRecovery == nil
	}, time.Second, 5*time.Millisecond)
}

func TestStateStore_RecoveryRescheduledOnNewRecovery(t *testing.T) {
	s := newTestStateStore()
	s.ttl = 50 * time.Millisecond

	s.SetRecovery("t1", "web", "up.aiff")
	time.Sleep(30 * time.Millisecond)
	s.SetRecovery("t2", "db", "up.aiff")

	// The second recovery restarted the expiry window.
	time.Sleep(30 * time.Millisecond)
	snap := s.State()
	require.NotNil(t, snap.LastRecovery)
	assert.Equal(t, "t2", snap.LastRecovery.TargetID)
}

func TestStateStore_NotificationDedup(t *testing.T) {
	s := newTestStateStore()

	assert.True(t, s.ShouldSendWebhook("t1"))
	s.MarkWebhookSent("t1")
	assert.False(t, s.ShouldSendWebhook("t1"))
	assert.True(t, s.ShouldSendWebhook("t2"), "dedup is per target")

	s.ClearWebhookState("t1")
	assert.True(t, s.ShouldSendWebhook("t1"))

	assert.True(t, s.ShouldSendEmail("t1"))
	s.MarkEmailSent("t1")
	assert.False(t, s.ShouldSendEmail("t1"))
	s.ClearEmailState("t1")
	assert.True(t, s.ShouldSendEmail("t1"))
}
