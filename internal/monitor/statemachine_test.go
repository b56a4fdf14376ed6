package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fuomag9/webstatus/internal/models"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const repeat = 5 * time.Minute

func TestApply_SuccessResetsFailures(t *testing.T) {
	out := Apply(State{Failures: 2, Threshold: 3}, true, repeat, t0)

	assert.Equal(t, 0, out.Failures)
	assert.Equal(t, 2, out.PreviousFailures)
	assert.Equal(t, models.StatusUp, out.Status)
	assert.Empty(t, out.Event)
}

func TestApply_FirstFailureIsDownButNotAlerting(t *testing.T) {
	out := Apply(State{Failures: 0, Threshold: 3}, false, repeat, t0)

	assert.Equal(t, 1, out.Failures)
	assert.Equal(t, models.StatusDown, out.Status)
	assert.Empty(t, out.Event, "below threshold must not emit an event")
}

func TestApply_ThresholdCrossingEmitsExactlyOnce(t *testing.T) {
	st := State{Failures: 0, Threshold: 3}
	now := t0

	var events []string
	for i := 0; i < 6; i++ {
		out := Apply(st, false, repeat, now)
		if out.Event != "" {
			events = append(events, out.Event)
			st.Alerting = true
			st.LastAlertAt = now
		}
		st.Failures = out.Failures
		now = now.Add(time.Minute)
	}

	// 6 consecutive failures with a 5 minute repeat window: one
	// threshold_reached at failure 3, no repeat before the window elapses.
	assert.Equal(t, []string{models.EventThresholdReached}, events)
	assert.Equal(t, 6, st.Failures)
}

func TestApply_RepeatGatedOnInterval(t *testing.T) {
	st := State{Failures: 5, Threshold: 3, Alerting: true, LastAlertAt: t0}

	out := Apply(st, false, repeat, t0.Add(repeat-time.Second))
	assert.Empty(t, out.Event, "repeat must not fire before the interval")

	out = Apply(st, false, repeat, t0.Add(repeat))
	assert.Equal(t, models.EventAlertRepeat, out.Event)
}

func TestApply_RepeatCountOverTenMinutes(t *testing.T) {
	// Checking every 60s with a 5 minute repeat interval: over the 10
	// minutes after the threshold event, exactly 2 repeats fire.
	st := State{Failures: 3, Threshold: 3, Alerting: true, LastAlertAt: t0}

	repeats := 0
	for i := 1; i <= 10; i++ {
		now := t0.Add(time.Duration(i) * time.Minute)
		out := Apply(st, false, repeat, now)
		if out.Event == models.EventAlertRepeat {
			repeats++
			st.LastAlertAt = now
		}
		st.Failures = out.Failures
	}

	assert.Equal(t, 2, repeats)
}

func TestApply_RecoveryOnlyWhenAlerting(t *testing.T) {
	// Down past threshold and alerting: recovery fires.
	out := Apply(State{Failures: 4, Threshold: 3, Alerting: true, LastAlertAt: t0}, true, repeat, t0)
	assert.Equal(t, models.EventRecovered, out.Event)
	assert.Equal(t, 4, out.PreviousFailures)

	// Down but never crossed the threshold: silent recovery.
	out = Apply(State{Failures: 2, Threshold: 3}, true, repeat, t0)
	assert.Empty(t, out.Event)

	// Past threshold but acknowledged (not in the alerting set): silent.
	out = Apply(State{Failures: 4, Threshold: 3, Alerting: false}, true, repeat, t0)
	assert.Empty(t, out.Event)
}

func TestApply_ThresholdOne(t *testing.T) {
	out := Apply(State{Failures: 0, Threshold: 1}, false, repeat, t0)
	assert.Equal(t, models.EventThresholdReached, out.Event)
	assert.Equal(t, 1, out.Failures)
}

func TestApply_FullEpisode(t *testing.T) {
	// t=0 fail, t=60 fail, t=120 fail (threshold), t=180 success.
	st := State{Threshold: 3}

	out := Apply(st, false, repeat, t0)
	assert.Empty(t, out.Event)
	st.Failures = out.Failures

	out = Apply(st, false, repeat, t0.Add(time.Minute))
	assert.Empty(t, out.Event)
	st.Failures = out.Failures

	out = Apply(st, false, repeat, t0.Add(2*time.Minute))
	assert.Equal(t, models.EventThresholdReached, out.Event)
	st.Failures = out.Failures
	st.Alerting = true
	st.LastAlertAt = t0.Add(2 * time.Minute)

	out = Apply(st, true, repeat, t0.Add(3*time.Minute))
	assert.Equal(t, models.EventRecovered, out.Event)
	assert.Equal(t, 0, out.Failures)
	assert.Equal(t, models.StatusUp, out.Status)
}
