package monitor

import (
	"time"

	"github.com/fuomag9/webstatus/internal/models"
)

// State is the slice of a target's persisted state the transition logic
// needs, plus the supervisor's in-memory alerting view.
type State struct {
	Failures    int
	Threshold   int
	Alerting    bool      // target is in the active-alert set
	LastAlertAt time.Time // zero when no alert has been emitted this episode
}

// Outcome is the result of applying one check result to a target's state.
type Outcome struct {
	Failures         int
	PreviousFailures int
	Status           string
	Event            string // "" when no transition fired
}

// Apply is the target state machine: a pure mapping from (state, check
// result) to (new state, zero-or-one alert transition).
//
// Status flips to down on the very first failure, but the alerting
// transition only fires once the consecutive-failure count crosses the
// threshold; in between, the target is down-but-not-yet-alerting. A success
// always resets the count and flips to up immediately, emitting recovered
// only when the target was actively alerting.
func Apply(st State, succeeded bool, repeatInterval time.Duration, now time.Time) Outcome {
	out := Outcome{PreviousFailures: st.Failures}

	if succeeded {
		out.Failures = 0
		out.Status = models.StatusUp
		if st.Failures >= st.Threshold && st.Alerting {
			out.Event = models.EventRecovered
		}
		return out
	}

	out.Failures = st.Failures + 1
	out.Status = models.StatusDown

	if out.Failures < st.Threshold {
		return out
	}

	if !st.Alerting {
		out.Event = models.EventThresholdReached
		return out
	}

	// Already alerting: gate repeats on the per-target repeat interval.
	if !st.LastAlertAt.IsZero() && now.Sub(st.LastAlertAt) >= repeatInterval {
		out.Event = models.EventAlertRepeat
	}
	return out
}
