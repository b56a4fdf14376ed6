package monitor

import "time"

// Event is an immutable record of an alert-state transition for one target.
type Event struct {
	TargetID         string    `json:"target_id"`
	TargetName       string    `json:"target_name"`
	Type             string    `json:"event_type"` // threshold_reached, recovered, alert_repeat
	Timestamp        time.Time `json:"timestamp"`
	Message          string    `json:"message"`
	CurrentFailures  int       `json:"current_failures"`
	FailureThreshold int       `json:"failure_threshold"`
}

// Listener receives alert events. Listeners must not block for long; a
// listener's panic or error is contained and never breaks the emitting loop.
type Listener func(Event)
