package alerts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fuomag9/webstatus/internal/models"
)

// Audio repeat cadence per urgency tier, in seconds.
const (
	AudioIntervalUrgent = 30
	AudioIntervalNormal = 120
)

// audioInterval maps an urgency tier to its repeat cadence. The second
// return is false for silent targets.
func audioInterval(behavior string) (int, bool) {
	switch behavior {
	case models.AudioUrgent:
		return AudioIntervalUrgent, true
	case models.AudioSilent:
		return 0, false
	default:
		return AudioIntervalNormal, true
	}
}

// Storage is the slice of the persistence layer the aggregator needs. The
// query is expected to return down, enabled, unacknowledged, non-silent
// targets pre-ordered by urgency.
type Storage interface {
	DownUnacknowledgedTargets(ctx context.Context) ([]models.Target, error)
}

// Sounds supplies default audio files for targets without custom overrides.
type Sounds interface {
	DefaultDownAlert() string
	DefaultUpAlert() string
}

// Aggregator is the stateless evaluator that decides which single target
// should be "currently alerting" across the whole system.
type Aggregator struct {
	store  Storage
	state  *StateStore
	sounds Sounds
	log    zerolog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(store Storage, state *StateStore, sounds Sounds, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		state:  state,
		sounds: sounds,
		log:    log.With().Str("component", "aggregator").Logger(),
	}
}

// Evaluate recomputes the global alert state. It queries storage directly
// (never loop-local caches), clears the state store when nothing is
// eligible, and otherwise installs the most urgent target as the active
// alert. Re-evaluating an unchanged most-urgent target does not reset its
// start time. Called after every transition and after every external action
// that can change eligibility.
func (a *Aggregator) Evaluate(ctx context.Context) (*models.Target, error) {
	targets, err := a.store.DownUnacknowledgedTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert evaluation failed: %w", err)
	}

	if len(targets) == 0 {
		a.log.Debug().Msg("no targets need alerting")
		a.state.ClearAlert("")
		return nil, nil
	}

	a.log.Info().Int("count", len(targets)).Msg("targets need alerting")

	// The query orders urgent before normal, so the first row is the most
	// urgent target.
	urgent := &targets[0]

	interval, audible := audioInterval(urgent.AudioBehavior)
	if !audible {
		// Silent targets are excluded by the query; seeing one here means
		// the tier changed mid-evaluation. Treat as nothing to sound.
		a.state.ClearAlert("")
		return urgent, nil
	}

	audio := urgent.AudioDownAlert
	if audio == "" {
		audio = a.sounds.DefaultDownAlert()
	}

	a.state.SetAlert(urgent.ID, urgent.Name, audio, interval)
	return urgent, nil
}
