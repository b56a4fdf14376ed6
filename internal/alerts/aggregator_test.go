package alerts

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/webstatus/internal/models"
)

type fakeStorage struct {
	targets []models.Target
	err     error
}

func (f *fakeStorage) DownUnacknowledgedTargets(ctx context.Context) ([]models.Target, error) {
	return f.targets, f.err
}

type fakeSounds struct{}

func (fakeSounds) DefaultDownAlert() string { return "system_down.aiff" }
func (fakeSounds) DefaultUpAlert() string   { return "system_up.aiff" }

func downTarget(id, behavior, customAudio string) models.Target {
	return models.Target{
		ID:               id,
		Name:             "target-" + id,
		Status:           models.StatusDown,
		CurrentFailures:  5,
		FailureThreshold: 3,
		AudioBehavior:    behavior,
		AudioDownAlert:   customAudio,
		Enabled:          true,
	}
}

func newTestAggregator(storage *fakeStorage) (*Aggregator, *StateStore) {
	state := NewStateStore(zerolog.Nop())
	return NewAggregator(storage, state, fakeSounds{}, zerolog.Nop()), state
}

func TestAggregator_EmptyClearsState(t *testing.T) {
	storage := &fakeStorage{}
	agg, state := newTestAggregator(storage)
	state.SetAlert("old", "stale", "down.aiff", 30)

	urgent, err := agg.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, urgent)
	assert.False(t, state.State().IsAlerting)
}

func TestAggregator_PicksFirstRowAsMostUrgent(t *testing.T) {
	// The storage query pre-orders urgent before normal.
	storage := &fakeStorage{targets: []models.Target{
		downTarget("u1", models.AudioUrgent, ""),
		downTarget("n1", models.AudioNormal, ""),
	}}
	agg, state := newTestAggregator(storage)

	urgent, err := agg.Evaluate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, urgent)
	assert.Equal(t, "u1", urgent.ID)

	snap := state.State()
	require.True(t, snap.IsAlerting)
	assert.Equal(t, "u1", snap.CurrentAlert.TargetID)
	assert.Equal(t, AudioIntervalUrgent, snap.CurrentAlert.IntervalSeconds)
	assert.Equal(t, "system_down.aiff", snap.CurrentAlert.AudioFile)
}

func TestAggregator_NormalTierInterval(t *testing.T) {
	storage := &fakeStorage{targets: []models.Target{
		downTarget("n1", models.AudioNormal, "custom.aiff"),
	}}
	agg, state := newTestAggregator(storage)

	_, err := agg.Evaluate(context.Background())
	require.NoError(t, err)

	snap := state.State()
	require.True(t, snap.IsAlerting)
	assert.Equal(t, AudioIntervalNormal, snap.CurrentAlert.IntervalSeconds)
	assert.Equal(t, "custom.aiff", snap.CurrentAlert.AudioFile, "per-target override wins over default")
}

func TestAggregator_ReevaluationKeepsStartTime(t *testing.T) {
	storage := &fakeStorage{targets: []models.Target{
		downTarget("u1", models.AudioUrgent, ""),
	}}
	agg, state := newTestAggregator(storage)

	_, err := agg.Evaluate(context.Background())
	require.NoError(t, err)
	started := state.State().CurrentAlert.StartedAt

	_, err = agg.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, started, state.State().CurrentAlert.StartedAt)
}

func TestAggregator_ReplacementClearsRecovery(t *testing.T) {
	storage := &fakeStorage{targets: []models.Target{
		downTarget("u1", models.AudioUrgent, ""),
	}}
	agg, state := newTestAggregator(storage)
	state.SetRecovery("old", "stale", "up.aiff")

	_, err := agg.Evaluate(context.Background())
	require.NoError(t, err)

	snap := state.State()
	assert.True(t, snap.IsAlerting)
	assert.Nil(t, snap.LastRecovery)
}

func TestAggregator_StorageErrorKeepsState(t *testing.T) {
	storage := &fakeStorage{targets: []models.Target{
		downTarget("u1", models.AudioUrgent, ""),
	}}
	agg, state := newTestAggregator(storage)

	_, err := agg.Evaluate(context.Background())
	require.NoError(t, err)

	storage.err = assert.AnError
	storage.targets = nil
	_, err = agg.Evaluate(context.Background())
	require.Error(t, err)

	// A failed evaluation must not clear the standing alert.
	assert.True(t, state.State().IsAlerting)
}
