package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/webstatus/internal/models"
	"github.com/fuomag9/webstatus/internal/monitor"
)

type fakeWebhook struct {
	enabled  bool
	failNext bool
	downSent []string
	upSent   []string
}

func (f *fakeWebhook) Enabled() bool { return f.enabled }

func (f *fakeWebhook) SendThresholdReached(ctx context.Context, targetName, targetID string, failures, threshold int, errMsg string) error {
	if f.failNext {
		return errors.New("endpoint unreachable")
	}
	f.downSent = append(f.downSent, targetID)
	return nil
}

func (f *fakeWebhook) SendRecovery(ctx context.Context, targetName, targetID string) error {
	f.upSent = append(f.upSent, targetID)
	return nil
}

type fakeEmail struct {
	enabled bool
	sent    []string // "<id>:<status>"
}

func (f *fakeEmail) Enabled() bool { return f.enabled }

func (f *fakeEmail) SendAlert(ctx context.Context, target *models.Target, status, message string) error {
	f.sent = append(f.sent, target.ID+":"+status)
	return nil
}

type fakeGetter struct {
	targets map[string]*models.Target
}

func (f *fakeGetter) GetTarget(ctx context.Context, id string) (*models.Target, error) {
	t, ok := f.targets[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *t
	return &cp, nil
}

type fakeHub struct {
	events []monitor.Event
}

func (f *fakeHub) Broadcast(ev monitor.Event) { f.events = append(f.events, ev) }

func fanoutFixture(targets ...*models.Target) (*Fanout, *StateStore, *fakeWebhook, *fakeEmail, *fakeHub, *fakeStorage) {
	getter := &fakeGetter{targets: make(map[string]*models.Target)}
	storage := &fakeStorage{}
	for _, t := range targets {
		getter.targets[t.ID] = t
		if t.Status == models.StatusDown && !t.Acknowledged && t.AudioBehavior != models.AudioSilent {
			storage.targets = append(storage.targets, *t)
		}
	}

	state := NewStateStore(zerolog.Nop())
	agg := NewAggregator(storage, state, fakeSounds{}, zerolog.Nop())
	webhook := &fakeWebhook{enabled: true}
	email := &fakeEmail{enabled: true}
	hub := &fakeHub{}
	f := NewFanout(getter, state, agg, fakeSounds{}, webhook, email, hub, zerolog.Nop())
	return f, state, webhook, email, hub, storage
}

func thresholdEvent(id string) monitor.Event {
	return monitor.Event{
		TargetID:         id,
		TargetName:       "target-" + id,
		Type:             models.EventThresholdReached,
		Timestamp:        time.Now().UTC(),
		Message:          "target-" + id + " is DOWN - connection refused",
		CurrentFailures:  3,
		FailureThreshold: 3,
	}
}

func recoveryEvent(id string) monitor.Event {
	return monitor.Event{
		TargetID:   id,
		TargetName: "target-" + id,
		Type:       models.EventRecovered,
		Timestamp:  time.Now().UTC(),
		Message:    "target-" + id + " has recovered",
	}
}

func TestFanout_ThresholdSendsOncePerEpisode(t *testing.T) {
	target := downTarget("t1", models.AudioNormal, "")
	f, state, webhook, email, hub, _ := fanoutFixture(&target)

	f.HandleEvent(thresholdEvent("t1"))
	f.HandleEvent(thresholdEvent("t1"))

	assert.Equal(t, []string{"t1"}, webhook.downSent, "second event must be deduplicated")
	assert.Equal(t, []string{"t1:down"}, email.sent)
	assert.True(t, state.State().IsAlerting)
	assert.Len(t, hub.events, 2, "every event reaches websocket clients")
}

func TestFanout_AcknowledgedTargetNotNotified(t *testing.T) {
	target := downTarget("t1", models.AudioNormal, "")
	target.Acknowledged = true
	f, _, webhook, email, _, _ := fanoutFixture(&target)

	f.HandleEvent(thresholdEvent("t1"))

	assert.Empty(t, webhook.downSent)
	assert.Empty(t, email.sent)
}

func TestFanout_FailedSendRetriesNextEvent(t *testing.T) {
	target := downTarget("t1", models.AudioNormal, "")
	f, _, webhook, _, _, _ := fanoutFixture(&target)
	webhook.failNext = true

	f.HandleEvent(thresholdEvent("t1"))
	assert.Empty(t, webhook.downSent)

	// The failed send must not set the dedup flag; the next repeat retries it.
	webhook.failNext = false
	repeat := thresholdEvent("t1")
	repeat.Type = models.EventAlertRepeat
	f.HandleEvent(repeat)
	assert.Equal(t, []string{"t1"}, webhook.downSent)
}

func TestFanout_RecoveryClearsStateAndNotifies(t *testing.T) {
	target := downTarget("t1", models.AudioNormal, "")
	f, state, webhook, email, _, storage := fanoutFixture(&target)

	f.HandleEvent(thresholdEvent("t1"))
	require.True(t, state.State().IsAlerting)

	// Target comes back up: storage no longer reports it down.
	storage.targets = nil
	up := downTarget("t1", models.AudioNormal, "")
	up.Status = models.StatusUp
	up.CurrentFailures = 0
	f.store.(*fakeGetter).targets["t1"] = &up

	f.HandleEvent(recoveryEvent("t1"))

	snap := state.State()
	assert.False(t, snap.IsAlerting)
	require.NotNil(t, snap.LastRecovery)
	assert.Equal(t, "t1", snap.LastRecovery.TargetID)
	assert.Equal(t, "system_up.aiff", snap.LastRecovery.AudioFile)

	assert.Equal(t, []string{"t1"}, webhook.upSent)
	assert.Equal(t, []string{"t1:down", "t1:up"}, email.sent)

	// Dedup flags are re-armed for the next episode.
	assert.True(t, state.ShouldSendWebhook("t1"))
	assert.True(t, state.ShouldSendEmail("t1"))
}

func TestFanout_RecoveryWithoutDownSendsNothing(t *testing.T) {
	up := downTarget("t1", models.AudioNormal, "")
	up.Status = models.StatusUp
	f, _, webhook, email, _, _ := fanoutFixture(&up)

	// No down webhook went out this episode (e.g. it was disabled then), so
	// a recovery notification would be confusing.
	f.HandleEvent(recoveryEvent("t1"))

	assert.Empty(t, webhook.upSent)
	assert.Empty(t, email.sent)
}

func TestFanout_SilentTargetRecoversQuietly(t *testing.T) {
	target := downTarget("t1", models.AudioSilent, "")
	target.Status = models.StatusUp
	f, state, _, _, _, _ := fanoutFixture(&target)

	f.HandleEvent(recoveryEvent("t1"))
	assert.Nil(t, state.State().LastRecovery)
}

func TestFanout_RepeatNeverRenotifies(t *testing.T) {
	target := downTarget("t1", models.AudioNormal, "")
	f, _, webhook, email, hub, _ := fanoutFixture(&target)

	f.HandleEvent(thresholdEvent("t1"))
	repeat := thresholdEvent("t1")
	repeat.Type = models.EventAlertRepeat
	f.HandleEvent(repeat)

	assert.Equal(t, []string{"t1"}, webhook.downSent)
	assert.Equal(t, []string{"t1:down"}, email.sent)
	assert.Len(t, hub.events, 2)
}
