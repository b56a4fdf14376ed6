package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuomag9/webstatus/internal/models"
	"github.com/fuomag9/webstatus/internal/monitor"
)

// WebhookSender is the webhook channel as seen by the fanout.
type WebhookSender interface {
	Enabled() bool
	SendThresholdReached(ctx context.Context, targetName, targetID string, failures, threshold int, errMsg string) error
	SendRecovery(ctx context.Context, targetName, targetID string) error
}

// EmailSender is the email channel as seen by the fanout.
type EmailSender interface {
	Enabled() bool
	SendAlert(ctx context.Context, target *models.Target, status, message string) error
}

// Broadcaster pushes events to connected websocket clients.
type Broadcaster interface {
	Broadcast(event monitor.Event)
}

// TargetGetter looks up the current persisted record of a target.
type TargetGetter interface {
	GetTarget(ctx context.Context, id string) (*models.Target, error)
}

const fanoutTimeout = 30 * time.Second

// Fanout receives alert events from the monitoring loops and distributes
// them: re-evaluates the global alert state, pushes to websocket clients,
// and sends webhook/email notifications with per-target, per-episode dedup.
type Fanout struct {
	store      TargetGetter
	state      *StateStore
	aggregator *Aggregator
	sounds     Sounds
	webhook    WebhookSender
	email      EmailSender
	hub        Broadcaster
	log        zerolog.Logger
}

// NewFanout creates a Fanout. hub, webhook and email may be nil when the
// corresponding channel is not wired.
func NewFanout(store TargetGetter, state *StateStore, aggregator *Aggregator, sounds Sounds, webhook WebhookSender, email EmailSender, hub Broadcaster, log zerolog.Logger) *Fanout {
	return &Fanout{
		store:      store,
		state:      state,
		aggregator: aggregator,
		sounds:     sounds,
		webhook:    webhook,
		email:      email,
		hub:        hub,
		log:        log.With().Str("component", "fanout").Logger(),
	}
}

// Listener returns the callback to register with the monitor manager.
func (f *Fanout) Listener() monitor.Listener {
	return f.HandleEvent
}

// HandleEvent processes one alert-state transition. It runs on the emitting
// loop's goroutine, so everything here is bounded by fanoutTimeout.
func (f *Fanout) HandleEvent(ev monitor.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
	defer cancel()

	switch ev.Type {
	case models.EventThresholdReached:
		f.handleDown(ctx, ev)
	case models.EventRecovered:
		f.handleRecovery(ctx, ev)
	case models.EventAlertRepeat:
		// A repeat goes through the same path as the threshold event: the
		// dedup flags keep it from re-notifying, but a send that failed or
		// was disabled at threshold time gets another chance here.
		f.handleDown(ctx, ev)
	}

	if f.hub != nil {
		f.hub.Broadcast(ev)
	}
}

func (f *Fanout) handleDown(ctx context.Context, ev monitor.Event) {
	target, err := f.store.GetTarget(ctx, ev.TargetID)
	if err != nil {
		f.log.Error().Err(err).Str("target_id", ev.TargetID).Msg("failed to load target for alert fanout")
		f.evaluate(ctx)
		return
	}

	f.evaluate(ctx)

	// Acknowledged targets still log and broadcast, but do not notify.
	if target.Acknowledged {
		f.log.Debug().Str("target", target.Name).Msg("target acknowledged, skipping notifications")
		return
	}

	if f.webhook != nil && f.webhook.Enabled() && f.state.ShouldSendWebhook(target.ID) {
		err := f.webhook.SendThresholdReached(ctx, target.Name, target.ID,
			ev.CurrentFailures, ev.FailureThreshold, ev.Message)
		if err != nil {
			f.log.Error().Err(err).Str("target", target.Name).Msg("down webhook failed")
		} else {
			f.state.MarkWebhookSent(target.ID)
		}
	}

	if f.email != nil && f.email.Enabled() && f.state.ShouldSendEmail(target.ID) {
		if err := f.email.SendAlert(ctx, target, models.StatusDown, ev.Message); err != nil {
			f.log.Error().Err(err).Str("target", target.Name).Msg("down email failed")
		} else {
			f.state.MarkEmailSent(target.ID)
		}
	}
}

func (f *Fanout) handleRecovery(ctx context.Context, ev monitor.Event) {
	target, err := f.store.GetTarget(ctx, ev.TargetID)
	if err != nil {
		f.log.Error().Err(err).Str("target_id", ev.TargetID).Msg("failed to load target for recovery fanout")
		f.state.ClearAlert(ev.TargetID)
		f.state.ClearWebhookState(ev.TargetID)
		f.state.ClearEmailState(ev.TargetID)
		f.evaluate(ctx)
		return
	}

	f.state.ClearAlert(target.ID)

	// Silent targets recover without a sound.
	if target.AudioBehavior != models.AudioSilent {
		audio := target.AudioUpAlert
		if audio == "" {
			audio = f.sounds.DefaultUpAlert()
		}
		f.state.SetRecovery(target.ID, target.Name, audio)
	}

	// A recovery notification only makes sense when the down one went out.
	if f.webhook != nil && f.webhook.Enabled() && !f.state.ShouldSendWebhook(target.ID) {
		if err := f.webhook.SendRecovery(ctx, target.Name, target.ID); err != nil {
			f.log.Error().Err(err).Str("target", target.Name).Msg("recovery webhook failed")
		}
	}
	f.state.ClearWebhookState(target.ID)

	if f.email != nil && f.email.Enabled() && !f.state.ShouldSendEmail(target.ID) {
		if err := f.email.SendAlert(ctx, target, models.StatusUp, ev.Message); err != nil {
			f.log.Error().Err(err).Str("target", target.Name).Msg("recovery email failed")
		}
	}
	f.state.ClearEmailState(target.ID)

	f.evaluate(ctx)
}

// evaluate re-runs the aggregator; a failed evaluation is logged and the
// previous state stands until the next transition.
func (f *Fanout) evaluate(ctx context.Context) {
	if _, err := f.aggregator.Evaluate(ctx); err != nil {
		f.log.Error().Err(err).Msg("alert evaluation failed")
	}
}
