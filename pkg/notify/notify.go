package notify

import (
	"context"
	"encoding/json"

	pkgasynq "crowdfund-platform/pkg/asynq"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notify", fx.Provide(NewAsynqDispatcher))

// Events emitted by the core.
const (
	EventCampaignApproved = "campaign.approved"
	EventCampaignObserved = "campaign.observed"
	EventCampaignRejected = "campaign.rejected"
	EventCampaignFinished = "campaign.finished"
	EventDonationReceived = "donation.received"
	EventDonationRefunded = "donation.refunded"
	EventRewardClaimed    = "reward.claimed"
)

// Dispatcher is fire-and-forget: enqueue failures are logged, never
// surfaced to the calling operation.
type Dispatcher interface {
	Notify(ctx context.Context, event string, payload pkgasynq.NotifyEventPayload)
}

type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type AsynqDispatcher struct {
	client Enqueuer
}

type Params struct {
	fx.In

	Client *asynq.Client
}

func NewAsynqDispatcher(p Params) Dispatcher {
	return &AsynqDispatcher{client: p.Client}
}

func (d *AsynqDispatcher) Notify(ctx context.Context, event string, payload pkgasynq.NotifyEventPayload) {
	payload.Event = event

	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("failed to marshal notification", zap.String("event", event), zap.Error(err))
		return
	}

	if _, err := d.client.Enqueue(asynq.NewTask(pkgasynq.NotifyEventTask, body, asynq.Queue("low"))); err != nil {
		zap.L().Error("failed to enqueue notification", zap.String("event", event), zap.Error(err))
	}
}

// Nop drops every notification; used in tests.
type Nop struct{}

func (Nop) Notify(context.Context, string, pkgasynq.NotifyEventPayload) {}

// Handler logs delivered events. Actual channel delivery (email, push) is an
// external collaborator behind this worker.
func Handler() asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload pkgasynq.NotifyEventPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return err
		}

		zap.L().Info("notification dispatched",
			zap.String("event", payload.Event),
			zap.Int64("recipient_id", payload.RecipientID),
			zap.Int64("campaign_id", payload.CampaignID),
		)
		return nil
	}
}
