package asynq

const (
	// SweepExpiredTask closes out in-progress campaigns past their
	// expiration date and refunds unmet goals.
	SweepExpiredTask = "ledger:sweep_expired"

	// NotifyEventTask fans a platform event out to a recipient.
	NotifyEventTask = "notify:event"
)

type NotifyEventPayload struct {
	Event       string `json:"event"`
	RecipientID int64  `json:"recipient_id"`
	CampaignID  int64  `json:"campaign_id,omitempty"`
	Detail      string `json:"detail,omitempty"`
}
