package ledger

import (
	"time"

	"crowdfund-platform/services/refdata"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Donation is a ledger row. Amount and state are immutable once the row
// reaches a terminal state; only pending rows ever transition.
type Donation struct {
	ID               int64                 `gorm:"column:id;primaryKey" json:"id"`
	Code             string                `gorm:"column:code;uniqueIndex" json:"code"`
	Amount           decimal.Decimal       `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	State            refdata.DonationState `gorm:"column:state;type:varchar(50);not null;default:'pending';index" json:"state"`
	DonorID          int64                 `gorm:"column:donor_id;index;not null" json:"donor_id"`
	CampaignID       int64                 `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	PaymentMethodID  *int64                `gorm:"column:payment_method_id" json:"payment_method_id,omitempty"`
	GatewayPaymentID string                `gorm:"column:gateway_payment_id;index" json:"gateway_payment_id,omitempty"`
	Metadata         datatypes.JSON        `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Donation) TableName() string { return "donations" }

type RecordDonationRequest struct {
	CampaignID      int64           `json:"campaign_id" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID *int64          `json:"payment_method_id"`
}

// RecordDonationResponse carries the redirect target when the gateway held
// the donation pending; RedirectURL is empty on instant settlement.
type RecordDonationResponse struct {
	Donation    *Donation `json:"donation"`
	RedirectURL string    `json:"redirect_url,omitempty"`
}

// DonationView joins a donation with display names for listings.
type DonationView struct {
	Donation
	DonorName     string `json:"donor_name"`
	CampaignTitle string `json:"campaign_title"`
}

// CampaignTotal is the public progress snapshot of one campaign.
type CampaignTotal struct {
	CampaignID  int64           `json:"campaign_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	GoalAmount  decimal.Decimal `json:"goal_amount"`
	ProgressPct float64         `json:"progress_pct"`
}

// TopDonor is one row of the public leaderboard.
type TopDonor struct {
	DonorName string          `json:"donor_name"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// SweepResult reports what one expiry sweep pass changed.
type SweepResult struct {
	CampaignsSwept    int `json:"campaigns_swept"`
	DonationsRefunded int `json:"donations_refunded"`
}
