package reward

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reward is a perk unlocked once a donor's completed total for the campaign
// reaches Amount. Stock is nil for unlimited rewards.
type Reward struct {
	ID          int64           `gorm:"column:id;primaryKey" json:"id"`
	Title       string          `gorm:"column:title;type:varchar(100);not null" json:"title"`
	Description string          `gorm:"column:description;type:text" json:"description,omitempty"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	Stock       *int            `gorm:"column:stock" json:"stock,omitempty"`
	CampaignID  int64           `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	ImageURL    string          `gorm:"column:image_url;type:varchar(500)" json:"image_url,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Reward) TableName() string { return "rewards" }

// Claim records that a person took a reward. At most one claim per
// (person, reward); the unique index backs the service-level pre-check.
type Claim struct {
	ID         int64     `gorm:"column:id;primaryKey" json:"id"`
	PersonID   int64     `gorm:"column:person_id;not null;uniqueIndex:idx_claims_person_reward" json:"person_id"`
	RewardID   int64     `gorm:"column:reward_id;not null;uniqueIndex:idx_claims_person_reward" json:"reward_id"`
	CampaignID int64     `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	ClaimedAt  time.Time `gorm:"column:claimed_at;autoCreateTime" json:"claimed_at"`
}

func (Claim) TableName() string { return "reward_claims" }

type CreateRewardRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Stock       *int            `json:"stock"`
	CampaignID  int64           `json:"campaign_id" binding:"required"`
	ImageURL    string          `json:"image_url"`
}

type UpdateRewardRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	Stock       *int             `json:"stock"`
	ImageURL    *string          `json:"image_url"`
}

type ClaimRequest struct {
	RewardID   int64 `json:"reward_id" binding:"required"`
	CampaignID int64 `json:"campaign_id" binding:"required"`
}

// ClaimView joins a claim with its reward for listings.
type ClaimView struct {
	Claim
	RewardTitle string          `json:"reward_title"`
	Threshold   decimal.Decimal `json:"threshold"`
}

// Eligibility reports how far a donor is from a reward's threshold.
type Eligibility struct {
	RewardID  int64           `json:"reward_id"`
	Eligible  bool            `json:"eligible"`
	Total     decimal.Decimal `json:"total"`
	Threshold decimal.Decimal `json:"threshold"`
	Shortfall decimal.Decimal `json:"shortfall"`
}
