package campaign

import (
	"time"

	"crowdfund-platform/services/refdata"

	"github.com/shopspring/decimal"
)

// Campaign carries two independent state axes. The workflow axis tracks the
// editorial review of the campaign content; the collection axis tracks the
// fundraising run and only moves once the workflow reaches published.
type Campaign struct {
	ID                int64                 `gorm:"column:id;primaryKey" json:"id"`
	Code              string                `gorm:"column:code;uniqueIndex" json:"code"`
	Title             string                `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Slug              string                `gorm:"column:slug;type:varchar(255);uniqueIndex" json:"slug"`
	Description       string                `gorm:"column:description;type:text" json:"description"`
	RichText          string                `gorm:"column:rich_text;type:text" json:"rich_text,omitempty"`
	MainImageURL      string                `gorm:"column:main_image_url;type:varchar(500)" json:"main_image_url,omitempty"`
	GoalAmount        decimal.Decimal       `gorm:"column:goal_amount;type:decimal(12,2);not null" json:"goal_amount"`
	CurrentAmount     decimal.Decimal       `gorm:"column:current_amount;type:decimal(12,2);not null;default:0" json:"current_amount"`
	ExpirationDate    *time.Time            `gorm:"column:expiration_date" json:"expiration_date,omitempty"`
	StartDate         *time.Time            `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate           *time.Time            `gorm:"column:end_date" json:"end_date,omitempty"`
	ViewCounting      int64                 `gorm:"column:view_counting;not null;default:0" json:"view_counting"`
	FavoritesCounting int64                 `gorm:"column:favorites_counting;not null;default:0" json:"favorites_counting"`
	WorkflowState     refdata.WorkflowState `gorm:"column:workflow_state;type:varchar(50);not null;default:'draft';index" json:"workflow_state"`
	CampaignState     refdata.CampaignState `gorm:"column:campaign_state;type:varchar(50);not null;default:'not_started';index" json:"campaign_state"`
	OwnerID           int64                 `gorm:"column:owner_id;index;not null" json:"owner_id"`
	CategoryID        *int64                `gorm:"column:category_id;index" json:"category_id,omitempty"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string { return "campaigns" }

// Editable reports whether the content may still change.
func (c *Campaign) Editable() bool {
	return c.WorkflowState == refdata.WorkflowDraft || c.WorkflowState == refdata.WorkflowObserved
}

// Progress returns current/goal as a percentage, capped at 100.
func (c *Campaign) Progress() float64 {
	if c.GoalAmount.IsZero() {
		return 0
	}
	pct, _ := c.CurrentAmount.Div(c.GoalAmount).Mul(decimal.NewFromInt(100)).Float64()
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Observation is an append-only audit row written on every admin review
// action. Observations are never updated or deleted.
type Observation struct {
	ID         int64                     `gorm:"column:id;primaryKey" json:"id"`
	CampaignID int64                     `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	AdminID    int64                     `gorm:"column:admin_id;not null" json:"admin_id"`
	Action     refdata.ObservationAction `gorm:"column:action;type:varchar(50);not null" json:"action"`
	Text       string                    `gorm:"column:text;type:text;not null" json:"text"`
	CreatedAt  time.Time                 `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Observation) TableName() string { return "campaign_observations" }

// Favorite marks a campaign as followed by a person, one row per pair.
type Favorite struct {
	ID         int64     `gorm:"column:id;primaryKey" json:"id"`
	CampaignID int64     `gorm:"column:campaign_id;not null;uniqueIndex:idx_favorites_campaign_person" json:"campaign_id"`
	PersonID   int64     `gorm:"column:person_id;not null;uniqueIndex:idx_favorites_campaign_person" json:"person_id"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Favorite) TableName() string { return "favorites" }

type CreateCampaignRequest struct {
	Title          string          `json:"title" binding:"required"`
	Description    string          `json:"description"`
	RichText       string          `json:"rich_text"`
	MainImageURL   string          `json:"main_image_url"`
	GoalAmount     decimal.Decimal `json:"goal_amount"`
	ExpirationDate *time.Time      `json:"expiration_date"`
	CategoryID     *int64          `json:"category_id"`
}

type UpdateCampaignRequest struct {
	Title          *string          `json:"title"`
	Description    *string          `json:"description"`
	RichText       *string          `json:"rich_text"`
	MainImageURL   *string          `json:"main_image_url"`
	GoalAmount     *decimal.Decimal `json:"goal_amount"`
	ExpirationDate *time.Time       `json:"expiration_date"`
	CategoryID     *int64           `json:"category_id"`
}

type ReviewActionRequest struct {
	Text string `json:"text"`
}

type ListPublicParams struct {
	CategoryID *int64
	Search     string
	Limit      int
}

// PublicCampaign is the projection returned on public listings.
type PublicCampaign struct {
	Campaign
	CategoryName string  `json:"category_name,omitempty"`
	ProgressPct  float64 `json:"progress_pct"`
}
