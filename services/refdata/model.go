package refdata

import (
	"time"
)

// Kind selects one of the reference lookup tables.
type Kind string

const (
	KindCategory      Kind = "category"
	KindCountry       Kind = "country"
	KindPaymentMethod Kind = "payment_method"
)

// Category groups campaigns and drives which requirements apply.
type Category struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(255);not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Category) TableName() string { return "categories" }

type Country struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(255);not null;uniqueIndex" json:"name"`
	Code      string    `gorm:"column:code;type:varchar(2);not null" json:"code"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Country) TableName() string { return "countries" }

type PaymentMethod struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(255);not null;uniqueIndex" json:"name"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (PaymentMethod) TableName() string { return "payment_methods" }

// ENUM-LIKE constants: the closed enumerations of the platform. States are
// stored as strings; the tables below carry the display names exposed
// read-only over HTTP so clients never hardcode them.

type WorkflowState string

const (
	WorkflowDraft     WorkflowState = "draft"
	WorkflowInReview  WorkflowState = "in_review"
	WorkflowObserved  WorkflowState = "observed"
	WorkflowRejected  WorkflowState = "rejected"
	WorkflowPublished WorkflowState = "published"
)

type CampaignState string

const (
	CampaignNotStarted CampaignState = "not_started"
	CampaignInProgress CampaignState = "in_progress"
	CampaignPaused     CampaignState = "paused"
	CampaignFinished   CampaignState = "finished"
)

type DonationState string

const (
	DonationPending   DonationState = "pending"
	DonationCompleted DonationState = "completed"
	DonationCancelled DonationState = "cancelled"
	DonationRefunded  DonationState = "refunded"
)

type ObservationAction string

const (
	ActionObserved ObservationAction = "observed"
	ActionRejected ObservationAction = "rejected"
	ActionApproved ObservationAction = "approved"
)

// EnumValue is one row of a closed enumeration listing.
type EnumValue struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var (
	WorkflowStates = []EnumValue{
		{Code: string(WorkflowDraft), Name: "Draft"},
		{Code: string(WorkflowInReview), Name: "In Review"},
		{Code: string(WorkflowObserved), Name: "Observed"},
		{Code: string(WorkflowRejected), Name: "Rejected"},
		{Code: string(WorkflowPublished), Name: "Published"},
	}

	CampaignStates = []EnumValue{
		{Code: string(CampaignNotStarted), Name: "Not Started"},
		{Code: string(CampaignInProgress), Name: "In Progress"},
		{Code: string(CampaignPaused), Name: "Paused"},
		{Code: string(CampaignFinished), Name: "Finished"},
	}

	DonationStates = []EnumValue{
		{Code: string(DonationPending), Name: "Pending"},
		{Code: string(DonationCompleted), Name: "Completed"},
		{Code: string(DonationCancelled), Name: "Cancelled"},
		{Code: string(DonationRefunded), Name: "Refunded"},
	}

	ObservationActions = []EnumValue{
		{Code: string(ActionObserved), Name: "Observed"},
		{Code: string(ActionRejected), Name: "Rejected"},
		{Code: string(ActionApproved), Name: "Approved"},
	}

	Roles = []EnumValue{
		{Code: "admin", Name: "Administrator"},
		{Code: "member", Name: "Member"},
	}
)
