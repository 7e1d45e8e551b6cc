package requirement

import (
	"time"
)

// RequirementType labels how a requirement is answered (text, file, url).
type RequirementType struct {
	ID   int64  `gorm:"column:id;primaryKey" json:"id"`
	Name string `gorm:"column:name;type:varchar(100);not null" json:"name"`
}

func (RequirementType) TableName() string { return "requirement_types" }

// CategoryRequirement is a document or answer a category demands before a
// campaign may be submitted for review.
type CategoryRequirement struct {
	ID          int64     `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description string    `gorm:"column:description;type:varchar(255)" json:"description,omitempty"`
	IsRequired  bool      `gorm:"column:is_required;not null" json:"is_required"`
	OrderIndex  int       `gorm:"column:order_index" json:"order_index"`
	TypeID      int64     `gorm:"column:type_id" json:"type_id"`
	CategoryID  int64     `gorm:"column:category_id;index;not null" json:"category_id"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CategoryRequirement) TableName() string { return "category_requirements" }

// Response is a campaign owner's answer to one category requirement.
type Response struct {
	ID            int64     `gorm:"column:id;primaryKey" json:"id"`
	CampaignID    int64     `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	RequirementID int64     `gorm:"column:requirement_id;not null" json:"requirement_id"`
	Value         string    `gorm:"column:value;type:text" json:"value,omitempty"`
	FileURL       string    `gorm:"column:file_url;type:varchar(500)" json:"file_url,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Response) TableName() string { return "campaign_requirement_responses" }

// campaignRef is a read-only projection of the campaigns table. The
// requirement service only needs ownership and state to gate writes, and
// reading the row directly avoids a constructor cycle with the campaign
// service, which consumes the Validator below.
type campaignRef struct {
	ID            int64  `gorm:"column:id;primaryKey"`
	OwnerID       int64  `gorm:"column:owner_id"`
	CategoryID    *int64 `gorm:"column:category_id"`
	WorkflowState string `gorm:"column:workflow_state"`
}

func (campaignRef) TableName() string { return "campaigns" }

type CreateRequirementRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	TypeID      int64  `json:"type_id"`
	IsRequired  bool   `json:"is_required"`
	CategoryID  int64  `json:"category_id" binding:"required"`
}

type SaveResponseRequest struct {
	RequirementID int64  `json:"requirement_id" binding:"required"`
	Value         string `json:"value"`
	FileURL       string `json:"file_url"`
}

// RequirementView joins a requirement with its type name for listings.
type RequirementView struct {
	CategoryRequirement
	TypeName string `json:"type_name"`
}

// ResponseView joins a response with its requirement name.
type ResponseView struct {
	Response
	RequirementName string `json:"requirement_name"`
}
