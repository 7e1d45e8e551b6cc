package person

import (
	"time"
)

// Person holds profile data for an authenticated principal. Credentials and
// session issuance live in the external auth layer; this table only carries
// what campaigns, donations and claims need to display.
type Person struct {
	ID              int64      `gorm:"column:id;primaryKey" json:"id"`
	FirstName       string     `gorm:"column:first_name;type:varchar(100);not null" json:"first_name"`
	LastName        string     `gorm:"column:last_name;type:varchar(100);not null" json:"last_name"`
	Email           string     `gorm:"column:email;type:varchar(100);not null;uniqueIndex" json:"email"`
	ProfileImageURL string     `gorm:"column:profile_image_url;type:varchar(255)" json:"profile_image_url,omitempty"`
	Description     string     `gorm:"column:description;type:varchar(200)" json:"description,omitempty"`
	BirthdayDate    *time.Time `gorm:"column:birthday_date" json:"birthday_date,omitempty"`
	CountryID       *int64     `gorm:"column:country_id;index" json:"country_id,omitempty"`
	IsActive        bool       `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Person) TableName() string { return "persons" }

// Public is the projection safe to expose on public campaign listings.
type Public struct {
	ID              int64  `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	Description     string `json:"description,omitempty"`
}

func (p *Person) ToPublic() *Public {
	return &Public{
		ID:              p.ID,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		ProfileImageURL: p.ProfileImageURL,
		Description:     p.Description,
	}
}

type UpdateProfileRequest struct {
	FirstName       *string    `json:"first_name"`
	LastName        *string    `json:"last_name"`
	ProfileImageURL *string    `json:"profile_image_url"`
	Description     *string    `json:"description"`
	BirthdayDate    *time.Time `json:"birthday_date"`
	CountryID       *int64     `json:"country_id"`
}
