package person

import (
	"context"
	"time"

	"crowdfund-platform/pkg/errutil"
	"crowdfund-platform/pkg/identity"
	"crowdfund-platform/pkg/repository"
	"crowdfund-platform/services/refdata"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	refdata refdata.Resolver

	person repository.Repository[Person]
}

type ServiceParams struct {
	fx.In

	DB      *gorm.DB
	Refdata refdata.Resolver
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		refdata: p.Refdata,
		person:  repository.ProvideStore[Person](p.DB),
	}
}

// GetProfile returns the caller's own profile row.
func (s *Service) GetProfile(ctx context.Context) (*Person, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	row, err := s.person.FindOne(ctx, &Person{ID: ident.ID})
	if err != nil {
		zap.L().Error("failed to query person", zap.Error(err))
		return nil, err
	}
	if row == nil {
		return nil, errutil.NotFound("person not found", nil)
	}
	return row, nil
}

// GetPublic returns the public projection of any active person.
func (s *Service) GetPublic(ctx context.Context, personID int64) (*Public, error) {
	row, err := s.person.FindOne(ctx, &Person{ID: personID})
	if err != nil {
		return nil, err
	}
	if row == nil || !row.IsActive {
		return nil, errutil.NotFound("person not found", nil)
	}
	return row.ToPublic(), nil
}

// UpdateProfile patches the caller's profile. Email and role are not
// updatable here; they belong to the auth layer.
func (s *Service) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*Person, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	row, err := s.person.FindOne(ctx, &Person{ID: ident.ID})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errutil.NotFound("person not found", nil)
	}

	// Patches go through a map so clearing a field to its zero value sticks.
	updates := map[string]any{}
	if req.CountryID != nil {
		if _, err := s.refdata.NameOf(ctx, refdata.KindCountry, *req.CountryID); err != nil {
			return nil, errutil.BadRequest("unknown country", err)
		}
		row.CountryID = req.CountryID
		updates["country_id"] = row.CountryID
	}
	if req.FirstName != nil {
		row.FirstName = *req.FirstName
		updates["first_name"] = row.FirstName
	}
	if req.LastName != nil {
		row.LastName = *req.LastName
		updates["last_name"] = row.LastName
	}
	if req.ProfileImageURL != nil {
		row.ProfileImageURL = *req.ProfileImageURL
		updates["profile_image_url"] = row.ProfileImageURL
	}
	if req.Description != nil {
		row.Description = *req.Description
		updates["description"] = row.Description
	}
	if req.BirthdayDate != nil {
		row.BirthdayDate = req.BirthdayDate
		updates["birthday_date"] = row.BirthdayDate
	}
	row.UpdatedAt = time.Now()
	updates["updated_at"] = row.UpdatedAt

	if err := s.person.Update(ctx, row.ID, updates); err != nil {
		zap.L().Error("failed to update person", zap.Error(err))
		return nil, err
	}

	return row, nil
}
