package refdata

import (
	"context"

	"crowdfund-platform/pkg/errutil"
	"crowdfund-platform/pkg/repository"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resolver answers name lookups for reference rows. Other services depend
// on this interface rather than on the store itself.
type Resolver interface {
	NameOf(ctx context.Context, kind Kind, id int64) (string, error)
}

type Service struct {
	db *gorm.DB

	category repository.Repository[Category]
	country  repository.Repository[Country]
	payment  repository.Repository[PaymentMethod]
}

type ServiceParams struct {
	fx.In

	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		category: repository.ProvideStore[Category](p.DB),
		country:  repository.ProvideStore[Country](p.DB),
		payment:  repository.ProvideStore[PaymentMethod](p.DB),
	}
}

func ProvideResolver(s *Service) Resolver { return s }

func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := s.category.Find(ctx, &Category{})
	if err != nil {
		zap.L().Error("failed to list categories", zap.Error(err))
		return nil, err
	}
	return rows, nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*Category, error) {
	row, err := s.category.FindOne(ctx, &Category{ID: id})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errutil.NotFound("category not found", nil)
	}
	return row, nil
}

func (s *Service) ListCountries(ctx context.Context) ([]*Country, error) {
	rows, err := s.country.Find(ctx, &Country{})
	if err != nil {
		zap.L().Error("failed to list countries", zap.Error(err))
		return nil, err
	}
	return rows, nil
}

func (s *Service) ListPaymentMethods(ctx context.Context) ([]*PaymentMethod, error) {
	rows, err := s.payment.Find(ctx, &PaymentMethod{IsActive: true})
	if err != nil {
		zap.L().Error("failed to list payment methods", zap.Error(err))
		return nil, err
	}
	return rows, nil
}

func (s *Service) NameOf(ctx context.Context, kind Kind, id int64) (string, error) {
	switch kind {
	case KindCategory:
		row, err := s.category.FindOne(ctx, &Category{ID: id})
		if err != nil {
			return "", err
		}
		if row == nil {
			return "", errutil.NotFound("category not found", nil)
		}
		return row.Name, nil
	case KindCountry:
		row, err := s.country.FindOne(ctx, &Country{ID: id})
		if err != nil {
			return "", err
		}
		if row == nil {
			return "", errutil.NotFound("country not found", nil)
		}
		return row.Name, nil
	case KindPaymentMethod:
		row, err := s.payment.FindOne(ctx, &PaymentMethod{ID: id})
		if err != nil {
			return "", err
		}
		if row == nil {
			return "", errutil.NotFound("payment method not found", nil)
		}
		return row.Name, nil
	default:
		return "", errutil.BadRequest("unknown reference kind", nil)
	}
}
