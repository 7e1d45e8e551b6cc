package requirement

import (
	"context"
	"time"

	"crowdfund-platform/pkg/authz"
	"crowdfund-platform/pkg/db/option"
	"crowdfund-platform/pkg/errutil"
	"crowdfund-platform/pkg/identity"
	"crowdfund-platform/pkg/repository"
	"crowdfund-platform/services/refdata"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Validator is the submit gate consumed by the campaign lifecycle.
type Validator interface {
	// MissingRequired returns the names of required requirements the
	// campaign has not answered yet.
	MissingRequired(ctx context.Context, campaignID int64, categoryID int64) ([]string, error)
}

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	authz *authz.Enforcer

	requirement repository.Repository[CategoryRequirement]
	response    repository.Repository[Response]
	reqType     repository.Repository[RequirementType]
}

type ServiceParams struct {
	fx.In

	DB    *gorm.DB
	Node  *snowflake.Node
	Authz *authz.Enforcer
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		authz:       p.Authz,
		requirement: repository.ProvideStore[CategoryRequirement](p.DB),
		response:    repository.ProvideStore[Response](p.DB),
		reqType:     repository.ProvideStore[RequirementType](p.DB),
	}
}

func ProvideValidator(s *Service) Validator { return s }

func (s *Service) findCampaign(ctx context.Context, campaignID int64) (*campaignRef, error) {
	var ref campaignRef
	err := s.db.WithContext(ctx).Where("id = ?", campaignID).First(&ref).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errutil.NotFound("campaign not found", nil)
		}
		return nil, err
	}
	return &ref, nil
}

// ListByCategory returns the requirements of a category ordered by
// order_index, each joined with its type name. Public.
func (s *Service) ListByCategory(ctx context.Context, categoryID int64) ([]*RequirementView, error) {
	rows, err := s.requirement.Find(ctx, &CategoryRequirement{CategoryID: categoryID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "order_index",
			OrderBy: "asc",
			Allow:   map[string]bool{"order_index": true},
		}),
	)
	if err != nil {
		zap.L().Error("failed to list requirements", zap.Error(err))
		return nil, err
	}

	views := make([]*RequirementView, 0, len(rows))
	for _, req := range rows {
		typeName := "Text"
		if t, err := s.reqType.FindOne(ctx, &RequirementType{ID: req.TypeID}); err == nil && t != nil {
			typeName = t.Name
		}
		views = append(views, &RequirementView{CategoryRequirement: *req, TypeName: typeName})
	}
	return views, nil
}

// CreateRequirement adds a requirement to a category. Admin only; the new
// row goes to the end of the category's ordering.
func (s *Service) CreateRequirement(ctx context.Context, req *CreateRequirementRequest) (*CategoryRequirement, error) {
	if _, err := s.authz.Require(ctx, authz.ObjCampaign, authz.ActReview); err != nil {
		return nil, err
	}

	last, err := s.requirement.FindOne(ctx, &CategoryRequirement{CategoryID: req.CategoryID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "order_index",
			OrderBy: "desc",
			Allow:   map[string]bool{"order_index": true},
		}),
	)
	if err != nil {
		return nil, err
	}
	nextOrder := 1
	if last != nil {
		nextOrder = last.OrderIndex + 1
	}

	row := &CategoryRequirement{
		ID:          s.node.Generate().Int64(),
		Name:        req.Name,
		Description: req.Description,
		TypeID:      req.TypeID,
		IsRequired:  req.IsRequired,
		CategoryID:  req.CategoryID,
		OrderIndex:  nextOrder,
	}
	if err := s.requirement.Create(ctx, row); err != nil {
		zap.L().Error("failed to create requirement", zap.Error(err))
		return nil, err
	}
	return row, nil
}

// UpdateRequirement edits a requirement in place. Admin only.
func (s *Service) UpdateRequirement(ctx context.Context, requirementID int64, req *CreateRequirementRequest) error {
	if _, err := s.authz.Require(ctx, authz.ObjCampaign, authz.ActReview); err != nil {
		return err
	}

	row, err := s.requirement.FindOne(ctx, &CategoryRequirement{ID: requirementID})
	if err != nil {
		return err
	}
	if row == nil {
		return errutil.NotFound("requirement not found", nil)
	}

	row.Name = req.Name
	row.Description = req.Description
	row.TypeID = req.TypeID
	row.IsRequired = req.IsRequired
	row.UpdatedAt = time.Now()
	return s.requirement.Update(ctx, row.ID, row)
}

// DeleteRequirement removes a requirement. Admin only.
func (s *Service) DeleteRequirement(ctx context.Context, requirementID int64) error {
	if _, err := s.authz.Require(ctx, authz.ObjCampaign, authz.ActReview); err != nil {
		return err
	}

	row, err := s.requirement.FindOne(ctx, &CategoryRequirement{ID: requirementID})
	if err != nil {
		return err
	}
	if row == nil {
		return errutil.NotFound("requirement not found", nil)
	}
	return s.db.WithContext(ctx).Delete(&CategoryRequirement{}, row.ID).Error
}

// ListResponses returns a campaign's requirement answers, owner or admin.
func (s *Service) ListResponses(ctx context.Context, campaignID int64) ([]*ResponseView, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	ref, err := s.findCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if ref.OwnerID != ident.ID && ident.Role != identity.RoleAdmin {
		return nil, errutil.Forbidden("not allowed to view these responses", nil)
	}

	rows, err := s.response.Find(ctx, &Response{CampaignID: campaignID})
	if err != nil {
		return nil, err
	}

	views := make([]*ResponseView, 0, len(rows))
	for _, resp := range rows {
		name := ""
		if req, err := s.requirement.FindOne(ctx, &CategoryRequirement{ID: resp.RequirementID}); err == nil && req != nil {
			name = req.Name
		}
		views = append(views, &ResponseView{Response: *resp, RequirementName: name})
	}
	return views, nil
}

// SaveResponses replaces a campaign's requirement answers. Owner only, and
// only while the campaign can still be edited (draft or observed).
func (s *Service) SaveResponses(ctx context.Context, campaignID int64, reqs []SaveResponseRequest) (int, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return 0, err
	}

	ref, err := s.findCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if ref.OwnerID != ident.ID {
		return 0, errutil.Forbidden("only the campaign owner may answer requirements", nil)
	}
	state := refdata.WorkflowState(ref.WorkflowState)
	if state != refdata.WorkflowDraft && state != refdata.WorkflowObserved {
		return 0, errutil.Conflict("requirement responses are frozen in this state", nil)
	}

	saved := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("campaign_id = ?", campaignID).Delete(&Response{}).Error; err != nil {
			return err
		}

		responseTx := s.response.WithTrx(tx)
		requirementTx := s.requirement.WithTrx(tx)
		for _, r := range reqs {
			req, err := requirementTx.FindOne(ctx, &CategoryRequirement{ID: r.RequirementID})
			if err != nil {
				return err
			}
			if req == nil {
				continue
			}
			if err := responseTx.Create(ctx, &Response{
				ID:            s.node.Generate().Int64(),
				CampaignID:    campaignID,
				RequirementID: r.RequirementID,
				Value:         r.Value,
				FileURL:       r.FileURL,
			}); err != nil {
				return err
			}
			saved++
		}
		return nil
	})
	if err != nil {
		zap.L().Error("failed to save requirement responses", zap.Error(err))
		return 0, err
	}
	return saved, nil
}

// MissingRequired implements the submit gate: every required requirement of
// the category must have a non-empty answer.
func (s *Service) MissingRequired(ctx context.Context, campaignID int64, categoryID int64) ([]string, error) {
	required, err := s.requirement.Find(ctx, &CategoryRequirement{CategoryID: categoryID, IsRequired: true})
	if err != nil {
		return nil, err
	}
	if len(required) == 0 {
		return nil, nil
	}

	responses, err := s.response.Find(ctx, &Response{CampaignID: campaignID})
	if err != nil {
		return nil, err
	}

	answered := make(map[int64]bool, len(responses))
	for _, r := range responses {
		if r.Value != "" || r.FileURL != "" {
			answered[r.RequirementID] = true
		}
	}

	var missing []string
	for _, req := range required {
		if !answered[req.ID] {
			missing = append(missing, req.Name)
		}
	}
	return missing, nil
}
