package reward

import (
	"context"
	"fmt"
	"time"

	pkgasynq "crowdfund-platform/pkg/asynq"
	"crowdfund-platform/pkg/authz"
	"crowdfund-platform/pkg/errutil"
	"crowdfund-platform/pkg/identity"
	"crowdfund-platform/pkg/notify"
	"crowdfund-platform/pkg/repository"
	"crowdfund-platform/services/campaign"
	"crowdfund-platform/services/ledger"
	"crowdfund-platform/services/refdata"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	authz    *authz.Enforcer
	notifier notify.Dispatcher

	reward   repository.Repository[Reward]
	claim    repository.Repository[Claim]
	campaign repository.Repository[campaign.Campaign]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Authz    *authz.Enforcer
	Notifier notify.Dispatcher
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		authz:    p.Authz,
		notifier: p.Notifier,
		reward:   repository.ProvideStore[Reward](p.DB),
		claim:    repository.ProvideStore[Claim](p.DB),
		campaign: repository.ProvideStore[campaign.Campaign](p.DB),
	}
}

func (s *Service) findCampaign(ctx context.Context, campaignID int64) (*campaign.Campaign, error) {
	c, err := s.campaign.FindOne(ctx, &campaign.Campaign{ID: campaignID})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}
	return c, nil
}

// ========================================================
// Reward CRUD (campaign owner)
// ========================================================

func (s *Service) CreateReward(ctx context.Context, req *CreateRewardRequest) (*Reward, error) {
	c, err := s.findCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireOwner(ctx, c.OwnerID); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, errutil.BadRequest("amount must be greater than zero", nil)
	}
	if req.Stock != nil && *req.Stock < 0 {
		return nil, errutil.BadRequest("stock must not be negative", nil)
	}

	r := &Reward{
		ID:          s.node.Generate().Int64(),
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		Stock:       req.Stock,
		CampaignID:  req.CampaignID,
		ImageURL:    req.ImageURL,
	}
	if err := s.reward.Create(ctx, r); err != nil {
		zap.L().Error("failed to create reward", zap.Error(err))
		return nil, err
	}
	return r, nil
}

func (s *Service) UpdateReward(ctx context.Context, rewardID int64, req *UpdateRewardRequest) (*Reward, error) {
	r, err := s.reward.FindOne(ctx, &Reward{ID: rewardID})
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errutil.NotFound("reward not found", nil)
	}

	c, err := s.findCampaign(ctx, r.CampaignID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireOwner(ctx, c.OwnerID); err != nil {
		return nil, err
	}

	// Patches go through a map so clearing a field to its zero value sticks.
	updates := map[string]any{}
	if req.Title != nil {
		r.Title = *req.Title
		updates["title"] = r.Title
	}
	if req.Description != nil {
		r.Description = *req.Description
		updates["description"] = r.Description
	}
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, errutil.BadRequest("amount must be greater than zero", nil)
		}
		r.Amount = *req.Amount
		updates["amount"] = r.Amount
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, errutil.BadRequest("stock must not be negative", nil)
		}
		r.Stock = req.Stock
		updates["stock"] = r.Stock
	}
	if req.ImageURL != nil {
		r.ImageURL = *req.ImageURL
		updates["image_url"] = r.ImageURL
	}
	r.UpdatedAt = time.Now()
	updates["updated_at"] = r.UpdatedAt

	if err := s.reward.Update(ctx, r.ID, updates); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) DeleteReward(ctx context.Context, rewardID int64) error {
	r, err := s.reward.FindOne(ctx, &Reward{ID: rewardID})
	if err != nil {
		return err
	}
	if r == nil {
		return errutil.NotFound("reward not found", nil)
	}

	c, err := s.findCampaign(ctx, r.CampaignID)
	if err != nil {
		return err
	}
	if _, err := s.authz.RequireOwner(ctx, c.OwnerID); err != nil {
		return err
	}

	claimed, err := s.claim.Count(ctx, &Claim{RewardID: r.ID})
	if err != nil {
		return err
	}
	if claimed > 0 {
		return errutil.Conflict("reward has claims and cannot be deleted", nil)
	}

	return s.db.WithContext(ctx).Delete(&Reward{}, r.ID).Error
}

// ListByCampaign returns the rewards of a campaign ordered by threshold.
func (s *Service) ListByCampaign(ctx context.Context, campaignID int64) ([]*Reward, error) {
	if _, err := s.findCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	var rewards []*Reward
	if err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("amount ASC").
		Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

// ========================================================
// Eligibility and claims
// ========================================================

// EligibleTotal is the live sum of the donor's completed donations to the
// campaign. Pending, cancelled and refunded rows never count.
func (s *Service) EligibleTotal(ctx context.Context, campaignID, personID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.WithContext(ctx).
		Model(&ledger.Donation{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("campaign_id = ? AND donor_id = ? AND state = ?", campaignID, personID, refdata.DonationCompleted).
		Scan(&total).Error
	if err != nil {
		zap.L().Error("failed to sum eligible donations", zap.Error(err))
		return decimal.Zero, err
	}
	return total, nil
}

// CheckEligibility reports the caller's standing against one reward.
func (s *Service) CheckEligibility(ctx context.Context, rewardID int64) (*Eligibility, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	r, err := s.reward.FindOne(ctx, &Reward{ID: rewardID})
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errutil.NotFound("reward not found", nil)
	}

	total, err := s.EligibleTotal(ctx, r.CampaignID, ident.ID)
	if err != nil {
		return nil, err
	}

	shortfall := r.Amount.Sub(total)
	if shortfall.IsNegative() {
		shortfall = decimal.Zero
	}
	return &Eligibility{
		RewardID:  r.ID,
		Eligible:  total.GreaterThanOrEqual(r.Amount),
		Total:     total,
		Threshold: r.Amount,
		Shortfall: shortfall,
	}, nil
}

// ClaimReward takes a reward for the caller. The stock decrement is a
// conditional update checked by rows affected, so the last unit goes to
// exactly one concurrent claimer.
func (s *Service) ClaimReward(ctx context.Context, req *ClaimRequest) (*Claim, error) {
	ident, err := s.authz.Require(ctx, authz.ObjReward, authz.ActClaim)
	if err != nil {
		return nil, err
	}

	r, err := s.reward.FindOne(ctx, &Reward{ID: req.RewardID})
	if err != nil {
		return nil, err
	}
	if r == nil || r.CampaignID != req.CampaignID {
		return nil, errutil.NotFound("reward not found for this campaign", nil)
	}

	if existing, err := s.claim.FindOne(ctx, &Claim{PersonID: ident.ID, RewardID: r.ID}); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, errutil.Conflict("reward already claimed", nil)
	}

	total, err := s.EligibleTotal(ctx, r.CampaignID, ident.ID)
	if err != nil {
		return nil, err
	}
	if total.LessThan(r.Amount) {
		shortfall := r.Amount.Sub(total)
		return nil, errutil.UnprocessableEntity(
			fmt.Sprintf("donation total %s is below the reward threshold %s", total.String(), r.Amount.String()),
			nil,
			errutil.WithDetails(errutil.Detail{Field: "shortfall", Message: shortfall.String()}),
		)
	}

	claim := &Claim{
		ID:         s.node.Generate().Int64(),
		PersonID:   ident.ID,
		RewardID:   r.ID,
		CampaignID: r.CampaignID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if r.Stock != nil {
			res := tx.Model(&Reward{}).
				Where("id = ? AND stock > 0", r.ID).
				UpdateColumn("stock", gorm.Expr("stock - ?", 1))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errutil.Conflict("reward is out of stock", nil)
			}
		}
		return s.claim.WithTrx(tx).Create(ctx, claim)
	})
	if err != nil {
		zap.L().Error("failed to claim reward",
			zap.Int64("reward_id", r.ID), zap.Int64("person_id", ident.ID), zap.Error(err))
		return nil, err
	}

	if c, err := s.campaign.FindOne(ctx, &campaign.Campaign{ID: r.CampaignID}); err == nil && c != nil {
		s.notifier.Notify(ctx, notify.EventRewardClaimed, pkgasynq.NotifyEventPayload{
			RecipientID: c.OwnerID,
			CampaignID:  c.ID,
			Detail:      r.Title,
		})
	}
	return claim, nil
}

// ListMyClaims returns the caller's claims with reward titles.
func (s *Service) ListMyClaims(ctx context.Context) ([]*ClaimView, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	claims, err := s.claim.Find(ctx, &Claim{PersonID: ident.ID})
	if err != nil {
		return nil, err
	}

	views := make([]*ClaimView, 0, len(claims))
	for _, cl := range claims {
		view := &ClaimView{Claim: *cl}
		if r, err := s.reward.FindOne(ctx, &Reward{ID: cl.RewardID}); err == nil && r != nil {
			view.RewardTitle = r.Title
			view.Threshold = r.Amount
		}
		views = append(views, view)
	}
	return views, nil
}

// ListCampaignClaims returns every claim on a campaign. Owner or admin.
func (s *Service) ListCampaignClaims(ctx context.Context, campaignID int64) ([]*ClaimView, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.findCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ident.ID && ident.Role != identity.RoleAdmin {
		return nil, errutil.Forbidden("not allowed to view these claims", nil)
	}

	claims, err := s.claim.Find(ctx, &Claim{CampaignID: campaignID})
	if err != nil {
		return nil, err
	}

	views := make([]*ClaimView, 0, len(claims))
	for _, cl := range claims {
		view := &ClaimView{Claim: *cl}
		if r, err := s.reward.FindOne(ctx, &Reward{ID: cl.RewardID}); err == nil && r != nil {
			view.RewardTitle = r.Title
			view.Threshold = r.Amount
		}
		views = append(views, view)
	}
	return views, nil
}
