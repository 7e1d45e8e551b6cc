package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crowdfund-platform/pkg/authz"
	pkgasynq "crowdfund-platform/pkg/asynq"
	"crowdfund-platform/pkg/db/option"
	"crowdfund-platform/pkg/errutil"
	"crowdfund-platform/pkg/identity"
	"crowdfund-platform/pkg/notify"
	"crowdfund-platform/pkg/repository"
	"crowdfund-platform/pkg/sequence"
	"crowdfund-platform/services/refdata"
	"crowdfund-platform/services/requirement"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	seq      sequence.Generator
	authz    *authz.Enforcer
	gate     requirement.Validator
	refdata  refdata.Resolver
	notifier notify.Dispatcher

	campaign    repository.Repository[Campaign]
	observation repository.Repository[Observation]
	favorite    repository.Repository[Favorite]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Seq      sequence.Generator
	Authz    *authz.Enforcer
	Gate     requirement.Validator
	Refdata  refdata.Resolver
	Notifier notify.Dispatcher
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		seq:         p.Seq,
		authz:       p.Authz,
		gate:        p.Gate,
		refdata:     p.Refdata,
		notifier:    p.Notifier,
		campaign:    repository.ProvideStore[Campaign](p.DB),
		observation: repository.ProvideStore[Observation](p.DB),
		favorite:    repository.ProvideStore[Favorite](p.DB),
	}
}

func (s *Service) logFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	return []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}

func (s *Service) find(ctx context.Context, campaignID int64) (*Campaign, error) {
	c, err := s.campaign.FindOne(ctx, &Campaign{ID: campaignID})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}
	return c, nil
}

// ========================================================
// CRUD
// ========================================================

func (s *Service) Create(ctx context.Context, req *CreateCampaignRequest) (*Campaign, error) {
	ident, err := s.authz.Require(ctx, authz.ObjCampaign, authz.ActCreate)
	if err != nil {
		return nil, err
	}

	if req.ExpirationDate != nil && !req.ExpirationDate.After(time.Now()) {
		return nil, errutil.BadRequest("expiration_date must be in the future", nil)
	}
	if req.GoalAmount.IsNegative() {
		return nil, errutil.BadRequest("goal_amount must not be negative", nil)
	}
	if req.CategoryID != nil {
		if _, err := s.refdata.NameOf(ctx, refdata.KindCategory, *req.CategoryID); err != nil {
			return nil, errutil.BadRequest("unknown category", err)
		}
	}

	code, err := s.seq.NextCampaignCode(ctx)
	if err != nil {
		return nil, err
	}

	c := &Campaign{
		ID:             s.node.Generate().Int64(),
		Code:           code,
		Title:          req.Title,
		Slug:           makeSlug(req.Title, code),
		Description:    req.Description,
		RichText:       req.RichText,
		MainImageURL:   req.MainImageURL,
		GoalAmount:     req.GoalAmount,
		ExpirationDate: req.ExpirationDate,
		WorkflowState:  refdata.WorkflowDraft,
		CampaignState:  refdata.CampaignNotStarted,
		OwnerID:        ident.ID,
		CategoryID:     req.CategoryID,
	}

	if err := s.campaign.Create(ctx, c); err != nil {
		zap.L().With(s.logFields(ctx)...).Error("failed to create campaign", zap.Error(err))
		return nil, err
	}
	return c, nil
}

// makeSlug derives a stable url fragment from the title plus the tail of the
// campaign code, so equal titles never collide.
func makeSlug(title, code string) string {
	suffix := code
	if i := strings.LastIndex(code, "-"); i >= 0 {
		suffix = code[i+1:]
	}
	return fmt.Sprintf("%s-%s", slug.Make(title), strings.ToLower(suffix))
}

// Get returns a campaign to its owner or an admin; anyone else only sees it
// once published.
func (s *Service) Get(ctx context.Context, campaignID int64) (*Campaign, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.find(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if c.OwnerID != ident.ID && ident.Role != identity.RoleAdmin && c.WorkflowState != refdata.WorkflowPublished {
		return nil, errutil.Forbidden("not allowed to view this campaign", nil)
	}
	return c, nil
}

// GetPublicDetail serves the anonymous campaign page and counts the view.
func (s *Service) GetPublicDetail(ctx context.Context, campaignSlug string) (*PublicCampaign, error) {
	c, err := s.campaign.FindOne(ctx, &Campaign{Slug: campaignSlug})
	if err != nil {
		return nil, err
	}
	if c == nil || c.WorkflowState != refdata.WorkflowPublished {
		return nil, errutil.NotFound("campaign not found", nil)
	}

	if err := s.db.WithContext(ctx).
		Model(&Campaign{}).
		Where("id = ?", c.ID).
		UpdateColumn("view_counting", gorm.Expr("view_counting + ?", 1)).Error; err != nil {
		zap.L().With(s.logFields(ctx)...).Warn("failed to count view", zap.Error(err))
	} else {
		c.ViewCounting++
	}

	return s.toPublic(ctx, c), nil
}

func (s *Service) toPublic(ctx context.Context, c *Campaign) *PublicCampaign {
	pub := &PublicCampaign{Campaign: *c, ProgressPct: c.Progress()}
	if c.CategoryID != nil {
		if name, err := s.refdata.NameOf(ctx, refdata.KindCategory, *c.CategoryID); err == nil {
			pub.CategoryName = name
		}
	}
	return pub
}

// ListMine returns every campaign owned by the caller, newest first.
func (s *Service) ListMine(ctx context.Context) ([]*Campaign, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	return s.campaign.Find(ctx, &Campaign{OwnerID: ident.ID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
}

// ListPublic returns published campaigns currently collecting, with optional
// category and title search filters.
func (s *Service) ListPublic(ctx context.Context, params ListPublicParams) ([]*PublicCampaign, error) {
	q := s.db.WithContext(ctx).
		Where("workflow_state = ?", refdata.WorkflowPublished).
		Where("campaign_state = ?", refdata.CampaignInProgress)

	if params.CategoryID != nil {
		q = q.Where("category_id = ?", *params.CategoryID)
	}
	if params.Search != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(params.Search)+"%")
	}
	if params.Limit > 0 {
		q = q.Limit(params.Limit)
	}

	var campaigns []Campaign
	if err := q.Order("created_at DESC").Find(&campaigns).Error; err != nil {
		zap.L().With(s.logFields(ctx)...).Error("failed to list public campaigns", zap.Error(err))
		return nil, err
	}

	out := make([]*PublicCampaign, 0, len(campaigns))
	for i := range campaigns {
		out = append(out, s.toPublic(ctx, &campaigns[i]))
	}
	return out, nil
}

// ListFeatured returns the most followed active campaigns.
func (s *Service) ListFeatured(ctx context.Context, limit int) ([]*PublicCampaign, error) {
	if limit <= 0 {
		limit = 6
	}

	var campaigns []Campaign
	if err := s.db.WithContext(ctx).
		Where("workflow_state = ?", refdata.WorkflowPublished).
		Where("campaign_state = ?", refdata.CampaignInProgress).
		Order("favorites_counting DESC, view_counting DESC").
		Limit(limit).
		Find(&campaigns).Error; err != nil {
		return nil, err
	}

	out := make([]*PublicCampaign, 0, len(campaigns))
	for i := range campaigns {
		out = append(out, s.toPublic(ctx, &campaigns[i]))
	}
	return out, nil
}

// Update patches campaign content. Owner only, and only while the workflow
// still allows edits (draft or observed).
func (s *Service) Update(ctx context.Context, campaignID int64, req *UpdateCampaignRequest) (*Campaign, error) {
	c, err := s.find(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.RequireOwner(ctx, c.OwnerID); err != nil {
		return nil, err
	}
	if !c.Editable() {
		return nil, errutil.Conflict("campaign content is frozen in this state", nil)
	}

	// Patches go through a map so clearing a field to its zero value sticks.
	updates := map[string]any{}
	if req.Title != nil {
		c.Title = *req.Title
		updates["title"] = c.Title
	}
	if req.Description != nil {
		c.Description = *req.Description
		updates["description"] = c.Description
	}
	if req.RichText != nil {
		c.RichText = *req.RichText
		updates["rich_text"] = c.RichText
	}
	if req.MainImageURL != nil {
		c.MainImageURL = *req.MainImageURL
		updates["main_image_url"] = c.MainImageURL
	}
	if req.GoalAmount != nil {
		if req.GoalAmount.IsNegative() {
			return nil, errutil.BadRequest("goal_amount must not be negative", nil)
		}
		c.GoalAmount = *req.GoalAmount
		updates["goal_amount"] = c.GoalAmount
	}
	if req.ExpirationDate != nil {
		if !req.ExpirationDate.After(time.Now()) {
			return nil, errutil.BadRequest("expiration_date must be in the future", nil)
		}
		c.ExpirationDate = req.ExpirationDate
		updates["expiration_date"] = c.ExpirationDate
	}
	if req.CategoryID != nil {
		if _, err := s.refdata.NameOf(ctx, refdata.KindCategory, *req.CategoryID); err != nil {
			return nil, errutil.BadRequest("unknown category", err)
		}
		c.CategoryID = req.CategoryID
		updates["category_id"] = c.CategoryID
	}
	c.UpdatedAt = time.Now()
	updates["updated_at"] = c.UpdatedAt

	if err := s.campaign.Update(ctx, c.ID, updates); err != nil {
		zap.L().With(s.logFields(ctx)...).Error("failed to update campaign", zap.Error(err))
		return nil, err
	}
	return c, nil
}

// Delete removes a draft campaign. Owner or admin.
func (s *Service) Delete(ctx context.Context, campaignID int64) error {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return err
	}

	c, err := s.find(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.OwnerID != ident.ID && ident.Role != identity.RoleAdmin {
		return errutil.Forbidden("not allowed to delete this campaign", nil)
	}
	if c.WorkflowState != refdata.WorkflowDraft {
		return errutil.Conflict("only draft campaigns can be deleted", nil)
	}

	return s.db.WithContext(ctx).Delete(&Campaign{}, c.ID).Error
}

// ========================================================
// Workflow axis
// ========================================================

// SubmitForReview moves draft or observed content into review once the
// mandatory fields and category requirements are satisfied.
func (s *Service) SubmitForReview(ctx context.Context, campaignID int64) error {
	c, err := s.find(ctx, campaignID)
	if err != nil {
		return err
	}
	if _, err := s.authz.RequireOwner(ctx, c.OwnerID); err != nil {
		return err
	}
	if !c.Editable() {
		return errutil.Conflict("campaign cannot be submitted from its current state", nil)
	}

	if c.Title == "" || c.Description == "" || !c.GoalAmount.IsPositive() {
		return errutil.BadRequest("campaign needs a title, a description and a positive goal", nil)
	}

	if c.CategoryID != nil {
		missing, err := s.gate.MissingRequired(ctx, c.ID, *c.CategoryID)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			details := make([]errutil.Detail, 0, len(missing))
			for _, name := range missing {
				details = append(details, errutil.Detail{Field: name, Message: "required answer missing"})
			}
			return errutil.UnprocessableEntity("required category requirements are unanswered", nil, errutil.WithDetails(details...))
		}
	}

	c.WorkflowState = refdata.WorkflowInReview
	c.UpdatedAt = time.Now()
	if err := s.campaign.Update(ctx, c.ID, c); err != nil {
		return err
	}

	zap.L().With(s.logFields(ctx)...).Info("campaign submitted for review", zap.Int64("campaign_id", c.ID))
	return nil
}

// Approve publishes a campaign under review. An approved campaign that was
// previously observed may also be approved directly.
func (s *Service) Approve(ctx context.Context, campaignID int64, text string) error {
	return s.review(ctx, campaignID, refdata.ActionApproved, text)
}

// Observe sends a campaign back to its owner with a mandatory rationale.
func (s *Service) Observe(ctx context.Context, campaignID int64, text string) error {
	return s.review(ctx, campaignID, refdata.ActionObserved, text)
}

// Reject closes the review permanently with a mandatory rationale.
func (s *Service) Reject(ctx context.Context, campaignID int64, text string) error {
	return s.review(ctx, campaignID, refdata.ActionRejected, text)
}

func (s *Service) review(ctx context.Context, campaignID int64, action refdata.ObservationAction, text string) error {
	ident, err := s.authz.Require(ctx, authz.ObjCampaign, authz.ActReview)
	if err != nil {
		return err
	}

	c, err := s.find(ctx, campaignID)
	if err != nil {
		return err
	}

	var next refdata.WorkflowState
	var event string
	switch action {
	case refdata.ActionApproved:
		if c.WorkflowState != refdata.WorkflowInReview && c.WorkflowState != refdata.WorkflowObserved {
			return errutil.Conflict("campaign cannot be approved from its current state", nil)
		}
		if text == "" {
			text = "approved"
		}
		next, event = refdata.WorkflowPublished, notify.EventCampaignApproved
	case refdata.ActionObserved:
		if c.WorkflowState != refdata.WorkflowInReview {
			return errutil.Conflict("campaign cannot be observed from its current state", nil)
		}
		if text == "" {
			return errutil.BadRequest("a rationale is required to observe a campaign", nil)
		}
		next, event = refdata.WorkflowObserved, notify.EventCampaignObserved
	case refdata.ActionRejected:
		if c.WorkflowState != refdata.WorkflowInReview {
			return errutil.Conflict("campaign cannot be rejected from its current state", nil)
		}
		if text == "" {
			return errutil.BadRequest("a rationale is required to reject a campaign", nil)
		}
		next, event = refdata.WorkflowRejected, notify.EventCampaignRejected
	default:
		return errutil.BadRequest("unknown review action", nil)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.observation.WithTrx(tx).Create(ctx, &Observation{
			ID:         s.node.Generate().Int64(),
			CampaignID: c.ID,
			AdminID:    ident.ID,
			Action:     action,
			Text:       text,
		}); err != nil {
			return err
		}

		c.WorkflowState = next
		c.UpdatedAt = time.Now()
		return s.campaign.WithTrx(tx).Update(ctx, c.ID, c)
	})
	if err != nil {
		zap.L().With(s.logFields(ctx)...).Error("failed to apply review action",
			zap.Int64("campaign_id", c.ID), zap.String("action", string(action)), zap.Error(err))
		return err
	}

	s.notifier.Notify(ctx, event, pkgasynq.NotifyEventPayload{
		RecipientID: c.OwnerID,
		CampaignID:  c.ID,
		Detail:      text,
	})
	return nil
}

// ListObservations returns the review audit trail of a campaign. Admin only.
func (s *Service) ListObservations(ctx context.Context, campaignID int64) ([]*Observation, error) {
	if _, err := s.authz.Require(ctx, authz.ObjCampaign, authz.ActReview); err != nil {
		return nil, err
	}
	if _, err := s.find(ctx, campaignID); err != nil {
		return nil, err
	}

	return s.observation.Find(ctx, &Observation{CampaignID: campaignID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
}

// ========================================================
// Collection axis
// ========================================================

// Start opens collection on a published campaign. The start date is set on
// the first start and kept over pause/resume cycles.
func (s *Service) Start(ctx context.Context, campaignID int64) error {
	c, err := s.find(ctx, campaignID)
	if err != nil {
		return err
	}
	if _, err := s.authz.RequireOwner(ctx, c.OwnerID); err != nil {
		return err
	}
	if c.WorkflowState != refdata.WorkflowPublished {
		return errutil.Conflict("campaign must be published before collecting", nil)
	}
	if c.CampaignState != refdata.CampaignNotStarted && c.CampaignState != refdata.CampaignPaused {
		return errutil.Conflict("campaign cannot start from its current state", nil)
	}

	c.CampaignState = refdata.CampaignInProgress
	if c.StartDate == nil {
		now := time.Now()
		c.StartDate = &now
	}
	c.UpdatedAt = time.Now()
	return s.campaign.Update(ctx, c.ID, c)
}

// Pause suspends an in-progress collection.
func (s *Service) Pause(ctx context.Context, campaignID int64) error {
	c, err := s.find(ctx, campaignID)
	if err != nil {
		return err
	}
	if _, err := s.authz.RequireOwner(ctx, c.OwnerID); err != nil {
		return err
	}
	if c.CampaignState != refdata.CampaignInProgress {
		return errutil.Conflict("only an in-progress campaign can be paused", nil)
	}

	c.CampaignState = refdata.CampaignPaused
	c.UpdatedAt = time.Now()
	return s.campaign.Update(ctx, c.ID, c)
}

// Finish closes collection for good. Nothing leaves finished.
func (s *Service) Finish(ctx context.Context, campaignID int64) error {
	c, err := s.find(ctx, campaignID)
	if err != nil {
		return err
	}
	if _, err := s.authz.RequireOwner(ctx, c.OwnerID); err != nil {
		return err
	}
	if c.CampaignState != refdata.CampaignInProgress && c.CampaignState != refdata.CampaignPaused {
		return errutil.Conflict("campaign cannot finish from its current state", nil)
	}

	now := time.Now()
	c.CampaignState = refdata.CampaignFinished
	c.EndDate = &now
	c.UpdatedAt = now
	if err := s.campaign.Update(ctx, c.ID, c); err != nil {
		return err
	}

	s.notifier.Notify(ctx, notify.EventCampaignFinished, pkgasynq.NotifyEventPayload{
		RecipientID: c.OwnerID,
		CampaignID:  c.ID,
	})
	return nil
}

// ========================================================
// Favorites
// ========================================================

// AddFavorite follows a campaign. Adding twice is a no-op.
func (s *Service) AddFavorite(ctx context.Context, campaignID int64) error {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return err
	}

	c, err := s.find(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.WorkflowState != refdata.WorkflowPublished {
		return errutil.NotFound("campaign not found", nil)
	}

	existing, err := s.favorite.FindOne(ctx, &Favorite{CampaignID: campaignID, PersonID: ident.ID})
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.favorite.WithTrx(tx).Create(ctx, &Favorite{
			ID:         s.node.Generate().Int64(),
			CampaignID: campaignID,
			PersonID:   ident.ID,
		}); err != nil {
			return err
		}
		return tx.Model(&Campaign{}).
			Where("id = ?", campaignID).
			UpdateColumn("favorites_counting", gorm.Expr("favorites_counting + ?", 1)).Error
	})
}

// RemoveFavorite unfollows a campaign. Removing a non-favorite is a no-op.
func (s *Service) RemoveFavorite(ctx context.Context, campaignID int64) error {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return err
	}

	existing, err := s.favorite.FindOne(ctx, &Favorite{CampaignID: campaignID, PersonID: ident.ID})
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Favorite{}, existing.ID).Error; err != nil {
			return err
		}
		return tx.Model(&Campaign{}).
			Where("id = ? AND favorites_counting > 0", campaignID).
			UpdateColumn("favorites_counting", gorm.Expr("favorites_counting - ?", 1)).Error
	})
}

// ListFavorites returns the campaigns the caller follows.
func (s *Service) ListFavorites(ctx context.Context) ([]*Campaign, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	favorites, err := s.favorite.Find(ctx, &Favorite{PersonID: ident.ID})
	if err != nil {
		return nil, err
	}
	if len(favorites) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.CampaignID)
	}

	var campaigns []*Campaign
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

// ListAll returns every campaign, optionally filtered by workflow state.
// Admin review queue.
func (s *Service) ListAll(ctx context.Context, state refdata.WorkflowState) ([]*Campaign, error) {
	if _, err := s.authz.Require(ctx, authz.ObjCampaign, authz.ActReview); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx)
	if state != "" {
		q = q.Where("workflow_state = ?", state)
	}

	var campaigns []*Campaign
	if err := q.Order("created_at DESC").Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}
