package ledger

import (
	"context"
	"fmt"
	"time"

	pkgasynq "crowdfund-platform/pkg/asynq"
	"crowdfund-platform/pkg/authz"
	"crowdfund-platform/pkg/db/option"
	"crowdfund-platform/pkg/errutil"
	"crowdfund-platform/pkg/identity"
	"crowdfund-platform/pkg/notify"
	"crowdfund-platform/pkg/payment"
	"crowdfund-platform/pkg/repository"
	"crowdfund-platform/pkg/sequence"
	"crowdfund-platform/services/campaign"
	"crowdfund-platform/services/person"
	"crowdfund-platform/services/refdata"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
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
	gateway  payment.Gateway
	notifier notify.Dispatcher

	donation repository.Repository[Donation]
	campaign repository.Repository[campaign.Campaign]
	person   repository.Repository[person.Person]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Seq      sequence.Generator
	Authz    *authz.Enforcer
	Gateway  payment.Gateway
	Notifier notify.Dispatcher
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		seq:      p.Seq,
		authz:    p.Authz,
		gateway:  p.Gateway,
		notifier: p.Notifier,
		donation: repository.ProvideStore[Donation](p.DB),
		campaign: repository.ProvideStore[campaign.Campaign](p.DB),
		person:   repository.ProvideStore[person.Person](p.DB),
	}
}

func (s *Service) logFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	return []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}

func acceptingDonations(c *campaign.Campaign) bool {
	return c.WorkflowState == refdata.WorkflowPublished && c.CampaignState == refdata.CampaignInProgress
}

// RecordDonation accepts a donation to a collecting campaign. The payment
// gateway decides between instant settlement (nil pending payment, gateway
// error included) and a pending donation that settles later via
// ConfirmDonation.
func (s *Service) RecordDonation(ctx context.Context, req *RecordDonationRequest) (*RecordDonationResponse, error) {
	ident, err := s.authz.Require(ctx, authz.ObjDonation, authz.ActCreate)
	if err != nil {
		return nil, err
	}

	if !req.Amount.IsPositive() {
		return nil, errutil.BadRequest("amount must be greater than zero", nil)
	}

	c, err := s.campaign.FindOne(ctx, &campaign.Campaign{ID: req.CampaignID})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}
	if !acceptingDonations(c) {
		return nil, errutil.Conflict("campaign is not accepting donations", nil)
	}
	if c.OwnerID == ident.ID {
		return nil, errutil.Conflict("cannot donate to your own campaign", nil)
	}

	code, err := s.seq.NextDonationCode(ctx)
	if err != nil {
		return nil, err
	}

	d := &Donation{
		ID:              s.node.Generate().Int64(),
		Code:            code,
		Amount:          req.Amount,
		DonorID:         ident.ID,
		CampaignID:      c.ID,
		PaymentMethodID: req.PaymentMethodID,
	}

	// Gateway failures degrade to instant settlement rather than losing the
	// donation; the reference stays empty in that case.
	pending, err := s.gateway.Initiate(ctx, req.Amount)
	if err != nil {
		zap.L().With(s.logFields(ctx)...).Warn("payment gateway unavailable, settling instantly", zap.Error(err))
		pending = nil
	}

	if pending != nil {
		d.State = refdata.DonationPending
		d.GatewayPaymentID = pending.Reference
		if err := s.donation.Create(ctx, d); err != nil {
			zap.L().With(s.logFields(ctx)...).Error("failed to create pending donation", zap.Error(err))
			return nil, err
		}
		return &RecordDonationResponse{Donation: d, RedirectURL: pending.RedirectURL}, nil
	}

	d.State = refdata.DonationCompleted
	if err := s.settle(ctx, d); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notify.EventDonationReceived, pkgasynq.NotifyEventPayload{
		RecipientID: c.OwnerID,
		CampaignID:  c.ID,
		Detail:      d.Code,
	})
	return &RecordDonationResponse{Donation: d}, nil
}

// settle writes a completed donation and its ledger effect in one
// transaction. The campaign row is locked for the read-modify-write so
// concurrent settlements serialize and the goal finishes exactly once.
func (s *Service) settle(ctx context.Context, d *Donation) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		c, err := s.campaign.WithTrx(tx).FindOne(ctx, &campaign.Campaign{ID: d.CampaignID})
		if err != nil {
			return err
		}
		if c == nil {
			return errutil.NotFound("campaign not found", nil)
		}

		if err := s.donation.WithTrx(tx).Create(ctx, d); err != nil {
			return err
		}

		return s.applyLedgerEffect(ctx, tx, c, d.Amount)
	})
	if err != nil {
		zap.L().With(s.logFields(ctx)...).Error("failed to settle donation",
			zap.Int64("donation_id", d.ID), zap.Error(err))
	}
	return err
}

// applyLedgerEffect adds amount to the locked campaign row and finishes the
// campaign the moment the goal is reached.
func (s *Service) applyLedgerEffect(ctx context.Context, tx *gorm.DB, c *campaign.Campaign, amount decimal.Decimal) error {
	now := time.Now()
	c.CurrentAmount = c.CurrentAmount.Add(amount)
	c.UpdatedAt = now

	if c.CurrentAmount.GreaterThanOrEqual(c.GoalAmount) && c.CampaignState == refdata.CampaignInProgress {
		c.CampaignState = refdata.CampaignFinished
		c.EndDate = &now

		s.notifier.Notify(ctx, notify.EventCampaignFinished, pkgasynq.NotifyEventPayload{
			RecipientID: c.OwnerID,
			CampaignID:  c.ID,
			Detail:      "goal reached",
		})
	}

	return s.campaign.WithTrx(tx).Update(ctx, c.ID, c)
}

// ConfirmDonation settles a pending donation by its gateway reference.
// Confirming an already completed donation is a no-op returning the row.
func (s *Service) ConfirmDonation(ctx context.Context, gatewayRef string) (*Donation, error) {
	if gatewayRef == "" {
		return nil, errutil.BadRequest("gateway reference is required", nil)
	}

	d, err := s.donation.FindOne(ctx, &Donation{GatewayPaymentID: gatewayRef})
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errutil.NotFound("donation not found", nil)
	}

	switch d.State {
	case refdata.DonationCompleted:
		return d, nil
	case refdata.DonationPending:
	default:
		return nil, errutil.Conflict(fmt.Sprintf("donation is %s and cannot be confirmed", d.State), nil)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		// Re-read under lock: a concurrent confirm may have settled it.
		locked, err := s.donation.WithTrx(tx).FindOne(ctx, &Donation{ID: d.ID})
		if err != nil {
			return err
		}
		if locked == nil {
			return errutil.NotFound("donation not found", nil)
		}
		if locked.State != refdata.DonationPending {
			d = locked
			return nil
		}

		c, err := s.campaign.WithTrx(tx).FindOne(ctx, &campaign.Campaign{ID: locked.CampaignID})
		if err != nil {
			return err
		}
		if c == nil {
			return errutil.NotFound("campaign not found", nil)
		}

		locked.State = refdata.DonationCompleted
		locked.UpdatedAt = time.Now()
		if err := s.donation.WithTrx(tx).Update(ctx, locked.ID, locked); err != nil {
			return err
		}

		if err := s.applyLedgerEffect(ctx, tx, c, locked.Amount); err != nil {
			return err
		}

		d = locked
		s.notifier.Notify(ctx, notify.EventDonationReceived, pkgasynq.NotifyEventPayload{
			RecipientID: c.OwnerID,
			CampaignID:  c.ID,
			Detail:      locked.Code,
		})
		return nil
	})
	if err != nil {
		zap.L().With(s.logFields(ctx)...).Error("failed to confirm donation",
			zap.String("gateway_ref", gatewayRef), zap.Error(err))
		return nil, err
	}
	return d, nil
}

// CancelDonation voids a pending donation. Donor only; a settled donation
// can no longer be cancelled.
func (s *Service) CancelDonation(ctx context.Context, donationID int64) (*Donation, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	d, err := s.donation.FindOne(ctx, &Donation{ID: donationID})
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errutil.NotFound("donation not found", nil)
	}
	if d.DonorID != ident.ID {
		return nil, errutil.Forbidden("only the donor may cancel a donation", nil)
	}
	if d.State != refdata.DonationPending {
		return nil, errutil.Conflict("only pending donations can be cancelled", nil)
	}

	d.State = refdata.DonationCancelled
	d.UpdatedAt = time.Now()
	if err := s.donation.Update(ctx, d.ID, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ========================================================
// Queries
// ========================================================

func (s *Service) donorName(ctx context.Context, donorID int64) string {
	p, err := s.person.FindOne(ctx, &person.Person{ID: donorID})
	if err != nil || p == nil {
		return "Anonymous"
	}
	return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
}

// ListMine returns the caller's donations, newest first.
func (s *Service) ListMine(ctx context.Context) ([]*DonationView, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.donation.Find(ctx, &Donation{DonorID: ident.ID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
	if err != nil {
		return nil, err
	}

	name := s.donorName(ctx, ident.ID)
	views := make([]*DonationView, 0, len(rows))
	for _, d := range rows {
		title := ""
		if c, err := s.campaign.FindOne(ctx, &campaign.Campaign{ID: d.CampaignID}); err == nil && c != nil {
			title = c.Title
		}
		views = append(views, &DonationView{Donation: *d, DonorName: name, CampaignTitle: title})
	}
	return views, nil
}

// ListByCampaign returns every donation of a campaign, largest first.
// Owner or admin.
func (s *Service) ListByCampaign(ctx context.Context, campaignID int64) ([]*DonationView, error) {
	ident, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.campaign.FindOne(ctx, &campaign.Campaign{ID: campaignID})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}
	if c.OwnerID != ident.ID && ident.Role != identity.RoleAdmin {
		return nil, errutil.Forbidden("not allowed to view these donations", nil)
	}

	rows, err := s.donation.Find(ctx, &Donation{CampaignID: campaignID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "amount",
			OrderBy: "desc",
			Allow:   map[string]bool{"amount": true},
		}),
	)
	if err != nil {
		return nil, err
	}

	views := make([]*DonationView, 0, len(rows))
	for _, d := range rows {
		views = append(views, &DonationView{
			Donation:      *d,
			DonorName:     s.donorName(ctx, d.DonorID),
			CampaignTitle: c.Title,
		})
	}
	return views, nil
}

// Total returns the public progress snapshot of a campaign.
func (s *Service) Total(ctx context.Context, campaignID int64) (*CampaignTotal, error) {
	c, err := s.campaign.FindOne(ctx, &campaign.Campaign{ID: campaignID})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}

	return &CampaignTotal{
		CampaignID:  c.ID,
		TotalAmount: c.CurrentAmount,
		GoalAmount:  c.GoalAmount,
		ProgressPct: c.Progress(),
	}, nil
}

// TopDonors returns the public leaderboard of completed donations.
func (s *Service) TopDonors(ctx context.Context, campaignID int64, limit int) ([]*TopDonor, error) {
	if limit <= 0 {
		limit = 10
	}

	c, err := s.campaign.FindOne(ctx, &campaign.Campaign{ID: campaignID})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}

	rows, err := s.donation.Find(ctx, &Donation{CampaignID: campaignID, State: refdata.DonationCompleted},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "amount",
			OrderBy: "desc",
			Allow:   map[string]bool{"amount": true},
		}),
		option.WithLimit(limit),
	)
	if err != nil {
		return nil, err
	}

	donors := make([]*TopDonor, 0, len(rows))
	for _, d := range rows {
		donors = append(donors, &TopDonor{
			DonorName: s.donorName(ctx, d.DonorID),
			Amount:    d.Amount,
			CreatedAt: d.CreatedAt,
		})
	}
	return donors, nil
}
