package ledger

import (
	"context"
	"sync/atomic"
	"time"

	pkgasynq "crowdfund-platform/pkg/asynq"
	"crowdfund-platform/pkg/authz"
	"crowdfund-platform/pkg/db/option"
	"crowdfund-platform/pkg/notify"
	"crowdfund-platform/services/campaign"
	"crowdfund-platform/services/refdata"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const sweepConcurrency = 8

// SweepExpired finishes every in-progress campaign whose expiration date has
// passed and refunds its completed donations when the goal was not met. Each
// campaign is swept in its own transaction with the row locked and the state
// re-checked, so the sweep is idempotent and safe to run concurrently with
// donations.
func (s *Service) SweepExpired(ctx context.Context) (*SweepResult, error) {
	var expired []campaign.Campaign
	if err := s.db.WithContext(ctx).
		Where("campaign_state = ?", refdata.CampaignInProgress).
		Where("expiration_date < ?", time.Now()).
		Find(&expired).Error; err != nil {
		zap.L().Error("failed to list expired campaigns", zap.Error(err))
		return nil, err
	}

	var swept, refunded int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	for i := range expired {
		c := expired[i]
		g.Go(func() error {
			n, err := s.sweepOne(gctx, c.ID)
			if err != nil {
				zap.L().Error("failed to sweep campaign", zap.Int64("campaign_id", c.ID), zap.Error(err))
				return err
			}
			if n >= 0 {
				atomic.AddInt64(&swept, 1)
				atomic.AddInt64(&refunded, int64(n))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &SweepResult{CampaignsSwept: int(swept), DonationsRefunded: int(refunded)}
	zap.L().Info("expiry sweep finished",
		zap.Int("campaigns_swept", result.CampaignsSwept),
		zap.Int("donations_refunded", result.DonationsRefunded),
	)
	return result, nil
}

// sweepOne returns the number of refunded donations, or -1 when another
// sweep already handled the campaign.
func (s *Service) sweepOne(ctx context.Context, campaignID int64) (int, error) {
	refunded := 0
	skipped := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		tx = tx.Scopes(option.LockingUpdate)

		c, err := s.campaign.WithTrx(tx).FindOne(ctx, &campaign.Campaign{ID: campaignID})
		if err != nil {
			return err
		}
		// Re-check under lock: a donation may have finished it or a
		// previous sweep may have gotten here first. Campaigns without an
		// expiration never expire.
		if c == nil || c.CampaignState != refdata.CampaignInProgress ||
			c.ExpirationDate == nil || c.ExpirationDate.After(time.Now()) {
			skipped = true
			return nil
		}

		now := time.Now()
		updates := map[string]any{
			"campaign_state": refdata.CampaignFinished,
			"end_date":       now,
			"updated_at":     now,
		}

		goalMet := c.CurrentAmount.GreaterThanOrEqual(c.GoalAmount)
		if !goalMet {
			completed, err := s.donation.WithTrx(tx).Find(ctx, &Donation{
				CampaignID: c.ID,
				State:      refdata.DonationCompleted,
			})
			if err != nil {
				return err
			}

			for _, d := range completed {
				if err := s.donation.WithTrx(tx).Update(ctx, d.ID, map[string]any{
					"state":      refdata.DonationRefunded,
					"updated_at": now,
				}); err != nil {
					return err
				}
				refunded++

				s.notifier.Notify(ctx, notify.EventDonationRefunded, pkgasynq.NotifyEventPayload{
					RecipientID: d.DonorID,
					CampaignID:  c.ID,
					Detail:      d.Code,
				})
			}

			// The collected total must equal the sum of completed
			// donations, which is zero once everything is refunded.
			updates["current_amount"] = decimal.Zero
		}

		if err := s.campaign.WithTrx(tx).Update(ctx, c.ID, updates); err != nil {
			return err
		}

		s.notifier.Notify(ctx, notify.EventCampaignFinished, pkgasynq.NotifyEventPayload{
			RecipientID: c.OwnerID,
			CampaignID:  c.ID,
			Detail:      "expired",
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	if skipped {
		return -1, nil
	}
	return refunded, nil
}

// RunSweep is the admin trigger for an immediate sweep pass.
func (s *Service) RunSweep(ctx context.Context) (*SweepResult, error) {
	if _, err := s.authz.Require(ctx, authz.ObjSweep, authz.ActRun); err != nil {
		return nil, err
	}
	return s.SweepExpired(ctx)
}

// HandleSweepTask adapts the sweep to the task queue.
func (s *Service) HandleSweepTask() asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		_, err := s.SweepExpired(ctx)
		return err
	}
}

// RegisterTasks mounts the ledger task handlers on the worker mux.
func RegisterTasks(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(pkgasynq.SweepExpiredTask, s.HandleSweepTask())
	mux.HandleFunc(pkgasynq.NotifyEventTask, notify.Handler())
}
