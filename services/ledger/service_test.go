package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"crowdfund-platform/pkg/authz"
	"crowdfund-platform/pkg/config"
	"crowdfund-platform/pkg/errutil"
	"crowdfund-platform/pkg/identity"
	"crowdfund-platform/pkg/notify"
	"crowdfund-platform/pkg/payment"
	"crowdfund-platform/services/campaign"
	"crowdfund-platform/services/person"
	"crowdfund-platform/services/refdata"
	"crowdfund-platform/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type seqStub struct {
	n int64
}

func (s *seqStub) NextDonationCode(ctx context.Context) (string, error) {
	return fmt.Sprintf("DON-TEST-%03d", atomic.AddInt64(&s.n, 1)), nil
}

func (s *seqStub) NextCampaignCode(ctx context.Context) (string, error) {
	return fmt.Sprintf("CMP-TEST-%03d", atomic.AddInt64(&s.n, 1)), nil
}

type gatewayStub struct {
	pending *payment.PendingPayment
	err     error
}

func (g *gatewayStub) Initiate(ctx context.Context, amount decimal.Decimal) (*payment.PendingPayment, error) {
	return g.pending, g.err
}

func newTestService(t *testing.T, gateway payment.Gateway) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &campaign.Campaign{}, &Donation{}, &person.Person{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authz.New(&config.Config{})
	require.NoError(t, err)

	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Seq:      &seqStub{},
		Authz:    enforcer,
		Gateway:  gateway,
		Notifier: notify.Nop{},
	})
	return svc, db
}

func memberCtx(id int64) context.Context {
	return identity.NewContext(context.Background(), identity.Identity{ID: id, Role: identity.RoleMember})
}

func seedCampaign(t *testing.T, db *gorm.DB, ownerID int64, goal string, mutate ...func(*campaign.Campaign)) *campaign.Campaign {
	t.Helper()

	exp := time.Now().Add(30 * 24 * time.Hour)
	c := &campaign.Campaign{
		ID:             time.Now().UnixNano(),
		Code:           fmt.Sprintf("CMP-%d", time.Now().UnixNano()),
		Slug:           fmt.Sprintf("test-%d", time.Now().UnixNano()),
		Title:          "Reforest the valley",
		Description:    "Plant trees",
		GoalAmount:     decimal.RequireFromString(goal),
		CurrentAmount:  decimal.Zero,
		ExpirationDate: &exp,
		WorkflowState:  refdata.WorkflowPublished,
		CampaignState:  refdata.CampaignInProgress,
		OwnerID:        ownerID,
	}
	for _, m := range mutate {
		m(c)
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func requireCode(t *testing.T, err error, code errutil.CoreStatus) {
	t.Helper()
	require.Error(t, err)
	var baseErr errutil.BaseError
	require.ErrorAs(t, err, &baseErr)
	require.Equal(t, code, baseErr.Code)
}

func TestRecordDonationInstantSettlement(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{})
	c := seedCampaign(t, db, 1, "100.00")

	resp, err := svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: c.ID,
		Amount:     decimal.RequireFromString("30.00"),
	})
	require.NoError(t, err)
	require.Equal(t, refdata.DonationCompleted, resp.Donation.State)
	require.Empty(t, resp.RedirectURL)

	var got campaign.Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.True(t, got.CurrentAmount.Equal(decimal.RequireFromString("30.00")))
	require.Equal(t, refdata.CampaignInProgress, got.CampaignState)
}

func TestRecordDonationReachesGoal(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{})
	c := seedCampaign(t, db, 1, "100.00")

	_, err := svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("90.00"),
	})
	require.NoError(t, err)

	_, err = svc.RecordDonation(memberCtx(3), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("20.00"),
	})
	require.NoError(t, err)

	var got campaign.Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.True(t, got.CurrentAmount.Equal(decimal.RequireFromString("110.00")))
	require.Equal(t, refdata.CampaignFinished, got.CampaignState)
	require.NotNil(t, got.EndDate)

	// A finished campaign no longer accepts donations.
	_, err = svc.RecordDonation(memberCtx(4), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("5.00"),
	})
	requireCode(t, err, errutil.StatusConflict)
}

func TestRecordDonationConcurrentFinish(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{})
	c := seedCampaign(t, db, 1, "100.00")

	const donors = 8
	var wg sync.WaitGroup
	errs := make([]error, donors)
	for i := 0; i < donors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordDonation(memberCtx(int64(10+i)), &RecordDonationRequest{
				CampaignID: c.ID, Amount: decimal.RequireFromString("20.00"),
			})
		}(i)
	}
	wg.Wait()

	// The goal crossing finishes the campaign exactly once, no matter how
	// the settlements interleave.
	var got campaign.Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.Equal(t, refdata.CampaignFinished, got.CampaignState)
	require.NotNil(t, got.EndDate)
	require.True(t, got.CurrentAmount.GreaterThanOrEqual(got.GoalAmount))

	// Ledger-sum invariant: current_amount equals the sum of the donations
	// that settled. Callers that arrived after the finish were rejected.
	var sum decimal.Decimal
	require.NoError(t, db.Model(&Donation{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("campaign_id = ? AND state = ?", c.ID, refdata.DonationCompleted).
		Scan(&sum).Error)
	require.True(t, got.CurrentAmount.Equal(sum), "ledger %s vs donations %s", got.CurrentAmount, sum)

	for _, err := range errs {
		if err != nil {
			requireCode(t, err, errutil.StatusConflict)
		}
	}
}

func TestRecordDonationGuards(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{})
	c := seedCampaign(t, db, 1, "100.00")
	draft := seedCampaign(t, db, 1, "100.00", func(c *campaign.Campaign) {
		c.WorkflowState = refdata.WorkflowDraft
		c.CampaignState = refdata.CampaignNotStarted
	})

	_, err := svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: 999999, Amount: decimal.RequireFromString("10.00"),
	})
	requireCode(t, err, errutil.StatusNotFound)

	_, err = svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: draft.ID, Amount: decimal.RequireFromString("10.00"),
	})
	requireCode(t, err, errutil.StatusConflict)

	_, err = svc.RecordDonation(memberCtx(1), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("10.00"),
	})
	requireCode(t, err, errutil.StatusConflict)

	_, err = svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.Zero,
	})
	requireCode(t, err, errutil.StatusBadRequest)

	_, err = svc.RecordDonation(context.Background(), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("10.00"),
	})
	requireCode(t, err, errutil.StatusUnauthorized)
}

func TestRecordDonationPendingPath(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{
		pending: &payment.PendingPayment{Reference: "pay_123", RedirectURL: "https://gateway/pay/pay_123"},
	})
	c := seedCampaign(t, db, 1, "100.00")

	resp, err := svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("40.00"),
	})
	require.NoError(t, err)
	require.Equal(t, refdata.DonationPending, resp.Donation.State)
	require.Equal(t, "pay_123", resp.Donation.GatewayPaymentID)
	require.Equal(t, "https://gateway/pay/pay_123", resp.RedirectURL)

	// Pending money is not in the ledger yet.
	var got campaign.Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.True(t, got.CurrentAmount.IsZero())
}

func TestRecordDonationGatewayFailureSettlesInstantly(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{err: fmt.Errorf("gateway down")})
	c := seedCampaign(t, db, 1, "100.00")

	resp, err := svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("25.00"),
	})
	require.NoError(t, err)
	require.Equal(t, refdata.DonationCompleted, resp.Donation.State)
	require.Empty(t, resp.Donation.GatewayPaymentID)

	var got campaign.Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.True(t, got.CurrentAmount.Equal(decimal.RequireFromString("25.00")))
}

func TestConfirmDonationIdempotent(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{
		pending: &payment.PendingPayment{Reference: "pay_777", RedirectURL: "https://gateway/pay/pay_777"},
	})
	c := seedCampaign(t, db, 1, "100.00")

	_, err := svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("40.00"),
	})
	require.NoError(t, err)

	first, err := svc.ConfirmDonation(context.Background(), "pay_777")
	require.NoError(t, err)
	require.Equal(t, refdata.DonationCompleted, first.State)

	second, err := svc.ConfirmDonation(context.Background(), "pay_777")
	require.NoError(t, err)
	require.Equal(t, refdata.DonationCompleted, second.State)

	// The ledger effect applied exactly once.
	var got campaign.Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.True(t, got.CurrentAmount.Equal(decimal.RequireFromString("40.00")))
}

func TestConfirmDonationUnknownReference(t *testing.T) {
	svc, _ := newTestService(t, &gatewayStub{})

	_, err := svc.ConfirmDonation(context.Background(), "pay_missing")
	requireCode(t, err, errutil.StatusNotFound)
}

func TestConfirmDonationCancelledConflict(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{
		pending: &payment.PendingPayment{Reference: "pay_cxl", RedirectURL: "https://gateway/pay/pay_cxl"},
	})
	c := seedCampaign(t, db, 1, "100.00")

	resp, err := svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("15.00"),
	})
	require.NoError(t, err)

	_, err = svc.CancelDonation(memberCtx(2), resp.Donation.ID)
	require.NoError(t, err)

	_, err = svc.ConfirmDonation(context.Background(), "pay_cxl")
	requireCode(t, err, errutil.StatusConflict)
}

func TestCancelDonation(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{
		pending: &payment.PendingPayment{Reference: "pay_c1", RedirectURL: "https://gateway/pay/pay_c1"},
	})
	c := seedCampaign(t, db, 1, "100.00")

	resp, err := svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)

	// Only the donor may cancel.
	_, err = svc.CancelDonation(memberCtx(3), resp.Donation.ID)
	requireCode(t, err, errutil.StatusForbidden)

	cancelled, err := svc.CancelDonation(memberCtx(2), resp.Donation.ID)
	require.NoError(t, err)
	require.Equal(t, refdata.DonationCancelled, cancelled.State)

	// Cancelled is terminal.
	_, err = svc.CancelDonation(memberCtx(2), resp.Donation.ID)
	requireCode(t, err, errutil.StatusConflict)
}

func TestTotalAndTopDonors(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{})
	c := seedCampaign(t, db, 1, "200.00")

	require.NoError(t, db.Create(&person.Person{ID: 2, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", IsActive: true}).Error)
	require.NoError(t, db.Create(&person.Person{ID: 3, FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", IsActive: true}).Error)

	_, err := svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("50.00"),
	})
	require.NoError(t, err)
	_, err = svc.RecordDonation(memberCtx(3), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("80.00"),
	})
	require.NoError(t, err)

	total, err := svc.Total(context.Background(), c.ID)
	require.NoError(t, err)
	require.True(t, total.TotalAmount.Equal(decimal.RequireFromString("130.00")))
	require.InDelta(t, 65.0, total.ProgressPct, 0.01)

	donors, err := svc.TopDonors(context.Background(), c.ID, 10)
	require.NoError(t, err)
	require.Len(t, donors, 2)
	require.Equal(t, "Alan Turing", donors[0].DonorName)
	require.True(t, donors[0].Amount.Equal(decimal.RequireFromString("80.00")))
}

func TestListByCampaignVisibility(t *testing.T) {
	svc, db := newTestService(t, &gatewayStub{})
	c := seedCampaign(t, db, 1, "100.00")

	_, err := svc.RecordDonation(memberCtx(2), &RecordDonationRequest{
		CampaignID: c.ID, Amount: decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)

	// A stranger cannot list campaign donations.
	_, err = svc.ListByCampaign(memberCtx(3), c.ID)
	requireCode(t, err, errutil.StatusForbidden)

	rows, err := svc.ListByCampaign(memberCtx(1), c.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	adminCtx := identity.NewContext(context.Background(), identity.Identity{ID: 99, Role: identity.RoleAdmin})
	rows, err = svc.ListByCampaign(adminCtx, c.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
