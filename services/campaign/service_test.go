package campaign

import (
	"context"
	"fmt"
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

type resolverStub struct {
	known map[int64]string
}

func (r *resolverStub) NameOf(ctx context.Context, kind refdata.Kind, id int64) (string, error) {
	if name, ok := r.known[id]; ok {
		return name, nil
	}
	return "", errutil.NotFound("not found", nil)
}

type validatorStub struct {
	missing []string
}

func (v *validatorStub) MissingRequired(ctx context.Context, campaignID, categoryID int64) ([]string, error) {
	return v.missing, nil
}

func newTestService(t *testing.T, gate *validatorStub) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Campaign{}, &Observation{}, &Favorite{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authz.New(&config.Config{})
	require.NoError(t, err)

	if gate == nil {
		gate = &validatorStub{}
	}

	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Seq:      &seqStub{},
		Authz:    enforcer,
		Gate:     gate,
		Refdata:  &resolverStub{known: map[int64]string{10: "Health"}},
		Notifier: notify.Nop{},
	})
	return svc, db
}

func memberCtx(id int64) context.Context {
	return identity.NewContext(context.Background(), identity.Identity{ID: id, Role: identity.RoleMember})
}

func adminCtx() context.Context {
	return identity.NewContext(context.Background(), identity.Identity{ID: 99, Role: identity.RoleAdmin})
}

func requireCode(t *testing.T, err error, code errutil.CoreStatus) {
	t.Helper()
	require.Error(t, err)
	var baseErr errutil.BaseError
	require.ErrorAs(t, err, &baseErr)
	require.Equal(t, code, baseErr.Code)
}

func validCreate() *CreateCampaignRequest {
	exp := time.Now().Add(60 * 24 * time.Hour)
	return &CreateCampaignRequest{
		Title:          "Clean the river",
		Description:    "Remove plastic from the riverbed",
		GoalAmount:     decimal.RequireFromString("500.00"),
		ExpirationDate: &exp,
	}
}

func TestCreateCampaign(t *testing.T) {
	svc, _ := newTestService(t, nil)

	c, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)
	require.Equal(t, refdata.WorkflowDraft, c.WorkflowState)
	require.Equal(t, refdata.CampaignNotStarted, c.CampaignState)
	require.NotEmpty(t, c.Code)
	require.Contains(t, c.Slug, "clean-the-river")
	require.True(t, c.CurrentAmount.IsZero())

	// The expiration date is optional, open-ended campaigns are allowed.
	open := validCreate()
	open.ExpirationDate = nil
	c2, err := svc.Create(memberCtx(1), open)
	require.NoError(t, err)
	require.Nil(t, c2.ExpirationDate)
}

func TestCreateCampaignValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)

	past := validCreate()
	yesterday := time.Now().Add(-time.Hour)
	past.ExpirationDate = &yesterday
	_, err := svc.Create(memberCtx(1), past)
	requireCode(t, err, errutil.StatusBadRequest)

	unknownCat := validCreate()
	catID := int64(777)
	unknownCat.CategoryID = &catID
	_, err = svc.Create(memberCtx(1), unknownCat)
	requireCode(t, err, errutil.StatusBadRequest)

	_, err = svc.Create(context.Background(), validCreate())
	requireCode(t, err, errutil.StatusUnauthorized)
}

func TestGetVisibility(t *testing.T) {
	svc, _ := newTestService(t, nil)

	c, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)

	_, err = svc.Get(memberCtx(1), c.ID)
	require.NoError(t, err)

	_, err = svc.Get(adminCtx(), c.ID)
	require.NoError(t, err)

	// Unpublished campaigns are invisible to strangers.
	_, err = svc.Get(memberCtx(2), c.ID)
	requireCode(t, err, errutil.StatusForbidden)
}

func TestUpdateFrozenAfterSubmit(t *testing.T) {
	svc, _ := newTestService(t, nil)

	c, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitForReview(memberCtx(1), c.ID))

	title := "New title"
	_, err = svc.Update(memberCtx(1), c.ID, &UpdateCampaignRequest{Title: &title})
	requireCode(t, err, errutil.StatusConflict)
}

func TestUpdateClearsFields(t *testing.T) {
	svc, db := newTestService(t, nil)

	c, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)

	img := "https://cdn.example.com/river.jpg"
	_, err = svc.Update(memberCtx(1), c.ID, &UpdateCampaignRequest{MainImageURL: &img})
	require.NoError(t, err)

	// Clearing a field to its zero value must persist.
	empty := ""
	updated, err := svc.Update(memberCtx(1), c.ID, &UpdateCampaignRequest{
		Description:  &empty,
		MainImageURL: &empty,
	})
	require.NoError(t, err)
	require.Empty(t, updated.Description)

	var got Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.Empty(t, got.Description)
	require.Empty(t, got.MainImageURL)
	require.Equal(t, c.Title, got.Title)
}

func TestDeleteOnlyDraft(t *testing.T) {
	svc, _ := newTestService(t, nil)

	c, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)

	// Stranger cannot delete.
	requireCode(t, svc.Delete(memberCtx(2), c.ID), errutil.StatusForbidden)

	require.NoError(t, svc.SubmitForReview(memberCtx(1), c.ID))
	requireCode(t, svc.Delete(memberCtx(1), c.ID), errutil.StatusConflict)

	d, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(memberCtx(1), d.ID))
}

func TestSubmitForReviewGuards(t *testing.T) {
	svc, _ := newTestService(t, nil)

	empty := validCreate()
	empty.Description = ""
	c, err := svc.Create(memberCtx(1), empty)
	require.NoError(t, err)
	requireCode(t, svc.SubmitForReview(memberCtx(1), c.ID), errutil.StatusBadRequest)

	zeroGoal := validCreate()
	zeroGoal.GoalAmount = decimal.Zero
	c2, err := svc.Create(memberCtx(1), zeroGoal)
	require.NoError(t, err)
	requireCode(t, svc.SubmitForReview(memberCtx(1), c2.ID), errutil.StatusBadRequest)

	ok, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitForReview(memberCtx(1), ok.ID))

	// Already in review.
	requireCode(t, svc.SubmitForReview(memberCtx(1), ok.ID), errutil.StatusConflict)
}

func TestSubmitForReviewRequirementGate(t *testing.T) {
	svc, _ := newTestService(t, &validatorStub{missing: []string{"Medical certificate"}})

	req := validCreate()
	catID := int64(10)
	req.CategoryID = &catID
	c, err := svc.Create(memberCtx(1), req)
	require.NoError(t, err)

	err = svc.SubmitForReview(memberCtx(1), c.ID)
	requireCode(t, err, errutil.StatusUnprocessableEntity)

	var baseErr errutil.BaseError
	require.ErrorAs(t, err, &baseErr)
	require.Len(t, baseErr.Details, 1)
	require.Equal(t, "Medical certificate", baseErr.Details[0].Field)
}

func TestReviewTransitions(t *testing.T) {
	svc, db := newTestService(t, nil)

	submit := func() *Campaign {
		c, err := svc.Create(memberCtx(1), validCreate())
		require.NoError(t, err)
		require.NoError(t, svc.SubmitForReview(memberCtx(1), c.ID))
		return c
	}

	// Members cannot review.
	c := submit()
	requireCode(t, svc.Approve(memberCtx(1), c.ID, ""), errutil.StatusForbidden)

	require.NoError(t, svc.Approve(adminCtx(), c.ID, ""))
	var got Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.Equal(t, refdata.WorkflowPublished, got.WorkflowState)

	// Published campaigns cannot be approved again.
	requireCode(t, svc.Approve(adminCtx(), c.ID, ""), errutil.StatusConflict)

	// Observe requires a rationale and allows resubmission.
	c2 := submit()
	requireCode(t, svc.Observe(adminCtx(), c2.ID, ""), errutil.StatusBadRequest)
	require.NoError(t, svc.Observe(adminCtx(), c2.ID, "goal seems inflated"))
	got = Campaign{}
	require.NoError(t, db.First(&got, c2.ID).Error)
	require.Equal(t, refdata.WorkflowObserved, got.WorkflowState)
	require.NoError(t, svc.SubmitForReview(memberCtx(1), c2.ID))

	// An observed campaign may be approved directly.
	c3 := submit()
	require.NoError(t, svc.Observe(adminCtx(), c3.ID, "fix the description"))
	require.NoError(t, svc.Approve(adminCtx(), c3.ID, "looks fine now"))
	got = Campaign{}
	require.NoError(t, db.First(&got, c3.ID).Error)
	require.Equal(t, refdata.WorkflowPublished, got.WorkflowState)

	// Reject is terminal and requires a rationale.
	c4 := submit()
	requireCode(t, svc.Reject(adminCtx(), c4.ID, ""), errutil.StatusBadRequest)
	require.NoError(t, svc.Reject(adminCtx(), c4.ID, "fraudulent"))
	got = Campaign{}
	require.NoError(t, db.First(&got, c4.ID).Error)
	require.Equal(t, refdata.WorkflowRejected, got.WorkflowState)
	requireCode(t, svc.SubmitForReview(memberCtx(1), c4.ID), errutil.StatusConflict)
}

func TestReviewWritesObservations(t *testing.T) {
	svc, _ := newTestService(t, nil)

	c, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitForReview(memberCtx(1), c.ID))
	require.NoError(t, svc.Observe(adminCtx(), c.ID, "needs work"))
	require.NoError(t, svc.SubmitForReview(memberCtx(1), c.ID))
	require.NoError(t, svc.Approve(adminCtx(), c.ID, ""))

	// Only admins can read the audit trail.
	_, err = svc.ListObservations(memberCtx(1), c.ID)
	requireCode(t, err, errutil.StatusForbidden)

	rows, err := svc.ListObservations(adminCtx(), c.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestCollectionAxis(t *testing.T) {
	svc, db := newTestService(t, nil)

	c, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)

	// Collection cannot start before publication.
	requireCode(t, svc.Start(memberCtx(1), c.ID), errutil.StatusConflict)

	require.NoError(t, svc.SubmitForReview(memberCtx(1), c.ID))
	require.NoError(t, svc.Approve(adminCtx(), c.ID, ""))

	require.NoError(t, svc.Start(memberCtx(1), c.ID))
	var got Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.Equal(t, refdata.CampaignInProgress, got.CampaignState)
	require.NotNil(t, got.StartDate)
	firstStart := *got.StartDate

	// Pause and resume keep the original start date.
	require.NoError(t, svc.Pause(memberCtx(1), c.ID))
	requireCode(t, svc.Pause(memberCtx(1), c.ID), errutil.StatusConflict)
	require.NoError(t, svc.Start(memberCtx(1), c.ID))
	require.NoError(t, db.First(&got, c.ID).Error)
	require.WithinDuration(t, firstStart, *got.StartDate, time.Second)

	require.NoError(t, svc.Finish(memberCtx(1), c.ID))
	require.NoError(t, db.First(&got, c.ID).Error)
	require.Equal(t, refdata.CampaignFinished, got.CampaignState)
	require.NotNil(t, got.EndDate)

	// Nothing leaves finished.
	requireCode(t, svc.Start(memberCtx(1), c.ID), errutil.StatusConflict)
	requireCode(t, svc.Finish(memberCtx(1), c.ID), errutil.StatusConflict)
}

func TestFavorites(t *testing.T) {
	svc, db := newTestService(t, nil)

	c, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitForReview(memberCtx(1), c.ID))
	require.NoError(t, svc.Approve(adminCtx(), c.ID, ""))

	require.NoError(t, svc.AddFavorite(memberCtx(2), c.ID))
	// Re-adding is a no-op, the counter stays at one.
	require.NoError(t, svc.AddFavorite(memberCtx(2), c.ID))

	var got Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.EqualValues(t, 1, got.FavoritesCounting)

	rows, err := svc.ListFavorites(memberCtx(2))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, svc.RemoveFavorite(memberCtx(2), c.ID))
	require.NoError(t, db.First(&got, c.ID).Error)
	require.EqualValues(t, 0, got.FavoritesCounting)
}

func TestPublicDetailCountsViews(t *testing.T) {
	svc, db := newTestService(t, nil)

	c, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)

	// Unpublished campaigns 404 on the public surface.
	_, err = svc.GetPublicDetail(context.Background(), c.Slug)
	requireCode(t, err, errutil.StatusNotFound)

	require.NoError(t, svc.SubmitForReview(memberCtx(1), c.ID))
	require.NoError(t, svc.Approve(adminCtx(), c.ID, ""))

	pub, err := svc.GetPublicDetail(context.Background(), c.Slug)
	require.NoError(t, err)
	require.EqualValues(t, 1, pub.ViewCounting)

	_, err = svc.GetPublicDetail(context.Background(), c.Slug)
	require.NoError(t, err)

	var got Campaign
	require.NoError(t, db.First(&got, c.ID).Error)
	require.EqualValues(t, 2, got.ViewCounting)
}

func TestListPublicFilters(t *testing.T) {
	svc, db := newTestService(t, nil)

	publish := func(title string, categoryID *int64) *Campaign {
		req := validCreate()
		req.Title = title
		req.CategoryID = categoryID
		c, err := svc.Create(memberCtx(1), req)
		require.NoError(t, err)
		require.NoError(t, svc.SubmitForReview(memberCtx(1), c.ID))
		require.NoError(t, svc.Approve(adminCtx(), c.ID, ""))
		require.NoError(t, svc.Start(memberCtx(1), c.ID))
		return c
	}

	catID := int64(10)
	publish("Hospital wing", &catID)
	publish("School library", nil)

	// Draft never shows up.
	_, err := svc.Create(memberCtx(1), validCreate())
	require.NoError(t, err)

	all, err := svc.ListPublic(context.Background(), ListPublicParams{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	byCat, err := svc.ListPublic(context.Background(), ListPublicParams{CategoryID: &catID})
	require.NoError(t, err)
	require.Len(t, byCat, 1)
	require.Equal(t, "Hospital wing", byCat[0].Title)
	require.Equal(t, "Health", byCat[0].CategoryName)

	search, err := svc.ListPublic(context.Background(), ListPublicParams{Search: "library"})
	require.NoError(t, err)
	require.Len(t, search, 1)

	var count int64
	require.NoError(t, db.Model(&Campaign{}).Count(&count).Error)
	require.EqualValues(t, 3, count)
}
