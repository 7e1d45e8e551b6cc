package refdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"crowdfund-platform/pkg/errutil"
	"crowdfund-platform/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, &Category{}, &Country{}, &PaymentMethod{})
	return NewService(ServiceParams{DB: db}), db
}

func requireCode(t *testing.T, err error, code errutil.CoreStatus) {
	t.Helper()
	require.Error(t, err)
	var baseErr errutil.BaseError
	require.ErrorAs(t, err, &baseErr)
	require.Equal(t, code, baseErr.Code)
}

func TestCategories(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Create(&Category{ID: 1, Name: "Health"}).Error)
	require.NoError(t, db.Create(&Category{ID: 2, Name: "Education"}).Error)

	rows, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	got, err := svc.GetCategory(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Health", got.Name)

	_, err = svc.GetCategory(context.Background(), 42)
	requireCode(t, err, errutil.StatusNotFound)
}

func TestListPaymentMethodsSkipsInactive(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Create(&PaymentMethod{ID: 1, Name: "Card", IsActive: true}).Error)
	require.NoError(t, db.Create(&PaymentMethod{ID: 2, Name: "Cheque"}).Error)
	require.NoError(t, db.Model(&PaymentMethod{}).Where("id = ?", 2).Update("is_active", false).Error)

	rows, err := svc.ListPaymentMethods(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Card", rows[0].Name)
}

func TestNameOf(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Create(&Category{ID: 1, Name: "Health"}).Error)
	require.NoError(t, db.Create(&Country{ID: 1, Name: "Peru", Code: "PE"}).Error)
	require.NoError(t, db.Create(&PaymentMethod{ID: 1, Name: "Card", IsActive: true}).Error)

	for _, tc := range []struct {
		kind Kind
		want string
	}{
		{KindCategory, "Health"},
		{KindCountry, "Peru"},
		{KindPaymentMethod, "Card"},
	} {
		name, err := svc.NameOf(context.Background(), tc.kind, 1)
		require.NoError(t, err)
		require.Equal(t, tc.want, name)
	}

	_, err := svc.NameOf(context.Background(), KindCategory, 42)
	requireCode(t, err, errutil.StatusNotFound)

	_, err = svc.NameOf(context.Background(), Kind("planet"), 1)
	requireCode(t, err, errutil.StatusBadRequest)
}
