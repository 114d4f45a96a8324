package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/quota"
	"github.com/Veraticus/spice-ledger/internal/testutil"
)

func importRow(description, account string, amount int64, day int) ImportRow {
	return ImportRow{
		Date:        jan15.AddDate(0, 0, day),
		Description: description,
		Type:        model.TypeExpense,
		AccountName: account,
		Amount:      amount,
	}
}

func TestImport_ResolvesNamesAndAggregates(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	rows := []ImportRow{
		importRow("Lunch", "checking", 1500, 0),
		importRow("Books", "Chekcing", 3000, 1),
		importRow("Lunch again", "CHECKING", 1500, 0),
		func() ImportRow {
			r := importRow("Move", "Checking", 10000, 2)
			r.Type = model.TypeTransfer
			r.ToAccountName = "Savings"
			r.CategoryName = "groceries"
			return r
		}(),
		importRow("Gas", "Brokerage", 4000, 3),
	}

	var progress []int
	summary, err := svc.Import(ctx, testutil.DefaultUser, rows, ImportOptions{
		ResolveNames: true,
		Progress:     func(done, _ int) { progress = append(progress, done) },
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 1, summary.Duplicates)
	require.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors[0], "row 2")
	assert.Contains(t, summary.Errors[0], `did you mean "Checking"`)
	assert.Contains(t, summary.Errors[1], `unknown account "Brokerage"`)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress)

	assert.Equal(t, int64(-11500), db.Balance("checking"))
	assert.Equal(t, int64(10000), db.Balance("savings"))

	for _, txn := range liveTransactions(t, db) {
		assert.Equal(t, model.SourceImport, txn.Source)
		if txn.Type == model.TypeTransfer {
			assert.Equal(t, "groceries", txn.CategoryID)
		}
	}
}

func TestImport_WithoutResolutionRequiresIDs(t *testing.T) {
	_, svc := setup(t)

	rows := []ImportRow{
		importRow("Named only", "Checking", 100, 0),
		{Date: jan15, Description: "By id", Type: model.TypeExpense, AccountID: "checking", Amount: 200, Line: 7},
	}

	summary, err := svc.Import(context.Background(), testutil.DefaultUser, rows, ImportOptions{Source: model.SourceOFX})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "account is required")
}

func TestImport_UnknownAccountIDIsSkipped(t *testing.T) {
	_, svc := setup(t)

	rows := []ImportRow{{Date: jan15, Type: model.TypeExpense, AccountID: "ghost", Amount: 200}}
	summary, err := svc.Import(context.Background(), testutil.DefaultUser, rows, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
}

func TestImport_QuotaRejectsWholeBatch(t *testing.T) {
	db := testutil.SetupTestDB(t, func(b *testutil.Builder) *testutil.Builder {
		return b.WithBasicLedger()
	})
	ctx := context.Background()
	checker := quota.NewChecker(db.Storage, 3)
	svc := NewService(db.Storage, WithQuota(checker))

	require.NoError(t, db.Storage.IncrementUsage(ctx, testutil.DefaultUser, checker.Period(), 2))

	rows := []ImportRow{
		importRow("One", "Checking", 100, 0),
		importRow("Two", "Checking", 200, 1),
	}
	summary, err := svc.Import(ctx, testutil.DefaultUser, rows, ImportOptions{ResolveNames: true})
	require.ErrorIs(t, err, quota.ErrLimitExceeded)
	assert.Nil(t, summary)
	assert.Empty(t, liveTransactions(t, db), "no partial processing")

	summary, err = svc.Import(ctx, testutil.DefaultUser, rows[:1], ImportOptions{ResolveNames: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)

	used, err := db.Storage.GetUsage(ctx, testutil.DefaultUser, checker.Period())
	require.NoError(t, err)
	assert.Equal(t, 3, used)
}

func TestNameIndex_Closest(t *testing.T) {
	idx := newNameIndex("category")
	idx.add("1", "Groceries")
	idx.add("2", "Gas")

	tests := []struct {
		name string
		want string
	}{
		{name: "grocries", want: "Groceries"},
		{name: "gsa", want: "Gas"},
		{name: "entertainment", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.closest(tt.name))
		})
	}
}
