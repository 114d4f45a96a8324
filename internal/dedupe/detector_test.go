package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

type mockFinder struct {
	service.DuplicateFinder
	mock.Mock
}

func (m *mockFinder) FindByRawText(ctx context.Context, userID, rawText, source string) (*model.Transaction, error) {
	args := m.Called(ctx, userID, rawText, source)
	if txn, ok := args.Get(0).(*model.Transaction); ok {
		return txn, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFinder) FindByDateAmountAccount(ctx context.Context, userID string, date time.Time, amount int64, accountID string) (*model.Transaction, error) {
	args := m.Called(ctx, userID, date, amount, accountID)
	if txn, ok := args.Get(0).(*model.Transaction); ok {
		return txn, args.Error(1)
	}
	return nil, args.Error(1)
}

var jan15 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func candidate() model.Transaction {
	return model.Transaction{
		UserID:      "user-1",
		Date:        jan15,
		Amount:      50000,
		AccountID:   "A1",
		Description: "Different description",
		Source:      model.SourceManual,
	}
}

func TestFindDuplicate_NearMatchScenario(t *testing.T) {
	ctx := context.Background()
	existing := &model.Transaction{ID: "old", Date: jan15, Amount: 50000, AccountID: "A1", Description: "Lunch"}

	finder := &mockFinder{}
	finder.On("FindByDateAmountAccount", ctx, "user-1", jan15, int64(50000), "A1").Return(existing, nil)

	match, err := NewDetector(finder).FindDuplicate(ctx, candidate())
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, model.DuplicateNear, match.Kind)
	assert.Equal(t, "old", match.Existing.ID)
	assert.Equal(t, "Different description", match.Candidate.Description)

	finder.AssertNotCalled(t, "FindByRawText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFindDuplicate_ExactTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	c := candidate()
	c.RawText = "POS 77 LUNCH"
	c.Source = model.SourceImport

	exact := &model.Transaction{ID: "exact"}
	finder := &mockFinder{}
	finder.On("FindByRawText", ctx, "user-1", "POS 77 LUNCH", model.SourceImport).Return(exact, nil)
	finder.On("FindByDateAmountAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&model.Transaction{ID: "near"}, nil)

	match, err := NewDetector(finder).FindDuplicate(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, model.DuplicateExact, match.Kind)
	assert.Equal(t, "exact", match.Existing.ID)
	finder.AssertNotCalled(t, "FindByDateAmountAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFindDuplicate_FallsBackToNear(t *testing.T) {
	ctx := context.Background()
	c := candidate()
	c.RawText = "POS 77 LUNCH"

	finder := &mockFinder{}
	finder.On("FindByRawText", ctx, "user-1", "POS 77 LUNCH", model.SourceManual).Return(nil, nil)
	finder.On("FindByDateAmountAccount", ctx, "user-1", jan15, int64(50000), "A1").Return(&model.Transaction{ID: "near"}, nil)

	match, err := NewDetector(finder).FindDuplicate(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, model.DuplicateNear, match.Kind)
	finder.AssertExpectations(t)
}

func TestFindDuplicate_NoMatch(t *testing.T) {
	ctx := context.Background()
	finder := &mockFinder{}
	finder.On("FindByDateAmountAccount", ctx, "user-1", jan15, int64(50000), "A1").Return(nil, nil)

	match, err := NewDetector(finder).FindDuplicate(ctx, candidate())
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFindDuplicate_LookupError(t *testing.T) {
	ctx := context.Background()
	finder := &mockFinder{}
	finder.On("FindByDateAmountAccount", ctx, "user-1", jan15, int64(50000), "A1").Return(nil, errors.New("boom"))

	_, err := NewDetector(finder).FindDuplicate(ctx, candidate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "near duplicate lookup failed")
}
