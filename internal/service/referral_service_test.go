package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/souqdz/marketplace-backend/internal/models"
	"github.com/souqdz/marketplace-backend/internal/pkg/apperror"
	"github.com/souqdz/marketplace-backend/internal/repository"
)

type mockReferralRepo struct {
	mock.Mock
}

func (m *mockReferralRepo) InsertIfAbsent(ctx context.Context, ref *models.Referral) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

func (m *mockReferralRepo) Settle(ctx context.Context, referrerID, referredID uuid.UUID, level int, amount float64) error {
	args := m.Called(ctx, referrerID, referredID, level, amount)
	return args.Error(0)
}

func (m *mockReferralRepo) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralDetail, error) {
	args := m.Called(ctx, referrerID)
	return args.Get(0).([]models.ReferralDetail), args.Error(1)
}

type mockUserReader struct {
	mock.Mock
}

func (m *mockUserReader) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func TestReferralService_ResolveChain_NoReferrer(t *testing.T) {
	repo := new(mockReferralRepo)
	users := new(mockUserReader)
	svc := NewReferralService(repo, users)
	ctx := context.Background()

	buyerID := uuid.New()
	users.On("GetByID", ctx, buyerID).Return(&models.User{ID: buyerID}, nil)

	chain, err := svc.ResolveChain(ctx, buyerID)
	assert.NoError(t, err)
	assert.Nil(t, chain.Level1ID)
	assert.Nil(t, chain.Level2ID)
}

func TestReferralService_ResolveChain_OneLevel(t *testing.T) {
	repo := new(mockReferralRepo)
	users := new(mockUserReader)
	svc := NewReferralService(repo, users)
	ctx := context.Background()

	buyerID := uuid.New()
	referrerID := uuid.New()

	users.On("GetByID", ctx, buyerID).Return(&models.User{ID: buyerID, ReferredBy: &referrerID}, nil)
	users.On("GetByID", ctx, referrerID).Return(&models.User{ID: referrerID}, nil)

	chain, err := svc.ResolveChain(ctx, buyerID)
	assert.NoError(t, err)
	assert.Equal(t, referrerID, *chain.Level1ID)
	assert.Nil(t, chain.Level2ID)
}

func TestReferralService_ResolveChain_TwoLevels(t *testing.T) {
	repo := new(mockReferralRepo)
	users := new(mockUserReader)
	svc := NewReferralService(repo, users)
	ctx := context.Background()

	buyerID := uuid.New()
	level1ID := uuid.New()
	level2ID := uuid.New()

	users.On("GetByID", ctx, buyerID).Return(&models.User{ID: buyerID, ReferredBy: &level1ID}, nil)
	users.On("GetByID", ctx, level1ID).Return(&models.User{ID: level1ID, ReferredBy: &level2ID}, nil)

	chain, err := svc.ResolveChain(ctx, buyerID)
	assert.NoError(t, err)
	assert.Equal(t, level1ID, *chain.Level1ID)
	assert.Equal(t, level2ID, *chain.Level2ID)
}

// Глубина цепочки ограничена двумя уровнями: прапрареферер не участвует.
func TestReferralService_ResolveChain_DepthCapped(t *testing.T) {
	repo := new(mockReferralRepo)
	users := new(mockUserReader)
	svc := NewReferralService(repo, users)
	ctx := context.Background()

	buyerID := uuid.New()
	level1ID := uuid.New()
	level2ID := uuid.New()
	level3ID := uuid.New()

	users.On("GetByID", ctx, buyerID).Return(&models.User{ID: buyerID, ReferredBy: &level1ID}, nil)
	users.On("GetByID", ctx, level1ID).Return(&models.User{ID: level1ID, ReferredBy: &level2ID}, nil)

	chain, err := svc.ResolveChain(ctx, buyerID)
	assert.NoError(t, err)
	assert.Equal(t, level2ID, *chain.Level2ID)
	// До третьего уровня разрешение не доходит.
	users.AssertNotCalled(t, "GetByID", ctx, level3ID)
}

func TestReferralService_ResolveChain_SelfReference(t *testing.T) {
	repo := new(mockReferralRepo)
	users := new(mockUserReader)
	svc := NewReferralService(repo, users)
	ctx := context.Background()

	buyerID := uuid.New()
	users.On("GetByID", ctx, buyerID).Return(&models.User{ID: buyerID, ReferredBy: &buyerID}, nil)

	chain, err := svc.ResolveChain(ctx, buyerID)
	assert.NoError(t, err)
	assert.Nil(t, chain.Level1ID)
	assert.Nil(t, chain.Level2ID)
}

func TestReferralService_ResolveChain_DeletedReferrer(t *testing.T) {
	repo := new(mockReferralRepo)
	users := new(mockUserReader)
	svc := NewReferralService(repo, users)
	ctx := context.Background()

	buyerID := uuid.New()
	referrerID := uuid.New()

	users.On("GetByID", ctx, buyerID).Return(&models.User{ID: buyerID, ReferredBy: &referrerID}, nil)
	users.On("GetByID", ctx, referrerID).Return(nil, repository.ErrUserNotFound)

	chain, err := svc.ResolveChain(ctx, buyerID)
	assert.NoError(t, err)
	assert.Equal(t, referrerID, *chain.Level1ID)
	assert.Nil(t, chain.Level2ID)
}

func TestReferralService_ResolveChain_BuyerNotFound(t *testing.T) {
	repo := new(mockReferralRepo)
	users := new(mockUserReader)
	svc := NewReferralService(repo, users)
	ctx := context.Background()

	buyerID := uuid.New()
	users.On("GetByID", ctx, buyerID).Return(nil, repository.ErrUserNotFound)

	_, err := svc.ResolveChain(ctx, buyerID)
	assert.ErrorIs(t, err, apperror.ErrUserNotFound)
}

func TestReferralService_RecordEdge_InvalidLevel(t *testing.T) {
	repo := new(mockReferralRepo)
	svc := NewReferralService(repo, new(mockUserReader))

	err := svc.RecordEdge(context.Background(), uuid.New(), uuid.New(), 3)
	assert.Error(t, err)

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeValidation, appErr.Code)
	repo.AssertNotCalled(t, "InsertIfAbsent", mock.Anything, mock.Anything)
}

func TestReferralService_RecordEdge_Idempotent(t *testing.T) {
	repo := new(mockReferralRepo)
	svc := NewReferralService(repo, new(mockUserReader))
	ctx := context.Background()

	referrerID := uuid.New()
	referredID := uuid.New()

	// Повторная вставка той же тройки не создаёт запись и не ошибается.
	repo.On("InsertIfAbsent", ctx, mock.AnythingOfType("*models.Referral")).Return(false, nil)

	err := svc.RecordEdge(ctx, referrerID, referredID, models.ReferralLevel1)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestReferralService_Settle_MissingEdgeIsInconsistency(t *testing.T) {
	repo := new(mockReferralRepo)
	svc := NewReferralService(repo, new(mockUserReader))
	ctx := context.Background()

	referrerID := uuid.New()
	referredID := uuid.New()

	repo.On("Settle", ctx, referrerID, referredID, models.ReferralLevel1, 250.0).
		Return(repository.ErrReferralNotFound)

	err := svc.Settle(ctx, referrerID, referredID, models.ReferralLevel1, 250.0)
	assert.Error(t, err)
	assert.True(t, apperror.IsInconsistency(err))
}

func TestReferralService_Settle_Success(t *testing.T) {
	repo := new(mockReferralRepo)
	svc := NewReferralService(repo, new(mockUserReader))
	ctx := context.Background()

	referrerID := uuid.New()
	referredID := uuid.New()

	repo.On("Settle", ctx, referrerID, referredID, models.ReferralLevel2, 250.0).Return(nil)

	err := svc.Settle(ctx, referrerID, referredID, models.ReferralLevel2, 250.0)
	assert.NoError(t, err)
}

func TestReferralService_Aggregate(t *testing.T) {
	repo := new(mockReferralRepo)
	users := new(mockUserReader)
	svc := NewReferralService(repo, users)
	ctx := context.Background()

	referrerID := uuid.New()
	users.On("GetByID", ctx, referrerID).Return(&models.User{ID: referrerID, ReferralCode: "A1B2C3D4"}, nil)

	details := []models.ReferralDetail{
		{Level: models.ReferralLevel1, TotalEarnings: 250, TransactionCount: 1},
		{Level: models.ReferralLevel1, TotalEarnings: 500, TransactionCount: 2},
		{Level: models.ReferralLevel2, TotalEarnings: 250, TransactionCount: 1},
	}
	repo.On("ListByReferrer", ctx, referrerID).Return(details, nil)

	stats, err := svc.Aggregate(ctx, referrerID)
	assert.NoError(t, err)
	assert.Equal(t, "A1B2C3D4", stats.ReferralCode)
	assert.Equal(t, 2, stats.Level1Count)
	assert.Equal(t, 1, stats.Level2Count)
	assert.Equal(t, 750.0, stats.Level1Earnings)
	assert.Equal(t, 250.0, stats.Level2Earnings)
	assert.Equal(t, 1000.0, stats.TotalEarnings)
	assert.Len(t, stats.Referrals, 3)
}
