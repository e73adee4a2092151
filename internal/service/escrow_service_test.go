package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/souqdz/marketplace-backend/internal/models"
	"github.com/souqdz/marketplace-backend/internal/pkg/apperror"
	"github.com/souqdz/marketplace-backend/internal/repository"
)

type mockProductReader struct {
	mock.Mock
}

func (m *mockProductReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

type mockTransactionRepo struct {
	mock.Mock
}

func (m *mockTransactionRepo) CreateWithHold(ctx context.Context, t *models.Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) Release(ctx context.Context, id uuid.UUID) (*models.Transaction, []int, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	var missing []int
	if args.Get(1) != nil {
		missing = args.Get(1).([]int)
	}
	return args.Get(0).(*models.Transaction), missing, args.Error(2)
}

func (m *mockTransactionRepo) Cancel(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.TransactionDetail, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.TransactionDetail), args.Error(1)
}

type mockChainResolver struct {
	mock.Mock
}

func (m *mockChainResolver) ResolveChain(ctx context.Context, buyerID uuid.UUID) (*models.ReferralChain, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferralChain), args.Error(1)
}

func newEscrowFixture() (*mockProductReader, *mockTransactionRepo, *mockChainResolver, *EscrowService) {
	products := new(mockProductReader)
	transactions := new(mockTransactionRepo)
	referrals := new(mockChainResolver)
	svc := NewEscrowService(products, transactions, referrals, "https://payment-gateway.dz")
	return products, transactions, referrals, svc
}

func availableProduct(sellerID uuid.UUID, price float64) *models.Product {
	return &models.Product{
		ID:       uuid.New(),
		SellerID: sellerID,
		Title:    "Игровая консоль",
		Price:    price,
		Currency: models.DefaultCurrency,
		Status:   models.ProductStatusAvailable,
	}
}

func TestEscrowService_CreateEscrow_FreezesSplitAmounts(t *testing.T) {
	products, transactions, referrals, svc := newEscrowFixture()
	ctx := context.Background()

	sellerID := uuid.New()
	buyerID := uuid.New()
	l1 := uuid.New()
	l2 := uuid.New()
	product := availableProduct(sellerID, 100000)

	products.On("GetByID", ctx, product.ID).Return(product, nil)
	referrals.On("ResolveChain", ctx, buyerID).Return(&models.ReferralChain{Level1ID: &l1, Level2ID: &l2}, nil)
	transactions.On("CreateWithHold", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)

	res, err := svc.CreateEscrow(ctx, buyerID, product.ID, models.PaymentMethodCIB)
	assert.NoError(t, err)

	tx := res.Transaction
	assert.Equal(t, models.TransactionStatusInEscrow, tx.Status)
	assert.False(t, tx.EscrowReleased)
	assert.Equal(t, 100000.0, tx.Amount)
	assert.Equal(t, 2000.0, tx.CommissionAmount)
	assert.Equal(t, 250.0, tx.ReferralL1Amount)
	assert.Equal(t, 250.0, tx.ReferralL2Amount)
	assert.Equal(t, 97500.0, tx.SellerPayout())
	assert.Equal(t, l1, *tx.ReferralL1ID)
	assert.Equal(t, l2, *tx.ReferralL2ID)
	assert.Contains(t, res.PaymentURL, "https://payment-gateway.dz/pay?transaction_id=")
	assert.Contains(t, res.PaymentURL, "amount=100000")
	assert.Contains(t, res.PaymentURL, "method=CIB")
	transactions.AssertExpectations(t)
}

func TestEscrowService_CreateEscrow_NoReferrer(t *testing.T) {
	products, transactions, referrals, svc := newEscrowFixture()
	ctx := context.Background()

	buyerID := uuid.New()
	product := availableProduct(uuid.New(), 5000)

	products.On("GetByID", ctx, product.ID).Return(product, nil)
	referrals.On("ResolveChain", ctx, buyerID).Return(&models.ReferralChain{}, nil)
	transactions.On("CreateWithHold", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)

	res, err := svc.CreateEscrow(ctx, buyerID, product.ID, models.PaymentMethodEdahabia)
	assert.NoError(t, err)
	assert.Nil(t, res.Transaction.ReferralL1ID)
	assert.Nil(t, res.Transaction.ReferralL2ID)
	assert.Equal(t, 0.0, res.Transaction.ReferralL1Amount)
	assert.Equal(t, 0.0, res.Transaction.ReferralL2Amount)
	assert.Equal(t, 4900.0, res.Transaction.SellerPayout())
}

func TestEscrowService_CreateEscrow_UnsupportedPaymentMethod(t *testing.T) {
	products, transactions, _, svc := newEscrowFixture()

	_, err := svc.CreateEscrow(context.Background(), uuid.New(), uuid.New(), "PAYPAL")
	assert.Error(t, err)

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeValidation, appErr.Code)
	products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	transactions.AssertNotCalled(t, "CreateWithHold", mock.Anything, mock.Anything)
}

func TestEscrowService_CreateEscrow_ProductNotFound(t *testing.T) {
	products, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()
	productID := uuid.New()

	products.On("GetByID", ctx, productID).Return(nil, repository.ErrProductNotFound)

	_, err := svc.CreateEscrow(ctx, uuid.New(), productID, models.PaymentMethodCIB)
	assert.ErrorIs(t, err, apperror.ErrProductNotFound)
	transactions.AssertNotCalled(t, "CreateWithHold", mock.Anything, mock.Anything)
}

func TestEscrowService_CreateEscrow_ProductNotAvailable(t *testing.T) {
	products, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	product := availableProduct(uuid.New(), 5000)
	product.Status = models.ProductStatusPending
	products.On("GetByID", ctx, product.ID).Return(product, nil)

	_, err := svc.CreateEscrow(ctx, uuid.New(), product.ID, models.PaymentMethodCIB)
	assert.ErrorIs(t, err, apperror.ErrProductUnavailable)
	transactions.AssertNotCalled(t, "CreateWithHold", mock.Anything, mock.Anything)
}

func TestEscrowService_CreateEscrow_OwnProduct(t *testing.T) {
	products, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	sellerID := uuid.New()
	product := availableProduct(sellerID, 5000)
	products.On("GetByID", ctx, product.ID).Return(product, nil)

	_, err := svc.CreateEscrow(ctx, sellerID, product.ID, models.PaymentMethodCIB)
	assert.ErrorIs(t, err, apperror.ErrOwnProduct)
	transactions.AssertNotCalled(t, "CreateWithHold", mock.Anything, mock.Anything)
}

func TestEscrowService_CreateEscrow_LostRaceOnHold(t *testing.T) {
	products, transactions, referrals, svc := newEscrowFixture()
	ctx := context.Background()

	buyerID := uuid.New()
	product := availableProduct(uuid.New(), 5000)
	products.On("GetByID", ctx, product.ID).Return(product, nil)
	referrals.On("ResolveChain", ctx, buyerID).Return(&models.ReferralChain{}, nil)
	transactions.On("CreateWithHold", ctx, mock.AnythingOfType("*models.Transaction")).
		Return(repository.ErrProductNotAvailable)

	_, err := svc.CreateEscrow(ctx, buyerID, product.ID, models.PaymentMethodCIB)
	assert.ErrorIs(t, err, apperror.ErrProductUnavailable)
}

func inEscrowTransaction(buyerID, sellerID uuid.UUID) *models.Transaction {
	l1 := uuid.New()
	tx, _ := models.NewEscrowTransaction(
		uuid.New(), buyerID, sellerID,
		100000, models.PaymentMethodCIB,
		PlatformCommissionRate,
		&models.ReferralChain{Level1ID: &l1},
		ReferralLevel1Rate, ReferralLevel2Rate,
	)
	return tx
}

func TestEscrowService_ConfirmDelivery_Success(t *testing.T) {
	_, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	buyerID := uuid.New()
	tx := inEscrowTransaction(buyerID, uuid.New())

	released := *tx
	released.Status = models.TransactionStatusCompleted
	released.EscrowReleased = true

	transactions.On("GetByID", ctx, tx.ID).Return(tx, nil)
	transactions.On("Release", ctx, tx.ID).Return(&released, nil, nil)

	got, err := svc.ConfirmDelivery(ctx, buyerID, tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	assert.True(t, got.EscrowReleased)
	assert.Equal(t, 97750.0, got.SellerPayout())
	transactions.AssertExpectations(t)
}

func TestEscrowService_ConfirmDelivery_NotBuyer(t *testing.T) {
	_, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	tx := inEscrowTransaction(uuid.New(), uuid.New())
	transactions.On("GetByID", ctx, tx.ID).Return(tx, nil)

	// Продавец не может подтвердить доставку за покупателя.
	_, err := svc.ConfirmDelivery(ctx, tx.SellerID, tx.ID)
	assert.ErrorIs(t, err, apperror.ErrNotBuyer)
	transactions.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestEscrowService_ConfirmDelivery_AlreadyCompleted(t *testing.T) {
	_, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	buyerID := uuid.New()
	tx := inEscrowTransaction(buyerID, uuid.New())
	tx.Status = models.TransactionStatusCompleted
	tx.EscrowReleased = true
	transactions.On("GetByID", ctx, tx.ID).Return(tx, nil)

	_, err := svc.ConfirmDelivery(ctx, buyerID, tx.ID)
	assert.ErrorIs(t, err, apperror.ErrNotInEscrow)
	transactions.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestEscrowService_ConfirmDelivery_ConcurrentConfirmLosesRace(t *testing.T) {
	_, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	buyerID := uuid.New()
	tx := inEscrowTransaction(buyerID, uuid.New())

	transactions.On("GetByID", ctx, tx.ID).Return(tx, nil)
	transactions.On("Release", ctx, tx.ID).Return(nil, nil, repository.ErrEscrowNotHeld)

	_, err := svc.ConfirmDelivery(ctx, buyerID, tx.ID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyReleased)
}

func TestEscrowService_ConfirmDelivery_MissingEdgeDoesNotFail(t *testing.T) {
	_, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	buyerID := uuid.New()
	tx := inEscrowTransaction(buyerID, uuid.New())

	released := *tx
	released.Status = models.TransactionStatusCompleted
	released.EscrowReleased = true

	transactions.On("GetByID", ctx, tx.ID).Return(tx, nil)
	transactions.On("Release", ctx, tx.ID).Return(&released, []int{models.ReferralLevel1}, nil)

	got, err := svc.ConfirmDelivery(ctx, buyerID, tx.ID)
	assert.NoError(t, err)
	assert.True(t, got.EscrowReleased)
}

func TestEscrowService_Cancel_Success(t *testing.T) {
	_, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	buyerID := uuid.New()
	tx := inEscrowTransaction(buyerID, uuid.New())

	cancelled := *tx
	cancelled.Status = models.TransactionStatusCancelled

	transactions.On("GetByID", ctx, tx.ID).Return(tx, nil)
	transactions.On("Cancel", ctx, tx.ID).Return(&cancelled, nil)

	got, err := svc.Cancel(ctx, buyerID, tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCancelled, got.Status)
}

func TestEscrowService_Cancel_SellerAllowed(t *testing.T) {
	_, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	sellerID := uuid.New()
	tx := inEscrowTransaction(uuid.New(), sellerID)

	cancelled := *tx
	cancelled.Status = models.TransactionStatusCancelled

	transactions.On("GetByID", ctx, tx.ID).Return(tx, nil)
	transactions.On("Cancel", ctx, tx.ID).Return(&cancelled, nil)

	_, err := svc.Cancel(ctx, sellerID, tx.ID)
	assert.NoError(t, err)
}

func TestEscrowService_Cancel_NotParticipant(t *testing.T) {
	_, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	tx := inEscrowTransaction(uuid.New(), uuid.New())
	transactions.On("GetByID", ctx, tx.ID).Return(tx, nil)

	_, err := svc.Cancel(ctx, uuid.New(), tx.ID)
	assert.ErrorIs(t, err, apperror.ErrNotParticipant)
	transactions.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestEscrowService_Cancel_Released(t *testing.T) {
	_, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()

	buyerID := uuid.New()
	tx := inEscrowTransaction(buyerID, uuid.New())
	tx.Status = models.TransactionStatusCompleted
	tx.EscrowReleased = true
	transactions.On("GetByID", ctx, tx.ID).Return(tx, nil)

	_, err := svc.Cancel(ctx, buyerID, tx.ID)
	assert.ErrorIs(t, err, apperror.ErrNotInEscrow)
}

func TestEscrowService_ListTransactions(t *testing.T) {
	_, transactions, _, svc := newEscrowFixture()
	ctx := context.Background()
	userID := uuid.New()

	expected := []models.TransactionDetail{{Type: "purchase", ProductTitle: "Ноутбук", Amount: 45000}}
	transactions.On("ListByParticipant", ctx, userID).Return(expected, nil)

	got, err := svc.ListTransactions(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestEscrowService_ResolveChainErrorAbortsCreate(t *testing.T) {
	products, transactions, referrals, svc := newEscrowFixture()
	ctx := context.Background()

	buyerID := uuid.New()
	product := availableProduct(uuid.New(), 5000)
	products.On("GetByID", ctx, product.ID).Return(product, nil)
	referrals.On("ResolveChain", ctx, buyerID).Return(nil, errors.New("соединение потеряно"))

	_, err := svc.CreateEscrow(ctx, buyerID, product.ID, models.PaymentMethodCIB)
	assert.Error(t, err)
	transactions.AssertNotCalled(t, "CreateWithHold", mock.Anything, mock.Anything)
}
