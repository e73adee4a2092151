package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/souqdz/marketplace-backend/internal/logger"
	"github.com/souqdz/marketplace-backend/internal/models"
	"github.com/souqdz/marketplace-backend/internal/pkg/apperror"
	"github.com/souqdz/marketplace-backend/internal/repository"
)

// Ставки платформы. Комиссия 2% (1% покупатель + 1% продавец),
// реферальные выплаты по 0.25% на уровень.
const (
	PlatformCommissionRate = 0.02
	ReferralLevel1Rate     = 0.0025
	ReferralLevel2Rate     = 0.0025
)

// EscrowProductReader читает объявления для проверки предусловий покупки.
type EscrowProductReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// EscrowTransactionRepository описывает зависимости EscrowService от слоя хранилища.
type EscrowTransactionRepository interface {
	CreateWithHold(ctx context.Context, t *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Release(ctx context.Context, id uuid.UUID) (*models.Transaction, []int, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.TransactionDetail, error)
}

// ChainResolver разрешает цепочку рефереров покупателя.
type ChainResolver interface {
	ResolveChain(ctx context.Context, buyerID uuid.UUID) (*models.ReferralChain, error)
}

// EscrowService владеет жизненным циклом escrow-транзакции:
// создание с заморозкой сумм, выпуск по подтверждению доставки, отмена.
type EscrowService struct {
	products     EscrowProductReader
	transactions EscrowTransactionRepository
	referrals    ChainResolver
	gatewayURL   string
}

// NewEscrowService создаёт сервис эскроу-платежей.
func NewEscrowService(
	products EscrowProductReader,
	transactions EscrowTransactionRepository,
	referrals ChainResolver,
	gatewayURL string,
) *EscrowService {
	return &EscrowService{
		products:     products,
		transactions: transactions,
		referrals:    referrals,
		gatewayURL:   gatewayURL,
	}
}

// EscrowResult итог создания escrow-платежа.
type EscrowResult struct {
	Transaction *models.Transaction
	PaymentURL  string
}

// CreateEscrow создаёт транзакцию в статусе in_escrow по цене товара на момент
// покупки. Предусловия проверяются по порядку: товар существует, доступен,
// покупатель не продавец. Суммы комиссии и реферальных выплат вычисляются
// один раз и замораживаются: последующие изменения цены товара на открытую
// транзакцию не влияют. Товар переводится available -> pending атомарно,
// параллельная покупка того же товара получает InvalidState.
func (s *EscrowService) CreateEscrow(ctx context.Context, buyerID, productID uuid.UUID, paymentMethod string) (*EscrowResult, error) {
	if _, ok := models.ValidPaymentMethods[paymentMethod]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("неподдерживаемый способ оплаты: %s", paymentMethod))
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperror.ErrProductNotFound
		}
		return nil, err
	}

	if product.Status != models.ProductStatusAvailable {
		return nil, apperror.ErrProductUnavailable
	}

	if product.SellerID == buyerID {
		return nil, apperror.ErrOwnProduct
	}

	chain, err := s.referrals.ResolveChain(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	t, err := models.NewEscrowTransaction(
		product.ID, buyerID, product.SellerID,
		product.Price, paymentMethod,
		PlatformCommissionRate, chain,
		ReferralLevel1Rate, ReferralLevel2Rate,
	)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	if err := s.transactions.CreateWithHold(ctx, t); err != nil {
		if errors.Is(err, repository.ErrProductNotAvailable) {
			return nil, apperror.ErrProductUnavailable
		}
		return nil, err
	}

	logger.WithComponent("escrow").WithFields(logrus.Fields{
		"transaction_id": t.ID,
		"product_id":     t.ProductID,
		"buyer_id":       t.BuyerID,
		"amount":         t.Amount,
	}).Info("создана escrow-транзакция")

	return &EscrowResult{
		Transaction: t,
		PaymentURL:  s.paymentURL(t),
	}, nil
}

// ConfirmDelivery выпускает эскроу по подтверждению доставки покупателем.
// Предусловия по порядку: транзакция существует, вызывающий — покупатель,
// статус in_escrow, эскроу ещё не выпущено. Все движения выпуска (транзакция,
// товар, счётчики продавца и покупателя, реферальные начисления) выполняются
// в одной транзакции хранилища; повторное подтверждение не производит
// ни одной записи.
func (s *EscrowService) ConfirmDelivery(ctx context.Context, callerID, transactionID uuid.UUID) (*models.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, err
	}

	if t.BuyerID != callerID {
		return nil, apperror.ErrNotBuyer
	}

	if t.Status != models.TransactionStatusInEscrow {
		return nil, apperror.ErrNotInEscrow
	}

	// Избыточно при нормальной работе, но released проверяется отдельно
	// как страховка от двойного выпуска.
	if t.EscrowReleased {
		return nil, apperror.ErrAlreadyReleased
	}

	released, missing, err := s.transactions.Release(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotHeld) {
			// Параллельное подтверждение успело раньше.
			return nil, apperror.ErrAlreadyReleased
		}
		return nil, err
	}

	for _, level := range missing {
		referrerID := released.ReferralL1ID
		amount := released.ReferralL1Amount
		if level == models.ReferralLevel2 {
			referrerID = released.ReferralL2ID
			amount = released.ReferralL2Amount
		}
		logger.WithComponent("escrow").WithFields(logrus.Fields{
			"transaction_id": released.ID,
			"buyer_id":       released.BuyerID,
			"referrer_id":    referrerID,
			"level":          level,
			"amount":         amount,
		}).Error("реферальная связь не найдена при выпуске эскроу, начисление потеряно")
	}

	logger.WithComponent("escrow").WithFields(logrus.Fields{
		"transaction_id": released.ID,
		"seller_payout":  released.SellerPayout(),
	}).Info("эскроу выпущено")

	return released, nil
}

// Cancel переводит транзакцию in_escrow -> cancelled и возвращает товар в продажу.
// Доступно покупателю и продавцу; выпущенную транзакцию отменить нельзя.
func (s *EscrowService) Cancel(ctx context.Context, callerID, transactionID uuid.UUID) (*models.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, err
	}

	if t.BuyerID != callerID && t.SellerID != callerID {
		return nil, apperror.ErrNotParticipant
	}

	if t.Status != models.TransactionStatusInEscrow || t.EscrowReleased {
		return nil, apperror.ErrNotInEscrow
	}

	cancelled, err := s.transactions.Cancel(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotHeld) {
			return nil, apperror.ErrNotInEscrow
		}
		return nil, err
	}

	logger.WithComponent("escrow").WithField("transaction_id", cancelled.ID).Info("escrow-транзакция отменена")

	return cancelled, nil
}

// ListTransactions возвращает историю транзакций пользователя (покупки и продажи).
func (s *EscrowService) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.TransactionDetail, error) {
	return s.transactions.ListByParticipant(ctx, userID)
}

// paymentURL собирает mock-ссылку на платёжный шлюз.
// Реальная интеграция CIB/EDAHABIA потребует мерчант-кредов и callback URL.
func (s *EscrowService) paymentURL(t *models.Transaction) string {
	return fmt.Sprintf("%s/pay?transaction_id=%s&amount=%s&method=%s",
		s.gatewayURL, t.ID,
		strconv.FormatFloat(t.Amount, 'f', -1, 64),
		t.PaymentMethod,
	)
}
