package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Статусы escrow-транзакции
const (
	TransactionStatusInEscrow  = "in_escrow"
	TransactionStatusCompleted = "completed"
	TransactionStatusCancelled = "cancelled"
)

// Способы оплаты
const (
	PaymentMethodCIB      = "CIB"
	PaymentMethodEdahabia = "EDAHABIA"
)

// ValidPaymentMethods список поддерживаемых способов оплаты.
var ValidPaymentMethods = map[string]struct{}{
	PaymentMethodCIB:      {},
	PaymentMethodEdahabia: {},
}

// DefaultCurrency валюта платформы.
const DefaultCurrency = "DZD"

var (
	// ErrNonPositiveAmount возвращается при попытке создать транзакцию с нулевой или отрицательной суммой.
	ErrNonPositiveAmount = errors.New("сумма транзакции должна быть положительной")
	// ErrSplitExceedsAmount возвращается, когда комиссия и реферальные выплаты не оставляют продавцу ничего.
	ErrSplitExceedsAmount = errors.New("комиссия и реферальные выплаты превышают сумму транзакции")
)

// Transaction описывает escrow-транзакцию покупки товара.
// Суммы фиксируются в момент создания и далее не пересчитываются.
type Transaction struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ProductID        uuid.UUID  `db:"product_id" json:"product_id"`
	BuyerID          uuid.UUID  `db:"buyer_id" json:"buyer_id"`
	SellerID         uuid.UUID  `db:"seller_id" json:"seller_id"`
	Amount           float64    `db:"amount" json:"amount"`
	Currency         string     `db:"currency" json:"currency"`
	PaymentMethod    string     `db:"payment_method" json:"payment_method"`
	Status           string     `db:"status" json:"status"`
	EscrowReleased   bool       `db:"escrow_released" json:"escrow_released"`
	CommissionRate   float64    `db:"commission_rate" json:"commission_rate"`
	CommissionAmount float64    `db:"commission_amount" json:"commission_amount"`
	ReferralL1ID     *uuid.UUID `db:"referral_l1_id" json:"referral_l1_id,omitempty"`
	ReferralL2ID     *uuid.UUID `db:"referral_l2_id" json:"referral_l2_id,omitempty"`
	ReferralL1Amount float64    `db:"referral_l1_amount" json:"referral_l1_amount"`
	ReferralL2Amount float64    `db:"referral_l2_amount" json:"referral_l2_amount"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// NewEscrowTransaction собирает транзакцию в статусе in_escrow с замороженными суммами.
// Инварианты: amount > 0; комиссия и реферальные выплаты строго меньше суммы,
// продавец всегда получает остаток.
func NewEscrowTransaction(
	productID, buyerID, sellerID uuid.UUID,
	amount float64,
	paymentMethod string,
	commissionRate float64,
	chain *ReferralChain,
	l1Rate, l2Rate float64,
) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}

	tx := &Transaction{
		ID:               uuid.New(),
		ProductID:        productID,
		BuyerID:          buyerID,
		SellerID:         sellerID,
		Amount:           amount,
		Currency:         DefaultCurrency,
		PaymentMethod:    paymentMethod,
		Status:           TransactionStatusInEscrow,
		EscrowReleased:   false,
		CommissionRate:   commissionRate,
		CommissionAmount: amount * commissionRate,
	}

	if chain != nil {
		if chain.Level1ID != nil {
			id := *chain.Level1ID
			tx.ReferralL1ID = &id
			tx.ReferralL1Amount = amount * l1Rate
		}
		if chain.Level2ID != nil {
			id := *chain.Level2ID
			tx.ReferralL2ID = &id
			tx.ReferralL2Amount = amount * l2Rate
		}
	}

	if tx.CommissionAmount+tx.ReferralL1Amount+tx.ReferralL2Amount >= amount {
		return nil, ErrSplitExceedsAmount
	}

	return tx, nil
}

// SellerPayout возвращает сумму, причитающуюся продавцу после всех вычетов.
func (t *Transaction) SellerPayout() float64 {
	return t.Amount - t.CommissionAmount - t.ReferralL1Amount - t.ReferralL2Amount
}

// TransactionDetail элемент истории транзакций пользователя,
// обогащённый названием товара и именем контрагента.
type TransactionDetail struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Type          string     `db:"type" json:"type"` // purchase | sale
	ProductTitle  string     `db:"product_title" json:"product_title"`
	Amount        float64    `db:"amount" json:"amount"`
	Currency      string     `db:"currency" json:"currency"`
	Status        string     `db:"status" json:"status"`
	PaymentMethod string     `db:"payment_method" json:"payment_method"`
	Counterparty  string     `db:"counterparty" json:"counterparty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
