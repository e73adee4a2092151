package models

import (
	"time"

	"github.com/google/uuid"
)

// Уровни реферальной цепочки
const (
	ReferralLevel1 = 1
	ReferralLevel2 = 2
)

// Статусы реферальной связи
const (
	ReferralStatusActive   = "active"
	ReferralStatusInactive = "inactive"
)

// Referral описывает связь "реферер — приглашённый пользователь" одного уровня.
// На тройку (referrer_id, referred_user_id, level) существует не более одной записи.
type Referral struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ReferrerID       uuid.UUID `db:"referrer_id" json:"referrer_id"`
	ReferredUserID   uuid.UUID `db:"referred_user_id" json:"referred_user_id"`
	Level            int       `db:"level" json:"level"`
	TotalEarnings    float64   `db:"total_earnings" json:"total_earnings"`
	TransactionCount int       `db:"transaction_count" json:"transaction_count"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// NewReferral создаёт связь с нулевыми накоплениями.
func NewReferral(referrerID, referredUserID uuid.UUID, level int) *Referral {
	return &Referral{
		ID:             uuid.New(),
		ReferrerID:     referrerID,
		ReferredUserID: referredUserID,
		Level:          level,
		Status:         ReferralStatusActive,
	}
}

// ReferralChain результат разрешения цепочки рефереров покупателя.
// Отсутствующий уровень представлен nil.
type ReferralChain struct {
	Level1ID *uuid.UUID
	Level2ID *uuid.UUID
}

// ReferralDetail запись связи, обогащённая именем приглашённого пользователя.
type ReferralDetail struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ReferredUserID   uuid.UUID `db:"referred_user_id" json:"referred_user_id"`
	ReferredName     string    `db:"referred_name" json:"referred_name"`
	Level            int       `db:"level" json:"level"`
	TotalEarnings    float64   `db:"total_earnings" json:"total_earnings"`
	TransactionCount int       `db:"transaction_count" json:"transaction_count"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ReferralStats агрегированная статистика рефералов пользователя.
type ReferralStats struct {
	ReferralCode   string           `json:"referral_code"`
	TotalEarnings  float64          `json:"total_earnings"`
	Level1Count    int              `json:"level1_count"`
	Level2Count    int              `json:"level2_count"`
	Level1Earnings float64          `json:"level1_earnings"`
	Level2Earnings float64          `json:"level2_earnings"`
	Referrals      []ReferralDetail `json:"referrals"`
}
