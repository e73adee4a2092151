package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/souqdz/marketplace-backend/internal/models"
)

// ErrReferralNotFound возвращается, когда реферальная связь не найдена.
var ErrReferralNotFound = errors.New("referral not found")

// ReferralRepository отвечает за работу с таблицей referrals.
type ReferralRepository struct {
	db *sqlx.DB
}

// NewReferralRepository создаёт экземпляр репозитория.
func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// InsertIfAbsent создаёт связь, если тройка (referrer, referred, level) ещё не существует.
// Возвращает false без ошибки, если связь уже была.
func (r *ReferralRepository) InsertIfAbsent(ctx context.Context, ref *models.Referral) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO referrals (id, referrer_id, referred_user_id, level, total_earnings, transaction_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (referrer_id, referred_user_id, level) DO NOTHING
	`, ref.ID, ref.ReferrerID, ref.ReferredUserID, ref.Level, ref.TotalEarnings, ref.TransactionCount, ref.Status)
	if err != nil {
		return false, fmt.Errorf("referral repository: insert if absent %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("referral repository: insert rows affected %w", err)
	}

	return affected == 1, nil
}

// Settle атомарно увеличивает накопления связи на amount и счётчик сделок на 1.
// Отсутствие связи возвращается как ErrReferralNotFound.
func (r *ReferralRepository) Settle(ctx context.Context, referrerID, referredID uuid.UUID, level int, amount float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE referrals
		SET total_earnings = total_earnings + $4, transaction_count = transaction_count + 1
		WHERE referrer_id = $1 AND referred_user_id = $2 AND level = $3
	`, referrerID, referredID, level, amount)
	if err != nil {
		return fmt.Errorf("referral repository: settle %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("referral repository: settle rows affected %w", err)
	}
	if affected == 0 {
		return ErrReferralNotFound
	}

	return nil
}

// ListByReferrer возвращает все связи пользователя с именами приглашённых.
func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralDetail, error) {
	var details []models.ReferralDetail
	query := `
		SELECT r.id, r.referred_user_id, u.name AS referred_name, r.level,
			r.total_earnings, r.transaction_count, r.status, r.created_at
		FROM referrals r
		JOIN users u ON u.id = r.referred_user_id
		WHERE r.referrer_id = $1
		ORDER BY r.created_at DESC
	`
	if err := r.db.SelectContext(ctx, &details, query, referrerID); err != nil {
		return nil, fmt.Errorf("referral repository: list by referrer %w", err)
	}

	return details, nil
}
