package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/souqdz/marketplace-backend/internal/models"
)

var (
	// ErrTransactionNotFound возвращается, когда escrow-транзакция не найдена.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrProductNotAvailable возвращается, когда объявление уже не в статусе available.
	ErrProductNotAvailable = errors.New("product not available")
	// ErrEscrowNotHeld возвращается, когда транзакция уже не в эскроу
	// (условный UPDATE по статусу не затронул ни одной строки).
	ErrEscrowNotHeld = errors.New("escrow not held")
)

const transactionColumns = `id, product_id, buyer_id, seller_id, amount, currency, payment_method,
	status, escrow_released, commission_rate, commission_amount,
	referral_l1_id, referral_l2_id, referral_l1_amount, referral_l2_amount,
	created_at, updated_at, completed_at`

// TransactionRepository отвечает за работу с таблицей transactions
// и за связанные с выпуском эскроу движения по products, users и referrals.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository создаёт экземпляр репозитория.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateWithHold вставляет транзакцию и переводит товар available -> pending
// в одной транзакции базы. Перевод статуса условный: параллельная покупка того же
// товара получит ErrProductNotAvailable, а вставка откатится.
func (r *TransactionRepository) CreateWithHold(ctx context.Context, t *models.Transaction) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transaction repository: create begin %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE products SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, t.ProductID, models.ProductStatusPending, models.ProductStatusAvailable)
	if err != nil {
		return fmt.Errorf("transaction repository: create hold product %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transaction repository: create hold rows affected %w", err)
	}
	if affected == 0 {
		return ErrProductNotAvailable
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO transactions (
			id, product_id, buyer_id, seller_id, amount, currency, payment_method,
			status, escrow_released, commission_rate, commission_amount,
			referral_l1_id, referral_l2_id, referral_l1_amount, referral_l2_amount
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`,
		t.ID, t.ProductID, t.BuyerID, t.SellerID, t.Amount, t.Currency, t.PaymentMethod,
		t.Status, t.EscrowReleased, t.CommissionRate, t.CommissionAmount,
		t.ReferralL1ID, t.ReferralL2ID, t.ReferralL1Amount, t.ReferralL2Amount,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("transaction repository: create insert %w", err)
	}

	return tx.Commit()
}

// GetByID возвращает транзакцию по идентификатору.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction repository: get by id %w", err)
	}

	return &t, nil
}

// Release выпускает эскроу: транзакция completed + released, товар sold,
// счётчики продавца и покупателя, начисления по реферальным связям — всё
// в одной транзакции базы. Гонка двух подтверждений закрывается условным
// UPDATE по текущему статусу: второй вызов получает ErrEscrowNotHeld.
// Возвращает уровни, для которых ожидаемая реферальная связь не нашлась.
func (r *TransactionRepository) Release(ctx context.Context, id uuid.UUID) (*models.Transaction, []int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("transaction repository: release begin %w", err)
	}
	defer tx.Rollback()

	var t models.Transaction
	err = tx.GetContext(ctx, &t, `
		UPDATE transactions
		SET status = $2, escrow_released = TRUE, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3 AND escrow_released = FALSE
		RETURNING `+transactionColumns+`
	`, id, models.TransactionStatusCompleted, models.TransactionStatusInEscrow)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrEscrowNotHeld
		}
		return nil, nil, fmt.Errorf("transaction repository: release update %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, t.ProductID, models.ProductStatusSold, models.ProductStatusPending); err != nil {
		return nil, nil, fmt.Errorf("transaction repository: release product %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET total_sales = total_sales + 1, updated_at = NOW() WHERE id = $1
	`, t.SellerID); err != nil {
		return nil, nil, fmt.Errorf("transaction repository: release seller stats %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET total_purchases = total_purchases + 1, updated_at = NOW() WHERE id = $1
	`, t.BuyerID); err != nil {
		return nil, nil, fmt.Errorf("transaction repository: release buyer stats %w", err)
	}

	// Начисления по связям. Отсутствие связи не откатывает выпуск:
	// покупатель не должен зависнуть из-за битой реферальной записи,
	// но потерю денег обязан увидеть оператор.
	var missing []int
	if t.ReferralL1ID != nil && t.ReferralL1Amount > 0 {
		settled, err := settleEdge(ctx, tx, *t.ReferralL1ID, t.BuyerID, models.ReferralLevel1, t.ReferralL1Amount)
		if err != nil {
			return nil, nil, err
		}
		if !settled {
			missing = append(missing, models.ReferralLevel1)
		}
	}
	if t.ReferralL2ID != nil && t.ReferralL2Amount > 0 {
		settled, err := settleEdge(ctx, tx, *t.ReferralL2ID, t.BuyerID, models.ReferralLevel2, t.ReferralL2Amount)
		if err != nil {
			return nil, nil, err
		}
		if !settled {
			missing = append(missing, models.ReferralLevel2)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("transaction repository: release commit %w", err)
	}

	return &t, missing, nil
}

// settleEdge атомарно увеличивает накопления одной реферальной связи.
func settleEdge(ctx context.Context, tx *sqlx.Tx, referrerID, referredID uuid.UUID, level int, amount float64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE referrals
		SET total_earnings = total_earnings + $4, transaction_count = transaction_count + 1
		WHERE referrer_id = $1 AND referred_user_id = $2 AND level = $3
	`, referrerID, referredID, level, amount)
	if err != nil {
		return false, fmt.Errorf("transaction repository: settle referral l%d %w", level, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transaction repository: settle referral rows affected %w", err)
	}

	return affected == 1, nil
}

// Cancel переводит транзакцию in_escrow -> cancelled и возвращает товар в продажу.
func (r *TransactionRepository) Cancel(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: cancel begin %w", err)
	}
	defer tx.Rollback()

	var t models.Transaction
	err = tx.GetContext(ctx, &t, `
		UPDATE transactions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND escrow_released = FALSE
		RETURNING `+transactionColumns+`
	`, id, models.TransactionStatusCancelled, models.TransactionStatusInEscrow)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotHeld
		}
		return nil, fmt.Errorf("transaction repository: cancel update %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, t.ProductID, models.ProductStatusAvailable, models.ProductStatusPending); err != nil {
		return nil, fmt.Errorf("transaction repository: cancel product %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("transaction repository: cancel commit %w", err)
	}

	return &t, nil
}

// ListByParticipant возвращает историю транзакций, где пользователь
// выступал покупателем или продавцом, новые первыми.
func (r *TransactionRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.TransactionDetail, error) {
	var details []models.TransactionDetail
	query := `
		SELECT t.id,
			CASE WHEN t.buyer_id = $1 THEN 'purchase' ELSE 'sale' END AS type,
			COALESCE(p.title, 'Удалённый товар') AS product_title,
			t.amount, t.currency, t.status, t.payment_method,
			CASE WHEN t.buyer_id = $1
				THEN COALESCE(s.name, 'Неизвестно')
				ELSE COALESCE(b.name, 'Неизвестно')
			END AS counterparty,
			t.created_at, t.completed_at
		FROM transactions t
		LEFT JOIN products p ON p.id = t.product_id
		LEFT JOIN users s ON s.id = t.seller_id
		LEFT JOIN users b ON b.id = t.buyer_id
		WHERE t.buyer_id = $1 OR t.seller_id = $1
		ORDER BY t.created_at DESC
		LIMIT 100
	`
	if err := r.db.SelectContext(ctx, &details, query, userID); err != nil {
		return nil, fmt.Errorf("transaction repository: list by participant %w", err)
	}

	return details, nil
}
