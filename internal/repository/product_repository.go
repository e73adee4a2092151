package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/souqdz/marketplace-backend/internal/models"
)

// ErrProductNotFound возвращается, когда объявление не найдено.
var ErrProductNotFound = errors.New("product not found")

const productColumns = `id, seller_id, title, description, price, currency, category, images,
	location, status, likes, views, comments_count, created_at, updated_at`

// ProductRepository отвечает за работу с таблицей products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository создаёт экземпляр репозитория.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create создаёт объявление.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (seller_id, title, description, price, currency, category, images, location, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		p.SellerID, p.Title, p.Description, p.Price, p.Currency,
		p.Category, p.Images, p.Location, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("product repository: create %w", err)
	}

	return nil
}

// GetByID возвращает объявление по идентификатору.
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("product repository: get by id %w", err)
	}

	return &product, nil
}

// List возвращает объявления по фильтру, новые первыми.
func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	idx := 1

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", idx))
		args = append(args, filter.Category)
		idx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.SellerID != nil {
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", idx))
		args = append(args, *filter.SellerID)
		idx++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", idx, idx))
		args = append(args, "%"+filter.Search+"%")
		idx++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(
		`SELECT `+productColumns+` FROM products WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), idx, idx+1,
	)
	args = append(args, limit, offset)

	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("product repository: list %w", err)
	}

	return products, nil
}

// Update обновляет редактируемые поля объявления. Запись условная:
// товар, ушедший в pending между чтением и записью, не перезаписывается,
// иначе редактирование продавца стёрло бы удержание открытой сделки.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET title = $2, description = $3, price = $4, category = $5,
			images = $6, location = $7, status = $8, updated_at = NOW()
		WHERE id = $1 AND status <> $9
		RETURNING updated_at
	`

	err := r.db.QueryRowxContext(
		ctx, query,
		p.ID, p.Title, p.Description, p.Price, p.Category,
		p.Images, p.Location, p.Status,
		models.ProductStatusPending,
	).Scan(&p.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product repository: update %w", err)
	}

	// Ноль строк: либо товара нет, либо он заморожен открытой сделкой.
	var status string
	if gerr := r.db.GetContext(ctx, &status, `SELECT status FROM products WHERE id = $1`, p.ID); gerr != nil {
		if errors.Is(gerr, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("product repository: update status check %w", gerr)
	}

	return ErrProductNotAvailable
}

// Delete удаляет объявление.
func (r *ProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("product repository: delete %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("product repository: delete rows affected %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// IncrementViews атомарно увеличивает счётчик просмотров.
func (r *ProductRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE products SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("product repository: increment views %w", err)
	}
	return nil
}

// IncrementLikes атомарно увеличивает счётчик лайков.
func (r *ProductRepository) IncrementLikes(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET likes = likes + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("product repository: increment likes %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("product repository: increment likes rows affected %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}

	return nil
}
