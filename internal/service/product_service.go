package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/souqdz/marketplace-backend/internal/models"
	"github.com/souqdz/marketplace-backend/internal/pkg/apperror"
	"github.com/souqdz/marketplace-backend/internal/repository"
	"github.com/souqdz/marketplace-backend/internal/validation"
)

// ProductRepository описывает зависимости ProductService от слоя хранилища.
type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementViews(ctx context.Context, id uuid.UUID) error
	IncrementLikes(ctx context.Context, id uuid.UUID) error
}

// ProductService управляет объявлениями каталога.
type ProductService struct {
	repo ProductRepository
}

// NewProductService создаёт сервис каталога.
func NewProductService(repo ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

// CreateProductInput данные нового объявления.
type CreateProductInput struct {
	Title       string
	Description string
	Price       float64
	Category    string
	Images      []string
	Location    string
}

// Create публикует объявление в статусе available.
func (s *ProductService) Create(ctx context.Context, sellerID uuid.UUID, in CreateProductInput) (*models.Product, error) {
	if err := validation.ValidateProductTitle(in.Title); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if in.Price <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена должна быть положительной")
	}
	if in.Category == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "категория обязательна")
	}

	product := &models.Product{
		SellerID:    sellerID,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Currency:    models.DefaultCurrency,
		Category:    in.Category,
		Images:      pq.StringArray(in.Images),
		Location:    in.Location,
		Status:      models.ProductStatusAvailable,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// Get возвращает объявление и атомарно увеличивает счётчик просмотров.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperror.ErrProductNotFound
		}
		return nil, err
	}

	// Просмотр не критичен: ошибка инкремента не ломает чтение.
	_ = s.repo.IncrementViews(ctx, id)
	product.Views++

	return product, nil
}

// List возвращает объявления по фильтру.
func (s *ProductService) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	if filter.Status != "" {
		if _, ok := models.ValidProductStatuses[filter.Status]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус товара")
		}
	}
	return s.repo.List(ctx, filter)
}

// UpdateProductInput изменяемые поля объявления; nil — поле не трогаем.
type UpdateProductInput struct {
	Title       *string
	Description *string
	Price       *float64
	Category    *string
	Images      []string
	Location    *string
	Status      *string
}

// Update редактирует объявление. Доступно только владельцу.
// Объявление в статусе pending заморожено открытой escrow-транзакцией:
// его статус и цена меняются только через жизненный цикл эскроу.
func (s *ProductService) Update(ctx context.Context, callerID, id uuid.UUID, in UpdateProductInput) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperror.ErrProductNotFound
		}
		return nil, err
	}

	if product.SellerID != callerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "редактировать объявление может только владелец")
	}

	if product.Status == models.ProductStatusPending {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "объявление участвует в открытой сделке")
	}

	if in.Title != nil {
		if err := validation.ValidateProductTitle(*in.Title); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
		product.Title = *in.Title
	}
	if in.Description != nil {
		product.Description = *in.Description
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return nil, apperror.New(apperror.ErrCodeValidation, "цена должна быть положительной")
		}
		product.Price = *in.Price
	}
	if in.Category != nil {
		product.Category = *in.Category
	}
	if in.Images != nil {
		product.Images = pq.StringArray(in.Images)
	}
	if in.Location != nil {
		product.Location = *in.Location
	}
	if in.Status != nil {
		if *in.Status != models.ProductStatusAvailable && *in.Status != models.ProductStatusSold {
			return nil, apperror.New(apperror.ErrCodeValidation, "статус можно сменить только на available или sold")
		}
		product.Status = *in.Status
	}

	if err := s.repo.Update(ctx, product); err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotAvailable):
			// Покупка успела между чтением и записью.
			return nil, apperror.New(apperror.ErrCodeInvalidState, "объявление участвует в открытой сделке")
		case errors.Is(err, repository.ErrProductNotFound):
			return nil, apperror.ErrProductNotFound
		}
		return nil, err
	}

	return product, nil
}

// Delete удаляет объявление. Доступно только владельцу и только вне открытой сделки.
func (s *ProductService) Delete(ctx context.Context, callerID, id uuid.UUID) error {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return apperror.ErrProductNotFound
		}
		return err
	}

	if product.SellerID != callerID {
		return apperror.New(apperror.ErrCodeForbidden, "удалить объявление может только владелец")
	}

	if product.Status == models.ProductStatusPending {
		return apperror.New(apperror.ErrCodeInvalidState, "объявление участвует в открытой сделке")
	}

	return s.repo.Delete(ctx, id)
}

// Like атомарно увеличивает счётчик лайков.
func (s *ProductService) Like(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.IncrementLikes(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return apperror.ErrProductNotFound
		}
		return err
	}
	return nil
}
