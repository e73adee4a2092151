package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/souqdz/marketplace-backend/internal/logger"
	"github.com/souqdz/marketplace-backend/internal/models"
	"github.com/souqdz/marketplace-backend/internal/pkg/apperror"
	"github.com/souqdz/marketplace-backend/internal/repository"
	"github.com/souqdz/marketplace-backend/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
}

// EdgeRecorder создаёт реферальные связи при регистрации.
type EdgeRecorder interface {
	RecordEdge(ctx context.Context, referrerID, referredID uuid.UUID, level int) error
}

// AuthService инкапсулирует бизнес-логику регистрации и аутентификации.
type AuthService struct {
	repo         AuthRepository
	referrals    EdgeRecorder
	tokenManager *TokenManager
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Name         string
	Email        string
	Phone        string
	Password     string
	Location     string
	ReferralCode string
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User      *models.User
	TokenPair *TokenPair
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, referrals EdgeRecorder, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		repo:         repo,
		referrals:    referrals,
		tokenManager: tokenManager,
	}
}

// Register создаёт нового пользователя. Если указан реферальный код,
// создаётся связь уровня 1 с его владельцем и, когда владелец сам был
// приглашён, связь уровня 2 с его реферером.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePhone(in.Phone); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "email уже зарегистрирован")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	if _, err := s.repo.GetByPhone(ctx, in.Phone); err == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "номер телефона уже зарегистрирован")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	// Реферальный код разрешается в реферера до создания пользователя.
	var referrer *models.User
	if in.ReferralCode != "" {
		var err error
		referrer, err = s.repo.GetByReferralCode(ctx, in.ReferralCode)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, apperror.New(apperror.ErrCodeValidation, "неверный реферальный код")
			}
			return nil, err
		}
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: string(passHash),
		Location:     strings.TrimSpace(in.Location),
		ReferralCode: newReferralCode(),
	}
	if referrer != nil {
		id := referrer.ID
		user.ReferredBy = &id
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// Параллельная регистрация могла проскочить предварительную проверку.
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, apperror.New(apperror.ErrCodeValidation, "email уже зарегистрирован")
		case errors.Is(err, repository.ErrPhoneTaken):
			return nil, apperror.New(apperror.ErrCodeValidation, "номер телефона уже зарегистрирован")
		}
		return nil, err
	}

	if referrer != nil {
		if err := s.referrals.RecordEdge(ctx, referrer.ID, user.ID, models.ReferralLevel1); err != nil {
			return nil, err
		}
		if referrer.ReferredBy != nil && *referrer.ReferredBy != referrer.ID {
			if err := s.referrals.RecordEdge(ctx, *referrer.ReferredBy, user.ID, models.ReferralLevel2); err != nil {
				return nil, err
			}
		}
	}

	tokenPair, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	logger.WithComponent("auth").WithField("user_id", user.ID).Info("зарегистрирован новый пользователь")

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// Login проверяет учётные данные и выдаёт пару токенов.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.New(apperror.ErrCodeUnauthorized, "неверный email или пароль")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "неверный email или пароль")
	}

	tokenPair, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// Refresh выпускает новую пару токенов по refresh токену.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokenManager.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}

	tokenPair, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// ReferralValidation итог проверки реферального кода.
type ReferralValidation struct {
	Valid        bool   `json:"valid"`
	ReferrerName string `json:"referrer_name,omitempty"`
}

// ValidateReferral проверяет, существует ли владелец реферального кода.
func (s *AuthService) ValidateReferral(ctx context.Context, code string) (*ReferralValidation, error) {
	referrer, err := s.repo.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return &ReferralValidation{Valid: false}, nil
		}
		return nil, err
	}

	return &ReferralValidation{Valid: true, ReferrerName: referrer.Name}, nil
}

// newReferralCode генерирует короткий код приглашения.
func newReferralCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
