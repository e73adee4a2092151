package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/souqdz/marketplace-backend/internal/logger"
	"github.com/souqdz/marketplace-backend/internal/models"
	"github.com/souqdz/marketplace-backend/internal/pkg/apperror"
	"github.com/souqdz/marketplace-backend/internal/repository"
)

// ReferralRepository описывает зависимости ReferralService от слоя хранилища.
type ReferralRepository interface {
	InsertIfAbsent(ctx context.Context, ref *models.Referral) (bool, error)
	Settle(ctx context.Context, referrerID, referredID uuid.UUID, level int, amount float64) error
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralDetail, error)
}

// ReferralUserReader читает пользователей для разрешения цепочки рефереров.
type ReferralUserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ReferralService разрешает цепочку рефереров покупателя и ведёт
// агрегаты начислений по реферальным связям.
type ReferralService struct {
	repo  ReferralRepository
	users ReferralUserReader
}

// NewReferralService создаёт сервис рефералов.
func NewReferralService(repo ReferralRepository, users ReferralUserReader) *ReferralService {
	return &ReferralService{repo: repo, users: users}
}

// ResolveChain возвращает до двух рефереров покупателя: прямого (уровень 1)
// и реферера реферера (уровень 2). Цепочка обрывается на глубине 2.
// Ссылка пользователя на самого себя — повреждение данных, трактуется
// как отсутствие реферера, а не как цикл.
func (s *ReferralService) ResolveChain(ctx context.Context, buyerID uuid.UUID) (*models.ReferralChain, error) {
	buyer, err := s.users.GetByID(ctx, buyerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}

	chain := &models.ReferralChain{}

	if buyer.ReferredBy == nil || *buyer.ReferredBy == buyer.ID {
		return chain, nil
	}
	level1 := *buyer.ReferredBy
	chain.Level1ID = &level1

	referrer, err := s.users.GetByID(ctx, level1)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Реферер удалён — уровень 2 недостижим, уровень 1 остаётся.
			return chain, nil
		}
		return nil, err
	}

	if referrer.ReferredBy != nil && *referrer.ReferredBy != referrer.ID && *referrer.ReferredBy != buyer.ID {
		level2 := *referrer.ReferredBy
		chain.Level2ID = &level2
	}

	return chain, nil
}

// RecordEdge создаёт реферальную связь с нулевыми накоплениями.
// Повторный вызов для той же тройки — идемпотентный no-op.
func (s *ReferralService) RecordEdge(ctx context.Context, referrerID, referredID uuid.UUID, level int) error {
	if level != models.ReferralLevel1 && level != models.ReferralLevel2 {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("недопустимый уровень реферала: %d", level))
	}

	created, err := s.repo.InsertIfAbsent(ctx, models.NewReferral(referrerID, referredID, level))
	if err != nil {
		return err
	}

	if !created {
		logger.WithComponent("referral").WithFields(logrus.Fields{
			"referrer_id": referrerID,
			"referred_id": referredID,
			"level":       level,
		}).Debug("реферальная связь уже существует")
	}

	return nil
}

// Settle начисляет amount на связь и увеличивает её счётчик сделок.
// Отсутствие связи — потерянные реферальные деньги: фиксируется в логе
// и возвращается как Inconsistency, никогда не глотается молча.
func (s *ReferralService) Settle(ctx context.Context, referrerID, referredID uuid.UUID, level int, amount float64) error {
	err := s.repo.Settle(ctx, referrerID, referredID, level, amount)
	if err == nil {
		return nil
	}

	if errors.Is(err, repository.ErrReferralNotFound) {
		logger.WithComponent("referral").WithFields(logrus.Fields{
			"referrer_id": referrerID,
			"referred_id": referredID,
			"level":       level,
			"amount":      amount,
		}).Error("реферальная связь для начисления не найдена")
		return apperror.Wrap(err, apperror.ErrCodeInconsistency,
			fmt.Sprintf("реферальная связь уровня %d не найдена, начисление %.2f не выполнено", level, amount))
	}

	return err
}

// Aggregate возвращает агрегированную статистику рефералов пользователя:
// количество и заработок по уровням, общий заработок и детализацию по связям.
func (s *ReferralService) Aggregate(ctx context.Context, referrerID uuid.UUID) (*models.ReferralStats, error) {
	user, err := s.users.GetByID(ctx, referrerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}

	details, err := s.repo.ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	stats := &models.ReferralStats{
		ReferralCode: user.ReferralCode,
		Referrals:    details,
	}

	for _, d := range details {
		switch d.Level {
		case models.ReferralLevel1:
			stats.Level1Count++
			stats.Level1Earnings += d.TotalEarnings
		case models.ReferralLevel2:
			stats.Level2Count++
			stats.Level2Earnings += d.TotalEarnings
		}
	}
	stats.TotalEarnings = stats.Level1Earnings + stats.Level2Earnings

	return stats, nil
}
