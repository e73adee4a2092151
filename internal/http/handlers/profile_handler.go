package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/souqdz/marketplace-backend/internal/models"
	"github.com/souqdz/marketplace-backend/internal/pkg/apperror"
	"github.com/souqdz/marketplace-backend/internal/repository"
)

// ProfileUserReader читает пользователей для отдачи профилей.
type ProfileUserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ProfileHandler обслуживает профили пользователей.
type ProfileHandler struct {
	users ProfileUserReader
}

// NewProfileHandler создаёт хэндлер профилей.
func NewProfileHandler(users ProfileUserReader) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// GetMe обрабатывает GET /api/profile: полный профиль текущего пользователя.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			respondError(c, apperror.ErrUserNotFound)
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetProfile обрабатывает GET /api/users/:id: публичный профиль без контактов.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			respondError(c, apperror.ErrUserNotFound)
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.ToPublic())
}
