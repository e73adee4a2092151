package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/souqdz/marketplace-backend/internal/http/middleware"
	"github.com/souqdz/marketplace-backend/internal/logger"
	"github.com/souqdz/marketplace-backend/internal/pkg/apperror"
)

// currentUserID достаёт ID пользователя, положенный AuthMiddleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// pathUUID парсит URL параметр как UUID.
func pathUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный формат идентификатора " + param})
		return uuid.Nil, false
	}
	return id, true
}

// respondError переводит ошибку сервиса в HTTP ответ.
// AppError несёт собственный статус; всё остальное — 500 без деталей наружу.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
		return
	}

	logger.WithComponent("http").WithField("path", c.FullPath()).WithError(err).Error("необработанная ошибка")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера"})
}
