package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UUIDValidator проверяет, что URL параметр является валидным UUID,
// до входа в хэндлер.
func UUIDValidator(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(param)); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "неверный формат идентификатора " + param,
			})
			return
		}
		c.Next()
	}
}
