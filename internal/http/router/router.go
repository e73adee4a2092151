package router

import (
	"github.com/gin-gonic/gin"

	"github.com/souqdz/marketplace-backend/internal/config"
	"github.com/souqdz/marketplace-backend/internal/http/handlers"
	"github.com/souqdz/marketplace-backend/internal/http/middleware"
	"github.com/souqdz/marketplace-backend/internal/service"
)

// Handlers собирает все хэндлеры приложения для маршрутизации.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Product *handlers.ProductHandler
	Payment *handlers.PaymentHandler
	Profile *handlers.ProfileHandler
	Health  *handlers.HealthHandler
}

// Setup настраивает все маршруты приложения.
func Setup(cfg *config.Config, tokens *service.TokenManager, h Handlers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")

	// Аутентификация с rate limit: защита от перебора паролей и кодов.
	auth := api.Group("/auth")
	auth.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/validate-referral", h.Auth.ValidateReferral)
	}

	// Публичный каталог: чтение без авторизации.
	api.GET("/products", h.Product.List)
	api.GET("/products/:id", middleware.UUIDValidator("id"), h.Product.Get)

	// Всё остальное требует access токен.
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.POST("/products", h.Product.Create)
		protected.PUT("/products/:id", middleware.UUIDValidator("id"), h.Product.Update)
		protected.DELETE("/products/:id", middleware.UUIDValidator("id"), h.Product.Delete)
		protected.POST("/products/:id/like", middleware.UUIDValidator("id"), h.Product.Like)

		payments := protected.Group("/payments")
		{
			payments.POST("/create-escrow", h.Payment.CreateEscrow)
			payments.POST("/confirm-delivery", h.Payment.ConfirmDelivery)
			payments.POST("/cancel", h.Payment.CancelTransaction)
			payments.GET("/transactions", h.Payment.ListTransactions)
			payments.GET("/referral-earnings", h.Payment.ReferralEarnings)
		}

		protected.GET("/profile", h.Profile.GetMe)
		protected.GET("/users/:id", middleware.UUIDValidator("id"), h.Profile.GetProfile)
	}

	return r
}
