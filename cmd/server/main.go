package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/souqdz/marketplace-backend/internal/config"
	"github.com/souqdz/marketplace-backend/internal/db"
	"github.com/souqdz/marketplace-backend/internal/http/handlers"
	"github.com/souqdz/marketplace-backend/internal/http/router"
	"github.com/souqdz/marketplace-backend/internal/logger"
	"github.com/souqdz/marketplace-backend/internal/repository"
	"github.com/souqdz/marketplace-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Log.WithError(err).Fatal("не удалось загрузить конфигурацию")
	}

	logger.Init(os.Getenv("LOG_LEVEL"))
	if cfg.Env != "production" {
		logger.SetTextFormatter()
	}
	log := logger.WithComponent("main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("не удалось подключиться к базе данных")
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn, cfg.MigrationsPath); err != nil {
		log.WithError(err).Fatal("не удалось применить миграции")
	}

	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	userRepo := repository.NewUserRepository(conn)
	productRepo := repository.NewProductRepository(conn)
	transactionRepo := repository.NewTransactionRepository(conn)
	referralRepo := repository.NewReferralRepository(conn)

	referralSvc := service.NewReferralService(referralRepo, userRepo)
	authSvc := service.NewAuthService(userRepo, referralSvc, tokens)
	productSvc := service.NewProductService(productRepo)
	escrowSvc := service.NewEscrowService(productRepo, transactionRepo, referralSvc, cfg.PaymentGatewayURL)

	engine := router.Setup(cfg, tokens, router.Handlers{
		Auth:    handlers.NewAuthHandler(authSvc),
		Product: handlers.NewProductHandler(productSvc),
		Payment: handlers.NewPaymentHandler(escrowSvc, referralSvc),
		Profile: handlers.NewProfileHandler(userRepo),
		Health:  handlers.NewHealthHandler(conn),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("сервер остановился с ошибкой")
		}
	}()

	<-ctx.Done()
	log.Info("получен сигнал завершения, останавливаем сервер")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("ошибка при остановке сервера")
	}

	log.Info("сервер остановлен")
}
