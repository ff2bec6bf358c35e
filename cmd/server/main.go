package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/agrovoz/agromarket-backend/internal/cache"
	"github.com/agrovoz/agromarket-backend/internal/config"
	"github.com/agrovoz/agromarket-backend/internal/db"
	"github.com/agrovoz/agromarket-backend/internal/events"
	"github.com/agrovoz/agromarket-backend/internal/goroutine"
	httpHandlers "github.com/agrovoz/agromarket-backend/internal/http/handlers"
	httpRouter "github.com/agrovoz/agromarket-backend/internal/http/router"
	"github.com/agrovoz/agromarket-backend/internal/logger"
	"github.com/agrovoz/agromarket-backend/internal/metrics"
	"github.com/agrovoz/agromarket-backend/internal/repository"
	"github.com/agrovoz/agromarket-backend/internal/service"
	"github.com/agrovoz/agromarket-backend/internal/storage"
	"github.com/agrovoz/agromarket-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательная инфраструктура.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	mtr := metrics.New()
	appCache := cache.New()
	publisher := events.NewPublisher(cfg.KafkaBrokers)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("main: ошибка закрытия publisher: %v", err)
		}
	}()

	mediaStorage, err := storage.NewMediaStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	listingRepo := repository.NewListingRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	conversationRepo := repository.NewConversationRepository(dbConn)
	ratingRepo := repository.NewRatingRepository(dbConn)
	mediaRepo := repository.NewMediaRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGo(hub.Run)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	listingService := service.NewListingService(listingRepo)
	orderService := service.NewOrderService(orderRepo, listingRepo, publisher, mtr)
	escrowService := service.NewEscrowService(escrowRepo, orderRepo, publisher, mtr, appCache)
	disputeService := service.NewDisputeService(disputeRepo, orderRepo, escrowService, publisher, mtr)
	conversationService := service.NewConversationService(conversationRepo, orderRepo, hub)
	ratingService := service.NewRatingService(ratingRepo, orderRepo, appCache)
	mediaService := service.NewMediaService(mediaRepo, mediaStorage, appCache, cfg.MediaURLCacheTTL)

	// Фоновое истечение просроченных заказов.
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(cfg.OrderExpiryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := orderService.ExpireStale(ctx); err != nil {
					log.Printf("main: ошибка истечения заказов: %v", err)
				}
			}
		}
	})

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	listingHandler := httpHandlers.NewListingHandler(listingService)
	orderHandler := httpHandlers.NewOrderHandler(orderService)
	escrowHandler := httpHandlers.NewEscrowHandler(escrowService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	conversationHandler := httpHandlers.NewConversationHandler(conversationService)
	ratingHandler := httpHandlers.NewRatingHandler(ratingService)
	mediaHandler := httpHandlers.NewMediaHandler(mediaService, cfg.MaxUploadSizeMB)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		listingHandler,
		orderHandler,
		escrowHandler,
		disputeHandler,
		conversationHandler,
		ratingHandler,
		mediaHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
