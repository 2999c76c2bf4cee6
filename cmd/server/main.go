package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/config"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/db"
	httpHandlers "github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/handlers"
	httpRouter "github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/router"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/logger"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/service"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/storage"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

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

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	evidenceStorage, err := storage.NewEvidenceStorage(cfg.EvidenceStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	catalogRepo := repository.NewCatalogRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	bookingRepo := repository.NewBookingRepository(dbConn)
	txRepo := repository.NewTransactionRepository(dbConn)
	returnRepo := repository.NewReturnRepository(dbConn)

	// Лента событий.
	hub := ws.NewHub()
	go hub.Run()
	events := ws.NewEventFeed(hub)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager, cfg.DefaultCommissionRate)
	catalogService := service.NewCatalogService(catalogRepo)
	escrowService := service.NewEscrowService(txRepo, userRepo)
	orderService := service.NewOrderService(orderRepo, catalogRepo, escrowService, events)
	bookingService := service.NewBookingService(bookingRepo, catalogRepo, escrowService, events)
	returnService := service.NewReturnService(returnRepo, orderRepo, bookingRepo, escrowService, events)
	webhookService := service.NewWebhookService(orderRepo, bookingRepo, escrowService, orderService, bookingService)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	catalogHandler := httpHandlers.NewCatalogHandler(catalogService)
	orderHandler := httpHandlers.NewOrderHandler(orderService)
	bookingHandler := httpHandlers.NewBookingHandler(bookingService)
	returnHandler := httpHandlers.NewReturnHandler(returnService, evidenceStorage)
	paymentHandler := httpHandlers.NewPaymentHandler(escrowService, webhookService)
	webhookHandler := httpHandlers.NewWebhookHandler(webhookService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(cfg,
		authHandler, catalogHandler, orderHandler, bookingHandler,
		returnHandler, paymentHandler, webhookHandler, wsHandler,
		healthHandler, tokenManager)

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
