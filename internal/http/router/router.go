package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/config"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/handlers"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/middleware"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	catalogHandler *handlers.CatalogHandler,
	orderHandler *handlers.OrderHandler,
	bookingHandler *handlers.BookingHandler,
	returnHandler *handlers.ReturnHandler,
	paymentHandler *handlers.PaymentHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/evidence", http.Dir(cfg.EvidenceStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Уведомления платёжного шлюза: общий секрет вместо JWT.
	webhooks := api.Group("/webhooks")
	webhooks.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	webhooks.Use(middleware.WebhookAuthMiddleware(cfg.WebhookSecret))
	{
		webhooks.POST("/payment", webhookHandler.HandlePayment)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/catalog/products/:id", middleware.UUIDValidator("id"), catalogHandler.GetProduct)
	api.GET("/catalog/boost-packages", catalogHandler.ListBoostPackages)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", authHandler.Me)

		// Витрина продавца
		seller := protected.Group("/catalog")
		seller.Use(middleware.RequireRole(models.RoleSeller))
		{
			seller.POST("/products", catalogHandler.CreateProduct)
			seller.GET("/products", catalogHandler.ListMyProducts)
			seller.POST("/packages", catalogHandler.CreatePackage)
			seller.GET("/packages", catalogHandler.ListMyPackages)
			seller.POST("/quotes", catalogHandler.CreateQuote)
		}
		protected.POST("/catalog/quotes/:id/respond", middleware.UUIDValidator("id"), catalogHandler.RespondQuote)

		// Заказы
		protected.POST("/orders", orderHandler.Create)
		protected.GET("/orders", orderHandler.List)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), orderHandler.Get)
		protected.POST("/orders/:id/transition", middleware.UUIDValidator("id"), orderHandler.Transition)

		// Бронирования
		protected.POST("/bookings", bookingHandler.Create)
		protected.GET("/bookings", bookingHandler.List)
		protected.GET("/bookings/:id", middleware.UUIDValidator("id"), bookingHandler.Get)
		protected.POST("/bookings/:id/transition", middleware.UUIDValidator("id"), bookingHandler.Transition)

		// Возвраты
		protected.POST("/returns", returnHandler.Create)
		protected.GET("/returns", returnHandler.List)
		protected.GET("/returns/:id", middleware.UUIDValidator("id"), returnHandler.Get)
		protected.POST("/returns/:id/seller-response", middleware.UUIDValidator("id"), returnHandler.SellerRespond)
		protected.POST("/returns/:id/evidence", middleware.UUIDValidator("id"), returnHandler.UploadEvidence)
		protected.GET("/returns/:id/evidence", middleware.UUIDValidator("id"), returnHandler.ListEvidence)

		adminReturns := protected.Group("/returns")
		adminReturns.Use(middleware.RequireRole(models.RoleAdmin))
		{
			adminReturns.POST("/:id/decision", middleware.UUIDValidator("id"), returnHandler.AdminDecide)
		}

		// Платежи и escrow
		protected.GET("/payments/transactions/:id", middleware.UUIDValidator("id"), paymentHandler.GetTransaction)
		protected.GET("/payments/transactions/:id/ledger", middleware.UUIDValidator("id"), paymentHandler.ListLedger)
		protected.GET("/payments/balance", paymentHandler.GetBalance)
		protected.POST("/payments/verify", paymentHandler.Verify)
	}

	return r
}
