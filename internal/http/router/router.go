package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrovoz/agromarket-backend/internal/config"
	"github.com/agrovoz/agromarket-backend/internal/http/handlers"
	"github.com/agrovoz/agromarket-backend/internal/http/middleware"
	"github.com/agrovoz/agromarket-backend/internal/service"
)

// SetupRouter собирает все HTTP маршруты сервиса.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	listingHandler *handlers.ListingHandler,
	orderHandler *handlers.OrderHandler,
	escrowHandler *handlers.EscrowHandler,
	disputeHandler *handlers.DisputeHandler,
	conversationHandler *handlers.ConversationHandler,
	ratingHandler *handlers.RatingHandler,
	mediaHandler *handlers.MediaHandler,
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
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/listings", listingHandler.List)
	api.GET("/listings/:id", middleware.UUIDValidator("id"), listingHandler.Get)
	api.GET("/users/:id/ratings", middleware.UUIDValidator("id"), ratingHandler.ListForUser)
	api.GET("/users/:id/ratings/summary", middleware.UUIDValidator("id"), ratingHandler.Summary)
	api.GET("/media/:id", middleware.UUIDValidator("id"), mediaHandler.Get)
	api.GET("/media/:id/content", middleware.UUIDValidator("id"), mediaHandler.Content)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)
		protected.PUT("/me/profile", authHandler.UpdateProfile)

		protected.POST("/listings", listingHandler.Create)
		protected.GET("/listings/my", listingHandler.ListMine)
		protected.PUT("/listings/:id", middleware.UUIDValidator("id"), listingHandler.Update)
		protected.DELETE("/listings/:id", middleware.UUIDValidator("id"), listingHandler.Delete)

		protected.POST("/orders", orderHandler.Create)
		protected.GET("/orders/my", orderHandler.ListMine)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), orderHandler.Get)
		protected.PATCH("/orders/:id/status", middleware.UUIDValidator("id"), orderHandler.UpdateStatus)

		// Escrow
		protected.POST("/orders/:id/escrow", middleware.UUIDValidator("id"), escrowHandler.Open)
		protected.GET("/orders/:id/escrow", middleware.UUIDValidator("id"), escrowHandler.Get)
		protected.POST("/orders/:id/escrow/release", middleware.UUIDValidator("id"), escrowHandler.Release)
		protected.POST("/orders/:id/escrow/refund", middleware.UUIDValidator("id"), escrowHandler.Refund)
		protected.GET("/escrow/summary", escrowHandler.Summary)

		// Споры
		protected.POST("/orders/:id/dispute", middleware.UUIDValidator("id"), disputeHandler.Create)
		protected.GET("/orders/:id/dispute", middleware.UUIDValidator("id"), disputeHandler.GetByOrder)
		protected.GET("/disputes", disputeHandler.ListMine)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
		protected.POST("/disputes/:id/messages", middleware.UUIDValidator("id"), disputeHandler.AddMessage)

		// Переписка
		protected.POST("/orders/:id/conversation", middleware.UUIDValidator("id"), conversationHandler.OpenByOrder)
		protected.GET("/conversations", conversationHandler.ListMine)
		protected.GET("/conversations/:id/messages", middleware.UUIDValidator("id"), conversationHandler.ListMessages)
		protected.POST("/conversations/:id/messages", middleware.UUIDValidator("id"), conversationHandler.SendMessage)
		protected.DELETE("/messages/:id", middleware.UUIDValidator("id"), conversationHandler.DeleteMessage)

		// Оценки
		protected.POST("/orders/:id/rating", middleware.UUIDValidator("id"), ratingHandler.Rate)

		// Медиа
		protected.POST("/media", mediaHandler.Upload)
		protected.DELETE("/media/:id", middleware.UUIDValidator("id"), mediaHandler.Delete)
	}

	// Административные маршруты
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.AdminOnly())
	{
		admin.POST("/orders/:id/escrow/partial-refund", middleware.UUIDValidator("id"), escrowHandler.PartialRefund)

		admin.GET("/disputes", disputeHandler.ListAll)
		admin.GET("/disputes/stats", disputeHandler.Stats)
		admin.PATCH("/disputes/:id/status", middleware.UUIDValidator("id"), disputeHandler.UpdateStatus)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.Resolve)
	}

	return r
}
