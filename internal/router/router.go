package router

import (
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/bitlabs/talentstream-proctor/internal/handler"
	"github.com/bitlabs/talentstream-proctor/internal/middleware"
	"github.com/bitlabs/talentstream-proctor/internal/response"
	"github.com/bitlabs/talentstream-proctor/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	History *handler.HistoryHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// createLimiter throttles attempt creation; nil disables it.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	createLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", handlers.System.Health)

	// ─── 1. Applicant API (JWT) ────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireApplicantJWT(authService), middleware.NoStore())
	{
		create := []gin.HandlerFunc{handlers.Attempt.CreateAttempt}
		if createLimiter != nil {
			create = append([]gin.HandlerFunc{createLimiter.Middleware()}, create...)
		}
		api.POST("/attempts", create...)
		api.GET("/attempts/active", handlers.Attempt.GetActiveAttempt)
		api.GET("/attempts/history", handlers.History.ListHistory)
		api.GET("/attempts/history/:attempt_id", handlers.History.GetHistoryDetail)
		api.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
		api.DELETE("/attempts/:attempt_id", handlers.Attempt.AbandonAttempt)
		api.POST("/attempts/:attempt_id/actions", handlers.Attempt.Act)

		api.GET("/session", handlers.Session.ListValues)
		api.GET("/session/:key", handlers.Session.GetValue)
		api.PUT("/session/:key", handlers.Session.PutValue)
		api.DELETE("/session/:key", handlers.Session.DeleteValue)

		api.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	// ─── 2. WebSocket Group (token query param) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireApplicantWSAuth(authService))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	return router
}
