package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/empower-grid/gridauth"
	"github.com/empower-grid/gridauth/metrics/export/prometheus"
)

// SetupRouter wires the full HTTP surface: auth endpoints behind rate
// limiting, the authenticated API group, and the operational endpoints.
func SetupRouter(engine *gridauth.Engine, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewAuthHandlers(engine, logger)

	auth := router.Group("/auth")
	auth.Use(RateLimitMiddleware(engine))
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	router.GET("/rate-limit/status", OptionalAuthMiddleware(engine), handlers.RateLimitStatus)

	api := router.Group("/api")
	api.Use(AuthMiddleware(engine), RateLimitMiddleware(engine))
	{
		api.GET("/me", handlers.Me)
	}

	router.GET("/healthz", handlers.Healthz)
	router.GET("/metrics", gin.WrapH(prometheus.NewPrometheusExporter(engine).Handler()))

	return router
}
