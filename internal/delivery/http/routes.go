package http

import (
	"github.com/foodscan/matcher/config"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	limited := RateLimitMiddleware(cfg.RateLimit.PerIP)

	// Unversioned route kept for existing clients
	router.POST("/match", limited, handler.Match)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/match", limited, handler.Match)

		index := v1.Group("/index")
		{
			index.GET("", handler.IndexStatus)
			index.POST("/reload", handler.ReloadIndex)
		}
	}

	return router
}
