package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/batch-ledger/internal/api/middleware"
	"github.com/feral-file/batch-ledger/internal/ratelimit"
)

// SetupRoutes configures all REST API routes
// A nil limiter disables rate limiting of writes.
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig, limiter ratelimit.Limiter) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		// Read access is public
		v1.GET("/batches/total", handler.GetTotalBatches)
		v1.GET("/batches/:id", handler.GetBatch)
		v1.GET("/batches/:id/history", handler.GetOwnerHistory)
		v1.GET("/batches/:id/events", handler.GetBatchEvents)
		v1.GET("/batches/:id/owners/:address", handler.WasOwner)
		v1.GET("/owners/:address/batches", handler.GetOwnedBatches)

		// Writes are signed by the service account and require authentication
		writes := v1.Group("", middleware.Auth(authCfg))
		if limiter != nil {
			writes.Use(middleware.RateLimit(limiter))
		}
		writes.POST("/batches", handler.CreateBatch)
		writes.POST("/batches/:id/transfer", handler.TransferBatch)
		writes.PUT("/batches/:id/metadata", handler.UpdateMetadata)
	}
}
