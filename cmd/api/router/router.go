package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"media-studio/cmd/api/handlers"
	"media-studio/cmd/api/middleware"
	"media-studio/cmd/api/services"
	"media-studio/debugger"
	_ "media-studio/docs"
	"media-studio/monitoring"
	"media-studio/predictions"
	"media-studio/repositories"
)

// Deps carries everything the routes need. Archive and DBPing are nil when
// MongoDB is not configured; the history endpoint then answers 503.
type Deps struct {
	Service  *services.GenerationService
	Client   *predictions.Client
	Recorder *debugger.Recorder
	Store    *monitoring.Store
	Archive  *repositories.GenerationLogRepository
	DBPing   func(ctx context.Context) error
}

func New(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestTrace())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		if deps.DBPing != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := deps.DBPing(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mongo": "down", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Swagger
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// v1 routes
	api := r.Group("/api/v1")
	{
		generations := api.Group("/generations")
		{
			generations.POST("/image", handlers.GenerateImageHandler(deps.Service, deps.Recorder))
			generations.POST("/video", handlers.GenerateVideoHandler(deps.Service, deps.Recorder))
			generations.GET("/history", handlers.ListGenerationHistoryHandler(deps.Archive))
		}

		api.GET("/provider/status", handlers.ProviderStatusHandler(deps.Client, deps.Recorder))

		debug := api.Group("/debug")
		{
			debug.GET("/requests", handlers.ListDebugRequestsHandler(deps.Recorder))
			debug.GET("/requests/:id", handlers.GetDebugRequestHandler(deps.Recorder))
			debug.DELETE("/requests", handlers.ClearDebugRequestsHandler(deps.Recorder))
			debug.GET("/stream", handlers.StreamDebugRequestsHandler(deps.Recorder))
		}

		mon := api.Group("/monitoring")
		{
			mon.GET("/logs", handlers.ListMonitoringLogsHandler(deps.Store))
			mon.DELETE("/logs", handlers.ClearMonitoringLogsHandler(deps.Store))
			mon.GET("/requests", handlers.ListMonitoringRequestsHandler(deps.Store))
			mon.GET("/stream", handlers.StreamMonitoringHandler(deps.Store))
		}
	}

	return r
}
