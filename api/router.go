package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/api/handlers"
	"github.com/yourusername/ytfetch-go/api/middleware"
	"github.com/yourusername/ytfetch-go/internal/app"
)

// SetupRouter sets up the HTTP router
func SetupRouter(downloadMgr *app.DownloadManager, logsDir string, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(downloadMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		downloadHandler := handlers.NewDownloadHandler(downloadMgr, logger)
		eventsHandler := handlers.NewEventsHandler(downloadMgr, logger)
		logHandler := handlers.NewLogHandler(logsDir, downloadMgr)

		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.AddDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/stats", downloadHandler.GetStats)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.GET("/:id/events", eventsHandler.HandleWebSocket)
			downloads.GET("/:id/log", logHandler.GetDownloadLog)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
			downloads.POST("/:id/retry", downloadHandler.RetryDownload)
			downloads.DELETE("/:id", downloadHandler.DeleteDownload)
		}

		logs := v1.Group("/logs")
		{
			logs.GET("/downloads", logHandler.GetLogs)
			logs.GET("/downloads/search", logHandler.SearchLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
