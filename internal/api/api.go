package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/godocscan/internal/api/middleware"
	"github.com/jonesrussell/godocscan/internal/config"
	"github.com/jonesrussell/godocscan/internal/logger"
)

const readHeaderTimeout = 10 * time.Second

// RouterDeps holds the handlers mounted on the router.
type RouterDeps struct {
	SchedulerHandler *SchedulerHandler
	QueueHandler     *QueueHandler
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(
	log logger.Interface,
	cfg *config.ServerConfig,
	deps RouterDeps,
) (*gin.Engine, *middleware.SecurityMiddleware) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	security := middleware.NewSecurityMiddleware(cfg, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(security.Middleware())

	v1.GET("/scheduler/status", deps.SchedulerHandler.GetStatus)
	v1.POST("/scheduler/instances/:id/scan", deps.SchedulerHandler.TriggerScan)

	v1.GET("/queue", deps.QueueHandler.ListEntries)
	v1.GET("/queue/stats", deps.QueueHandler.GetStats)
	v1.POST("/queue/process", deps.QueueHandler.TriggerProcess)
	v1.POST("/queue/reset-stuck", deps.QueueHandler.ResetStuck)

	return router, security
}

// NewHTTPServer wraps the router in an http.Server with the configured
// timeouts.
func NewHTTPServer(cfg *config.ServerConfig, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// loggingMiddleware creates a middleware that logs HTTP requests.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// corsMiddleware adds CORS headers to allow dashboard access.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, "+
				"Cache-Control, X-Requested-With, X-API-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
