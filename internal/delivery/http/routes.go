package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vendedor360/backend/config"
	"github.com/vendedor360/backend/internal/infrastructure/logger"
)

// MetricsRecorder is the request recorder that also exports the metrics endpoint
type MetricsRecorder interface {
	RequestRecorder
	Handler() http.Handler
}

// SetupRouter creates and configures the Gin router.
// recorder may be nil, in which case /metrics is not served.
func SetupRouter(cfg *config.Config, handler *Handler, recorder MetricsRecorder, log *logger.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.Discard()
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(log))
	if recorder != nil {
		router.Use(MetricsMiddleware(recorder))
	}
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	if recorder != nil {
		router.GET("/metrics", gin.WrapH(recorder.Handler()))
	}

	v1 := router.Group("/api/v1")
	if cfg.RateLimit.PerIP > 0 {
		v1.Use(NewIPRateLimiter(cfg.RateLimit.PerIP, log).RateLimit())
	}
	{
		v1.GET("/catalog", handler.ListCatalog)
		v1.GET("/catalog/:code", handler.GetProduct)
		v1.POST("/match", handler.Match)
		v1.POST("/proposals", handler.GenerateProposal)
		v1.POST("/runs", handler.StartRun)
	}

	return router
}
