// Package http serves the ledger's REST API.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/internal/interfaces/http/handlers"
	"github.com/turtacn/insurance-derivatives/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware settings of the route
// tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	RiskHandler       *handlers.RiskHandler
	ObligationHandler *handlers.ObligationHandler
	DerivativeHandler *handlers.DerivativeHandler
	HealthHandler     *handlers.HealthHandler

	// Metrics serves /metrics when set.
	Metrics http.Handler

	Logger         logging.Logger
	Logging        middleware.LoggingConfig
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine: global middleware, the public probes and
// the /api/v1 resource groups.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api/v1", middleware.Timeout(cfg.RequestTimeout))
	registerRiskRoutes(api, cfg.RiskHandler)
	registerObligationRoutes(api, cfg.ObligationHandler)
	registerDerivativeRoutes(api, cfg.DerivativeHandler)
	return r
}

func registerRiskRoutes(r *gin.RouterGroup, h *handlers.RiskHandler) {
	if h == nil {
		return
	}
	g := r.Group("/risks")
	g.GET("", h.List)
	g.POST("/seed", h.Seed)
	g.GET("/:code", h.Get)
}

func registerObligationRoutes(r *gin.RouterGroup, h *handlers.ObligationHandler) {
	if h == nil {
		return
	}
	g := r.Group("/obligations")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
}

func registerDerivativeRoutes(r *gin.RouterGroup, h *handlers.DerivativeHandler) {
	if h == nil {
		return
	}
	g := r.Group("/derivatives")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/snapshots", h.ListSnapshots)
	g.POST("/:id/snapshots", h.TakeSnapshot)
}
