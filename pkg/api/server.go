// Package api exposes the saga engine over HTTP: synchronous preview
// and checkout endpoints, the async run surface backed by the pool and
// manager, and the health and metrics views.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopagent/cartwright/pkg/metrics"
	"github.com/shopagent/cartwright/pkg/saga"
)

// Server wires the saga engine, run manager and run pool into the HTTP
// surface.
type Server struct {
	engine  *saga.Engine
	manager *saga.Manager
	pool    *saga.Pool
	metrics *metrics.Registry
	log     *slog.Logger
}

// NewServer creates the API server. The metrics registry may be nil,
// in which case the metrics endpoint serves an empty snapshot.
func NewServer(engine *saga.Engine, manager *saga.Manager, pool *saga.Pool, registry *metrics.Registry) *Server {
	return &Server{
		engine:  engine,
		manager: manager,
		pool:    pool,
		metrics: registry,
		log:     slog.With("component", "api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.POST("/saga/preview", s.Preview)
	router.POST("/saga/start", s.Start)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/runs", s.ListRuns)
		v1.GET("/runs/:id", s.GetRun)
		v1.POST("/runs/:id/cancel", s.CancelRun)
		v1.GET("/health", s.Health)
		v1.GET("/metrics", s.Metrics)
	}
	return router
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		t0 := time.Now()
		c.Next()
		s.log.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(t0).Milliseconds())
	}
}

// Health reports run pool occupancy.
func (s *Server) Health(c *gin.Context) {
	health := s.pool.Health()
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status": statusWord(health.Healthy),
		"pool":   health,
		"runs":   s.manager.Count(),
	})
}

// Metrics serves the aggregated stage and token counters.
func (s *Server) Metrics(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusOK, metrics.Snapshot{})
		return
	}
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func statusWord(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}
