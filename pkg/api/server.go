// Package api exposes the control surface described in §6: scraper and
// scheduler status/toggle endpoints, manual AI calls, and the voice
// webhook reconciliation callback.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetops/tracker/pkg/config"
	"github.com/fleetops/tracker/pkg/coordinator"
	"github.com/fleetops/tracker/pkg/escalation"
	"github.com/fleetops/tracker/pkg/metrics"
	"github.com/fleetops/tracker/pkg/scheduler"
	"github.com/fleetops/tracker/pkg/stopdetect"
	"github.com/fleetops/tracker/pkg/storage"
	"github.com/fleetops/tracker/pkg/version"
)

// Server is the HTTP control surface for the fleet tracking pipeline.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	store      *storage.Store
	coord      *coordinator.Coordinator
	sched      *scheduler.Scheduler
	stopDet    *stopdetect.Detector
	escalation *escalation.Engine
	logger     *slog.Logger
}

// NewServer builds a gin-based Server and registers all routes.
func NewServer(cfg *config.Config, store *storage.Store, coord *coordinator.Coordinator, sched *scheduler.Scheduler, stopDet *stopdetect.Detector, esc *escalation.Engine) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.Default()

	s := &Server{
		engine:     engine,
		cfg:        cfg,
		store:      store,
		coord:      coord,
		sched:      sched,
		stopDet:    stopDet,
		escalation: esc,
		logger:     slog.Default().With("component", "api"),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.engine.Group("/api")
	v1.GET("/scraper/status", s.scraperStatusHandler)
	v1.POST("/scraper/run", s.scraperRunHandler)

	v1.GET("/scheduler/status", s.schedulerStatusHandler)
	v1.POST("/scheduler/toggle", s.schedulerToggleHandler)

	v1.GET("/ai/status", s.aiStatusHandler)
	v1.POST("/ai/toggle-detection", s.aiToggleDetectionHandler)
	v1.POST("/ai/api/run-detection", s.aiRunDetectionHandler)
	v1.POST("/ai/api/manual-call", s.aiManualCallHandler)

	v1.POST("/voice/webhook", s.voiceWebhookHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, used
// by tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Full(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
