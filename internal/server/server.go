// Package server provides the HTTP and WebSocket API of go-gaze
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/engine"
	"github.com/teslashibe/go-gaze/internal/health"
	"github.com/teslashibe/go-gaze/internal/peer"
)

// Server is the HTTP server for go-gaze
type Server struct {
	app       *fiber.App
	cfg       *config.Config
	engine    *engine.Engine
	health    *health.Checker
	logger    *slog.Logger
	stream    *StreamHub
	ingest    *IngestHub
	startTime time.Time
	version   string

	mu      sync.RWMutex
	link    peer.Link
	metrics http.Handler
}

// New creates a new HTTP server. The ingest hub becomes the speech capture
// collaborator of the engine's speaking detector.
func New(cfg *config.Config, eng *engine.Engine, checker *health.Checker, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if checker == nil {
		checker = health.NewChecker(version)
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-gaze",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(LoggingMiddleware(logger))

	s := &Server{
		app:       app,
		cfg:       cfg,
		engine:    eng,
		health:    checker,
		logger:    logger,
		stream:    NewStreamHub(eng, logger),
		ingest:    NewIngestHub(eng, logger),
		startTime: time.Now(),
		version:   version,
	}

	eng.Detector().SetCapture(s.ingest)

	checker.Register("engine", eng.Healthy)
	checker.Register("peer", s.peerHealth)

	s.registerRoutes()

	return s
}

// SetLink sets the peer link reported by /api/peers and /health
func (s *Server) SetLink(l peer.Link) {
	s.mu.Lock()
	s.link = l
	s.mu.Unlock()
}

// SetMetricsHandler sets the Prometheus handler served on /metrics
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.mu.Lock()
	s.metrics = h
	s.mu.Unlock()
}

func (s *Server) getLink() peer.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.link
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.app.Get("/health", s.healthHandler)
	s.app.Get("/metrics", s.metricsHandler)

	api := s.app.Group("/api")

	api.Get("/ingest", s.ingest.UpgradeHandler())
	api.Get("/stream", s.stream.UpgradeHandler())

	api.Get("/transform", s.transformHandler)
	api.Get("/stats", s.statsHandler)
	api.Get("/config", s.configHandler)

	api.Get("/condition", s.getConditionHandler)
	api.Put("/condition", s.putConditionHandler)

	sess := api.Group("/session")
	sess.Get("/", s.sessionHandler)
	sess.Post("/start", s.sessionStartHandler)
	sess.Post("/stop", s.sessionStopHandler)
	sess.Get("/export", s.sessionExportHandler)

	api.Get("/peers", s.peersHandler)
}

func (s *Server) peerHealth() (bool, string) {
	link := s.getLink()
	if link == nil {
		return true, "disabled"
	}
	if !link.Connected() {
		return false, link.Name() + " disconnected"
	}
	return true, link.Name() + " connected"
}

// healthHandler returns service health
func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(s.health.GetStatus())
}

// metricsHandler serves OpenTelemetry metrics in the Prometheus format
func (s *Server) metricsHandler(c *fiber.Ctx) error {
	s.mu.RLock()
	h := s.metrics
	s.mu.RUnlock()

	if h == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("# metrics not enabled\n")
	}
	return adaptor.HTTPHandler(h)(c)
}

// transformHandler returns the latest local window transform
func (s *Server) transformHandler(c *fiber.Ctx) error {
	return c.JSON(s.engine.Latest())
}

// statsHandler returns engine and connection statistics
func (s *Server) statsHandler(c *fiber.Ctx) error {
	received, rejected := s.ingest.Counts()

	out := fiber.Map{
		"engine":          s.engine.Stats(),
		"stream_clients":  s.stream.ClientCount(),
		"ingest_clients":  s.ingest.ClientCount(),
		"ingest_messages": received,
		"ingest_rejected": rejected,
		"uptime_seconds":  int64(time.Since(s.startTime).Seconds()),
	}

	if link := s.getLink(); link != nil {
		if sp, ok := link.(interface{ GetStats() peer.Stats }); ok {
			out["peer"] = sp.GetStats()
		}
	}

	return c.JSON(out)
}

// configHandler returns the effective configuration
func (s *Server) configHandler(c *fiber.Ctx) error {
	limits := s.engine.Limits()

	return c.JSON(fiber.Map{
		"server": fiber.Map{
			"port":             s.cfg.Server.Port,
			"read_timeout_ms":  s.cfg.Server.ReadTimeout.Milliseconds(),
			"write_timeout_ms": s.cfg.Server.WriteTimeout.Milliseconds(),
		},
		"participant": fiber.Map{
			"id":        s.engine.ParticipantID(),
			"condition": s.engine.Condition(),
		},
		"transform": fiber.Map{
			"min_width":           limits.MinWidth,
			"max_width":           limits.MaxWidth,
			"height_ratio":        limits.HeightRatio,
			"distance_scale":      limits.DistanceScale,
			"proximity_scale":     limits.ProximityScale,
			"alpha_min":           limits.AlphaMin,
			"alpha_max":           limits.AlphaMax,
			"alpha_min_threshold": limits.AlphaMinThreshold,
			"gaze_band":           limits.GazeBand,
			"border_color":        limits.BorderColor,
		},
		"smoothing": fiber.Map{
			"window": s.cfg.Smoothing.Window,
			"slack":  s.cfg.Smoothing.Slack,
		},
		"speaking": fiber.Map{
			"threshold":   s.cfg.Speaking.Threshold,
			"debounce_ms": s.cfg.Speaking.DebounceMs,
		},
		"peer": fiber.Map{
			"transport": s.cfg.Peer.Transport,
			"url":       s.cfg.Peer.URL,
		},
	})
}

// peersHandler returns the remote roster and link state
func (s *Server) peersHandler(c *fiber.Ctx) error {
	out := fiber.Map{
		"remotes":   s.engine.Remotes(),
		"transport": peer.TransportNone,
		"connected": false,
	}

	if link := s.getLink(); link != nil {
		out["transport"] = link.Name()
		out["connected"] = link.Connected()
		out["link_peers"] = link.Peers()
	}

	return c.JSON(out)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		"port", s.cfg.Server.Port,
	)

	return s.app.Listen(fmt.Sprintf(":%d", s.cfg.Server.Port))
}

// StreamHub returns the render stream hub
func (s *Server) StreamHub() *StreamHub {
	return s.stream
}

// IngestHub returns the capture ingest hub
func (s *Server) IngestHub() *IngestHub {
	return s.ingest
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	s.stream.Close()
	s.ingest.Close()

	done := make(chan error, 1)
	go func() {
		done <- s.app.Shutdown()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
