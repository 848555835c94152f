// go-gaze: gaze-adaptive window transform daemon
// Turns head orientation and speaking activity into video window transforms
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/engine"
	"github.com/teslashibe/go-gaze/internal/health"
	"github.com/teslashibe/go-gaze/internal/observe"
	"github.com/teslashibe/go-gaze/internal/peer"
	"github.com/teslashibe/go-gaze/internal/server"
	"github.com/teslashibe/go-gaze/internal/session"
)

var (
	version     = "0.3.0"
	configPath  = flag.String("config", "/etc/go-gaze/config.yaml", "config file path")
	showVersion = flag.Bool("version", false, "print version and exit")
	debug       = flag.Bool("debug", false, "enable debug logging")
	condition   = flag.String("condition", "", "override experiment condition (1-6 or name)")
	participant = flag.String("id", "", "override participant ID")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("go-gaze %s\n", version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config from %s: %v\n", *configPath, err)
		cfg = config.Default()
	}

	if *debug {
		cfg.Logging.Level = "debug"
	}
	if *condition != "" {
		cfg.Participant.Condition = *condition
	}
	if *participant != "" {
		cfg.Participant.ID = *participant
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting go-gaze",
		"version", version,
		"config", *configPath,
		"port", cfg.Server.Port,
		"participant", cfg.Participant.ID,
		"condition", cfg.Participant.Condition,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "go-gaze",
		ServiceVersion: version,
	})
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		logger.Error("failed to create instruments", "error", err)
		os.Exit(1)
	}

	exporter := &session.FileExporter{Dir: cfg.Session.ExportDir, Logger: logger}
	recorder := session.NewRecorder(exporter, logger)

	eng := engine.New(cfg.Engine(), recorder, metrics, logger)

	checker := health.NewChecker(version)
	srv := server.New(cfg, eng, checker, logger, version)
	srv.SetMetricsHandler(provider.Handler())

	link := newLink(cfg, eng, logger)
	if link != nil {
		if err := link.Connect(ctx); err != nil {
			logger.Error("failed to connect peer link", "transport", link.Name(), "error", err)
			os.Exit(1)
		}
		eng.SetSink(link)
		srv.SetLink(link)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.StreamHub().Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	printStartupBanner(cfg, version)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "cause", context.Cause(gctx))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		// Stop in order: session -> link -> server -> engine -> metrics
		if eng.StopSession(shutdownCtx) {
			logger.Info("active session stopped and exported")
		}

		if link != nil {
			if err := link.Close(); err != nil {
				logger.Warn("peer link close error", "error", err)
			}
		}

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown error", "error", err)
		}

		eng.Close()

		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("go-gaze exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("go-gaze stopped")
}

// newLink builds the configured peer transport, or nil when disabled
func newLink(cfg *config.Config, eng *engine.Engine, logger *slog.Logger) peer.Link {
	switch cfg.Peer.Transport {
	case peer.TransportRelay:
		return peer.NewRelay(cfg.Relay(), eng, logger)
	case peer.TransportWebRTC:
		relay := peer.NewRelay(cfg.Relay(), eng, logger)
		return peer.NewMesh(cfg.Mesh(), relay, eng, logger)
	default:
		return nil
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func printStartupBanner(cfg *config.Config, version string) {
	fmt.Println()
	fmt.Println("👀 go-gaze v" + version)
	fmt.Println("   Gaze-adaptive window transforms")
	fmt.Println()
	fmt.Printf("🚀 Running at http://0.0.0.0:%d\n", cfg.Server.Port)
	fmt.Printf("   Participant %s, condition %s, peers via %s\n",
		cfg.Participant.ID, cfg.Participant.Condition, cfg.Peer.Transport)
	fmt.Println()
	fmt.Println("   Endpoints:")
	fmt.Println("   GET  /health               - Health check")
	fmt.Println("   WS   /api/ingest           - Landmarks, audio and transcripts in")
	fmt.Println("   WS   /api/stream           - Window transforms out")
	fmt.Println("   GET  /api/transform        - Latest local transform")
	fmt.Println("   PUT  /api/condition        - Switch experiment condition")
	fmt.Println("   POST /api/session/start    - Start measurement session")
	fmt.Println("   POST /api/session/stop     - Stop and export session")
	fmt.Println("   GET  /api/session/export   - Download last session CSV")
	fmt.Println("   GET  /metrics              - Prometheus metrics")
	fmt.Println()
	fmt.Println("   Press Ctrl+C to stop")
	fmt.Println()
}
