package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/agent"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/archive"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/config"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/discovery"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/ghost"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/metrics"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/moderation"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/pipeline"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/render"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/tags"
)

const shutdownTimeout = 10 * time.Second

// app wires every pipeline component from configuration.
type app struct {
	cfg       *config.Config
	log       logger.Logger
	scanner   *discovery.Scanner
	processor *pipeline.Processor
	ghost     *ghost.Client
	metrics   *metrics.Metrics
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}

	appLog, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	detector := moderation.NewClient(cfg.Moderation.DetectorURL, cfg.Moderation.Timeout)
	engine, err := moderation.NewEngine(detector,
		cfg.Moderation.SampleCount, cfg.Moderation.VoteThreshold,
		appLog.With(logger.String("component", "moderation")))
	if err != nil {
		return nil, fmt.Errorf("create moderation engine: %w", err)
	}

	renderer, err := render.NewRenderer(cfg.Render, cfg.Directories.Output,
		appLog.With(logger.String("component", "render")))
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	primary, err := newBackend(cfg.Agents.Primary, cfg.Agents)
	if err != nil {
		return nil, err
	}
	fallback, err := newBackend(cfg.Agents.Fallback, cfg.Agents)
	if err != nil {
		return nil, err
	}
	orchestrator := agent.NewOrchestrator(primary, fallback, cfg.Agents.TitleMaxLen,
		appLog.With(logger.String("component", "agent")))

	ghostClient, err := ghost.NewClient(cfg.Ghost,
		appLog.With(logger.String("component", "ghost")))
	if err != nil {
		return nil, fmt.Errorf("create ghost client: %w", err)
	}

	archiver, err := archive.NewCoordinator(cfg.Directories.Archive,
		appLog.With(logger.String("component", "archive")))
	if err != nil {
		return nil, fmt.Errorf("create archive coordinator: %w", err)
	}

	scanner := discovery.NewScanner(cfg.Directories.Input, cfg.Directories.Archive,
		cfg.Pipeline.DedupEnabled, cfg.Pipeline.DedupDistance,
		appLog.With(logger.String("component", "discovery")))

	m := metrics.New()
	processor := pipeline.NewProcessor(pipeline.Deps{
		Moderator: engine,
		Renderer:  renderer,
		Generator: orchestrator,
		Publisher: ghostClient,
		Archiver:  archiver,
		Tagger:    tags.NewTagger(cfg.Tags.Keywords),
		Metrics:   m,
		Logger:    appLog.With(logger.String("component", "pipeline")),
	}, pipeline.Config{
		Concurrency: cfg.Pipeline.Concurrency,
		BaseTag:     cfg.Tags.Base,
		UnsafeTag:   cfg.Tags.Unsafe,
		Visibility:  cfg.Ghost.Visibility,
		TagLine:     cfg.Ghost.TagLine,
	})

	return &app{
		cfg:       cfg,
		log:       appLog,
		scanner:   scanner,
		processor: processor,
		ghost:     ghostClient,
		metrics:   m,
	}, nil
}

func newBackend(name string, cfg config.AgentConfig) (agent.Backend, error) {
	switch name {
	case "ollama", "local":
		return agent.NewOllama(cfg.Ollama.URL, cfg.Ollama.Model, cfg.Ollama.Timeout), nil
	case "claude", "remote":
		if cfg.Anthropic.APIKey == "" {
			return nil, errors.New("anthropic API key is required for the claude backend")
		}
		return agent.NewClaude(cfg.Anthropic.URL, cfg.Anthropic.APIKey,
			cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, cfg.Anthropic.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want ollama or claude)", name)
	}
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yml"
}

// runOnce processes all currently pending items and exits.
func runOnce() {
	a, err := buildApp()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer a.log.Sync()

	ctx := context.Background()
	items, err := a.scanner.Discover(ctx)
	if err != nil {
		a.log.Error("discovery failed", logger.Error(err))
		os.Exit(1)
	}

	summary := a.processor.Process(ctx, items)
	a.log.Info("run finished",
		logger.Int("total", summary.Total),
		logger.Int("published", summary.Published),
		logger.Int("failed", summary.Failed),
	)
}

// runWatch polls the input directory until interrupted, optionally exposing
// Prometheus metrics.
func runWatch() {
	a, err := buildApp()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer a.log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *http.Server
	if addr := a.cfg.Metrics.Address; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.log.Info("metrics listening", logger.String("addr", addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server failed", logger.Error(err))
			}
		}()
	}

	poller := pipeline.NewPoller(a.scanner, a.processor, a.cfg.Pipeline.PollInterval,
		a.log.With(logger.String("component", "poller")))
	poller.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	a.log.Info("shutting down")
	poller.Stop()
	cancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}
