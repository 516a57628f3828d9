package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nvoskov/outreach-bot/internal/generator"
	"github.com/nvoskov/outreach-bot/internal/lifecycle"
	"github.com/nvoskov/outreach-bot/internal/poller"
	"github.com/nvoskov/outreach-bot/internal/ratelimit"
	"github.com/nvoskov/outreach-bot/internal/router"
	"github.com/nvoskov/outreach-bot/internal/storage"
	"github.com/nvoskov/outreach-bot/internal/transport"
	"github.com/nvoskov/outreach-bot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize generator and classifier
	gen := generator.NewOpenAIGenerator(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		cfg.Bot.SystemPrompt,
		logger,
	)
	classifier := lifecycle.New(
		cfg.Lifecycle.RejectionPhrases,
		cfg.Lifecycle.InterestKeywords,
		cfg.Lifecycle.EngagedThreshold,
	)

	// Initialize router
	r := router.New(store, gen, classifier, router.Config{
		ContextLimit:    cfg.Bot.ContextLimit,
		FarewellText:    cfg.Bot.FarewellText,
		FallbackText:    cfg.Bot.FallbackText,
		TypingEmulation: cfg.Bot.TypingEmulation,
	}, logger)

	// Build the transport registry from enabled platforms
	registry := transport.NewRegistry()
	for name, platformCfg := range cfg.Platforms {
		if !platformCfg.Enabled {
			continue
		}
		switch name {
		case "telegram":
			if err := registry.Register(transport.NewTelegramTransport(platformCfg.Token, logger)); err != nil {
				logger.Fatal("Failed to register transport", zap.Error(err), zap.String("platform", name))
			}
		default:
			logger.Warn("Unknown platform in config", zap.String("platform", name))
		}
	}
	if len(registry.Platforms()) == 0 {
		logger.Fatal("No platforms enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wire the per-platform guards and rate gates
	p := poller.New(r, poller.Config{
		PollMin:      cfg.Poller.PollMin(),
		PollMax:      cfg.Poller.PollMax(),
		BackoffMin:   cfg.Poller.BackoffMin(),
		BackoffMax:   cfg.Poller.BackoffMax(),
		MessageDelay: cfg.Poller.MessageDelay(),
	}, logger)

	for _, name := range registry.Platforms() {
		t, _ := registry.Get(name)
		platformCfg := cfg.Platforms[name]

		gate := ratelimit.New(name, t.Account(), ratelimit.Limits{
			DailyCeiling:        platformCfg.MaxMessagesPerDay,
			MinInterval:         time.Duration(platformCfg.MinIntervalMinutes) * time.Minute,
			WorkStartHour:       platformCfg.WorkingHours.Start,
			WorkEndHour:         platformCfg.WorkingHours.End,
			EnforceWorkingHours: platformCfg.WorkingHours.Enabled,
		}, store, logger)
		gate.Restore(ctx)

		guard := transport.NewGuard(t, store, logger)
		r.Bind(name, &router.Binding{
			Guard:     guard,
			Gate:      gate,
			StyleHint: platformCfg.StyleHint,
		})
		p.Add(name, guard)
	}

	// Optional metrics endpoint
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("Metrics listener started", zap.String("addr", cfg.Metrics.Addr))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error("Metrics listener failed", zap.Error(err))
			}
		}()
	}

	logger.Info("Starting poll workers", zap.Strings("platforms", registry.Platforms()))
	p.Run(ctx)
	logger.Info("Shutdown complete")
}
