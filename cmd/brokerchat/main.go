package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/brokerchat/internal/anthropic"
	"github.com/MikeSquared-Agency/brokerchat/internal/api"
	"github.com/MikeSquared-Agency/brokerchat/internal/chat"
	"github.com/MikeSquared-Agency/brokerchat/internal/config"
	"github.com/MikeSquared-Agency/brokerchat/internal/hermes"
	"github.com/MikeSquared-Agency/brokerchat/internal/profile"
	"github.com/MikeSquared-Agency/brokerchat/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("brokerchat starting", "port", cfg.Port, "responder", cfg.Responder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Business profile: database when configured, built-in defaults otherwise.
	prof := profile.Default()
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		prof, err = loadProfile(ctx, db, cfg.ProfileSlug)
		if err != nil {
			slog.Error("failed to load profile", "slug", cfg.ProfileSlug, "error", err)
			os.Exit(1)
		}
		slog.Info("database connected", "profile", prof.Slug)
	} else {
		slog.Warn("DATABASE_URL not set, using built-in profile")
	}

	// Response source
	var responder chat.Responder
	switch cfg.Responder {
	case "live":
		if cfg.AnthropicAPIKey == "" {
			slog.Error("ANTHROPIC_API_KEY is required for the live responder")
			os.Exit(1)
		}
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, 0).WithBaseURL(cfg.AnthropicURL)
		responder = chat.NewLiveResponder(llm, cfg.MaxTokens)
		slog.Info("anthropic client ready", "model", llm.Model())
	case "canned":
		seed := uint64(time.Now().UnixNano())
		responder = chat.NewCannedResponder(rand.New(rand.NewPCG(seed, seed>>1)), cfg.CannedDelay)
		slog.Info("canned responder ready", "delay", cfg.CannedDelay)
	default:
		slog.Error("unknown CHAT_RESPONDER", "value", cfg.Responder)
		os.Exit(1)
	}

	// NATS/Hermes (optional, events are dropped without it)
	var events chat.Events
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		c, err := hermes.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer c.Close()
		hermesClient = c
		events = hermes.NewEvents(c, slog.Default())
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set, running without lifecycle events")
	}

	sessions := chat.NewRegistry(chat.SessionConfig{
		Profile:        prof,
		Responder:      responder,
		Policy:         chat.DefaultFormPolicy(),
		Events:         events,
		Logger:         slog.Default(),
		ModelTimeout:   cfg.ModelTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, cfg.SessionTTL)
	go sessions.Run(ctx, time.Minute)

	// HTTP API
	srv, err := api.NewServer(api.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         slog.Default(),
	}, sessions, prof)
	if err != nil {
		slog.Error("failed to build HTTP server", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if hermesClient != nil {
		if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"responder": responder.Kind(),
			"profile":   prof.Slug,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("brokerchat ready", "port", cfg.Port, "company", prof.CompanyName)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	slog.Info("brokerchat stopped")
}

// loadProfile reads the configured profile, seeding the built-in one on first run.
func loadProfile(ctx context.Context, db *store.Store, slug string) (profile.Profile, error) {
	p, err := db.LoadProfile(ctx, slug)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrProfileNotFound) {
		return profile.Profile{}, err
	}

	p = profile.Default()
	p.Slug = slug
	if err := db.SaveProfile(ctx, p); err != nil {
		return profile.Profile{}, err
	}
	slog.Info("seeded default profile", "slug", slug)
	return p, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
