// Parley negotiation server — exposes the HTTP/WebSocket API and drives
// concurrent multi-agent negotiation sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/parley-ai/parley/pkg/api"
	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/engine"
	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/profile"
	"github.com/parley-ai/parley/pkg/resonance"
	"github.com/parley-ai/parley/pkg/session"
	"github.com/parley-ai/parley/pkg/skill"
	"github.com/parley-ai/parley/pkg/tools"
	"github.com/parley-ai/parley/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// buildLLMRegistry creates one client per configured provider and sets the
// default.
func buildLLMRegistry(cfg *config.LLMConfig) (*llm.Registry, error) {
	registry := llm.NewRegistry()

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := cfg.Providers[name]
		apiKey := p.APIKey()
		if apiKey == "" {
			slog.Warn("LLM provider has no API key, skipping",
				"provider", name, "env", p.APIKeyEnv)
			continue
		}
		switch p.Type {
		case config.ProviderOpenAI:
			registry.Register(name, llm.NewOpenAIClient(apiKey, p.Model))
		case config.ProviderAnthropic:
			registry.Register(name, llm.NewAnthropicClient(apiKey, p.Model))
		}
	}

	if len(registry.Providers()) == 0 {
		return nil, fmt.Errorf("no LLM provider has an API key configured")
	}
	if err := registry.SetDefault(cfg.DefaultProvider); err != nil {
		slog.Warn("Default LLM provider unavailable, using first configured",
			"provider", cfg.DefaultProvider)
	}
	return registry, nil
}

// buildEncoder resolves the embedding encoder from the first OpenAI provider
// with a key, falling back to OPENAI_API_KEY.
func buildEncoder(cfg *config.Config) (resonance.Encoder, error) {
	apiKey := ""
	for _, p := range cfg.LLM.Providers {
		if p.Type == config.ProviderOpenAI && p.APIKey() != "" {
			apiKey = p.APIKey()
			break
		}
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("resonance encoding requires an OpenAI API key")
	}
	return resonance.NewOpenAIEncoder(apiKey, cfg.Resonance.EmbeddingModel), nil
}

func main() {
	configPath := flag.String("config",
		getEnv("PARLEY_CONFIG", "./config.yaml"),
		"Path to the YAML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment")
	}

	slog.Info("Starting parley",
		"version", version.Full(),
		"config", *configPath)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Agent profile store: Postgres when configured, in-memory otherwise
	var profiles profile.Store
	if cfg.Database.Enabled() {
		pgStore, err := profile.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		profiles = pgStore
		slog.Info("Agent profiles backed by PostgreSQL")
	} else {
		profiles = profile.NewMemoryStore()
		slog.Info("Agent profiles backed by in-memory store")
	}

	// 3. Resonance: encoder + vector index
	encoder, err := buildEncoder(cfg)
	if err != nil {
		slog.Error("Failed to initialize encoder", "error", err)
		os.Exit(1)
	}
	index, err := resonance.NewIndex(encoder)
	if err != nil {
		slog.Error("Failed to initialize agent index", "error", err)
		os.Exit(1)
	}

	// 4. LLM clients and skills
	registry, err := buildLLMRegistry(cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM clients", "error", err)
		os.Exit(1)
	}
	skills := skill.NewRunner(registry)
	slog.Info("LLM clients initialized", "providers", registry.Providers())

	// 5. Event fabric: bus, publisher, WebSocket fan-out
	bus := events.NewBus()
	connManager := events.NewConnectionManager(bus, cfg.Server.WSWriteTimeout)
	bus.SetBroadcaster(connManager)

	// 6. Negotiation engine
	eng := engine.New(cfg, engine.Dependencies{
		Sessions:  session.NewManager(),
		Profiles:  profiles,
		Encoder:   encoder,
		Index:     index,
		Skills:    skills,
		Tools:     tools.DefaultRegistry(),
		Publisher: events.NewPublisher(bus),
	})

	// 7. HTTP server
	httpServer := api.NewServer(cfg.Server, eng, profiles, index, connManager)

	errCh := make(chan error, 1)
	go func() {
		addr := cfg.Server.Addr()
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Parley started successfully")

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown: stop accepting requests, then drain sessions
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	engineShutdownCtx, engineCancel := context.WithTimeout(ctx, 15*time.Second)
	defer engineCancel()
	if err := eng.Shutdown(engineShutdownCtx); err != nil {
		slog.Warn("Shutdown timeout exceeded, abandoning running sessions", "error", err)
	}

	slog.Info("Shutdown complete")
}
