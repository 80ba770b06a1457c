// Command toolweaved is the main entry point for the toolweave MCP
// aggregation proxy.
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
	"time"

	"github.com/toolweave/toolweave/internal/app"
	"github.com/toolweave/toolweave/internal/config"
	"github.com/toolweave/toolweave/internal/observe"
	"github.com/toolweave/toolweave/pkg/provider/chat"
	"github.com/toolweave/toolweave/pkg/provider/chat/anyllm"
	"github.com/toolweave/toolweave/pkg/provider/embeddings"
	embeddingsollama "github.com/toolweave/toolweave/pkg/provider/embeddings/ollama"
	embeddingsopenai "github.com/toolweave/toolweave/pkg/provider/embeddings/openai"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	debug := flag.Bool("debug", false, "force debug-level logging regardless of the config file")
	flag.Parse()

	// ── Load configuration ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "toolweaved: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "toolweaved: %v\n", err)
		}
		return 1
	}
	if *debug {
		cfg.Server.LogLevel = config.LogLevelDebug
	}

	// ── Logger ────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("toolweaved starting",
		"config", *configPath,
		"addr", cfg.Server.Addr(),
		"log_level", cfg.Server.LogLevel,
		"upstream_servers", len(cfg.Upstream),
	)

	// ── Telemetry ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName:    "toolweave",
		ServiceVersion: "0.1.0",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Application wiring ────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, reg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	watcher, err := config.NewWatcher(*configPath, onConfigChange)
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders registers the embeddings and chat provider
// factories that ship with toolweave.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []embeddingsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, embeddingsopenai.WithBaseURL(entry.BaseURL))
		}
		return embeddingsopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return embeddingsollama.New(entry.BaseURL, entry.Model)
	})

	reg.RegisterChat("openai", func(entry config.ProviderEntry) (chat.Provider, error) {
		return newAnyLLMChat("openai", entry)
	})
	reg.RegisterChat("anthropic", func(entry config.ProviderEntry) (chat.Provider, error) {
		return newAnyLLMChat("anthropic", entry)
	})
	reg.RegisterChat("gemini", func(entry config.ProviderEntry) (chat.Provider, error) {
		return newAnyLLMChat("gemini", entry)
	})
	reg.RegisterChat("ollama", func(entry config.ProviderEntry) (chat.Provider, error) {
		return newAnyLLMChat("ollama", entry)
	})
	reg.RegisterChat("deepseek", func(entry config.ProviderEntry) (chat.Provider, error) {
		return newAnyLLMChat("deepseek", entry)
	})
	reg.RegisterChat("mistral", func(entry config.ProviderEntry) (chat.Provider, error) {
		return newAnyLLMChat("mistral", entry)
	})
	reg.RegisterChat("groq", func(entry config.ProviderEntry) (chat.Provider, error) {
		return newAnyLLMChat("groq", entry)
	})
}

// newAnyLLMChat builds an anyllm-backed chat.Provider for backendName using
// the API key and base URL found in entry, if any.
func newAnyLLMChat(backendName string, entry config.ProviderEntry) (chat.Provider, error) {
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(backendName, entry.Model, opts...)
}

// ── Config hot-reload ────────────────────────────────────────────────────────

// onConfigChange logs what changed between the previous and newly reloaded
// config. Live upstream sessions are not hot-swapped; a restart is still
// required to pick up a changed enabled/env/args set.
func onConfigChange(old, new *config.Config) {
	d := config.DiffConfigs(old, new)
	if d.LogLevelChanged {
		slog.Info("config reload: log level changed", "new_level", d.NewLogLevel)
	}
	for _, u := range d.UpstreamChanges {
		switch {
		case u.Added:
			slog.Info("config reload: upstream server added", "server", u.Name)
		case u.Removed:
			slog.Info("config reload: upstream server removed", "server", u.Name)
		default:
			slog.Info("config reload: upstream server changed", "server", u.Name,
				"enabled_changed", u.EnabledChanged, "new_enabled", u.NewEnabled,
				"env_changed", u.EnvChanged, "args_changed", u.ArgsChanged)
		}
	}
	if !d.LogLevelChanged && !d.UpstreamChanged {
		slog.Info("config reload: file touched, no effective change")
	} else {
		slog.Warn("config reload: changes detected but not applied — restart toolweaved to pick them up")
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
