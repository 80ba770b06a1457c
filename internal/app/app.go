// Package app wires toolweave's subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// upstream supervisor, tool index, and meta-tool HTTP/MCP front-end; Run
// starts all upstream sessions, performs the initial index build, and serves
// HTTP until the context is cancelled; Shutdown tears everything down in
// order.
//
// For testing, inject a pre-built Supervisor or Index via functional options
// (WithSupervisor, WithIndex). When an option is not provided, New creates
// real implementations from the config and provider registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/toolweave/toolweave/internal/config"
	"github.com/toolweave/toolweave/internal/health"
	"github.com/toolweave/toolweave/internal/index"
	"github.com/toolweave/toolweave/internal/metatool"
	"github.com/toolweave/toolweave/internal/observe"
	"github.com/toolweave/toolweave/internal/upstream"
	"github.com/toolweave/toolweave/pkg/provider/chat"
)

// serviceName identifies this service in telemetry and the MCP
// Implementation handshake.
const serviceName = "toolweave"

// App owns all subsystem lifetimes and orchestrates the MCP aggregation proxy.
type App struct {
	cfg *config.Config

	sv      *upstream.Supervisor
	idx     *index.Index
	handler *metatool.Handler
	server  *http.Server

	// closers are called in order during Shutdown, after the HTTP server and
	// supervisor have already been stopped.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSupervisor injects a Supervisor instead of building one from
// cfg.Upstream. The caller remains responsible for registering servers on it
// before passing it in.
func WithSupervisor(sv *upstream.Supervisor) Option {
	return func(a *App) { a.sv = sv }
}

// WithIndex injects a tool Index instead of creating one from the configured
// embeddings (and optional chat) provider.
func WithIndex(idx *index.Index) Option {
	return func(a *App) { a.idx = idx }
}

// New wires the supervisor, tool index, and meta-tool HTTP/MCP front-end
// together. registry resolves the embeddings and chat provider names found
// in cfg into concrete implementations. Use Option functions to inject test
// doubles for the supervisor or index.
func New(cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if a.sv == nil {
		a.sv = upstream.NewSupervisor()
		for _, up := range cfg.Upstream {
			if err := a.sv.Register(up); err != nil {
				return nil, fmt.Errorf("app: register upstream %q: %w", up.Name, err)
			}
		}
	}

	metrics := observe.DefaultMetrics()

	if a.idx == nil {
		idx, err := a.buildIndex(registry, metrics)
		if err != nil {
			return nil, err
		}
		a.idx = idx
	}

	a.handler = metatool.New(a.sv, a.idx, cfg.Index.DefaultTopK, cfg.Index.DefaultThreshold,
		metatool.WithServiceType(serviceName), metatool.WithMetrics(metrics))

	mux := http.NewServeMux()
	metatool.RegisterHTTP(mux, a.handler, serviceName, "0.1.0")
	health.New(health.Checker{Name: "upstream", Check: a.checkUpstream}).Register(mux)

	a.server = &http.Server{Addr: cfg.Server.Addr(), Handler: observe.Middleware(metrics)(mux)}

	return a, nil
}

// buildIndex resolves the configured embeddings provider (and, when enhanced
// phrase generation is enabled, the chat provider) and constructs the tool
// index around them.
func (a *App) buildIndex(registry *config.Registry, metrics *observe.Metrics) (*index.Index, error) {
	embedder, err := registry.CreateEmbeddings(a.cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("app: create embeddings provider: %w", err)
	}

	idxOpts := []index.Option{index.WithMetrics(metrics)}
	if a.cfg.Index.UseEnhancedPhraseGeneration && a.cfg.Chat.Provider.Name != "" {
		var chatProvider chat.Provider
		chatProvider, err = registry.CreateChat(a.cfg.Chat.Provider)
		if err != nil {
			return nil, fmt.Errorf("app: create chat provider: %w", err)
		}
		idxOpts = append(idxOpts, index.WithChatProvider(chatProvider, a.cfg.Chat.PhraseGenerationPrompt))
	}

	return index.New(a.cfg.VectorStore.CollectionName, a.cfg.VectorStore.EmbeddingDimensions, embedder, idxOpts...), nil
}

// checkUpstream reports the readiness of the upstream layer: healthy once at
// least one enabled server has successfully started.
func (a *App) checkUpstream(_ context.Context) error {
	if len(a.sv.Running()) == 0 {
		return errors.New("no upstream servers running")
	}
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Supervisor returns the upstream session supervisor.
func (a *App) Supervisor() *upstream.Supervisor { return a.sv }

// Index returns the tool search index.
func (a *App) Index() *index.Index { return a.idx }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts every enabled upstream session, performs the initial tool-index
// build, then serves the meta-tool HTTP/MCP front-end until ctx is cancelled
// or the server fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.sv.StartAll(ctx); err != nil {
		slog.Warn("one or more upstream servers failed to start", "error", err)
	}

	if stats, err := a.idx.Refresh(ctx, a.sv); err != nil {
		slog.Warn("initial tool index refresh failed", "error", err)
	} else {
		slog.Info("tool index built", "servers", stats.ServerCount, "tools", stats.ToolCount, "skipped", stats.SkippedCount)
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen on %s: %w", a.server.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("app running", "addr", a.server.Addr)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down the HTTP server, then every upstream session, then any
// remaining closers in order. It respects the context deadline: if ctx
// expires before all closers finish, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		if err := a.sv.StopAll(ctx); err != nil {
			slog.Warn("upstream stop error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
