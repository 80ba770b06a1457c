package upstream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/toolweave/toolweave/internal/config"
	"github.com/toolweave/toolweave/pkg/types"
)

// Supervisor owns every configured upstream server's Session and dispatches
// tool calls and lifecycle operations across them.
type Supervisor struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

// NewSupervisor creates an empty Supervisor. Call Register for each
// configured upstream server before starting it.
func NewSupervisor() *Supervisor {
	return &Supervisor{sessions: make(map[string]*Session)}
}

// Register adds an upstream server to the supervisor in the Stopped state.
// It does not connect. Registering a name twice replaces the prior session
// only if it is Stopped; otherwise an error is returned.
func (sv *Supervisor) Register(cfg config.UpstreamConfig) error {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	if existing, ok := sv.sessions[cfg.Name]; ok && existing.State() != StateStopped {
		return fmt.Errorf("upstream: cannot re-register %q while it is %s", cfg.Name, existing.State())
	}
	if _, ok := sv.sessions[cfg.Name]; !ok {
		sv.order = append(sv.order, cfg.Name)
	}
	sv.sessions[cfg.Name] = newSession(cfg)
	return nil
}

// Get returns the session registered under name, if any.
func (sv *Supervisor) Get(name string) (*Session, bool) {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	s, ok := sv.sessions[name]
	return s, ok
}

// Names returns the registered server names in registration order.
func (sv *Supervisor) Names() []string {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	out := make([]string, len(sv.order))
	copy(out, sv.order)
	return out
}

// Running returns the names of servers currently in the Running state.
func (sv *Supervisor) Running() []string {
	sv.mu.RLock()
	sessions := make([]*Session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		sessions = append(sessions, s)
	}
	sv.mu.RUnlock()

	var out []string
	for _, s := range sessions {
		if s.State() == StateRunning {
			out = append(out, s.Name())
		}
	}
	sort.Strings(out)
	return out
}

// StartAll starts every enabled, registered server concurrently. A single
// server's failure to start does not abort the others; the aggregated error,
// if any, names every server that failed.
func (sv *Supervisor) StartAll(ctx context.Context) error {
	sv.mu.RLock()
	sessions := make([]*Session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		sessions = append(sessions, s)
	}
	sv.mu.RUnlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sessions {
		s := s
		if !s.Config().Enabled {
			continue
		}
		g.Go(func() error {
			if err := s.start(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// StopAll stops every registered server concurrently, regardless of its
// current state. Errors from individual servers are aggregated but do not
// prevent the others from stopping.
func (sv *Supervisor) StopAll(ctx context.Context) error {
	sv.mu.RLock()
	sessions := make([]*Session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		sessions = append(sessions, s)
	}
	sv.mu.RUnlock()

	stopCtx := context.WithoutCancel(ctx)
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			if err := s.stop(stopCtx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// RefreshAllTools re-lists tools on every currently running server
// concurrently. A server whose refresh fails keeps its last known-good tool
// list; the aggregated error, if any, names every server that failed.
func (sv *Supervisor) RefreshAllTools(ctx context.Context) error {
	sv.mu.RLock()
	sessions := make([]*Session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		sessions = append(sessions, s)
	}
	sv.mu.RUnlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sessions {
		s := s
		if s.State() != StateRunning {
			continue
		}
		g.Go(func() error {
			if err := s.refreshTools(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// AllTools returns every tool discovered across all running servers, tagged
// with the server that advertises it.
func (sv *Supervisor) AllTools() map[string][]types.ToolDescriptor {
	sv.mu.RLock()
	sessions := make([]*Session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		sessions = append(sessions, s)
	}
	sv.mu.RUnlock()

	out := make(map[string][]types.ToolDescriptor, len(sessions))
	for _, s := range sessions {
		if s.State() != StateRunning {
			continue
		}
		out[s.Name()] = s.Tools()
	}
	return out
}

// Call dispatches a tool invocation to the named upstream server. It returns
// ErrUnknownServer if no such server was registered, ErrDisabled if it is
// registered but configured disabled, and otherwise delegates to the
// session's own state and tool-lookup checks (ErrNotRunning, ErrUnknownTool,
// ErrUpstreamError).
func (sv *Supervisor) Call(ctx context.Context, server, tool string, args map[string]any) (string, error) {
	s, ok := sv.Get(server)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownServer, server)
	}
	if !s.Config().Enabled {
		return "", fmt.Errorf("%w: %s", ErrDisabled, server)
	}
	return s.call(ctx, tool, args)
}
