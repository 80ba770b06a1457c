// Package upstream implements the supervisor that owns the lifecycle of
// every upstream MCP server the proxy fronts: starting and stopping
// connections, tracking per-server state, discovering tools, and forwarding
// tool calls.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/toolweave/toolweave/internal/config"
	"github.com/toolweave/toolweave/pkg/types"
)

// State is a point in an upstream session's lifecycle.
type State int

const (
	// StateStopped is the initial state and the state after a clean stop.
	StateStopped State = iota
	// StateStarting indicates a connection attempt is in progress.
	StateStarting
	// StateRunning indicates the session is connected and its tools have
	// been discovered.
	StateRunning
	// StateFailed indicates the last start attempt failed. The session can
	// be started again (for example by Supervisor.StartAll).
	StateFailed
	// StateStopping indicates a stop is in progress.
	StateStopping
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Session owns a single upstream MCP server connection: its transport, its
// discovered tool list, and its current lifecycle state. A Session is safe
// for concurrent use.
type Session struct {
	cfg config.UpstreamConfig

	mu      sync.RWMutex
	state   State
	lastErr error
	client  *mcp.Client
	conn    *mcp.ClientSession
	tools   []types.ToolDescriptor
}

// newSession creates a Stopped Session for cfg. It does not connect.
func newSession(cfg config.UpstreamConfig) *Session {
	return &Session{cfg: cfg, state: StateStopped}
}

// Name returns the server's configured name.
func (s *Session) Name() string { return s.cfg.Name }

// Config returns a copy of the session's configuration.
func (s *Session) Config() config.UpstreamConfig { return s.cfg }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the error from the most recent failed start, or nil.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Tools returns a snapshot of the tools discovered on this server. The
// snapshot is empty when the session has never successfully started.
func (s *Session) Tools() []types.ToolDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ToolDescriptor, len(s.tools))
	copy(out, s.tools)
	return out
}

// lookupTool finds a tool by case-insensitive name match against the
// session's discovered tools. It returns the matching descriptor, whose Name
// is the exact advertised name used for wire invocation, and whether a match
// was found.
func (s *Session) lookupTool(name string) (types.ToolDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tools {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return types.ToolDescriptor{}, false
}

// start connects to the upstream server and discovers its tools. On
// success the session transitions to Running; on failure it transitions to
// Failed and the error is recorded in lastErr.
func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning || s.state == StateStarting {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	transport, err := s.buildTransport(ctx)
	if err != nil {
		s.fail(err)
		return err
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "toolweave", Version: "1.0.0"}, nil)
	conn, err := client.Connect(ctx, transport, nil)
	if err != nil {
		s.fail(fmt.Errorf("connect to %q: %w", s.cfg.Name, err))
		return s.lastErrLocked()
	}

	tools, err := discoverTools(ctx, conn)
	if err != nil {
		_ = conn.Close()
		s.fail(fmt.Errorf("list tools on %q: %w", s.cfg.Name, err))
		return s.lastErrLocked()
	}

	s.mu.Lock()
	s.client = client
	s.conn = conn
	s.tools = tools
	s.state = StateRunning
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// refreshTools re-lists tools on an already-running session, replacing the
// stored tool list. If listing fails, the session's existing tool list is
// left untouched and the error is returned — a transient listing failure
// must never wipe out a previously known-good tool set.
func (s *Session) refreshTools(ctx context.Context) error {
	s.mu.RLock()
	conn := s.conn
	running := s.state == StateRunning
	s.mu.RUnlock()
	if !running || conn == nil {
		return fmt.Errorf("upstream %q is not running", s.cfg.Name)
	}

	tools, err := discoverTools(ctx, conn)
	if err != nil {
		return fmt.Errorf("refresh tools on %q: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.tools = tools
	s.mu.Unlock()
	return nil
}

// stop closes the upstream connection and transitions to Stopped.
func (s *Session) stop(_ context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	conn := s.conn
	s.mu.Unlock()

	var closeErr error
	if conn != nil {
		closeErr = conn.Close()
	}

	s.mu.Lock()
	s.conn = nil
	s.client = nil
	s.tools = nil
	s.state = StateStopped
	s.mu.Unlock()

	return closeErr
}

// call invokes the named tool (matched case-insensitively) with the given
// arguments and returns its flattened text output.
func (s *Session) call(ctx context.Context, toolName string, args map[string]any) (string, error) {
	s.mu.RLock()
	conn := s.conn
	state := s.state
	s.mu.RUnlock()

	if state != StateRunning || conn == nil {
		return "", ErrNotRunning
	}

	tool, ok := s.lookupTool(toolName)
	if !ok {
		return "", ErrUnknownTool
	}

	result, err := conn.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool.Name, // exact advertised name, never the caller's casing
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUpstreamError, s.cfg.Name, err)
	}

	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if result.IsError {
		return "", fmt.Errorf("%w: %s: %s", ErrUpstreamError, s.cfg.Name, text)
	}
	return text, nil
}

// buildTransport constructs the mcp.Transport for this session's
// configured transport kind. Environment variables are set only on the
// child process's command, never on the proxy's own process environment.
func (s *Session) buildTransport(_ context.Context) (mcp.Transport, error) {
	switch s.cfg.Transport {
	case config.TransportStdio:
		if s.cfg.Command == "" {
			return nil, fmt.Errorf("upstream %q: command is required for stdio transport", s.cfg.Name)
		}
		cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
		cmd.Dir = s.cfg.WorkDir
		if cmd.Dir == "" {
			if home, err := os.UserHomeDir(); err == nil {
				cmd.Dir = home
			}
		}
		if len(s.cfg.Env) > 0 {
			env := cmd.Environ()
			for k, v := range s.cfg.Env {
				env = append(env, k+"="+v)
			}
			cmd.Env = env
		}
		return &mcp.CommandTransport{Command: cmd}, nil

	case config.TransportStreamableHTTP:
		if s.cfg.URL == "" {
			return nil, fmt.Errorf("upstream %q: url is required for streamable-http transport", s.cfg.Name)
		}
		return &mcp.StreamableClientTransport{Endpoint: s.cfg.URL}, nil

	case config.TransportSSE:
		if s.cfg.URL == "" {
			return nil, fmt.Errorf("upstream %q: url is required for sse transport", s.cfg.Name)
		}
		return &mcp.SSEClientTransport{Endpoint: s.cfg.URL}, nil

	default:
		return nil, fmt.Errorf("upstream %q: unknown transport %q", s.cfg.Name, s.cfg.Transport)
	}
}

// fail records err and transitions the session to Failed.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = StateFailed
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Session) lastErrLocked() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// discoverTools lists every tool advertised by conn and normalizes it into
// a types.ToolDescriptor.
func discoverTools(ctx context.Context, conn *mcp.ClientSession) ([]types.ToolDescriptor, error) {
	var out []types.ToolDescriptor
	for tool, err := range conn.Tools(ctx, nil) {
		if err != nil {
			return nil, err
		}
		out = append(out, toolToDescriptor(tool))
	}
	return out, nil
}

// toolToDescriptor converts an SDK tool into our normalized descriptor,
// flattening its JSON Schema input properties into a parameter list.
func toolToDescriptor(t *mcp.Tool) types.ToolDescriptor {
	d := types.ToolDescriptor{
		Name:        t.Name,
		Description: t.Description,
	}
	if t.InputSchema != nil {
		d.Parameters = schemaToParameters(t.InputSchema)
		if raw, err := json.Marshal(t.InputSchema); err == nil {
			d.RawSchema = raw
		}
	}
	return d
}
