package upstream

import "errors"

// Sentinel errors returned by Supervisor.Call, matching the failure modes
// the proxy must distinguish when forwarding a tool invocation.
var (
	// ErrUnknownServer indicates the named upstream server was never
	// registered.
	ErrUnknownServer = errors.New("upstream: unknown server")

	// ErrDisabled indicates the named upstream server is registered but
	// configured with enabled: false, so it was never started.
	ErrDisabled = errors.New("upstream: server is disabled")

	// ErrNotRunning indicates the named upstream server is registered and
	// enabled but is not currently in the Running state (e.g. Stopped,
	// Starting, or Failed).
	ErrNotRunning = errors.New("upstream: server is not running")

	// ErrUnknownTool indicates the server is running but advertises no tool
	// matching the requested name, even case-insensitively.
	ErrUnknownTool = errors.New("upstream: unknown tool")

	// ErrUpstreamError wraps a failure reported by the upstream server
	// itself, either at the transport level or as a tool-level error result.
	ErrUpstreamError = errors.New("upstream: call failed")
)
