// Package mock provides a test double for the chat.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/toolweave/toolweave/pkg/provider/chat"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	System      string
	User        string
	Temperature float64
}

// Provider is a mock implementation of chat.Provider.
type Provider struct {
	mu sync.Mutex

	// CompleteResult is returned by Complete. If CompleteFunc is set, it
	// takes precedence and CompleteResult/CompleteErr are ignored.
	CompleteResult string

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// CompleteFunc, if set, is called instead of returning the canned
	// CompleteResult/CompleteErr — useful for varying responses per call
	// (e.g., to simulate per-tool phrase generation).
	CompleteFunc func(ctx context.Context, system, user string, temperature float64) (string, error)

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// CompleteCalls records every call to Complete in order.
	CompleteCalls []CompleteCall
}

var _ chat.Provider = (*Provider)(nil)

// Complete records the call and returns CompleteResult/CompleteErr, or
// delegates to CompleteFunc when set.
func (p *Provider) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{System: system, User: user, Temperature: temperature})
	fn := p.CompleteFunc
	result, err := p.CompleteResult, p.CompleteErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, system, user, temperature)
	}
	return result, err
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string {
	return p.ModelIDValue
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
}

// Calls returns a copy of the recorded Complete calls.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.CompleteCalls))
	copy(out, p.CompleteCalls)
	return out
}
