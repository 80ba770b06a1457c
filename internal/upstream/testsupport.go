package upstream

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/toolweave/toolweave/pkg/types"
)

// AttachForTesting installs an already-connected client session and its
// discovered tools directly into the named, already-registered session and
// marks it Running, bypassing the normal transport-dial-and-handshake path
// in start. It exists so other packages' tests can build a Supervisor
// backed by in-memory MCP transports without a live subprocess or HTTP
// server.
func (sv *Supervisor) AttachForTesting(name string, conn *mcp.ClientSession, tools []types.ToolDescriptor) error {
	s, ok := sv.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	s.mu.Lock()
	s.conn = conn
	s.tools = tools
	s.state = StateRunning
	s.mu.Unlock()
	return nil
}
