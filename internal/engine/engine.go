package engine

import (
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "deskhub"
	serverVersion = "1.0.0"
)

// New creates a protocol engine instance with the deskhub demo tools
// registered. Each session owns exactly one engine; stateless serving
// creates one per request.
func New() *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)

	registerTools(s)
	return s
}
