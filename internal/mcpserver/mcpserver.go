package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/debtmap/internal/logging"
	"github.com/panbanda/debtmap/pkg/config"
	"github.com/panbanda/debtmap/pkg/engine"
)

// ConfigLoader resolves the configuration for a workspace root.
type ConfigLoader func(root string) (*config.Config, error)

// Option configures a Server.
type Option func(*Server)

// WithEngine shares e with the server so its blame cache survives between
// tool calls and other users of e.
func WithEngine(e *engine.Engine) Option {
	return func(s *Server) {
		s.engine = e
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logging.OrDiscard(l)
	}
}

// WithConfigLoader overrides how workspace configuration is found.
func WithConfigLoader(load ConfigLoader) Option {
	return func(s *Server) {
		s.loadConfig = load
	}
}

// Server wraps the MCP server and registers the debtmap tools.
type Server struct {
	server     *mcp.Server
	engine     *engine.Engine
	logger     *slog.Logger
	loadConfig ConfigLoader
}

// NewServer creates a new MCP server with all debtmap tools registered.
func NewServer(version string, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "debtmap",
			Version: version,
		},
		nil,
	)

	s := &Server{
		server:     server,
		logger:     logging.NewDiscardLogger(),
		loadConfig: loadWorkspaceConfig,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = engine.New(engine.WithLogger(s.logger))
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

func loadWorkspaceConfig(root string) (*config.Config, error) {
	res, err := config.LoadOrDefault(root)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools adds the debtmap tools to the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "scan_debt",
		Description: describeScanDebt(),
	}, s.handleScanDebt)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_blame_cache",
		Description: describeClearBlameCache(),
	}, s.handleClearBlameCache)
}
