package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"deskhub/internal/config"
	"deskhub/internal/server"
	"deskhub/pkg/logging"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath points at an explicit configuration file. When empty,
// defaults plus environment overrides apply.
var serveConfigPath string

// serveCmd defines the serve command structure. This is the main command of
// deskhub: it starts the authenticated MCP endpoint and blocks until the
// process receives a termination signal.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deskhub MCP server",
	Long: `Starts the deskhub MCP server on the configured address.

The server exposes:
  POST   /mcp     the tool endpoint (bearer token required)
  DELETE /mcp     session teardown in stateful mode
  GET    /health  unauthenticated liveness probe

Configuration is read from --config if given, then overridden from the
DESKHUB_* environment variables. Malformed configuration aborts startup.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	level := logging.LevelInfo
	if serveDebug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a YAML configuration file")
}
