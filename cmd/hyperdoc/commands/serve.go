package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/config"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/internal/app"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

func newServeCommand(opts *globalOptions, info BuildInfo) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator server",
		Long: `Run the orchestrator server.

The server registers every provider that has credentials, opens the memory
backends, registers the MCP tools and serves HTTP and WebSocket requests until
interrupted. With server.grpcPort set, backend health is also published over
the gRPC health service.`,
		Example: `  # Serve with ./hyperdoc.yaml or defaults
  hyperdoc serve

  # Serve on another port with an explicit config
  hyperdoc serve --config /etc/hyperdoc.yaml --port 9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			logger, err := telemetry.NewLogger(cfg.Logging)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			log.Logger = logger

			a, err := app.New(cfg, logger, info.Version)
			if err != nil {
				return err
			}

			logger.Info().
				Str("version", info.Version).
				Int("port", cfg.Server.Port).
				Int("grpc_port", cfg.Server.GRPCPort).
				Msg("Starting HyperDoc server")

			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")

	return cmd
}
