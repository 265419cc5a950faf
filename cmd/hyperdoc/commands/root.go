package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// BuildInfo is stamped into the binary at build time.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	output     string
	serverURL  string
}

// Execute runs the root command.
func Execute(ctx context.Context, info BuildInfo) error {
	return newRootCommand(info).ExecuteContext(ctx)
}

func newRootCommand(info BuildInfo) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "hyperdoc",
		Short: "HyperDoc - federated AI provider orchestrator",
		Long: `HyperDoc routes completion requests across a federation of AI providers
with retry and fallback, keeps a replicated memory federation for request
context, and exposes MCP tools.

Features:
  - Affinity and priority based provider selection
  - Exponential backoff and cheapest-first fallback
  - Primary/replica memory with merged search
  - Notion, GitHub and evidence MCP tools
  - HTTP, WebSocket and gRPC health endpoints`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default ./hyperdoc.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&opts.serverURL, "server", "http://localhost:8000", "address of a running server")

	rootCmd.AddCommand(newServeCommand(opts, info))
	rootCmd.AddCommand(newProvidersCommand(opts))
	rootCmd.AddCommand(newToolsCommand(opts))
	rootCmd.AddCommand(newConfigCommand(opts))
	rootCmd.AddCommand(newVersionCommand(info))

	return rootCmd
}
