package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/config"
)

func newConfigCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(opts))
	cmd.AddCommand(newConfigShowCommand(opts))
	return cmd
}

func newConfigValidateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			usable := cfg.UsableProviders()
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %d of %d providers usable, %d memory backends\n",
				len(usable), len(cfg.Compute.Providers), len(cfg.EnabledBackends()))
			return nil
		},
	}
}

// providerView is the printable form of a provider; secrets are reduced to
// whether they are present.
type providerView struct {
	ID       string   `json:"id" yaml:"id"`
	Kind     string   `json:"kind" yaml:"kind"`
	Priority int      `json:"priority" yaml:"priority"`
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	HasKey   bool     `json:"hasKey" yaml:"hasKey"`
	Usable   bool     `json:"usable" yaml:"usable"`
	BaseURL  string   `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Models   []string `json:"models,omitempty" yaml:"models,omitempty"`
}

func newConfigShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the provider table after defaults and environment are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			views := make([]providerView, 0, len(cfg.Compute.Providers))
			for _, p := range cfg.Compute.Providers {
				views = append(views, providerView{
					ID:       p.ID,
					Kind:     p.Kind,
					Priority: p.Priority,
					Enabled:  p.Enabled,
					HasKey:   p.ResolveAPIKey() != "",
					Usable:   p.Usable(),
					BaseURL:  p.ResolveBaseURL(),
					Models:   p.Models,
				})
			}

			return render(cmd.OutOrStdout(), opts.output, views, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tKIND\tPRIORITY\tENABLED\tKEY\tUSABLE")
				for _, v := range views {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%t\t%t\n", v.ID, v.Kind, v.Priority, v.Enabled, v.HasKey, v.Usable)
				}
			})
		},
	}
}
