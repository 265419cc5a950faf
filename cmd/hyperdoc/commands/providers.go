package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
)

func newProvidersCommand(opts *globalOptions) *cobra.Command {
	var memoryBackends bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show provider health and metrics from a running server",
		Example: `  # Compute providers as a table
  hyperdoc providers

  # Memory backends as YAML
  hyperdoc providers --memory -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/providers/status"
			if memoryBackends {
				path = "/memory/backends"
			}

			var statuses []federation.Status
			if err := fetch(cmd.Context(), opts.serverURL, path, &statuses); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, statuses, func(tw *tabwriter.Writer) {
				printStatuses(tw, statuses)
			})
		},
	}

	cmd.Flags().BoolVar(&memoryBackends, "memory", false, "show memory backends instead of compute providers")

	return cmd
}

func printStatuses(tw *tabwriter.Writer, statuses []federation.Status) {
	fmt.Fprintln(tw, "ID\tHEALTHY\tPRIORITY\tREQUESTS\tERRORS\tAVG LATENCY\tFAILED PROBES\tMODELS")
	for _, st := range statuses {
		fmt.Fprintf(tw, "%s\t%t\t%d\t%d\t%d\t%.1fms\t%d\t%s\n",
			st.ID,
			st.Healthy,
			st.Priority,
			st.Metrics.RequestCount,
			st.Metrics.ErrorCount,
			st.Metrics.AverageLatencyMs,
			st.ConsecutiveFailures,
			strings.Join(st.Models, ","),
		)
	}
}
