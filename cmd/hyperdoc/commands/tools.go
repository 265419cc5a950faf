package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/core"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/tools"
)

func newToolsCommand(opts *globalOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the MCP tool catalogue",
		Long: `List the MCP tool catalogue.

Without --remote the built-in catalogue is printed. With --remote the
catalogue registered on a running server is fetched from /mcp/tools.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var defs []core.ToolDefinition
			if remote {
				var resp struct {
					Tools []core.ToolDefinition `json:"tools"`
				}
				if err := fetch(cmd.Context(), opts.serverURL, "/mcp/tools", &resp); err != nil {
					return err
				}
				defs = resp.Tools
			} else {
				for _, server := range tools.BuiltinServers {
					d, err := tools.Definitions(server)
					if err != nil {
						return err
					}
					defs = append(defs, d...)
				}
			}

			return render(cmd.OutOrStdout(), opts.output, defs, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "TOOL\tDESCRIPTION")
				for _, d := range defs {
					fmt.Fprintf(tw, "%s\t%s\n", d.QualifiedName(), d.ToolDescription)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the catalogue from a running server")

	return cmd
}
