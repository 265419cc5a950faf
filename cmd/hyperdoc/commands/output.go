package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/internal/httpjson"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// render writes v as JSON or YAML, or calls table for the table format.
func render(w io.Writer, format string, v any, table func(tw *tabwriter.Writer)) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatTable, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// fetch GETs path from the running server into out.
func fetch(ctx context.Context, serverURL, path string, out any) error {
	client := httpjson.New("hyperdoc", nil)
	url := strings.TrimRight(serverURL, "/") + path
	if err := client.Do(ctx, http.MethodGet, url, nil, out); err != nil {
		return fmt.Errorf("query %s: %w", url, err)
	}
	return nil
}
