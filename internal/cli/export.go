package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/connectforce/connectforce/internal/spec"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a connection as an OpenAPI 3.0.3 document",
		Example: strings.TrimSpace(`  connectforce export --connection "NetSuite Prod" --format yaml --out netsuite.yaml
  connectforce export --input swagger2.json`),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			input, _ := flags.GetString("input")
			ref, _ := flags.GetString("connection")
			format, _ := flags.GetString("format")
			out, _ := flags.GetString("out")
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "json" && format != "yaml" {
				return newUsageError(fmt.Sprintf("export: unsupported --format %q (allowed: json, yaml)", format))
			}
			return withEnv(cmd, func(e *env) error {
				conn, err := resolveSource(cmd.Context(), e, "export", input, ref)
				if err != nil {
					return err
				}
				var data []byte
				if format == "yaml" {
					data, err = spec.ExportYAML(conn)
				} else {
					data, err = spec.MarshalOpenAPISpec(conn)
				}
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				if out = strings.TrimSpace(out); out != "" {
					return writeOutputFile(out, data)
				}
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			})
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to a Swagger/OpenAPI document to convert")
	flags.String("connection", "", "Stored connection id or name")
	flags.String("format", "json", "Output format (json|yaml)")
	flags.String("out", "", "Write the document to this file instead of stdout")

	return cmd
}

// resolveSource returns the connection named by exactly one of input (a spec
// document) or ref (a stored connection).
func resolveSource(ctx context.Context, e *env, command, input, ref string, opts ...spec.ImportOption) (*spec.Connection, error) {
	input, ref = strings.TrimSpace(input), strings.TrimSpace(ref)
	switch {
	case input != "" && ref != "":
		return nil, newUsageError(fmt.Sprintf("%s: use either --input or --connection, not both", command))
	case input != "":
		return importConnection(ctx, e.logger, input, opts...)
	case ref != "":
		return e.connections.Resolve(ctx, ref)
	}
	return nil, newUsageError(fmt.Sprintf("%s: --input or --connection is required", command))
}
