package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connectforce/connectforce/internal/connection"
	"github.com/connectforce/connectforce/internal/spec"
)

// ImportConfig captures the options for the import command.
type ImportConfig struct {
	Input       string
	IncludeTags []string
	ExcludeTags []string
	Methods     []string
	Paths       []string
	Save        bool
	Dump        bool
	Out         string
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an OpenAPI/Swagger document as a connection",
		Long: "Import an OpenAPI 3 or Swagger 2 document (JSON or YAML, local path or URL) into a connection. " +
			"The connection is printed as JSON, written with --out, or stored with --save.",
		Example: strings.TrimSpace(`  connectforce import --input ./netsuite.yaml --save
  connectforce import --input https://api.example.com/openapi.json --include-tags customers --out conn.json`),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg := &ImportConfig{}
			cfg.Input, _ = flags.GetString("input")
			cfg.IncludeTags, _ = flags.GetStringSlice("include-tags")
			cfg.ExcludeTags, _ = flags.GetStringSlice("exclude-tags")
			cfg.Methods, _ = flags.GetStringSlice("methods")
			cfg.Paths, _ = flags.GetStringSlice("paths")
			cfg.Save, _ = flags.GetBool("save")
			cfg.Dump, _ = flags.GetBool("dump")
			cfg.Out, _ = flags.GetString("out")
			if strings.TrimSpace(cfg.Input) == "" {
				return newUsageError("import: --input is required")
			}
			if overlap := intersect(sanitizeTags(cfg.IncludeTags), sanitizeTags(cfg.ExcludeTags)); len(overlap) > 0 {
				return newUsageError(fmt.Sprintf("import: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
			}
			return withEnv(cmd, func(e *env) error {
				return runImport(cmd.Context(), e, cfg, cmd.OutOrStdout())
			})
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include these HTTP methods")
	flags.StringSlice("paths", nil, "Only include paths matching these regular expressions")
	flags.Bool("save", false, "Store the imported connection in the workspace")
	flags.Bool("dump", false, "Print the full in-memory connection instead of JSON")
	flags.String("out", "", "Write the connection JSON to this file")

	return cmd
}

func runImport(ctx context.Context, e *env, cfg *ImportConfig, w io.Writer) error {
	conn, err := importConnection(ctx, e.logger, cfg.Input,
		spec.WithIncludeTags(sanitizeTags(cfg.IncludeTags)),
		spec.WithExcludeTags(sanitizeTags(cfg.ExcludeTags)),
		spec.WithMethods(parseMethods(cfg.Methods)),
		spec.WithPathPatterns(cfg.Paths),
	)
	if err != nil {
		return err
	}

	if cfg.Save {
		if err := e.connections.SaveImported(ctx, conn); err != nil {
			return fmt.Errorf("save connection: %w", err)
		}
		fmt.Fprintf(w, "Saved connection %q (%s) with %d endpoints\n", conn.Name, conn.ID, len(conn.Endpoints))
	}

	if cfg.Dump {
		spew.Fdump(w, conn)
		return nil
	}
	data, err := connection.ExportJSON(conn)
	if err != nil {
		return err
	}
	if out := strings.TrimSpace(cfg.Out); out != "" {
		return writeOutputFile(out, data)
	}
	if !cfg.Save {
		_, err = fmt.Fprintln(w, string(data))
	}
	return err
}

// importConnection loads input and runs the importer over it.
func importConnection(ctx context.Context, logger *zap.Logger, input string, opts ...spec.ImportOption) (*spec.Connection, error) {
	raw, err := spec.Load(ctx, input)
	if err != nil {
		return nil, err
	}
	opts = append(opts, spec.WithLogger(logger.Named("import")))
	conn, err := spec.ImportFromSpec(raw, opts...)
	if err != nil {
		var se *spec.SpecError
		if errors.As(err, &se) && se.Location == "" {
			se.Location = input
		}
		return nil, err
	}
	logger.Debug("imported document", zap.String("name", conn.Name), zap.Int("endpoints", len(conn.Endpoints)))
	return conn, nil
}

func parseMethods(raw []string) []spec.HTTPMethod {
	var out []spec.HTTPMethod
	for _, m := range sanitizeTags(raw) {
		out = append(out, spec.HTTPMethod(strings.ToUpper(m)))
	}
	return out
}

// writeOutputFile writes data atomically via temp + rename.
func writeOutputFile(path string, data []byte) error {
	return writeOutputFileMode(path, data, 0o644)
}

func writeOutputFileMode(path string, data []byte, perm os.FileMode) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return wrapOutputError(fmt.Errorf("mkdir: %w", err), abs)
	}
	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return wrapOutputError(err, abs)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return wrapOutputError(fmt.Errorf("rename: %w", err), abs)
	}
	return nil
}
