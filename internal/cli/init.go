package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/connectforce/connectforce/internal/config"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample connectforce workspace configuration file",
		Long:  "Scaffold a commented connectforce workspace configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
			}
			return initRunner(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("out", config.DefaultPath, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = config.DefaultPath
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	// Atomic write via temp + rename
	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
	}
	fmt.Fprintf(w, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example workspace config documenting
// available options. Every key is commented out so the file loads as defaults.
const sampleConfigYAML = `# connectforce workspace configuration (YAML)
# All fields are optional. Command-line flags override these values.

# Authentication type suggested for new connections
# (OAuth2|Basic|API_Key|JWT|Certificate|None).
# defaultAuthType: None

# Where generated Apex classes are placed, relative to --out.
# apexOutputPath: force-app/main/default/classes

# Where named credential descriptors are placed.
# namedCredentialPath: force-app/main/default/namedCredentials

# Where external service registrations are placed.
# externalServicePath: force-app/main/default/externalServiceRegistrations

# Generate the Apex test class by default.
# generateTestClasses: true

# Generate the HttpCalloutMock class by default.
# enableMockServices: true

# Log level (debug|info|warn|error) and optional rotating JSON log file.
# logLevel: info
# logFile: .connectforce/connectforce.log

# JSON document holding saved connections, mappings and sync statuses.
# storePath: .connectforce/store.json

# Timeout for each Salesforce CLI call and lifetime of cached org metadata.
# cliTimeout: 2m
# cacheTTL: 5m
`
