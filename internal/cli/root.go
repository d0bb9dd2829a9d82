package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/connectforce/connectforce/internal/config"
)

// Execute runs the connectforce CLI.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the CLI; cancelling ctx aborts downloads, probes and
// platform calls in flight.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connectforce",
		Short: "Turn OpenAPI documents into Salesforce integration code",
		Long: "connectforce imports OpenAPI/Swagger documents into connections, exports them back to OpenAPI 3.0.3 " +
			"and generates Apex services, tests, mocks and callout metadata for Salesforce projects.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Command config file path (YAML or JSON)")
	cmd.PersistentFlags().StringP("workspace", "w", config.DefaultPath, "Workspace config file; missing means defaults")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	cmd.AddCommand(
		newInitCmd(),
		newImportCmd(),
		newExportCmd(),
		newGenerateCmd(),
		newCredentialCmd(),
		newExternalServiceCmd(),
		newTestCmd(),
		newSuggestCmd(),
		newTemplatesCmd(),
		newConnectionsCmd(),
		newLintCmd(),
		newDeployCmd(),
	)

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	setFlagErrors(cmd)

	return cmd
}

func setFlagErrors(cmd *cobra.Command) {
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
	})
	for _, sub := range cmd.Commands() {
		setFlagErrors(sub)
	}
}
