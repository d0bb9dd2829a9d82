package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy generated sources to the default Salesforce org",
		Long:  "Deploy a source directory with the Salesforce CLI. The org must already be authorized with sf.",
		Example: strings.TrimSpace(`  connectforce generate --connection "NetSuite Prod" --out .
  connectforce deploy --source-dir force-app`),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("source-dir")
			dir = strings.TrimSpace(dir)
			if dir == "" {
				return newUsageError("deploy: --source-dir is required")
			}
			if st, err := os.Stat(dir); err != nil || !st.IsDir() {
				return newUsageError(fmt.Sprintf("deploy: %q is not a directory", dir))
			}
			return withEnv(cmd, func(e *env) error {
				md := newMetadata(e.cfg, e.logger.Named("platform"))
				res, err := md.Deploy(cmd.Context(), dir)
				if err != nil {
					return err
				}
				if !res.Success {
					e.logger.Warn("deploy failed", zap.String("sourceDir", dir), zap.String("message", res.Message))
					return fmt.Errorf("deploy failed: %s", res.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deployed %s: %s\n", dir, res.Message)
				return nil
			})
		},
	}

	cmd.Flags().String("source-dir", "force-app", "Source directory to deploy")

	return cmd
}
