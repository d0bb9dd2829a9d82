package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/connectforce/connectforce/internal/connection"
	"github.com/connectforce/connectforce/internal/probe"
	"github.com/connectforce/connectforce/internal/spec"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Probe a stored connection or one of its endpoints",
		Long: "Send a request to the connection's base URL (or an endpoint) with its authentication applied. " +
			"Testing the connection records the outcome as its status.",
		Example: strings.TrimSpace(`  connectforce test --connection "NetSuite Prod"
  connectforce test --connection "NetSuite Prod" --endpoint getCustomers --retry`),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			ref, _ := flags.GetString("connection")
			endpoint, _ := flags.GetString("endpoint")
			retry, _ := flags.GetBool("retry")
			if strings.TrimSpace(ref) == "" {
				return newUsageError("test: --connection is required")
			}
			return withEnv(cmd, func(e *env) error {
				ctx := cmd.Context()
				svc := connection.NewService(e.store,
					connection.WithLogger(e.logger.Named("connection")),
					connection.WithProber(probe.New(probe.WithLogger(e.logger.Named("probe")), probe.WithRetry(retry))),
				)
				conn, err := svc.Resolve(ctx, strings.TrimSpace(ref))
				if err != nil {
					return err
				}
				var res probe.Result
				if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
					ep := findEndpoint(conn, endpoint)
					if ep == nil {
						return newUsageError(fmt.Sprintf("test: connection %q has no endpoint %q", conn.Name, endpoint))
					}
					res, err = svc.TestEndpoint(ctx, conn.ID, ep.ID)
				} else {
					res, err = svc.Test(ctx, conn.ID)
				}
				if err != nil {
					return err
				}
				return reportProbe(cmd.OutOrStdout(), res)
			})
		},
	}

	flags := cmd.Flags()
	flags.String("connection", "", "Stored connection id or name")
	flags.String("endpoint", "", "Endpoint id or name to probe instead of the base URL")
	flags.Bool("retry", false, "Retry according to the connection's retry config")

	return cmd
}

func findEndpoint(conn *spec.Connection, ref string) *spec.Endpoint {
	if ep := conn.Endpoint(ref); ep != nil {
		return ep
	}
	for i := range conn.Endpoints {
		if strings.EqualFold(conn.Endpoints[i].Name, ref) {
			return &conn.Endpoints[i]
		}
	}
	return nil
}

func reportProbe(w io.Writer, res probe.Result) error {
	elapsed := res.ResponseTime.Round(time.Millisecond)
	if res.Success {
		fmt.Fprintf(w, "OK: HTTP %d in %s\n", res.StatusCode, elapsed)
		return nil
	}
	fmt.Fprintf(w, "FAILED after %s: %s\n", elapsed, res.Error)
	return fmt.Errorf("test failed: %s", res.Error)
}
