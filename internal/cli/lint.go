package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/connectforce/connectforce/internal/spec"
)

func newLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check an OpenAPI/Swagger document with a second, independent parser",
		Long: "Run the importer's structural checks, then build the document model and resolve every reference. " +
			"Circular references are reported but do not fail the lint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			asJSON, _ := cmd.Flags().GetBool("json")
			if strings.TrimSpace(input) == "" {
				return newUsageError("lint: --input is required")
			}
			return withEnv(cmd, func(e *env) error {
				raw, err := spec.Load(cmd.Context(), input)
				if err != nil {
					return err
				}
				report, err := spec.Lint(raw)
				if err != nil {
					return err
				}
				if err := printLintReport(cmd.OutOrStdout(), report, asJSON); err != nil {
					return err
				}
				if !report.OK() {
					return fmt.Errorf("lint: %d model and %d reference errors", len(report.ModelErrors), len(report.ResolveErrors))
				}
				return nil
			})
		},
	}

	cmd.Flags().String("input", "", "Path or URL to the Swagger/OpenAPI document")
	cmd.Flags().Bool("json", false, "Print the report as JSON")

	return cmd
}

func printLintReport(w io.Writer, r *spec.LintReport, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	fmt.Fprintf(w, "OpenAPI %s: %d paths, %d operations\n", r.Version, r.Paths, r.Operations)
	if len(r.SecuritySchemes) > 0 {
		fmt.Fprintf(w, "Security schemes: %s\n", strings.Join(r.SecuritySchemes, ", "))
	}
	for _, group := range []struct {
		title string
		items []string
	}{
		{"Model errors", r.ModelErrors},
		{"Reference errors", r.ResolveErrors},
		{"Circular references", r.CircularReferences},
	} {
		if len(group.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", group.title)
		for _, item := range group.items {
			fmt.Fprintf(w, "- %s\n", item)
		}
	}
	if r.OK() {
		fmt.Fprintln(w, "OK")
	}
	return nil
}
