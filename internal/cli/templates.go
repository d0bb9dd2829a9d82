package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gofrs/uuid"
	"github.com/spf13/cobra"

	"github.com/connectforce/connectforce/internal/templates"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Browse the built-in ERP connection templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the available templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tERP\tAUTH\tENDPOINTS\tDESCRIPTION")
			for _, t := range templates.All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.ERPType, t.AuthType, len(t.DefaultEndpoints), t.Description)
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <template>",
		Short: "Print a template as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := templates.Lookup(args[0])
			if !ok {
				return newUsageError(fmt.Sprintf("templates: unknown template %q (see 'connectforce templates list')", args[0]))
			}
			data, err := json.MarshalIndent(t, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	create := &cobra.Command{
		Use:   "new <template>",
		Short: "Create a stored connection from a template",
		Example: strings.TrimSpace(`  connectforce templates new netsuite --name "NetSuite Prod" --base-url https://1234.suitetalk.api.netsuite.com`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := templates.Lookup(args[0])
			if !ok {
				return newUsageError(fmt.Sprintf("templates: unknown template %q (see 'connectforce templates list')", args[0]))
			}
			name, _ := cmd.Flags().GetString("name")
			baseURL, _ := cmd.Flags().GetString("base-url")
			if strings.TrimSpace(name) == "" {
				name = t.Name
			}
			return withEnv(cmd, func(e *env) error {
				ctx := cmd.Context()
				conn, err := e.connections.Create(ctx, t.Input(name, baseURL))
				if err != nil {
					return err
				}
				now := time.Now().UTC()
				for _, m := range t.DefaultMappings {
					m.ID = uuid.Must(uuid.NewV4()).String()
					m.ConnectionID = conn.ID
					m.CreatedAt, m.UpdatedAt = now, now
					for i := range m.Mappings {
						m.Mappings[i].ID = uuid.Must(uuid.NewV4()).String()
					}
					if err := e.store.SaveMapping(ctx, &m); err != nil {
						return fmt.Errorf("save mapping: %w", err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created connection %q (%s) from template %s with %d endpoints and %d mappings\n",
					conn.Name, conn.ID, t.ID, len(conn.Endpoints), len(t.DefaultMappings))
				return nil
			})
		},
	}
	create.Flags().String("name", "", "Connection name (defaults to the template name)")
	create.Flags().String("base-url", "", "Base URL of the ERP API")

	cmd.AddCommand(list, show, create)
	return cmd
}
