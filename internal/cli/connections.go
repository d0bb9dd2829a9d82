package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/connectforce/connectforce/internal/connection"
	"github.com/connectforce/connectforce/internal/store"
)

func newConnectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "Manage connections stored in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env) error {
				conns, err := e.connections.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(conns) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No connections stored.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tAUTH\tENDPOINTS\tBASE URL")
				for _, c := range conns {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", c.ID, c.Name, c.Status, c.AuthenticationType, len(c.Endpoints), c.BaseURL)
				}
				return tw.Flush()
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <connection>",
		Short: "Print a connection as JSON with secrets removed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env) error {
				ctx := cmd.Context()
				c, err := e.connections.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				c.AuthConfig = c.AuthConfig.WithoutSecrets()
				mappings, err := e.store.MappingsByConnection(ctx, c.ID)
				if err != nil {
					return err
				}
				view := struct {
					Connection any                  `json:"connection"`
					Mappings   []store.FieldMapping `json:"mappings"`
					SyncStatus *store.SyncStatus    `json:"syncStatus,omitempty"`
				}{Connection: c, Mappings: mappings}
				st, err := e.store.SyncStatus(ctx, c.ID)
				switch {
				case err == nil:
					view.SyncStatus = st
				case !errors.Is(err, store.ErrNotFound):
					return err
				}
				data, err := json.MarshalIndent(view, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <connection>",
		Short: "Delete a connection and its field mappings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env) error {
				ctx := cmd.Context()
				c, err := e.connections.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				mappings, err := e.store.MappingsByConnection(ctx, c.ID)
				if err != nil {
					return err
				}
				for _, m := range mappings {
					if err := e.store.DeleteMapping(ctx, m.ID); err != nil {
						return err
					}
				}
				if err := e.connections.Delete(ctx, c.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted connection %q (%s)\n", c.Name, c.ID)
				return nil
			})
		},
	}

	dup := &cobra.Command{
		Use:   "duplicate <connection>",
		Short: "Copy a connection under new ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env) error {
				ctx := cmd.Context()
				c, err := e.connections.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				cp, err := e.connections.Duplicate(ctx, c.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %q (%s)\n", cp.Name, cp.ID)
				return nil
			})
		},
	}

	export := &cobra.Command{
		Use:   "export <connection>",
		Short: "Write a connection in its portable JSON form (no ids, no secrets)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			return withEnv(cmd, func(e *env) error {
				c, err := e.connections.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := connection.ExportJSON(c)
				if err != nil {
					return err
				}
				if out = strings.TrimSpace(out); out != "" {
					return writeOutputFile(out, data)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			})
		},
	}
	export.Flags().String("out", "", "Write to this file instead of stdout")

	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Create a connection from its portable JSON form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return newUsageError(fmt.Sprintf("connections import: %v", err))
			}
			return withEnv(cmd, func(e *env) error {
				c, err := e.connections.Import(cmd.Context(), data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %q (%s) with %d endpoints\n", c.Name, c.ID, len(c.Endpoints))
				return nil
			})
		},
	}

	backup := &cobra.Command{
		Use:   "backup <file>",
		Short: "Write every stored record, secrets included, to a private JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env) error {
				d, err := e.store.ExportData(cmd.Context())
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(d, "", "  ")
				if err != nil {
					return err
				}
				return writeOutputFileMode(args[0], append(data, '\n'), 0o600)
			})
		},
	}

	restore := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace stored records with the collections found in a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return newUsageError(fmt.Sprintf("connections restore: %v", err))
			}
			var d store.Data
			if err := json.Unmarshal(raw, &d); err != nil {
				return newUsageError(fmt.Sprintf("connections restore: decode %s: %v", args[0], err))
			}
			return withEnv(cmd, func(e *env) error {
				return e.store.ImportData(cmd.Context(), &d)
			})
		},
	}

	cmd.AddCommand(list, show, del, dup, export, imp, backup, restore)
	return cmd
}
