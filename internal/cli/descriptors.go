package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/connectforce/connectforce/internal/emitter/apexemitter"
	"github.com/connectforce/connectforce/internal/spec"
)

type descriptorFunc func(e *env, conn *spec.Connection) ([]spec.GeneratedFile, error)

func newCredentialCmd() *cobra.Command {
	return newDescriptorCmd("credential",
		"Write the named credential descriptor for a connection",
		func(e *env, conn *spec.Connection) ([]spec.GeneratedFile, error) {
			f, err := apexemitter.NamedCredentialAt(conn, e.cfg.NamedCredentialPath)
			if err != nil {
				return nil, err
			}
			return []spec.GeneratedFile{f}, nil
		})
}

func newExternalServiceCmd() *cobra.Command {
	return newDescriptorCmd("external-service",
		"Write the external service registration and its package manifest",
		func(e *env, conn *spec.Connection) ([]spec.GeneratedFile, error) {
			return apexemitter.ExternalServiceAt(conn, e.cfg.ExternalServicePath, apexemitter.DefaultManifestPath)
		})
}

func newDescriptorCmd(use, short string, render descriptorFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			input, _ := flags.GetString("input")
			ref, _ := flags.GetString("connection")
			out, _ := flags.GetString("out")
			force, _ := flags.GetBool("force")
			dryRun, _ := flags.GetBool("dry-run")
			return withEnv(cmd, func(e *env) error {
				ctx := cmd.Context()
				conn, err := resolveSource(ctx, e, use, input, ref)
				if err != nil {
					return err
				}
				files, err := render(e, conn)
				if err != nil {
					return err
				}
				root := strings.TrimSpace(out)
				if root == "" {
					root = "."
				}
				absOut := root
				if ap, err := filepath.Abs(root); err == nil {
					absOut = ap
				}
				paths := make([]string, len(files))
				for i, f := range files {
					paths[i] = f.Path
				}
				if !dryRun {
					w := apexemitter.DirWriter{Root: root, Force: force}
					for _, f := range files {
						if err := apexemitter.WriteGeneratedFile(ctx, w, f); err != nil {
							return wrapOutputError(err, absOut)
						}
					}
				}
				reportFiles(cmd.OutOrStdout(), dryRun, absOut, paths)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.String("connection", "", "Stored connection id or name")
	flags.String("out", ".", "Project root the descriptor paths are relative to")
	flags.Bool("force", false, "Overwrite differing files")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")

	return cmd
}
