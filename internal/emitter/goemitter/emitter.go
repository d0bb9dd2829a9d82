package goemitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/connectforce/connectforce/internal/spec"
)

// Options controls how the Go emitter renders a client package.
type Options struct {
	OutDir      string // required; target directory to write the package
	PackageName string // Go package name; derived from the connection name when empty
	ModuleName  string // when set a go.mod declaring this module is written
	Force       bool   // overwrite existing files
	DryRun      bool   // don't write, only plan
	Logger      *zap.Logger
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files and final resolved names.
type Result struct {
	PackageName string
	ModuleName  string
	Planned     []PlannedFile
}

// Emit renders a typed Go client for conn: one DTO struct per distinct
// object shape and one method per endpoint.
func Emit(ctx context.Context, conn *spec.Connection, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, fmt.Errorf("goemitter: nil connection")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("goemitter: OutDir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pkg := sanitizePackageName(opts.PackageName)
	if pkg == "" {
		pkg = sanitizePackageName(conn.Name)
		if pkg == "" {
			pkg = "client"
		}
	}
	moduleName := strings.TrimSpace(opts.ModuleName)

	files, err := Render(conn, pkg)
	if err != nil {
		return nil, err
	}
	if moduleName != "" {
		files["go.mod"] = []byte(renderGoMod(moduleName))
	}
	files["README.md"] = []byte(renderReadme(conn, pkg))

	// Plan in deterministic order
	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, filepath.ToSlash(p))
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := writeFiles(opts.OutDir, files, opts.Force); err != nil {
			return nil, err
		}
		logger.Info("generated go client", zap.String("package", pkg), zap.Int("files", len(files)))
	}

	return &Result{PackageName: pkg, ModuleName: moduleName, Planned: planned}, nil
}

func writeFiles(outDir string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	// Pre-flight: a non-empty directory is only reused with force.
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return fmt.Errorf("goemitter: output directory %q is not empty (use --force to overwrite)", abs)
		}
	}
	rels := make([]string, 0, len(files))
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		p := filepath.Join(abs, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, files[rel], 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}

// sanitizePackageName lowercases name and keeps ASCII letters and digits.
// A leading digit is dropped.
func sanitizePackageName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9' && b.Len() > 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func renderGoMod(module string) string {
	return "module " + module + "\n\ngo 1.23\n"
}

func renderReadme(conn *spec.Connection, pkg string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conn.Name)
	if d := strings.TrimSpace(conn.Description); d != "" {
		b.WriteString(d + "\n\n")
	}
	fmt.Fprintf(&b, "Package `%s` is a generated client. Create one with `%s.New(%s.DefaultBaseURL)`.\n\n", pkg, pkg, pkg)
	b.WriteString("| Method | HTTP | Path |\n|---|---|---|\n")
	for _, m := range planMethods(conn, newRegistry()) {
		fmt.Fprintf(&b, "| `%s` | %s | `%s` |\n", m.Name, m.Endpoint.Method, m.Endpoint.Path)
	}
	return b.String()
}
