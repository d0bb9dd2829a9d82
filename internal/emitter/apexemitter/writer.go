package apexemitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/connectforce/connectforce/internal/spec"
)

// ErrFileExists is returned when a differing file is already present and
// overwriting was not requested.
var ErrFileExists = errors.New("file exists with different content (use --force to overwrite)")

// FileWriter persists one generated file. relPath is slash separated and
// relative to the writer's root.
type FileWriter interface {
	WriteFile(ctx context.Context, relPath string, content []byte) error
}

// FileChecker is implemented by writers that can tell up front whether a
// WriteFile call would be refused. Emit checks every file before writing any.
type FileChecker interface {
	CheckFile(ctx context.Context, relPath string, content []byte) error
}

// DirWriter writes below Root using a temp file and rename per file.
type DirWriter struct {
	Root  string
	Force bool
}

// target resolves relPath below Root. unchanged reports that the file
// already holds content.
func (w DirWriter) target(ctx context.Context, relPath string, content []byte) (p string, unchanged bool, err error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false, fmt.Errorf("refusing to write outside the output directory: %q", relPath)
	}
	root := w.Root
	if root == "" {
		root = "."
	}
	p = filepath.Join(root, clean)

	existing, err := os.ReadFile(p)
	switch {
	case err == nil && bytes.Equal(existing, content):
		return p, true, nil
	case err == nil && !w.Force:
		return "", false, fmt.Errorf("%s: %w", p, ErrFileExists)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", false, fmt.Errorf("read %s: %w", p, err)
	}
	return p, false, nil
}

func (w DirWriter) CheckFile(ctx context.Context, relPath string, content []byte) error {
	_, _, err := w.target(ctx, relPath, content)
	return err
}

func (w DirWriter) WriteFile(ctx context.Context, relPath string, content []byte) error {
	p, unchanged, err := w.target(ctx, relPath, content)
	if err != nil || unchanged {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", relPath, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp %s: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp %s: %w", relPath, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", relPath, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", relPath, err)
	}
	return nil
}

// WriteGeneratedFile hands file to w. Failures are returned as is; nothing
// is retried.
func WriteGeneratedFile(ctx context.Context, w FileWriter, file spec.GeneratedFile) error {
	return w.WriteFile(ctx, file.Path, []byte(file.Content))
}
