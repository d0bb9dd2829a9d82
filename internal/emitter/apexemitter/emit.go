package apexemitter

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/connectforce/connectforce/internal/spec"
)

// Options controls Emit.
type Options struct {
	Generation GenerationOptions
	// Descriptors adds the named credential, external service registration
	// and package manifest.
	Descriptors         bool
	NamedCredentialPath string
	ExternalServicePath string
	ManifestPath        string

	OutDir string // used when Writer is nil
	Force  bool   // overwrite differing files
	DryRun bool   // plan only
	Writer FileWriter
	Logger *zap.Logger
}

// PlannedFile describes a file Emit writes, or would write on a dry run.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
	Type    spec.FileType
}

// Result lists the planned files in path order together with their content.
type Result struct {
	ServiceClass string
	Planned      []PlannedFile
	Files        []spec.GeneratedFile
}

// Emit generates every artifact for conn and writes them in path order. A
// writer that implements FileChecker is consulted for every file first, so a
// refused file leaves the output untouched.
func Emit(ctx context.Context, conn *spec.Connection, opts Options) (*Result, error) {
	if conn == nil {
		return nil, errNilConnection
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	files, err := GenerateApexClasses(conn, opts.Generation)
	if err != nil {
		return nil, err
	}
	if opts.Descriptors {
		cred, err := NamedCredentialAt(conn, opts.NamedCredentialPath)
		if err != nil {
			return nil, err
		}
		svc, err := ExternalServiceAt(conn, opts.ExternalServicePath, opts.ManifestPath)
		if err != nil {
			return nil, err
		}
		files = append(append(files, cred), svc...)
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	planned := make([]PlannedFile, 0, len(files))
	for i, f := range files {
		if i > 0 && files[i-1].Path == f.Path {
			return nil, fmt.Errorf("apexemitter: two artifacts map to %s", f.Path)
		}
		planned = append(planned, PlannedFile{RelPath: f.Path, Size: len(f.Content), Mode: 0o644, Type: f.Type})
	}

	names, _ := deriveClassNames(conn)
	res := &Result{ServiceClass: names.Service, Planned: planned, Files: files}
	if opts.DryRun {
		logger.Debug("dry run, nothing written", zap.Int("files", len(files)))
		return res, nil
	}

	w := opts.Writer
	if w == nil {
		w = DirWriter{Root: opts.OutDir, Force: opts.Force}
	}
	if c, ok := w.(FileChecker); ok {
		for _, f := range files {
			if err := c.CheckFile(ctx, f.Path, []byte(f.Content)); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range files {
		if err := WriteGeneratedFile(ctx, w, f); err != nil {
			return nil, err
		}
		logger.Debug("wrote file", zap.String("path", f.Path), zap.String("type", string(f.Type)))
	}
	logger.Info("generated apex sources",
		zap.String("connection", conn.Name),
		zap.String("class", names.Service),
		zap.Int("files", len(files)))
	return res, nil
}
