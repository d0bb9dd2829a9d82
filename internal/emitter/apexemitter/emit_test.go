package apexemitter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/connectforce/connectforce/internal/spec"
)

func TestEmit_DryRun_Plan(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := Emit(context.Background(), petStore(), Options{
		Generation:  DefaultGenerationOptions(),
		Descriptors: true,
		OutDir:      dir,
		DryRun:      true,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if res.ServiceClass != "PetStoreService" {
		t.Fatalf("service class = %s", res.ServiceClass)
	}
	paths := make([]string, len(res.Planned))
	for i, p := range res.Planned {
		paths[i] = p.RelPath
	}
	if !sort.StringsAreSorted(paths) {
		t.Fatalf("plan not sorted: %v", paths)
	}
	want := []string{
		DefaultClassesPath + "/PetStoreService.cls",
		DefaultClassesPath + "/PetStoreServiceMock.cls",
		DefaultClassesPath + "/PetStoreServiceTest.cls-meta.xml",
		DefaultNamedCredentialPath + "/PetStore.namedCredential-meta.xml",
		DefaultExternalServicePath + "/PetStore.externalServiceRegistration-meta.xml",
		DefaultManifestPath + "/package-PetStore.xml",
	}
	have := map[string]bool{}
	for _, p := range paths {
		have[p] = true
	}
	for _, p := range want {
		if !have[p] {
			t.Fatalf("planned missing %s", p)
		}
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no files written on dry-run")
	}
}

func TestEmit_WritesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	opts := Options{Generation: DefaultGenerationOptions(), OutDir: dir}
	res, err := Emit(context.Background(), petStore(), opts)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, f := range res.Files {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(f.Path)))
		if err != nil {
			t.Fatalf("read %s: %v", f.Path, err)
		}
		if string(data) != f.Content {
			t.Fatalf("%s content mismatch", f.Path)
		}
	}
	// Same input, same bytes: no overwrite needed.
	if _, err := Emit(context.Background(), petStore(), opts); err != nil {
		t.Fatalf("second emit: %v", err)
	}

	changed := petStore()
	changed.Timeout = 45000
	if _, err := Emit(context.Background(), changed, opts); !errors.Is(err, ErrFileExists) {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}
	opts.Force = true
	if _, err := Emit(context.Background(), changed, opts); err != nil {
		t.Fatalf("forced emit: %v", err)
	}
}

func TestEmit_ConflictWritesNothing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	manifest := filepath.Join(dir, filepath.FromSlash(DefaultManifestPath), "package-PetStore.xml")
	if err := os.MkdirAll(filepath.Dir(manifest), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(manifest, []byte("<Package/>"), 0o644); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}

	_, err := Emit(context.Background(), petStore(), Options{
		Generation:  DefaultGenerationOptions(),
		Descriptors: true,
		OutDir:      dir,
	})
	if !errors.Is(err, ErrFileExists) {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}
	for _, rel := range []string{DefaultClassesPath, DefaultNamedCredentialPath, DefaultExternalServicePath} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s written despite the conflict: %v", rel, err)
		}
	}
	data, err := os.ReadFile(manifest)
	if err != nil || string(data) != "<Package/>" {
		t.Fatalf("manifest changed: %q %v", data, err)
	}
}

type memWriter map[string]string

func (m memWriter) WriteFile(_ context.Context, relPath string, content []byte) error {
	m[relPath] = string(content)
	return nil
}

func TestEmit_CustomWriter(t *testing.T) {
	t.Parallel()
	mem := memWriter{}
	res, err := Emit(context.Background(), petStore(), Options{Generation: GenerationOptions{}, Writer: mem})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(mem) != len(res.Files) || len(mem) != 2 {
		t.Fatalf("writer saw %d files", len(mem))
	}
}

func TestDirWriter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	w := DirWriter{Root: dir}

	if err := w.WriteFile(ctx, "a/b/c.txt", []byte("one")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteFile(ctx, "a/b/c.txt", []byte("one")); err != nil {
		t.Fatalf("identical rewrite: %v", err)
	}
	if err := w.WriteFile(ctx, "a/b/c.txt", []byte("two")); !errors.Is(err, ErrFileExists) {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}
	if err := w.WriteFile(ctx, "../escape.txt", []byte("x")); err == nil {
		t.Fatalf("path escaping the root accepted")
	}
	entries, err := os.ReadDir(filepath.Join(dir, "a", "b"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := WriteGeneratedFile(cancelled, w, spec.GeneratedFile{Path: "x.cls", Content: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
