package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureGenerate swaps the generate runner for one that records the
// resolved config. Tests using it must not run in parallel.
func captureGenerate(t *testing.T) **GenerateConfig {
	t.Helper()
	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, e *env, cfg *GenerateConfig, w io.Writer) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })
	return &captured
}

func TestGenerateConfigFromFlags(t *testing.T) {
	ws := writeWorkspace(t, "")
	captured := captureGenerate(t)

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"--verbose",
		"--workspace", ws,
		"generate",
		"--input", "spec.yaml",
		"--target", "go",
		"--out", "./build",
		"--include-tags", "foo,bar",
		"--exclude-tags", "baz",
		"--package-name", "pkg",
		"--module", "example.com/pkg",
		"--dry-run",
		"--force",
		"--no-descriptors",
		"--bulk",
		"--mock=false",
		"--error-handling", "basic",
		"--naming", "PascalCase",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.Input != "spec.yaml" {
		t.Errorf("input mismatch: got %q", cfg.Input)
	}
	if cfg.Target != "go" {
		t.Errorf("target mismatch: got %q", cfg.Target)
	}
	if cfg.Out != "./build" {
		t.Errorf("out mismatch: got %q", cfg.Out)
	}
	if want := []string{"foo", "bar"}; !equalStringSlices(cfg.IncludeTags, want) {
		t.Errorf("include tags mismatch: got %v", cfg.IncludeTags)
	}
	if want := []string{"baz"}; !equalStringSlices(cfg.ExcludeTags, want) {
		t.Errorf("exclude tags mismatch: got %v", cfg.ExcludeTags)
	}
	if cfg.PackageName != "pkg" || cfg.ModuleName != "example.com/pkg" {
		t.Errorf("go names mismatch: %q %q", cfg.PackageName, cfg.ModuleName)
	}
	if !cfg.DryRun || !cfg.Force || !cfg.Verbose {
		t.Errorf("expected dry-run, force and verbose: %+v", cfg)
	}
	if cfg.Descriptors {
		t.Errorf("expected descriptors off")
	}
	if !cfg.BulkAPI || cfg.MockService || !cfg.TestClass || !cfg.Async || !cfg.Comments {
		t.Errorf("generation switches mismatch: %+v", cfg)
	}
	if cfg.ErrorHandling != "basic" || cfg.NamingConvention != "PascalCase" {
		t.Errorf("enumerations mismatch: %q %q", cfg.ErrorHandling, cfg.NamingConvention)
	}
}

func TestGenerateConfigPrecedence(t *testing.T) {
	ws := writeWorkspace(t, "generateTestClasses: false\nenableMockServices: false\n")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`input: config-spec.yaml
target: go
out: from-config
includeTags:
  - cfgFoo
excludeTags: cfgBar
package_name: cfgpkg
dryRun: true
force: false
verbose: true
use-bulk-api: "yes"
generateMockService: true
`) + "\n"

	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	captured := captureGenerate(t)
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"--config", configPath,
		"--workspace", ws,
		"generate",
		"--input", "flag-spec.yaml",
		"--include-tags", "flagTag",
		"--dry-run=false",
		"--force",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.Input != "flag-spec.yaml" {
		t.Errorf("input: want %q got %q", "flag-spec.yaml", cfg.Input)
	}
	if cfg.Target != "go" {
		t.Errorf("target: want go got %q", cfg.Target)
	}
	if cfg.Out != "from-config" {
		t.Errorf("out: want from-config got %q", cfg.Out)
	}
	if want := []string{"flagTag"}; !equalStringSlices(cfg.IncludeTags, want) {
		t.Errorf("include tags: want %v got %v", want, cfg.IncludeTags)
	}
	if want := []string{"cfgBar"}; !equalStringSlices(cfg.ExcludeTags, want) {
		t.Errorf("exclude tags: want %v got %v", want, cfg.ExcludeTags)
	}
	if cfg.PackageName != "cfgpkg" {
		t.Errorf("package name mismatch: got %q", cfg.PackageName)
	}
	if cfg.DryRun {
		t.Errorf("expected dry-run false after flag override")
	}
	if !cfg.Force {
		t.Errorf("expected force true after flag override")
	}
	if !cfg.Verbose {
		t.Errorf("expected verbose true from config file")
	}
	if !cfg.BulkAPI {
		t.Errorf("expected bulk from config file")
	}
	if cfg.TestClass {
		t.Errorf("expected test class off from workspace defaults")
	}
	if !cfg.MockService {
		t.Errorf("expected config file to override the workspace mock default")
	}
	if cfg.ConfigPath != configPath {
		t.Errorf("config path mismatch: got %q", cfg.ConfigPath)
	}
}

func TestGenerateConfigUnknownKey(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("unknown: value\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	root.SetArgs([]string{
		"--config", configPath,
		"--workspace", writeWorkspace(t, ""),
		"generate",
		"--input", "spec.yaml",
	})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestGenerateConfigValidation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"generate"}, "--input or --connection is required"},
		{[]string{"generate", "--input", "a.yaml", "--connection", "x"}, "not both"},
		{[]string{"generate", "--input", "a.yaml", "--target", "cobol"}, "unsupported --target"},
		{[]string{"generate", "--input", "a.yaml", "--error-handling", "panic"}, "unknown error handling"},
		{[]string{"generate", "--input", "a.yaml", "--naming", "snake"}, "unknown naming convention"},
		{[]string{"generate", "--input", "a.yaml", "--include-tags", "a,b", "--exclude-tags", "b"}, "overlap: b"},
	}
	for _, c := range cases {
		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs(append([]string{"--workspace", writeWorkspace(t, "")}, c.args...))
		err := root.Execute()
		if !errors.Is(err, ErrUsage) {
			t.Fatalf("%v: expected usage error, got %v", c.args, err)
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%v: error %q does not mention %q", c.args, err, c.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Pet Store":          "pet-store",
		"  NetSuite / REST ": "netsuite-rest",
		"!!":                 "",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
