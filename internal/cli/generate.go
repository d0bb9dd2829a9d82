package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/connectforce/connectforce/internal/config"
	"github.com/connectforce/connectforce/internal/emitter/apexemitter"
	"github.com/connectforce/connectforce/internal/emitter/goemitter"
	"github.com/connectforce/connectforce/internal/naming"
	"github.com/connectforce/connectforce/internal/spec"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging workspace defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input       string
	Connection  string
	Target      string
	Out         string
	IncludeTags []string
	ExcludeTags []string
	PackageName string
	ModuleName  string
	ConfigPath  string
	DryRun      bool
	Force       bool
	Verbose     bool

	// Apex generation settings.
	Descriptors      bool
	TestClass        bool
	MockService      bool
	Comments         bool
	BulkAPI          bool
	Async            bool
	ErrorHandling    string
	NamingConvention string
}

func defaultGenerateConfig(ws config.Config) GenerateConfig {
	return GenerateConfig{
		Target:           "apex",
		Descriptors:      true,
		TestClass:        ws.GenerateTestClasses,
		MockService:      ws.EnableMockServices,
		Comments:         true,
		Async:            true,
		ErrorHandling:    string(apexemitter.ErrorHandlingAdvanced),
		NamingConvention: string(naming.CamelCase),
	}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Apex sources or a Go client for a connection",
		Long: "Generate Apex service, wrapper, test and mock classes plus callout metadata (or a typed Go client) " +
			"from an OpenAPI/Swagger document or a stored connection. " +
			"Options can be provided via flags, config files, or workspace defaults.",
		Example: strings.TrimSpace(`  connectforce generate --input spec.yaml --out ./sfdx-project
  connectforce generate --connection "NetSuite Prod" --target go --out ./netsuite --module example.com/netsuite
  connectforce --config generate.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env) error {
				cfg, err := resolveGenerateConfig(cmd, e.cfg)
				if err != nil {
					return err
				}
				return generateRunner(cmd.Context(), e, cfg, cmd.OutOrStdout())
			})
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.String("connection", "", "Stored connection id or name")
	flags.String("target", "", "What to emit (apex|go); defaults to apex")
	flags.String("out", "", "Output directory (project root for apex, package directory for go)")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.String("package-name", "", "Go package name (go target)")
	flags.String("module", "", "Go module path; writes a go.mod when set (go target)")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")
	flags.Bool("no-descriptors", false, "Skip the named credential and external service metadata")
	flags.Bool("test-class", true, "Generate the Apex test class")
	flags.Bool("mock", true, "Generate the HttpCalloutMock class")
	flags.Bool("comments", true, "Include ApexDoc comments")
	flags.Bool("bulk", false, "Add bulk variants for body-carrying methods")
	flags.Bool("async", true, "Add Queueable async variants")
	flags.String("error-handling", "", "basic or advanced (retries and status capture)")
	flags.String("naming", "", "Method naming convention (camelCase|PascalCase)")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command, ws config.Config) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig(ws)

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"input":          &cfg.Input,
		"connection":     &cfg.Connection,
		"target":         &cfg.Target,
		"out":            &cfg.Out,
		"package-name":   &cfg.PackageName,
		"module":         &cfg.ModuleName,
		"error-handling": &cfg.ErrorHandling,
		"naming":         &cfg.NamingConvention,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	bools := map[string]*bool{
		"dry-run":    &cfg.DryRun,
		"force":      &cfg.Force,
		"verbose":    &cfg.Verbose,
		"test-class": &cfg.TestClass,
		"mock":       &cfg.MockService,
		"comments":   &cfg.Comments,
		"bulk":       &cfg.BulkAPI,
		"async":      &cfg.Async,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}
	if flags.Changed("no-descriptors") {
		value, err := flags.GetBool("no-descriptors")
		if err != nil {
			return err
		}
		cfg.Descriptors = !value
	}

	if flags.Changed("include-tags") {
		value, err := flags.GetStringSlice("include-tags")
		if err != nil {
			return err
		}
		cfg.IncludeTags = sanitizeTags(value)
	}
	if flags.Changed("exclude-tags") {
		value, err := flags.GetStringSlice("exclude-tags")
		if err != nil {
			return err
		}
		cfg.ExcludeTags = sanitizeTags(value)
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Connection = strings.TrimSpace(c.Connection)
	c.Target = strings.ToLower(strings.TrimSpace(c.Target))
	c.Out = strings.TrimSpace(c.Out)
	c.PackageName = strings.TrimSpace(c.PackageName)
	c.ModuleName = strings.TrimSpace(c.ModuleName)
	c.ErrorHandling = strings.ToLower(strings.TrimSpace(c.ErrorHandling))
	c.NamingConvention = strings.TrimSpace(c.NamingConvention)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
}

func (c *GenerateConfig) validate() error {
	switch {
	case c.Input == "" && c.Connection == "":
		return newUsageError("generate: --input or --connection is required (set via flag or config file)")
	case c.Input != "" && c.Connection != "":
		return newUsageError("generate: use either --input or --connection, not both")
	}

	switch c.Target {
	case "", "apex":
		c.Target = "apex"
	case "go":
	default:
		return newUsageError(fmt.Sprintf("generate: unsupported --target %q (allowed: apex, go)", c.Target))
	}

	if _, err := apexemitter.ParseErrorHandling(c.ErrorHandling); err != nil {
		return newUsageError("generate: " + err.Error())
	}
	if _, err := naming.ParseConvention(c.NamingConvention); err != nil {
		return newUsageError("generate: " + err.Error())
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}

	return nil
}

// generationOptions converts the resolved settings for the Apex emitter.
// validate has already accepted both enumerations.
func (c *GenerateConfig) generationOptions(ws config.Config) apexemitter.GenerationOptions {
	eh, _ := apexemitter.ParseErrorHandling(c.ErrorHandling)
	conv, _ := naming.ParseConvention(c.NamingConvention)
	return apexemitter.GenerationOptions{
		GenerateTestClass:   c.TestClass,
		GenerateMockService: c.MockService,
		IncludeComments:     c.Comments,
		UseBulkAPI:          c.BulkAPI,
		AsyncProcessing:     c.Async,
		ErrorHandling:       eh,
		NamingConvention:    conv,
		OutputPath:          ws.ApexOutputPath,
	}
}

func runGenerate(ctx context.Context, e *env, cfg *GenerateConfig, w io.Writer) error {
	// 1) Resolve the connection from a document or the workspace store
	conn, err := resolveSource(ctx, e, "generate", cfg.Input, cfg.Connection,
		spec.WithIncludeTags(cfg.IncludeTags),
		spec.WithExcludeTags(cfg.ExcludeTags),
	)
	if err != nil {
		return err
	}
	if cfg.Connection != "" && (len(cfg.IncludeTags) > 0 || len(cfg.ExcludeTags) > 0) {
		conn.Endpoints = filterEndpointsByTags(conn.Endpoints, cfg.IncludeTags, cfg.ExcludeTags)
	}

	// 2) Derive the output directory when omitted
	outDir := cfg.Out
	if outDir == "" {
		if cfg.Target == "go" {
			outDir = slugify(conn.Name)
			if outDir == "" {
				outDir = "client"
			}
		} else {
			outDir = "."
		}
	}
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}

	// 3) Emit for the chosen target
	switch cfg.Target {
	case "apex":
		res, err := apexemitter.Emit(ctx, conn, apexemitter.Options{
			Generation:          cfg.generationOptions(e.cfg),
			Descriptors:         cfg.Descriptors,
			NamedCredentialPath: e.cfg.NamedCredentialPath,
			ExternalServicePath: e.cfg.ExternalServicePath,
			ManifestPath:        apexemitter.DefaultManifestPath,
			OutDir:              outDir,
			Force:               cfg.Force,
			DryRun:              cfg.DryRun,
			Logger:              e.logger.Named("apex"),
		})
		if err != nil {
			return wrapOutputError(err, absOut)
		}
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		reportFiles(w, cfg.DryRun, absOut, paths)
	case "go":
		res, err := goemitter.Emit(ctx, conn, goemitter.Options{
			OutDir:      outDir,
			PackageName: cfg.PackageName,
			ModuleName:  cfg.ModuleName,
			Force:       cfg.Force,
			DryRun:      cfg.DryRun,
			Logger:      e.logger.Named("go"),
		})
		if err != nil {
			return wrapOutputError(err, absOut)
		}
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		reportFiles(w, cfg.DryRun, absOut, paths)
	default:
		return newUsageError(fmt.Sprintf("generate: unsupported --target %q (allowed: apex, go)", cfg.Target))
	}

	return nil
}

func reportFiles(w io.Writer, dryRun bool, outDir string, relPaths []string) {
	verb := "Wrote"
	if dryRun {
		verb = "Planned writes"
	}
	fmt.Fprintf(w, "%s to %s (%d files):\n", verb, outDir, len(relPaths))
	for _, p := range relPaths {
		fmt.Fprintf(w, "- %s\n", p)
	}
}

func filterEndpointsByTags(eps []spec.Endpoint, include, exclude []string) []spec.Endpoint {
	has := func(ep spec.Endpoint, tags []string) bool {
		for _, t := range ep.Tags {
			for _, want := range tags {
				if t == want {
					return true
				}
			}
		}
		return false
	}
	out := make([]spec.Endpoint, 0, len(eps))
	for _, ep := range eps {
		if len(include) > 0 && !has(ep, include) {
			continue
		}
		if has(ep, exclude) {
			continue
		}
		out = append(out, ep)
	}
	return out
}

// slugify lowercases title and joins its words with dashes.
func slugify(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	for _, r := range t {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), "-")
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	strs := map[string]*string{
		"input":            &cfg.Input,
		"connection":       &cfg.Connection,
		"target":           &cfg.Target,
		"out":              &cfg.Out,
		"packagename":      &cfg.PackageName,
		"modulename":       &cfg.ModuleName,
		"module":           &cfg.ModuleName,
		"errorhandling":    &cfg.ErrorHandling,
		"namingconvention": &cfg.NamingConvention,
	}
	bools := map[string]*bool{
		"dryrun":              &cfg.DryRun,
		"force":               &cfg.Force,
		"verbose":             &cfg.Verbose,
		"descriptors":         &cfg.Descriptors,
		"generatetestclass":   &cfg.TestClass,
		"generatemockservice": &cfg.MockService,
		"includecomments":     &cfg.Comments,
		"usebulkapi":          &cfg.BulkAPI,
		"asyncprocessing":     &cfg.Async,
	}

	for key, value := range raw {
		normalized := normalizeKey(key)
		if dst, ok := strs[normalized]; ok {
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = str
			continue
		}
		if dst, ok := bools[normalized]; ok {
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = val
			continue
		}
		switch normalized {
		case "includetags":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.IncludeTags = sanitizeTags(list)
		case "excludetags":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.ExcludeTags = sanitizeTags(list)
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
