// Package config loads the connectforce workspace file. Every key is
// optional; a missing file yields the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/connectforce/connectforce/internal/emitter/apexemitter"
	"github.com/connectforce/connectforce/internal/logging"
	"github.com/connectforce/connectforce/internal/platform"
	"github.com/connectforce/connectforce/internal/spec"
)

// DefaultPath is where the CLI looks for the workspace file.
const DefaultPath = "connectforce.yaml"

// DefaultStorePath is the JSON document holding saved connections.
const DefaultStorePath = ".connectforce/store.json"

// Config is the workspace configuration.
type Config struct {
	DefaultAuthType     spec.AuthType `yaml:"defaultAuthType"`
	ApexOutputPath      string        `yaml:"apexOutputPath"`
	NamedCredentialPath string        `yaml:"namedCredentialPath"`
	ExternalServicePath string        `yaml:"externalServicePath"`
	GenerateTestClasses bool          `yaml:"generateTestClasses"`
	EnableMockServices  bool          `yaml:"enableMockServices"`
	LogLevel            string        `yaml:"logLevel"`
	LogFile             string        `yaml:"logFile"`
	StorePath           string        `yaml:"storePath"`
	CLITimeout          time.Duration `yaml:"cliTimeout"`
	CacheTTL            time.Duration `yaml:"cacheTTL"`
}

func Default() Config {
	return Config{
		DefaultAuthType:     spec.AuthNone,
		ApexOutputPath:      apexemitter.DefaultClassesPath,
		NamedCredentialPath: apexemitter.DefaultNamedCredentialPath,
		ExternalServicePath: apexemitter.DefaultExternalServicePath,
		GenerateTestClasses: true,
		EnableMockServices:  true,
		LogLevel:            "info",
		StorePath:           DefaultStorePath,
		CLITimeout:          platform.DefaultCLITimeout,
		CacheTTL:            platform.DefaultCacheTTL,
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read workspace config %q: %w", path, err)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("workspace config %q: %w", path, err)
	}
	return cfg, nil
}

// Decode merges YAML (or JSON) data into cfg, rejecting unknown keys, then
// validates the result.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	cfg.normalize()
	return cfg.Validate()
}

func (c *Config) normalize() {
	def := Default()
	c.ApexOutputPath = orDefault(c.ApexOutputPath, def.ApexOutputPath)
	c.NamedCredentialPath = orDefault(c.NamedCredentialPath, def.NamedCredentialPath)
	c.ExternalServicePath = orDefault(c.ExternalServicePath, def.ExternalServicePath)
	c.StorePath = orDefault(c.StorePath, def.StorePath)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFile = strings.TrimSpace(c.LogFile)
	if c.DefaultAuthType == "" {
		c.DefaultAuthType = def.DefaultAuthType
	} else if t, ok := spec.ParseAuthType(string(c.DefaultAuthType)); ok {
		c.DefaultAuthType = t
	}
	if c.CLITimeout == 0 {
		c.CLITimeout = def.CLITimeout
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = def.CacheTTL
	}
}

func (c *Config) Validate() error {
	if _, ok := spec.ParseAuthType(string(c.DefaultAuthType)); !ok {
		return fmt.Errorf("defaultAuthType: unknown authentication type %q", c.DefaultAuthType)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	if c.CLITimeout < 0 {
		return fmt.Errorf("cliTimeout must not be negative")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cacheTTL must not be negative")
	}
	return nil
}

// Logging returns the logger settings for this workspace.
func (c Config) Logging(verbose bool) logging.Config {
	return logging.Config{Level: c.LogLevel, Verbose: verbose, File: c.LogFile}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
