package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectforce/connectforce/internal/spec"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "force-app/main/default/classes", cfg.ApexOutputPath)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.GenerateTestClasses)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectforce.yaml")
	content := `
defaultAuthType: basic
apexOutputPath: src/classes
generateTestClasses: false
logLevel: DEBUG
storePath: data/store.json
cliTimeout: 45s
cacheTTL: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, spec.AuthBasic, cfg.DefaultAuthType)
	assert.Equal(t, "src/classes", cfg.ApexOutputPath)
	assert.Equal(t, "force-app/main/default/namedCredentials", cfg.NamedCredentialPath)
	assert.False(t, cfg.GenerateTestClasses)
	assert.True(t, cfg.EnableMockServices)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "data/store.json", cfg.StorePath)
	assert.Equal(t, 45*time.Second, cfg.CLITimeout)
	assert.Equal(t, time.Minute, cfg.CacheTTL)

	lc := cfg.Logging(true)
	assert.Equal(t, "debug", lc.Level)
	assert.True(t, lc.Verbose)
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty document", input: ""},
		{name: "json document", input: `{"logLevel": "warn", "enableMockServices": false}`},
		{name: "unknown key", input: "apexPath: x\n", wantErr: "apexPath"},
		{name: "bad auth type", input: "defaultAuthType: kerberos\n", wantErr: "defaultAuthType"},
		{name: "bad log level", input: "logLevel: loud\n", wantErr: "logLevel"},
		{name: "negative ttl", input: "cacheTTL: -1s\n", wantErr: "cacheTTL"},
		{name: "bad duration", input: "cliTimeout: soon\n", wantErr: "soon"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			err := Decode([]byte(tc.input), &cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
