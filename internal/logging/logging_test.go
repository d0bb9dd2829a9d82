package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want zapcore.Level
		err  bool
	}{
		{"", zapcore.InfoLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"trace", zapcore.InfoLevel, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, false, zapcore.InfoLevel)
	logger.With(zap.String("auth", "Bearer abc.def")).Info("calling with password=hunter2",
		zap.String("header", "Basic dXNlcjpwdw=="),
		zap.Error(errors.New("dial failed: token=xyz")),
		zap.Int("status", 500),
	)
	out := buf.String()
	for _, secret := range []string{"hunter2", "abc.def", "dXNlcjpwdw==", "xyz"} {
		assert.NotContains(t, out, secret)
	}
	assert.Contains(t, out, "password=***")
	assert.Contains(t, out, `"status":500`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, false, zapcore.WarnLevel)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	NewConsoleLogger(&buf, true, zapcore.ErrorLevel).Debug("verbose wins")
	assert.Contains(t, buf.String(), "verbose wins")
}

func TestNew_WithFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "connectforce.log")
	logger, closeFn, err := New(Config{Level: "info", File: path}, &console)
	require.NoError(t, err)
	logger.Info("imported spec", zap.String("key", "key=secret"))
	closeFn()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"imported spec"`)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, console.String(), "imported spec")

	_, _, err = New(Config{Level: "loud"}, &console)
	assert.Error(t, err)
}
