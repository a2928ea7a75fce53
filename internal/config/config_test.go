package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odaudit/odaudit/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "audit.log", cfg.LogFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Environment)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.False(t, cfg.OTelEnabled)
	assert.Equal(t, "localhost:4317", cfg.OTelOTLPEndpoint)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("ODAUDIT_LOG_LEVEL", "DEBUG")
	t.Setenv("ODAUDIT_ENVIRONMENT", "staging")
	t.Setenv("ODAUDIT_OUTPUT_FORMAT", "yaml")
	t.Setenv("ODAUDIT_OTEL_ENABLED", "true")

	cfg, err := config.Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "yaml", cfg.OutputFormat)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odaudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_file: /tmp/custom.log\noutput_format: yaml\n"), 0o600))

	cfg, err := config.Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.log", cfg.LogFile)
	assert.Equal(t, "yaml", cfg.OutputFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odaudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))
	t.Setenv("ODAUDIT_LOG_LEVEL", "error")

	cfg, err := config.Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := config.Load(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_FlagsTakePrecedence(t *testing.T) {
	t.Setenv("ODAUDIT_LOG_LEVEL", "error")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level", "debug"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("LOG_LEVEL", flags.Lookup("log-level")))

	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "level", key: "ODAUDIT_LOG_LEVEL", val: "loud"},
		{name: "environment", key: "ODAUDIT_ENVIRONMENT", val: "qa"},
		{name: "format", key: "ODAUDIT_OUTPUT_FORMAT", val: "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := config.Load(nil, "")
			assert.Error(t, err)
		})
	}
}
