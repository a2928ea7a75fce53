// Package config loads runtime settings for the CLI from defaults, an
// optional config file and ODAUDIT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ODAUDIT"

// Config holds runtime configuration.
type Config struct {
	LogFile      string `mapstructure:"LOG_FILE" validate:"required"`
	LogLevel     string `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	Environment  string `mapstructure:"ENVIRONMENT" validate:"omitempty,oneof=production staging dev"`
	OutputFormat string `mapstructure:"OUTPUT_FORMAT" validate:"oneof=json yaml"`

	OTelEnabled      bool   `mapstructure:"OTEL_ENABLED"`
	OTelOTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

var keys = []string{
	"LOG_FILE",
	"LOG_LEVEL",
	"ENVIRONMENT",
	"OUTPUT_FORMAT",
	"OTEL_ENABLED",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

// Load reads configuration. When file is non-empty it must exist and parse.
// Environment variables take precedence over the file, and v may carry
// bound command-line flags that take precedence over both. v may be nil.
func Load(v *viper.Viper, file string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("LOG_FILE", "audit.log")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENVIRONMENT", "")
	v.SetDefault("OUTPUT_FORMAT", "json")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks that every setting has an allowed value.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid configuration: %s=%q is not allowed", fe.Field(), fe.Value())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
