// Package loader handles configuration file loading and validation.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Applying FEEDLOG_* credential variables
//   - Validating the result before anything connects
package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"

	"github.com/xtxerr/feedlog/config"
	"github.com/xtxerr/feedlog/internal/errors"
	"github.com/xtxerr/feedlog/internal/logging"
	"github.com/xtxerr/feedlog/internal/params"
	"github.com/xtxerr/feedlog/internal/stream"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv fills empty credentials from FEEDLOG_* variables. lookup is
// usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	fill := func(dst *string, name string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(config.EnvPrefix + name); ok {
			*dst = v
		}
	}

	fill(&cfg.Credentials.ConsumerKey, "CONSUMER_KEY")
	fill(&cfg.Credentials.ConsumerSecret, "CONSUMER_SECRET")
	fill(&cfg.Credentials.AccessToken, "ACCESS_TOKEN")
	fill(&cfg.Credentials.AccessTokenSecret, "ACCESS_TOKEN_SECRET")
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	// Credentials
	if cfg.Credentials.ConsumerKey == "" {
		errs.AddMissing("credentials.consumer_key")
	}
	if cfg.Credentials.ConsumerSecret == "" {
		errs.AddMissing("credentials.consumer_secret")
	}
	if cfg.Credentials.AccessToken == "" {
		errs.AddMissing("credentials.access_token")
	}
	if cfg.Credentials.AccessTokenSecret == "" {
		errs.AddMissing("credentials.access_token_secret")
	}

	// Stream
	mode, err := stream.ParseMode(cfg.Stream.Mode)
	if err != nil {
		errs.AddField("stream.mode", err.Error())
	}
	if mode.NeedsParameters() && cfg.Stream.ParametersFile == "" {
		errs.AddField("stream.parameters_file", fmt.Sprintf("required for %s stream", mode))
	}
	if cfg.Stream.CheckForNewParameters && cfg.Stream.ParametersFile == "" {
		errs.AddField("stream.check_for_new_parameters", "requires stream.parameters_file")
	}
	switch strings.ToLower(cfg.Stream.Transport) {
	case stream.TransportHTTP, stream.TransportWebSocket:
	default:
		errs.AddField("stream.transport", fmt.Sprintf("unknown transport %q (want http or websocket)", cfg.Stream.Transport))
	}
	if cfg.Stream.MaxLineSize < 0 {
		errs.AddField("stream.max_line_size", "cannot be negative")
	}

	// Output
	if cfg.Output.Directory == "" {
		errs.AddMissing("output.directory")
	}
	if cfg.Output.RotationInterval.Duration() <= 0 {
		errs.AddField("output.rotation_interval", "must be positive")
	}
	if cfg.Output.CompressionLevel < gzip.HuffmanOnly || cfg.Output.CompressionLevel > gzip.BestCompression {
		errs.AddField("output.compression_level",
			fmt.Sprintf("%d out of range [%d, %d]", cfg.Output.CompressionLevel, gzip.HuffmanOnly, gzip.BestCompression))
	}
	if cfg.Output.BufferSize < 0 {
		errs.AddField("output.buffer_size", "cannot be negative")
	}

	// Logging
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs.AddField("logging.level", err.Error())
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", logging.FormatText, logging.FormatJSON, logging.FormatAuto:
	default:
		errs.AddField("logging.format", fmt.Sprintf("unknown format %q (want text, json or auto)", cfg.Logging.Format))
	}

	return errs.Err()
}

// =============================================================================
// Derived settings
// =============================================================================

// Mode returns the parsed stream mode. Call after Validate.
func (c *Config) Mode() stream.Mode {
	m, _ := stream.ParseMode(c.Stream.Mode)
	return m
}

// ParametersKind returns how the parameters file is parsed for the mode.
func (c *Config) ParametersKind() params.Kind {
	if c.Mode() == stream.ModeLocation {
		return params.Locations
	}
	return params.Keywords
}

// UsesParameters reports whether the parameters file is loaded at all. A
// sample stream ignores a configured file.
func (c *Config) UsesParameters() bool {
	return c.Mode().NeedsParameters() && c.Stream.ParametersFile != ""
}

// ChangeDetection reports whether the parameters file is watched.
func (c *Config) ChangeDetection() bool {
	return c.Stream.CheckForNewParameters && c.UsesParameters()
}
