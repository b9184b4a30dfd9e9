// Package loader - Configuration Types
//
// Defines the YAML configuration structure for feedlogd.
//
//	credentials:  four upstream authentication tokens
//	stream:       mode, transport, parameter source, change detection
//	output:       base directory, rotation, gzip settings
//	logging:      level, format, destination
//	pid_file:     process id file
package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/feedlog/config"
	"github.com/xtxerr/feedlog/internal/stream"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for feedlogd.
type Config struct {
	// Credentials are passed through unmodified to the upstream client.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Stream selects what to receive and how.
	Stream StreamConfig `yaml:"stream"`

	// Output configures the rotating writer.
	Output OutputConfig `yaml:"output"`

	// Logging configures the process log.
	Logging LoggingConfig `yaml:"logging"`

	// PIDFile, if set, receives the process id after startup.
	PIDFile string `yaml:"pid_file"`
}

// =============================================================================
// Credentials
// =============================================================================

// CredentialsConfig holds the four opaque authentication tokens.
//
// Each may also be supplied through FEEDLOG_CONSUMER_KEY,
// FEEDLOG_CONSUMER_SECRET, FEEDLOG_ACCESS_TOKEN and
// FEEDLOG_ACCESS_TOKEN_SECRET.
type CredentialsConfig struct {
	ConsumerKey       string `yaml:"consumer_key"`
	ConsumerSecret    string `yaml:"consumer_secret"`
	AccessToken       string `yaml:"access_token"`
	AccessTokenSecret string `yaml:"access_token_secret"`
}

// Stream converts the credentials for the stream client.
func (c CredentialsConfig) Stream() stream.Credentials {
	return stream.Credentials{
		ConsumerKey:       c.ConsumerKey,
		ConsumerSecret:    c.ConsumerSecret,
		AccessToken:       c.AccessToken,
		AccessTokenSecret: c.AccessTokenSecret,
	}
}

// =============================================================================
// Stream
// =============================================================================

// StreamConfig configures the upstream stream.
type StreamConfig struct {
	// Mode is sample, location or keyword.
	Mode string `yaml:"mode"`

	// Transport is http or websocket.
	// Default: "http"
	Transport string `yaml:"transport"`

	// Endpoint overrides the transport's base URL.
	// Default: "https://stream.twitter.com/1.1" for http
	Endpoint string `yaml:"endpoint"`

	// ParametersFile holds the filter parameters. Required for location and
	// keyword streams.
	ParametersFile string `yaml:"parameters_file"`

	// CheckForNewParameters re-stats ParametersFile on every delivery and
	// reconnects with the new parameters when it changes.
	CheckForNewParameters bool `yaml:"check_for_new_parameters"`

	// MaxLineSize is the longest HTTP line accepted; a longer one is fatal.
	// Default: 1MB
	MaxLineSize ByteSize `yaml:"max_line_size"`
}

// =============================================================================
// Output
// =============================================================================

// OutputConfig configures the rotating writer.
type OutputConfig struct {
	// Directory is the base under which <YYYY>/<MM>/<timestamp>.gz files are
	// created.
	Directory string `yaml:"directory"`

	// RotationInterval is how long a file stays current.
	// Format: Go duration ("24h") or integer seconds (86400).
	// Default: 86400s
	RotationInterval Duration `yaml:"rotation_interval"`

	// CompressionLevel is the gzip level, -2 (Huffman only) to 9.
	// Default: -1 (gzip default)
	CompressionLevel int `yaml:"compression_level"`

	// BufferSize is the write buffer in front of the gzip encoder.
	// Default: 64KB
	BufferSize ByteSize `yaml:"buffer_size"`

	// FsyncOnClose syncs each file before closing it.
	// Default: true
	FsyncOnClose bool `yaml:"fsync_on_close"`
}

// =============================================================================
// Logging
// =============================================================================

// LoggingConfig configures the process log.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARNING, ERROR, CRITICAL or FATAL.
	// Default: "INFO"
	Level string `yaml:"level"`

	// Format is text, json or auto.
	// Default: "auto"
	Format string `yaml:"format"`

	// File, if set, receives the log in append mode instead of stdout.
	File string `yaml:"file"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			Mode:        string(stream.ModeSample),
			Transport:   config.DefaultTransport,
			MaxLineSize: ByteSize(config.DefaultMaxLineSize),
		},
		Output: OutputConfig{
			RotationInterval: Duration(config.DefaultRotationInterval),
			CompressionLevel: config.DefaultCompressionLevel,
			BufferSize:       ByteSize(config.DefaultWriteBufferSize),
			FsyncOnClose:     config.DefaultFsyncOnClose,
		},
		Logging: LoggingConfig{
			Level:  config.DefaultLogLevel,
			Format: config.DefaultLogFormat,
		},
	}
}

// =============================================================================
// Custom Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var i int64
	if err := unmarshal(&i); err == nil {
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ParseDuration parses a Go duration string or a plain number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return dur, nil
}

// ByteSize is a size in bytes that can be unmarshaled from YAML.
// Supports: "64KB", "1MB", or plain bytes.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var i int64
	if err := unmarshal(&i); err == nil {
		*b = ByteSize(i)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	size, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(size)
	return nil
}

// parseByteSize parses a size string like "64KB" or "1MB".
func parseByteSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	// Longest suffix first so "MB" is not read as "B".
	units := []struct {
		suffix     string
		multiplier int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			n, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse byte size %q: %w", s, err)
			}
			return n * u.multiplier, nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse byte size %q: %w", s, err)
	}
	return n, nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}
