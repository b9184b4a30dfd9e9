// Package config provides configuration defaults for the feedlog daemon.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml, flags or environment variables.
package config

import (
	"os"
	"time"
)

// =============================================================================
// Rotation Defaults
// =============================================================================

const (
	// DefaultRotationInterval is how long an output file stays current before
	// it is considered stale, regardless of the calendar date.
	// Override via config: output.rotation_interval
	DefaultRotationInterval = 86400 * time.Second

	// FileExtension is appended to every output filename.
	FileExtension = ".gz"

	// FilenameLayout is the local timestamp layout used for output filenames
	// (YYYY_MM_DD_HH_MM_SS).
	FilenameLayout = "2006_01_02_15_04_05"
)

// =============================================================================
// Output Defaults
// =============================================================================

const (
	// DefaultDirPerm is the permission used for <base>/<year>/<month> directories.
	DefaultDirPerm os.FileMode = 0o755

	// DefaultFilePerm is the permission used for output files.
	DefaultFilePerm os.FileMode = 0o644

	// DefaultWriteBufferSize is the size of the buffer in front of the gzip
	// encoder. Flushed on every close.
	// Override via config: output.buffer_size
	DefaultWriteBufferSize = 64 * 1024

	// DefaultCompressionLevel is the gzip level for output files (gzip.DefaultCompression).
	// Override via config: output.compression_level
	DefaultCompressionLevel = -1

	// DefaultFsyncOnClose controls whether a file is fsynced before it is closed.
	// Override via config: output.fsync_on_close
	DefaultFsyncOnClose = true
)

// =============================================================================
// Upstream Defaults
// =============================================================================

const (
	// DefaultTransport is the upstream transport.
	// Override via config: stream.transport
	DefaultTransport = "http"

	// DefaultHTTPEndpoint is the base URL of the streaming API.
	// Override via config: stream.endpoint
	DefaultHTTPEndpoint = "https://stream.twitter.com/1.1"

	// DefaultMaxLineSize bounds a single delivered line on the HTTP transport,
	// excluding its terminator. A longer line is a fatal stream fault.
	// Override via config: stream.max_line_size
	DefaultMaxLineSize = 1024 * 1024

	// ReadBufferSize sizes the HTTP transport's read buffer. Lines longer than
	// the buffer are assembled across reads up to DefaultMaxLineSize.
	ReadBufferSize = 64 * 1024

	// DefaultHandshakeTimeout bounds the websocket handshake.
	DefaultHandshakeTimeout = 30 * time.Second
)

// =============================================================================
// Logging Defaults
// =============================================================================

const (
	// DefaultLogLevel is the default minimum log level.
	// Override via config: logging.level
	DefaultLogLevel = "INFO"

	// DefaultLogFormat selects text on a terminal and JSON otherwise.
	// Override via config: logging.format
	DefaultLogFormat = "auto"
)

// EnvPrefix prefixes environment variables that supply credentials.
const EnvPrefix = "FEEDLOG_"
