// Package stream connects to the upstream real-time feed and hands each
// delivered payload to a Handler.
//
// A Client call blocks for the lifetime of one connection. It returns when
// the handler returns an error, when the connection faults, or when the
// context is cancelled. Read faults after the connection was established are
// reported as errors.ErrTransientRead; everything else is returned as-is.
//
// Handler methods are called from a single goroutine, one at a time.
package stream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects the upstream stream.
type Mode string

const (
	ModeSample   Mode = "sample"
	ModeLocation Mode = "location"
	ModeKeyword  Mode = "keyword"
)

// Modes lists the valid modes.
var Modes = []Mode{ModeSample, ModeLocation, ModeKeyword}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeSample, ModeLocation, ModeKeyword:
		return m, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (want sample, location or keyword)", s)
	}
}

// NeedsParameters reports whether the mode requires a parameter source.
func (m Mode) NeedsParameters() bool {
	return m == ModeLocation || m == ModeKeyword
}

// Credentials are the four opaque authentication tokens.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Request describes one connection attempt.
type Request struct {
	Mode      Mode
	Track     []string
	Locations []float64
}

// TrackValue returns the comma-joined keyword list.
func (r Request) TrackValue() string {
	return strings.Join(r.Track, ",")
}

// LocationsValue returns the comma-joined coordinate list.
func (r Request) LocationsValue() string {
	parts := make([]string, len(r.Locations))
	for i, v := range r.Locations {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Handler receives connection events.
type Handler interface {
	// OnConnect is called once the upstream accepted the connection.
	OnConnect()

	// OnData is called once per delivered payload. The payload is only valid
	// until OnData returns. A non-nil error stops the stream and is returned
	// from Client.Stream.
	OnData(payload []byte) error
}

// Client is a connection to the upstream feed.
type Client interface {
	Stream(ctx context.Context, req Request, h Handler) error
}
