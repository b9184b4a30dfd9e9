// Package params loads stream filter parameters from a parameter source file
// and detects when that file changes.
//
// The on-disk shape is a key=value line:
//
//	track=cats,dogs
//	locations=-122.75,36.8,-121.75,37.8
//
// Everything up to and including the first '=' is discarded, the remainder
// is split on ','. Tokens are whitespace-trimmed and empty tokens dropped.
// For the bounding-box kind every token must be a decimal number.
package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/feedlog/internal/errors"
)

// Kind selects how tokens are interpreted.
type Kind int

const (
	// Keywords keeps tokens as literal strings.
	Keywords Kind = iota
	// Locations converts every token to a float64 coordinate.
	Locations
)

// String returns the kind name.
func (k Kind) String() string {
	if k == Locations {
		return "location"
	}
	return "keyword"
}

// Parameters is one immutable load of a parameter source.
type Parameters struct {
	Kind      Kind
	Keywords  []string
	Locations []float64

	// Source is the file path the parameters were read from.
	Source string

	// ModTime is the source's modification time observed at load.
	ModTime time.Time
}

// Len returns the number of parsed values.
func (p *Parameters) Len() int {
	if p.Kind == Locations {
		return len(p.Locations)
	}
	return len(p.Keywords)
}

// Load reads and parses the parameter source at path.
func Load(path string, kind Kind) (*Parameters, error) {
	// Stat before reading: a write racing with the read leaves a newer mtime
	// behind and is picked up by the next change check.
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewParse(path, "stat parameter source", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewParse(path, "read parameter source", err)
	}

	p, err := Parse(string(data), kind)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	p.Source = path
	p.ModTime = info.ModTime()
	return p, nil
}

// Parse parses parameter text.
func Parse(content string, kind Kind) (*Parameters, error) {
	if i := strings.IndexByte(content, '='); i >= 0 {
		content = content[i+1:]
	}

	var tokens []string
	for _, tok := range strings.Split(content, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}

	p := &Parameters{Kind: kind}
	if kind != Locations {
		if len(tokens) == 0 {
			return nil, errors.NewParse("parameters", "no keywords", nil)
		}
		p.Keywords = tokens
		return p, nil
	}

	p.Locations = make([]float64, 0, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, errors.NewParse("parameters", fmt.Sprintf("token %d %q is not a number", i+1, tok), nil)
		}
		p.Locations = append(p.Locations, v)
	}
	if len(p.Locations) == 0 || len(p.Locations)%4 != 0 {
		return nil, errors.NewParse("parameters",
			fmt.Sprintf("%d coordinates do not form bounding boxes of 4", len(p.Locations)), nil)
	}
	return p, nil
}

// Source is a parameter file watched by polling its modification time.
type Source struct {
	Path string
	Kind Kind
}

// NewSource returns a Source for path.
func NewSource(path string, kind Kind) *Source {
	return &Source{Path: path, Kind: kind}
}

// Load reads the source.
func (s *Source) Load() (*Parameters, error) {
	return Load(s.Path, s.Kind)
}

// ModTime returns the source's current modification time.
func (s *Source) ModTime() (time.Time, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat parameter source: %w", err)
	}
	return info.ModTime(), nil
}

// HasChangedSince reports whether the source's modification time differs
// from last. Any difference counts, including a clock moving backwards.
func (s *Source) HasChangedSince(last time.Time) (bool, error) {
	current, err := s.ModTime()
	if err != nil {
		return false, err
	}
	return !current.Equal(last), nil
}
