// Package rotating implements the time-partitioned, gzip-compressed output
// writer.
//
// The Writer owns at most one open output file. Before every delivery it
// decides whether the current file is still valid, in this order:
//
//  1. no file has been opened yet
//  2. the current file was closed (for example by the supervisor on reconnect)
//  3. the rotation interval has elapsed since the file was opened
//  4. the local calendar date changed since the file was opened
//
// Any of these rotates: the old file is flushed and finalized, a new path is
// computed from the local time and a new gzip stream is opened in a file
// that did not exist before. A second rotation within the same second gets a
// numbered name instead of reopening the earlier file. The delivery that
// triggered the rotation is written into the new file.
package rotating

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/klauspost/compress/gzip"

	"github.com/xtxerr/feedlog/config"
	"github.com/xtxerr/feedlog/internal/clock"
	ferrors "github.com/xtxerr/feedlog/internal/errors"
	"github.com/xtxerr/feedlog/internal/logging"
	"github.com/xtxerr/feedlog/internal/record"
	"github.com/xtxerr/feedlog/internal/storage/partition"
)

// Reason says why a rotation happened.
type Reason string

const (
	ReasonNoFile          Reason = "no_file"
	ReasonFileClosed      Reason = "file_closed"
	ReasonIntervalElapsed Reason = "interval_elapsed"
	ReasonDayChanged      Reason = "day_changed"
)

// Options configures the Writer.
type Options struct {
	// Dir is the output base directory. Required.
	Dir string

	// Interval is how long a file stays current.
	// Default: 86400s
	Interval time.Duration

	// CompressionLevel is the gzip level. Zero is gzip.NoCompression; start
	// from DefaultOptions to get gzip.DefaultCompression.
	CompressionLevel int

	// BufferSize is the size of the buffer in front of the gzip encoder.
	// Default: 64KB
	BufferSize int

	// FsyncOnClose syncs the file to disk before closing it.
	FsyncOnClose bool

	// Location is the time zone used for partitioning and the calendar-day
	// rule. Default: time.Local
	Location *time.Location

	// Clock supplies the current time. Default: clock.Real()
	Clock clock.Clock

	// Filter decides which payloads are written. Default: record.Accepts
	Filter func([]byte) bool

	// Logger receives rotation events. Default: logging.Component("writer")
	Logger *slog.Logger
}

// DefaultOptions returns default writer options for dir.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:              dir,
		Interval:         config.DefaultRotationInterval,
		CompressionLevel: gzip.DefaultCompression,
		BufferSize:       config.DefaultWriteBufferSize,
		FsyncOnClose:     config.DefaultFsyncOnClose,
	}
}

// Stats holds writer statistics.
type Stats struct {
	FilesCreated    int64
	FilesClosed     int64
	RecordsWritten  int64
	RecordsFiltered int64
	BytesWritten    int64
}

// FileStats describes one output file.
type FileStats struct {
	Path     string
	OpenedAt time.Time
	Records  int64
	Bytes    int64
	P50      float64
	P99      float64
}

// Writer writes accepted payloads into the current output file.
//
// A Writer is not safe for concurrent use; it expects a single caller that
// delivers payloads one at a time.
type Writer struct {
	opts Options
	log  *slog.Logger

	current *segment
	stats   Stats
	shut    bool
}

// segment is one rotation epoch: a single gzip file on disk.
type segment struct {
	path     string
	file     *os.File
	gz       *gzip.Writer
	buf      *bufio.Writer
	openedAt time.Time
	year     int
	month    time.Month
	day      int
	closed   bool

	records int64
	bytes   int64
	sizes   *ddsketch.DDSketch
}

// New creates a Writer. No file is opened until the first delivery.
func New(opts Options) (*Writer, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, ferrors.NewMissingField("output directory")
	}
	defaults := DefaultOptions(opts.Dir)
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.CompressionLevel < gzip.HuffmanOnly || opts.CompressionLevel > gzip.BestCompression {
		return nil, ferrors.NewInvalidValue("compression level", opts.CompressionLevel, "out of gzip range")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Filter == nil {
		opts.Filter = record.Accepts
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("writer")
	}

	return &Writer{opts: opts, log: opts.Logger}, nil
}

// Deliver handles one delivered payload: it rotates if needed and then
// appends the payload, newline-terminated, if the filter accepts it.
func (w *Writer) Deliver(payload []byte) error {
	if w.shut {
		return ferrors.ErrWriterClosed
	}
	now := w.opts.Clock.Now().In(w.opts.Location)

	if reason, due := w.rotationDue(now); due {
		if err := w.rotate(now, reason); err != nil {
			return err
		}
	}

	if !w.opts.Filter(payload) {
		w.stats.RecordsFiltered++
		return nil
	}
	return w.write(payload)
}

// rotationDue evaluates the rotation rules in precedence order.
func (w *Writer) rotationDue(now time.Time) (Reason, bool) {
	seg := w.current
	switch {
	case seg == nil:
		return ReasonNoFile, true
	case seg.closed:
		return ReasonFileClosed, true
	case now.Sub(seg.openedAt) > w.opts.Interval:
		return ReasonIntervalElapsed, true
	}
	y, m, d := now.Date()
	if y != seg.year || m != seg.month || d != seg.day {
		return ReasonDayChanged, true
	}
	return "", false
}

// rotate closes the current file, if open, and opens a new one for now.
func (w *Writer) rotate(now time.Time, reason Reason) error {
	if w.current != nil && !w.current.closed {
		if err := w.closeSegment(w.current); err != nil {
			return fmt.Errorf("close %s: %w", w.current.path, err)
		}
	}

	dir, created, err := partition.Ensure(w.opts.Dir, now, config.DefaultDirPerm)
	if err != nil {
		return err
	}
	if created {
		w.log.Info("created partition", "dir", dir)
	}

	f, path, err := createFile(dir, now)
	if err != nil {
		return err
	}
	seg, err := w.openSegment(f, path, now)
	if err != nil {
		return err
	}

	w.current = seg
	w.stats.FilesCreated++
	w.log.Info("starting new file", "path", path, "reason", string(reason))
	return nil
}

// createFile creates the output file for now in dir. Existing files are never
// reopened; the first free sequence number for that second is used instead.
func createFile(dir string, now time.Time) (*os.File, string, error) {
	for seq := 0; seq < maxSequence; seq++ {
		path := filepath.Join(dir, partition.FilenameSeq(now, seq))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, config.DefaultFilePerm)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("open %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("open %s: %d files already exist for this second",
		filepath.Join(dir, partition.Filename(now)), maxSequence)
}

// maxSequence caps the numbered files tried for a single second.
const maxSequence = 10000

func (w *Writer) openSegment(f *os.File, path string, now time.Time) (*segment, error) {

	gz, err := gzip.NewWriterLevel(f, w.opts.CompressionLevel)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	gz.Name = strings.TrimSuffix(filepath.Base(path), config.FileExtension)
	gz.ModTime = now

	sizes, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sketch: %w", err)
	}

	y, m, d := now.Date()
	return &segment{
		path:     path,
		file:     f,
		gz:       gz,
		buf:      bufio.NewWriterSize(gz, w.opts.BufferSize),
		openedAt: now,
		year:     y,
		month:    m,
		day:      d,
		sizes:    sizes,
	}, nil
}

func (w *Writer) write(payload []byte) error {
	seg := w.current
	n, err := seg.buf.Write(payload)
	if err != nil {
		return fmt.Errorf("write %s: %w", seg.path, err)
	}
	if len(payload) == 0 || payload[len(payload)-1] != '\n' {
		if err := seg.buf.WriteByte('\n'); err != nil {
			return fmt.Errorf("write %s: %w", seg.path, err)
		}
		n++
	}

	seg.records++
	seg.bytes += int64(n)
	_ = seg.sizes.Add(float64(len(payload)))

	w.stats.RecordsWritten++
	w.stats.BytesWritten += int64(n)
	return nil
}

// CloseCurrent flushes and finalizes the open file without opening a
// replacement. The next delivery rotates. Calling it with no open file is a
// no-op.
func (w *Writer) CloseCurrent() error {
	if w.current == nil || w.current.closed {
		return nil
	}
	w.log.Info("closing current file", "path", w.current.path)
	return w.closeSegment(w.current)
}

// Close closes the current file and stops the writer. Later deliveries fail
// with ErrWriterClosed.
func (w *Writer) Close() error {
	if w.shut {
		return nil
	}
	w.shut = true
	return w.CloseCurrent()
}

// closeSegment flushes the buffer, finalizes the gzip stream and closes the
// file. The segment is marked closed even when a step fails.
func (w *Writer) closeSegment(seg *segment) error {
	if seg.closed {
		return nil
	}
	seg.closed = true

	var errs []error
	if err := seg.buf.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if err := seg.gz.Close(); err != nil {
		errs = append(errs, fmt.Errorf("finalize gzip: %w", err))
	}
	if w.opts.FsyncOnClose {
		if err := seg.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("fsync: %w", err))
		}
	}
	if err := seg.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}

	w.stats.FilesClosed++
	fs := seg.fileStats()
	w.log.Info("closed file",
		"path", fs.Path,
		"records", fs.Records,
		"bytes", fs.Bytes,
		"p50_payload", fs.P50,
		"p99_payload", fs.P99,
		"open_for", w.opts.Clock.Now().Sub(fs.OpenedAt).Round(time.Second))

	return errors.Join(errs...)
}

func (s *segment) fileStats() FileStats {
	fs := FileStats{
		Path:     s.path,
		OpenedAt: s.openedAt,
		Records:  s.records,
		Bytes:    s.bytes,
	}
	if s.records > 0 {
		fs.P50, _ = s.sizes.GetValueAtQuantile(0.50)
		fs.P99, _ = s.sizes.GetValueAtQuantile(0.99)
	}
	return fs
}

// Current returns the path of the most recent file and whether it is open.
func (w *Writer) Current() (string, bool) {
	if w.current == nil {
		return "", false
	}
	return w.current.path, !w.current.closed
}

// CurrentStats returns statistics for the most recent file.
func (w *Writer) CurrentStats() (FileStats, bool) {
	if w.current == nil {
		return FileStats{}, false
	}
	return w.current.fileStats(), true
}

// Stats returns writer statistics.
func (w *Writer) Stats() Stats {
	return w.stats
}

// ListFiles returns every output file under dir in the order they were
// opened: by timestamp, then by sequence number within a second.
func ListFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), config.FileExtension) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool { return partition.Less(files[i], files[j]) })
	return files, nil
}
