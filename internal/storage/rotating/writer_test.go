package rotating

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/xtxerr/feedlog/internal/clock"
	ferrors "github.com/xtxerr/feedlog/internal/errors"
	"github.com/xtxerr/feedlog/internal/storage/partition"
	testutil "github.com/xtxerr/feedlog/internal/testing"
)

func newTestWriter(t *testing.T, start time.Time) (*Writer, *clock.FakeClock, string) {
	t.Helper()

	dir := t.TempDir()
	fc := clock.Fake(start)
	_, log := testutil.NewLogCapture()

	opts := DefaultOptions(dir)
	opts.Location = time.UTC
	opts.Clock = fc
	opts.FsyncOnClose = false
	opts.Logger = log

	w, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.CloseCurrent() })
	return w, fc, dir
}

func deliver(t *testing.T, w *Writer, payloads ...string) {
	t.Helper()
	for _, p := range payloads {
		if err := w.Deliver([]byte(p)); err != nil {
			t.Fatalf("Deliver(%q): %v", p, err)
		}
	}
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	return files
}

func TestNew_RequiresDir(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without output directory")
	}
}

func TestNew_RejectsCompressionLevel(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.CompressionLevel = 42
	if _, err := New(opts); err == nil {
		t.Error("expected error for out of range compression level")
	}
}

func TestWriter_SingleFileWithinMinute(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	w, fc, dir := newTestWriter(t, start)

	deliver(t, w, `{"a":1}`)
	fc.Advance(10 * time.Second)
	deliver(t, w, "\r\n")
	fc.Advance(10 * time.Second)
	deliver(t, w, `{"b":2}`)

	if err := w.CloseCurrent(); err != nil {
		t.Fatalf("CloseCurrent: %v", err)
	}

	files := listFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d: %v", len(files), files)
	}
	want := filepath.Join(dir, "2026", "10", "2026_10_14_10_00_00.gz")
	if files[0] != want {
		t.Errorf("path = %q, want %q", files[0], want)
	}

	lines := testutil.ReadGzipLines(t, files[0])
	if len(lines) != 2 || lines[0] != `{"a":1}` || lines[1] != `{"b":2}` {
		t.Errorf("lines = %q", lines)
	}

	stats := w.Stats()
	if stats.FilesCreated != 1 || stats.RecordsWritten != 2 || stats.RecordsFiltered != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWriter_NewlineHandling(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	w, _, dir := newTestWriter(t, start)

	deliver(t, w, `{"a":1}`, "{\"b\":2}\n", "{\"c\":\n3}")
	if err := w.CloseCurrent(); err != nil {
		t.Fatal(err)
	}

	got := testutil.ReadGzip(t, listFiles(t, dir)[0])
	want := "{\"a\":1}\n{\"b\":2}\n{\"c\":\n3}\n"
	if got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if strings.Contains(got, "\n\n") {
		t.Error("payload ending in newline must not get a blank line")
	}
}

func TestWriter_NonObjectNeverWritten(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	w, _, dir := newTestWriter(t, start)

	deliver(t, w, "", "\n", "keep-alive", `[1]`, ` {"x":1}`)
	if err := w.CloseCurrent(); err != nil {
		t.Fatal(err)
	}

	for _, f := range listFiles(t, dir) {
		if content := testutil.ReadGzip(t, f); content != "" {
			t.Errorf("%s: expected empty file, got %q", f, content)
		}
	}
	if n := w.Stats().RecordsWritten; n != 0 {
		t.Errorf("RecordsWritten = %d", n)
	}
}

func TestWriter_RotationDue(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		advance time.Duration
		close   bool
		want    Reason
		due     bool
	}{
		{"same minute", 30 * time.Second, false, "", false},
		{"exactly interval", 24 * time.Hour, false, ReasonDayChanged, true},
		{"file closed", time.Second, true, ReasonFileClosed, true},
		{"day changed", 14 * time.Hour, false, ReasonDayChanged, true},
		{"late same day", 13*time.Hour + 59*time.Minute, false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, fc, _ := newTestWriter(t, start)

			if reason, due := w.rotationDue(fc.Now()); !due || reason != ReasonNoFile {
				t.Fatalf("first delivery: reason=%q due=%v", reason, due)
			}
			deliver(t, w, `{"a":1}`)

			if tt.close {
				if err := w.CloseCurrent(); err != nil {
					t.Fatal(err)
				}
			}
			fc.Advance(tt.advance)

			reason, due := w.rotationDue(fc.Now().In(time.UTC))
			if due != tt.due || reason != tt.want {
				t.Errorf("rotationDue = (%q, %v), want (%q, %v)", reason, due, tt.want, tt.due)
			}
		})
	}
}

func TestWriter_IntervalElapsed(t *testing.T) {
	start := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	w, fc, dir := newTestWriter(t, start)
	w.opts.Interval = time.Hour

	deliver(t, w, `{"n":1}`)
	fc.Advance(time.Hour)
	deliver(t, w, `{"n":2}`) // not past the interval yet
	fc.Advance(time.Second)
	deliver(t, w, `{"n":3}`)
	if err := w.CloseCurrent(); err != nil {
		t.Fatal(err)
	}

	files := listFiles(t, dir)
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	first := testutil.ReadGzipLines(t, files[0])
	second := testutil.ReadGzipLines(t, files[1])
	if len(first) != 2 || len(second) != 1 || second[0] != `{"n":3}` {
		t.Errorf("first=%q second=%q", first, second)
	}
}

func TestWriter_DayBoundary(t *testing.T) {
	start := time.Date(2026, 10, 31, 23, 59, 58, 0, time.UTC)
	w, fc, dir := newTestWriter(t, start)

	deliver(t, w, `{"day":31}`)
	fc.Advance(3 * time.Second)
	deliver(t, w, `{"day":1}`)
	if err := w.CloseCurrent(); err != nil {
		t.Fatal(err)
	}

	files := listFiles(t, dir)
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	if want := filepath.Join(dir, "2026", "11", "2026_11_01_00_00_01.gz"); files[1] != want {
		t.Errorf("second file = %q, want %q", files[1], want)
	}
	if lines := testutil.ReadGzipLines(t, files[1]); len(lines) != 1 || lines[0] != `{"day":1}` {
		t.Errorf("second file lines = %q", lines)
	}
}

func TestWriter_CloseCurrentFinalizes(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	w, fc, dir := newTestWriter(t, start)

	deliver(t, w, `{"a":1}`)
	path, open := w.Current()
	if !open {
		t.Fatal("expected an open file")
	}
	if err := w.CloseCurrent(); err != nil {
		t.Fatalf("CloseCurrent: %v", err)
	}
	if _, open := w.Current(); open {
		t.Error("file should be closed")
	}
	if err := w.CloseCurrent(); err != nil {
		t.Errorf("second CloseCurrent: %v", err)
	}

	// The closed file is a complete gzip stream.
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip header: %v", err)
	}
	zr.Close()
	f.Close()

	fc.Advance(2 * time.Second)
	deliver(t, w, `{"b":2}`)
	next, _ := w.Current()
	if next == path {
		t.Error("delivery after close must open a new file")
	}
	if err := w.CloseCurrent(); err != nil {
		t.Fatal(err)
	}

	if lines := testutil.ReadGzipLines(t, path); len(lines) != 1 || lines[0] != `{"a":1}` {
		t.Errorf("old file changed: %q", lines)
	}
	if files := listFiles(t, dir); len(files) != 2 {
		t.Errorf("expected 2 files, got %v", files)
	}
}

func TestWriter_SameSecondRotationOpensNewFile(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	w, _, dir := newTestWriter(t, start)

	deliver(t, w, `{"a":1}`)
	first, _ := w.Current()
	if err := w.CloseCurrent(); err != nil {
		t.Fatal(err)
	}
	deliver(t, w, `{"b":2}`)
	second, _ := w.Current()
	if err := w.CloseCurrent(); err != nil {
		t.Fatal(err)
	}
	deliver(t, w, `{"c":3}`)
	if err := w.CloseCurrent(); err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Fatalf("second file reused %s", first)
	}
	if filepath.Base(first) != "2026_10_14_10_00_00.gz" || filepath.Base(second) != "2026_10_14_10_00_00_1.gz" {
		t.Errorf("names = %s, %s", first, second)
	}

	files := listFiles(t, dir)
	if len(files) != 3 || files[0] != first || files[1] != second {
		t.Fatalf("files = %v", files)
	}
	want := []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}
	for i, f := range files {
		if n := testutil.CountGzipMembers(t, f); n != 1 {
			t.Errorf("%s has %d gzip members, want 1", f, n)
		}
		if lines := testutil.ReadGzipLines(t, f); len(lines) != 1 || lines[0] != want[i] {
			t.Errorf("%s = %q, want %q", f, lines, want[i])
		}
	}
	if n := w.Stats().FilesCreated; n != 3 {
		t.Errorf("FilesCreated = %d, want 3", n)
	}
}

func TestWriter_ExistingFileIsNotReopened(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	w, _, dir := newTestWriter(t, start)

	stale := partition.Path(dir, start)
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("left over"), 0o644); err != nil {
		t.Fatal(err)
	}

	deliver(t, w, `{"a":1}`)
	path, _ := w.Current()
	if err := w.CloseCurrent(); err != nil {
		t.Fatal(err)
	}
	if path == stale {
		t.Fatal("writer opened a file that already existed")
	}
	if data, _ := os.ReadFile(stale); string(data) != "left over" {
		t.Errorf("existing file modified: %q", data)
	}
}

func TestListFiles_SequenceOrder(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	part := partition.Dir(dir, ts)
	if err := os.MkdirAll(part, 0o755); err != nil {
		t.Fatal(err)
	}
	names := []string{
		partition.FilenameSeq(ts.Add(time.Second), 0),
		partition.FilenameSeq(ts, 10),
		partition.FilenameSeq(ts, 2),
		partition.FilenameSeq(ts, 0),
		partition.FilenameSeq(ts, 1),
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(part, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files := listFiles(t, dir)
	var got []string
	for _, f := range files {
		got = append(got, filepath.Base(f))
	}
	want := []string{
		"2026_10_14_10_00_00.gz",
		"2026_10_14_10_00_00_1.gz",
		"2026_10_14_10_00_00_2.gz",
		"2026_10_14_10_00_00_10.gz",
		"2026_10_14_10_00_01.gz",
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestWriter_ConcatenationPreservesOrder(t *testing.T) {
	start := time.Date(2026, 10, 14, 22, 0, 0, 0, time.UTC)
	w, fc, dir := newTestWriter(t, start)
	w.opts.Interval = 30 * time.Minute

	var want []string
	for i := 0; i < 40; i++ {
		var p string
		if i%5 == 4 {
			p = "\r\n"
		} else {
			p = `{"seq":` + strings.Repeat("9", i%3+1) + `}`
			want = append(want, p)
		}
		deliver(t, w, p)
		fc.Advance(7 * time.Minute)
		if i == 20 {
			if err := w.CloseCurrent(); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := w.CloseCurrent(); err != nil {
		t.Fatal(err)
	}

	var got []string
	files := listFiles(t, dir)
	if len(files) < 3 {
		t.Fatalf("expected several rotations, got %v", files)
	}
	for _, f := range files {
		got = append(got, testutil.ReadGzipLines(t, f)...)
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("concatenated output differs\n got: %q\nwant: %q", got, want)
	}
}

func TestWriter_ExistingPartitionIsNotAnError(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	w, _, dir := newTestWriter(t, start)

	if err := os.MkdirAll(filepath.Join(dir, "2026", "10"), 0o755); err != nil {
		t.Fatal(err)
	}
	deliver(t, w, `{"a":1}`)
}

func TestWriter_CurrentStats(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	w, _, _ := newTestWriter(t, start)

	if _, ok := w.CurrentStats(); ok {
		t.Error("no stats before first delivery")
	}
	deliver(t, w, `{"a":1}`, `{"bb":22}`)

	fs, ok := w.CurrentStats()
	if !ok {
		t.Fatal("expected stats")
	}
	if fs.Records != 2 || fs.Bytes != int64(len(`{"a":1}`)+len(`{"bb":22}`)+2) {
		t.Errorf("stats = %+v", fs)
	}
	if fs.P50 <= 0 || fs.P99 < fs.P50 {
		t.Errorf("quantiles p50=%v p99=%v", fs.P50, fs.P99)
	}
}

func TestListFiles_MissingDir(t *testing.T) {
	files, err := ListFiles(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v", files)
	}
}

func TestWriter_CloseStopsDeliveries(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	w, _, dir := newTestWriter(t, start)

	deliver(t, w, `{"a":1}`)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := w.Deliver([]byte(`{"b":2}`)); !ferrors.Is(err, ferrors.ErrWriterClosed) {
		t.Errorf("Deliver after Close = %v, want ErrWriterClosed", err)
	}

	files := listFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
	if got := testutil.ReadGzipLines(t, files[0]); len(got) != 1 || got[0] != `{"a":1}` {
		t.Errorf("file = %q", got)
	}
}
