package testing

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ReadGzip decompresses every gzip member in path and returns the content.
func ReadGzip(t testing.TB, path string) string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader %s: %v", path, err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		t.Fatalf("decompress %s: %v", path, err)
	}
	return buf.String()
}

// CountGzipMembers returns the number of concatenated gzip members in path.
func CountGzipMembers(t testing.TB, path string) int {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	zr, err := gzip.NewReader(br)
	if err != nil {
		t.Fatalf("gzip reader %s: %v", path, err)
	}
	defer zr.Close()

	n := 0
	for {
		zr.Multistream(false)
		if _, err := io.Copy(io.Discard, zr); err != nil {
			t.Fatalf("decompress %s: %v", path, err)
		}
		n++
		if err := zr.Reset(br); err == io.EOF {
			return n
		} else if err != nil {
			t.Fatalf("gzip member %d of %s: %v", n+1, path, err)
		}
	}
}

// ReadGzipLines returns the decompressed lines of path without terminators.
func ReadGzipLines(t testing.TB, path string) []string {
	t.Helper()

	content := ReadGzip(t, path)
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// WriteFile writes content to path and sets its modification time.
func WriteFile(t testing.TB, path, content string, mtime time.Time) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	SetModTime(t, path, mtime)
}

// SetModTime sets the modification time of path.
func SetModTime(t testing.TB, path string, mtime time.Time) {
	t.Helper()

	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}
