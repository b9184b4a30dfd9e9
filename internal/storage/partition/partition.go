// Package partition maps a point in time to its place on disk.
//
// Layout:
//
//	<base>/<YYYY>/<MM>/<YYYY_MM_DD_HH_MM_SS>.gz
//	<base>/<YYYY>/<MM>/<YYYY_MM_DD_HH_MM_SS>_<N>.gz
//
// The numbered form is used when a file for the same second already exists.
// All components come from the time value as given; callers pass local time.
package partition

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/feedlog/config"
)

// Dir returns the year/month directory for t under base.
func Dir(base string, t time.Time) string {
	return filepath.Join(base, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())))
}

// Filename returns the output filename for t, to second precision.
func Filename(t time.Time) string {
	return t.Format(config.FilenameLayout) + config.FileExtension
}

// FilenameSeq returns the filename for the seq-th file opened within the
// second of t. Sequence 0 is the plain Filename.
func FilenameSeq(t time.Time, seq int) string {
	if seq <= 0 {
		return Filename(t)
	}
	return t.Format(config.FilenameLayout) + "_" + strconv.Itoa(seq) + config.FileExtension
}

// Less orders two output filenames by timestamp, then by sequence number.
// Only the base names are compared.
func Less(a, b string) bool {
	sa, na := splitName(filepath.Base(a))
	sb, nb := splitName(filepath.Base(b))
	if sa != sb {
		return sa < sb
	}
	return na < nb
}

// splitName separates the timestamp from the sequence suffix. Names that do
// not follow the layout compare as their full stem with sequence 0.
func splitName(name string) (string, int) {
	stem := strings.TrimSuffix(name, config.FileExtension)
	if len(stem) <= len(config.FilenameLayout) || stem[len(config.FilenameLayout)] != '_' {
		return stem, 0
	}
	n, err := strconv.Atoi(stem[len(config.FilenameLayout)+1:])
	if err != nil {
		return stem, 0
	}
	return stem[:len(config.FilenameLayout)], n
}

// Path returns the full output path for t under base.
func Path(base string, t time.Time) string {
	return filepath.Join(Dir(base, t), Filename(t))
}

// Ensure creates the partition directory for t, including parents.
// It reports whether the directory was created by this call. An existing
// directory is not an error.
func Ensure(base string, t time.Time, perm os.FileMode) (string, bool, error) {
	dir := Dir(base, t)
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return dir, false, fmt.Errorf("partition %s exists and is not a directory", dir)
		}
		return dir, false, nil
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return dir, false, fmt.Errorf("create partition %s: %w", dir, err)
	}
	return dir, true, nil
}
