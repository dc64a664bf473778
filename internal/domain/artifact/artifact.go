// Package artifact defines the handles tasks use to declare what they
// consume and what they produce.
package artifact

import (
	"os"
	"path/filepath"
	"time"
)

// Reference identifies a piece of data flowing between tasks. Two
// references to the same underlying thing must compare equal with ==,
// so implementations are value types, never pointers.
type Reference interface {
	// Exists reports whether the referenced artifact is currently present.
	Exists() bool

	// ModTime returns the artifact's last-modified time and true, or
	// the zero time and false if the artifact does not exist or has no
	// meaningful modification time.
	ModTime() (time.Time, bool)

	// String returns a human-readable identifier, used in task names
	// and the status display.
	String() string
}

// FileReference is an artifact backed by a path on the local filesystem.
type FileReference struct {
	path string
}

// File builds a FileReference for path, cleaning it so that two
// references built from different-but-equivalent paths ("a/b" and
// "a/./b") still compare equal.
func File(path string) FileReference {
	return FileReference{path: filepath.Clean(path)}
}

// Path returns the cleaned filesystem path.
func (f FileReference) Path() string {
	return f.path
}

func (f FileReference) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f FileReference) ModTime() (time.Time, bool) {
	info, err := os.Stat(f.path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (f FileReference) String() string {
	return f.path
}
