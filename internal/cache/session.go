package cache

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// SessionDir is the session cache directory for id under root.
func SessionDir(root, id string) string {
	return filepath.Join(root, id)
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

// ClearDir removes everything inside dir, leaving dir itself in place.
// A missing dir is created.
func ClearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return EnsureDir(dir)
	}
	if err != nil {
		return &FilesystemError{Op: "clear", Path: dir, Err: err}
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			return &FilesystemError{Op: "clear", Path: p, Err: err}
		}
	}
	return nil
}
