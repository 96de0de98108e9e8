package cache

import "fmt"

// FilesystemError reports a failed clear, copy, or scan of a logo
// directory. It is surfaced to the caller and never aborts a run.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
