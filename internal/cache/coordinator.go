// Package cache reuses logos from the backup store before any network
// work happens, and manages the per-session cache directory.
package cache

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/logo-cli/internal/model"
	"github.com/sells-group/logo-cli/internal/store"
)

// Lookup selects how a company is matched to a backup file.
type Lookup string

const (
	// LookupPrefix matches the first backup file, in lexical order, whose
	// name starts with the exact company name. Matching is case-sensitive.
	LookupPrefix Lookup = "prefix"
	// LookupIndex resolves the file through the keyed index in the store.
	LookupIndex Lookup = "index"
)

// tempPrefix marks in-progress writes that must never be reused.
const tempPrefix = ".logo-"

// ParseLookup validates a lookup mode name. Empty means prefix.
func ParseLookup(s string) (Lookup, error) {
	switch Lookup(strings.ToLower(strings.TrimSpace(s))) {
	case "", LookupPrefix:
		return LookupPrefix, nil
	case LookupIndex:
		return LookupIndex, nil
	}
	return "", eris.Errorf("cache: unknown lookup mode %q", s)
}

// Coordinator checks the backup store and copies hits into the session cache.
type Coordinator struct {
	lookup            Lookup
	index             store.Store
	retryPlaceholders bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithIndex attaches the keyed index used by LookupIndex and by
// placeholder retry.
func WithIndex(s store.Store) Option {
	return func(c *Coordinator) {
		c.index = s
	}
}

// WithLookup sets the lookup mode.
func WithLookup(l Lookup) Option {
	return func(c *Coordinator) {
		c.lookup = l
	}
}

// WithRetryPlaceholders makes entries the index records as placeholders
// count as misses, so the company is fetched again.
func WithRetryPlaceholders(on bool) Option {
	return func(c *Coordinator) {
		c.retryPlaceholders = on
	}
}

// NewCoordinator creates a Coordinator. LookupIndex without an index
// falls back to prefix matching.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{lookup: LookupPrefix}
	for _, o := range opts {
		o(c)
	}
	if c.lookup == LookupIndex && c.index == nil {
		zap.L().Warn("cache: index lookup requested without a store, using prefix lookup")
		c.lookup = LookupPrefix
	}
	return c
}

// TryReuse looks for companyName in backupDir. On a hit the file is
// copied into sessionDir unless already there, and the session copy is
// returned as a cached artifact.
func (c *Coordinator) TryReuse(ctx context.Context, companyName, backupDir, sessionDir string) (*model.LogoArtifact, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var entry *model.IndexEntry
	if c.index != nil && (c.lookup == LookupIndex || c.retryPlaceholders) {
		e, err := c.index.GetEntry(ctx, model.NormalizeKey(companyName))
		if err != nil {
			return nil, false, eris.Wrap(err, "cache: index lookup")
		}
		entry = e
		if entry != nil && c.retryPlaceholders && entry.SourceKind == model.SourcePlaceholder {
			zap.L().Debug("cache: skipping placeholder", zap.String("company", companyName))
			return nil, false, nil
		}
	}

	var fileName string
	switch c.lookup {
	case LookupIndex:
		if entry == nil {
			return nil, false, nil
		}
		if _, err := os.Stat(filepath.Join(backupDir, entry.FileName)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				zap.L().Warn("cache: index entry has no backup file",
					zap.String("company", companyName), zap.String("file", entry.FileName))
				return nil, false, nil
			}
			return nil, false, &FilesystemError{Op: "stat", Path: entry.FileName, Err: err}
		}
		fileName = entry.FileName
	default:
		name, ok, err := FindPrefix(backupDir, model.FileStem(companyName))
		if err != nil || !ok {
			return nil, false, err
		}
		fileName = name
	}

	src := filepath.Join(backupDir, fileName)
	dst := filepath.Join(sessionDir, fileName)
	if _, err := os.Stat(dst); errors.Is(err, fs.ErrNotExist) {
		if err := copyFile(src, dst); err != nil {
			return nil, false, err
		}
	} else if err != nil {
		return nil, false, &FilesystemError{Op: "stat", Path: dst, Err: err}
	}

	art := &model.LogoArtifact{
		CompanyName: companyName,
		FilePath:    dst,
		BackupPath:  src,
		Extension:   strings.TrimPrefix(filepath.Ext(fileName), "."),
		SourceKind:  model.SourceCached,
	}
	if entry != nil {
		art.Domain = entry.Domain
	}
	return art, true, nil
}

// FindPrefix returns a regular file in dir whose name starts with prefix.
// A file named exactly prefix plus an extension wins; otherwise the first
// match in lexical order is returned. A missing dir is a miss.
func FindPrefix(dir, prefix string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &FilesystemError{Op: "scan", Path: dir, Err: err}
	}
	var first string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tempPrefix) || !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == prefix {
			return name, true, nil
		}
		if first == "" {
			first = name
		}
	}
	return first, first != "", nil
}

// RemovePrefix deletes every file in dir whose name starts with prefix
// and returns the removed names.
func RemovePrefix(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &FilesystemError{Op: "scan", Path: dir, Err: err}
	}
	var removed []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.Remove(p); err != nil {
			return removed, &FilesystemError{Op: "remove", Path: p, Err: err}
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

// copyFile copies src to dst keeping the source mode and modification
// time. The copy lands through a temp file and rename.
func copyFile(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return &FilesystemError{Op: "copy", Path: src, Err: err}
	}

	in, err := os.Open(src)
	if err != nil {
		return &FilesystemError{Op: "copy", Path: src, Err: err}
	}
	defer in.Close() //nolint:errcheck

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &FilesystemError{Op: "copy", Path: dir, Err: err}
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return &FilesystemError{Op: "copy", Path: dst, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return &FilesystemError{Op: "copy", Path: dst, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &FilesystemError{Op: "copy", Path: dst, Err: err}
	}
	if err = os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return &FilesystemError{Op: "copy", Path: dst, Err: err}
	}
	if err = os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return &FilesystemError{Op: "copy", Path: dst, Err: err}
	}
	if err = os.Rename(tmpName, dst); err != nil {
		return &FilesystemError{Op: "copy", Path: dst, Err: err}
	}
	return nil
}
