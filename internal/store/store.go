// Package store persists the keyed logo index and run history.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/logo-cli/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// EntryFilter specifies criteria for listing index entries.
type EntryFilter struct {
	SourceKind model.SourceKind `json:"source_kind,omitempty"`
	Limit      int              `json:"limit,omitempty"`
}

// Store defines the persistence interface for the logo pipeline.
type Store interface {
	// Index
	UpsertEntry(ctx context.Context, entry model.IndexEntry) error
	GetEntry(ctx context.Context, key string) (*model.IndexEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]model.IndexEntry, error)
	DeleteEntry(ctx context.Context, key string) (bool, error)

	// Runs
	CreateRun(ctx context.Context, sessionID string, total int) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured driver and runs migrations.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(driver) {
	case "", DriverSQLite:
		s, err = NewSQLite(dsn)
	case DriverPostgres:
		s, err = NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
