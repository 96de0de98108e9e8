package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/logo-cli/internal/store"
)

// initStore opens the configured index store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if dsn == "" && cfg.Store.Driver == store.DriverSQLite {
		dsn = "logo_index.db"
	}
	st, err := store.Open(ctx, cfg.Store.Driver, dsn, nil)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
