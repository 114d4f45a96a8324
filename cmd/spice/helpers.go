package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/ingest"
	"github.com/Veraticus/spice-ledger/internal/quota"
	"github.com/Veraticus/spice-ledger/internal/storage"
)

// openStorage opens the configured database and brings its schema up to date.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(appConfig.Database.Path)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Could not open the ledger at %s", appConfig.Database.Path), err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, common.NewUserError("Could not update the database schema", err)
	}

	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

// newIngestService wires the ingestion service with the configured quota.
func newIngestService(store *storage.SQLiteStorage) *ingest.Service {
	var opts []ingest.Option
	if limit := appConfig.Quota.MonthlyLimit; limit > 0 {
		opts = append(opts, ingest.WithQuota(quota.NewChecker(store, limit)))
	}
	return ingest.NewService(store, opts...)
}
