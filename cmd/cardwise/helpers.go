package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/cardwise/internal/analysis"
	"github.com/Veraticus/cardwise/internal/config"
	"github.com/Veraticus/cardwise/internal/storage"
	"github.com/spf13/viper"
)

// initStorage opens and migrates the configured database.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// openService opens storage and builds an analysis service over it. The
// returned cleanup closes the database.
func openService(ctx context.Context, recorder analysis.Recorder) (*analysis.Service, *storage.SQLiteStorage, func(), error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}

	cfg, err := config.LoadAnalysisConfig(viper.GetViper())
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	svc, err := analysis.NewService(analysis.Deps{Store: store, Recorder: recorder}, *cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	if err := svc.Recover(ctx); err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	return svc, store, cleanup, nil
}

// segmentNames maps segment ID to display name for the current generation.
func segmentNames(ctx context.Context, svc *analysis.Service) (map[string]string, error) {
	segments, err := svc.Segments(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(segments))
	for _, seg := range segments {
		names[seg.ID] = seg.Name
	}
	return names, nil
}

func writeLine(w io.Writer, s string) {
	if _, err := fmt.Fprintln(w, s); err != nil {
		slog.Error("failed to write output", "error", err)
	}
}

// shortID trims a UUID to its first block for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
