package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/speaking-coach/internal/db"
	"github.com/jonathan/speaking-coach/internal/profile"
)

// openProfileStore returns the PostgreSQL store when DATABASE_URL is set and
// the in-memory store otherwise. The returned func releases the store.
func openProfileStore(ctx context.Context, databaseURL string, migrateFirst bool) (profile.Store, func(), error) {
	if databaseURL == "" {
		slog.Warn("DATABASE_URL not set; profiles are kept in memory only")
		return profile.NewMemoryStore(), func() {}, nil
	}

	if migrateFirst {
		if err := db.Migrate(databaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, database.Close, nil
}
