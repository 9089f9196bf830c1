package db

import (
	"context"
	"database/sql"
	"fmt"
)

// MigrateUp creates the items table when it does not exist yet.
// position preserves store order; guid is not unique because a feed that
// loses its overlap with the store re-appends entries it has already seen.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS items (
    position    INTEGER PRIMARY KEY,
    guid        TEXT    NOT NULL,
    status      INTEGER NOT NULL,
    title       TEXT    NOT NULL DEFAULT '',
    link        TEXT    NOT NULL DEFAULT '',
    description TEXT    NOT NULL DEFAULT ''
)`); err != nil {
		return fmt.Errorf("MigrateUp: create items: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_items_guid ON items(guid)`); err != nil {
		return fmt.Errorf("MigrateUp: create index: %w", err)
	}
	return nil
}
