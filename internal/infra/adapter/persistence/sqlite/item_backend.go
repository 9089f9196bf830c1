// Package sqlite provides a SQLite snapshot backend for the item store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/repository"
)

const (
	itemsTable = "items"

	// insertBatchSize rows per INSERT statement, six bind parameters each.
	insertBatchSize = 200
)

var itemColumns = []string{"guid", "status", "title", "link", "description"}

// ItemBackend implements repository.SnapshotBackend on an items table.
// Save replaces every row inside a single transaction.
type ItemBackend struct{ db *sql.DB }

var _ repository.SnapshotBackend = (*ItemBackend)(nil)

// NewItemBackend creates a backend on db. The schema must already exist (see db.MigrateUp).
func NewItemBackend(db *sql.DB) *ItemBackend {
	return &ItemBackend{db: db}
}

// Load returns all rows ordered by position.
func (b *ItemBackend) Load(ctx context.Context) ([]*entity.Item, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(itemColumns...).From(itemsTable).OrderBy("position").Asc()
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Load: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*entity.Item, 0, 64)
	for rows.Next() {
		var item entity.Item
		var status int
		if err := rows.Scan(&item.GUID, &status, &item.Title, &item.Link, &item.Description); err != nil {
			return nil, fmt.Errorf("Load: Scan: %w", err)
		}
		item.Status = entity.Status(status)
		if err := item.Status.Validate(); err != nil {
			return nil, fmt.Errorf("Load: row %d: %w", len(items)+1, err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Load: rows.Err: %w", err)
	}
	return items, nil
}

// Save rewrites the table to hold exactly items, in order.
func (b *ItemBackend) Save(ctx context.Context, items []*entity.Item) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Save: BeginTx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+itemsTable); err != nil {
		return fmt.Errorf("Save: delete: %w", err)
	}

	for n, chunk := range lo.Chunk(items, insertBatchSize) {
		ib := sqlbuilder.NewInsertBuilder()
		ib.InsertInto(itemsTable).Cols(append([]string{"position"}, itemColumns...)...)
		for i, item := range chunk {
			ib.Values(n*insertBatchSize+i, item.GUID, int(item.Status), item.Title, item.Link, item.Description)
		}
		query, args := ib.BuildWithFlavor(sqlbuilder.SQLite)
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("Save: insert batch %d: %w", n, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Save: Commit: %w", err)
	}
	return nil
}
