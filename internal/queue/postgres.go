package queue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// Execer is the pgx surface the store needs; *pgxpool.Pool and pgxmock
// both satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists queue items in Postgres, keyed by (source_id, url).
type PostgresStore struct {
	pool Execer
}

// NewPostgresStore creates a PostgresStore over an existing pool.
func NewPostgresStore(pool Execer) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// SaveItems persists a discovered batch. Discovery starts a new pass, so a
// row already present for the same (source_id, url) key is reset to the
// fresh pending item; prior-pass progress is reachable only through Resume,
// which never rediscovers.
func (s *PostgresStore) SaveItems(ctx context.Context, items []scrape.QueueItem) error {
	query := `
		INSERT INTO crawl_queue (id, source_id, url, title, position, status, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_id, url) DO UPDATE
		SET id = EXCLUDED.id, title = EXCLUDED.title, position = EXCLUDED.position,
			status = EXCLUDED.status, retry_count = EXCLUDED.retry_count,
			record_id = NULL, error_message = NULL;
	`
	for _, item := range items {
		if _, err := s.pool.Exec(ctx, query,
			item.ID, item.SourceID, item.URL, item.Title, item.Position, item.Status, item.RetryCount,
		); err != nil {
			return fmt.Errorf("insert queue item: %w", err)
		}
	}
	return nil
}

// ListOpen returns non-terminal items for a source in position order.
func (s *PostgresStore) ListOpen(ctx context.Context, sourceID string) ([]scrape.QueueItem, error) {
	query := `
		SELECT id, source_id, url, title, position, status, retry_count,
			COALESCE(record_id, ''), COALESCE(error_message, '')
		FROM crawl_queue
		WHERE source_id = $1 AND status IN ('pending', 'processing')
		ORDER BY position ASC;
	`
	rows, err := s.pool.Query(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list open items: %w", err)
	}
	defer rows.Close()

	var items []scrape.QueueItem
	for rows.Next() {
		var item scrape.QueueItem
		if err := rows.Scan(
			&item.ID,
			&item.SourceID,
			&item.URL,
			&item.Title,
			&item.Position,
			&item.Status,
			&item.RetryCount,
			&item.RecordID,
			&item.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return items, nil
}

// UpdateStatus transitions an item only when it is still in the expected
// status, making the transition an atomic compare-and-set.
func (s *PostgresStore) UpdateStatus(ctx context.Context, itemID string, expected, next scrape.ItemStatus, item scrape.QueueItem) error {
	query := `
		UPDATE crawl_queue
		SET status = $1, retry_count = $2, record_id = NULLIF($3, ''), error_message = NULLIF($4, '')
		WHERE id = $5 AND status = $6;
	`
	tag, err := s.pool.Exec(ctx, query,
		next, item.RetryCount, item.RecordID, item.ErrorMessage, itemID, expected,
	)
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s not in status %s: %w", itemID, expected, scrape.ErrNotFound)
	}
	return nil
}
