package main

import (
	"context"
	"database/sql"
	"time"
)

type PostgresProcessedStore struct {
	db *sql.DB
}

func NewPostgresProcessedStore(db *sql.DB) *PostgresProcessedStore {
	return &PostgresProcessedStore{db: db}
}

func (p *PostgresProcessedStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM processed_reservations WHERE message_id = $1)",
		messageID,
	).Scan(&exists)
	return exists, err
}

func (p *PostgresProcessedStore) MarkProcessed(ctx context.Context, messageID, messageType string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO processed_reservations (message_id, message_type, processed_at)
         VALUES ($1, $2, $3)
         ON CONFLICT (message_id) DO NOTHING`,
		messageID, messageType, time.Now(),
	)
	return err
}

func (p *PostgresProcessedStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	_, err := p.db.ExecContext(ctx,
		"DELETE FROM processed_reservations WHERE processed_at < $1",
		time.Now().Add(-olderThan),
	)
	return err
}

func (p *PostgresProcessedStore) Close() error {
	// DB connection is managed elsewhere, nothing to close here
	return nil
}
