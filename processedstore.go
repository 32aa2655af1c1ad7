package main

import (
	"context"
	"time"
)

// tracks reservations that already went through so redeliveries are skipped
type ProcessedStore interface {
	// checks if a reservation has already been processed
	IsProcessed(ctx context.Context, messageID string) (bool, error)

	// records that a reservation has been processed
	MarkProcessed(ctx context.Context, messageID, messageType string) error

	// removes old entries to prevent unbounded growth
	Cleanup(ctx context.Context, olderThan time.Duration) error

	// releases any resources, could be a noop if not required
	Close() error
}
