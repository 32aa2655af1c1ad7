package main

import (
	"context"
	"sync"
	"time"
)

type processedReservation struct {
	messageType string
	processedAt time.Time
}

type InMemoryProcessedStore struct {
	mu        sync.RWMutex
	processed map[string]processedReservation
}

func NewInMemoryProcessedStore() *InMemoryProcessedStore {
	return &InMemoryProcessedStore{
		processed: make(map[string]processedReservation),
	}
}

func (m *InMemoryProcessedStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.processed[messageID]
	return exists, nil
}

func (m *InMemoryProcessedStore) MarkProcessed(ctx context.Context, messageID, messageType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed[messageID] = processedReservation{
		messageType: messageType,
		processedAt: time.Now(),
	}
	return nil
}

func (m *InMemoryProcessedStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	for id, r := range m.processed {
		if r.processedAt.Before(cutoff) {
			delete(m.processed, id)
		}
	}
	return nil
}

func (m *InMemoryProcessedStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed = nil
	return nil
}
