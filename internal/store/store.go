// Package store provides the key-value persistence backend for tracker
// state snapshots.
package store

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a record has never been written. Loaders
// treat it as "start from empty", not as a failure.
var ErrNotFound = errors.New("record not found")

// KV is the persistence interface the tracker snapshots through. Records
// are independent named blobs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Memory is an in-process KV used in tests and keyless deployments.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the stored value or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores a value.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
