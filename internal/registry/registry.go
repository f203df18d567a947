// Package registry maps tracked owner entities to their YouTube channel id.
package registry

import (
	"context"
	"errors"
	"sync"
)

// ErrOwnerNotFound is returned when no owner is registered for a channel.
var ErrOwnerNotFound = errors.New("no owner registered for channel")

// Registry resolves channel ids to the owning entity key and enumerates
// the channels that should be subscribed at startup.
type Registry interface {
	Lookup(ctx context.Context, channelID string) (string, error)
	ChannelIDs(ctx context.Context) ([]string, error)
}

// Memory is an in-process registry for tests and single-node deployments.
type Memory struct {
	mu     sync.RWMutex
	owners map[string]string // channel id -> owner key
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{owners: make(map[string]string)}
}

// Put registers or replaces the owner of a channel.
func (m *Memory) Put(_ context.Context, ownerKey, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[channelID] = ownerKey
	return nil
}

// Remove drops a channel's registration.
func (m *Memory) Remove(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owners, channelID)
	return nil
}

// Lookup returns the owner key for a channel.
func (m *Memory) Lookup(_ context.Context, channelID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[channelID]
	if !ok {
		return "", ErrOwnerNotFound
	}
	return owner, nil
}

// ChannelIDs lists every registered channel id.
func (m *Memory) ChannelIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.owners))
	for id := range m.owners {
		ids = append(ids, id)
	}
	return ids, nil
}
