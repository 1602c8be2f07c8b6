// ABOUTME: Mock KV implementation for testing
// ABOUTME: In-memory map with injectable failures to exercise degraded storage paths

package store

import (
	"context"
	"sync"
)

// MockStore is an in-memory KV implementation for testing. Setting GetErr or
// PutErr makes every subsequent call fail with that error, which is how tests
// simulate a full disk or disabled storage.
type MockStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool

	GetErr error
	PutErr error
	Puts   int // number of successful Put calls
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]byte),
	}
}

// Get returns a copy of the value stored under key.
func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value under key.
func (m *MockStore) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.PutErr != nil {
		return m.PutErr
	}
	m.data[key] = append([]byte(nil), value...)
	m.Puts++
	return nil
}

// Delete removes key.
func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetFailures swaps the injected errors under the lock.
func (m *MockStore) SetFailures(getErr, putErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetErr = getErr
	m.PutErr = putErr
}
