package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/spice-inbox/internal/service"
)

// MemoryStorage is an in-process key-value store. It is used by tests and
// when running with --ephemeral.
type MemoryStorage struct {
	// FailWith, when set, makes every operation return the error.
	FailWith error

	values map[string][]byte
	mu     sync.Mutex
}

var _ service.KeyValueStore = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

// Get implements service.KeyValueStore.
func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.check(ctx, key); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.values[key]), nil
}

// Set implements service.KeyValueStore.
func (m *MemoryStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := m.check(ctx, key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = clone(value)
	return nil
}

// Update implements service.KeyValueStore.
func (m *MemoryStorage) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if err := m.check(ctx, key); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: update function", ErrNilParameter)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(clone(m.values[key]))
	if err != nil {
		return err
	}
	if next == nil {
		delete(m.values, key)
		return nil
	}
	m.values[key] = clone(next)
	return nil
}

// Delete implements service.KeyValueStore.
func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := m.check(ctx, key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStorage) check(ctx context.Context, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}
	return m.FailWith
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
