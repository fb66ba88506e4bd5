// Package service defines the contracts of the pipeline's external collaborators.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-inbox/internal/model"
)

// KeyValueStore is the persistent store backing the fingerprint cache, the
// durable queue and the merchant rule table. Values are opaque JSON documents.
type KeyValueStore interface {
	// Get returns the value for key, or nil with no error when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error
	// Update performs a serialized read-modify-write of key. fn receives the
	// current value (nil when absent) and returns the replacement. Concurrent
	// updaters of the same key, in this process or another, never interleave.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Ledger is the remote record store that transactions are reconciled against.
// Implementations return an error matching ledger.ErrNotAuthenticated when
// credentials are missing or rejected.
type Ledger interface {
	CreateRecord(ctx context.Context, entity model.EntityType, fields model.Record) (string, error)
	UpdateRecord(ctx context.Context, entity model.EntityType, id string, fields model.Record) error
	DeleteRecord(ctx context.Context, entity model.EntityType, id string) error
	ListRecords(ctx context.Context, entity model.EntityType) ([]model.Record, error)
}

// Prober checks whether the remote ledger is reachable.
type Prober interface {
	// Reachable reports reachability. It must return within timeout and
	// report false on any error.
	Reachable(ctx context.Context, timeout time.Duration) bool
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
