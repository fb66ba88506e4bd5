// Package queue is the durable log of ledger mutations that have not been confirmed.
//
// The whole queue is one JSON document in the key-value store. Every mutation is
// a single read-modify-write through KeyValueStore.Update, so an append is atomic
// and concurrent writers in separate processes never lose each other's entries.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/service"
)

// Key is the key-value entry holding the queue.
const Key = "pending_operations"

// DefaultMaxRetries is how many failed drain attempts an operation survives.
const DefaultMaxRetries = 3

// Options configures a Queue.
type Options struct {
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
	MaxRetries int
}

// Queue is the durable pending-operation log.
type Queue struct {
	kv         service.KeyValueStore
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	maxRetries int
}

// New creates a queue backed by kv.
func New(kv service.KeyValueStore, opts Options) *Queue {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Queue{
		kv:         kv,
		logger:     common.OrDefault(opts.Logger),
		now:        opts.Now,
		newID:      opts.NewID,
		maxRetries: opts.MaxRetries,
	}
}

// MaxRetries returns the retry limit.
func (q *Queue) MaxRetries() int {
	return q.maxRetries
}

// Enqueue appends a new operation and returns it.
func (q *Queue) Enqueue(ctx context.Context, kind model.OperationKind, payload model.Payload) (model.PendingOperation, error) {
	if payload == nil {
		return model.PendingOperation{}, fmt.Errorf("enqueue %s: nil payload", kind)
	}
	op := model.PendingOperation{
		ID:        q.newID(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: q.now().UTC(),
	}

	err := q.mutate(ctx, func(ops []model.PendingOperation) ([]model.PendingOperation, error) {
		return append(ops, op), nil
	})
	if err != nil {
		return model.PendingOperation{}, fmt.Errorf("failed to enqueue operation: %w", err)
	}

	q.logger.Debug("Queued operation",
		"id", op.ID,
		"kind", op.Kind,
		"entity", op.EntityType(),
		"record_id", payload.RecordID())
	return op, nil
}

// List returns all queued operations in enqueue order.
func (q *Queue) List(ctx context.Context) ([]model.PendingOperation, error) {
	data, err := q.kv.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	return decode(data)
}

// Len returns the number of queued operations.
func (q *Queue) Len(ctx context.Context) (int, error) {
	ops, err := q.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}

// Remove deletes the operation with the given id. It reports whether the
// operation was present.
func (q *Queue) Remove(ctx context.Context, id string) (bool, error) {
	removed := false
	err := q.mutate(ctx, func(ops []model.PendingOperation) ([]model.PendingOperation, error) {
		kept := ops[:0]
		for _, op := range ops {
			if op.ID == id {
				removed = true
				continue
			}
			kept = append(kept, op)
		}
		return kept, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove operation %s: %w", id, err)
	}
	return removed, nil
}

// RecordFailure charges one failed attempt to the operation. Once its retry
// count reaches the limit the operation is dropped and dropped is true.
func (q *Queue) RecordFailure(ctx context.Context, id string, cause error) (dropped bool, err error) {
	var failed model.PendingOperation
	found := false

	err = q.mutate(ctx, func(ops []model.PendingOperation) ([]model.PendingOperation, error) {
		kept := ops[:0]
		for _, op := range ops {
			if op.ID != id {
				kept = append(kept, op)
				continue
			}
			found = true
			op.RetryCount++
			failed = op
			if op.RetryCount >= q.maxRetries {
				dropped = true
				continue
			}
			kept = append(kept, op)
		}
		return kept, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record failure of %s: %w", id, err)
	}
	if !found {
		return false, fmt.Errorf("operation %s: %w", id, common.ErrNotFound)
	}

	if dropped {
		q.logger.Warn("Dropped operation after repeated failures",
			"id", failed.ID,
			"kind", failed.Kind,
			"entity", failed.EntityType(),
			"record_id", failed.Payload.RecordID(),
			"retries", failed.RetryCount,
			"error", cause)
	}
	return dropped, nil
}

// Clear removes every queued operation and returns how many there were.
func (q *Queue) Clear(ctx context.Context) (int, error) {
	n := 0
	err := q.kv.Update(ctx, Key, func(current []byte) ([]byte, error) {
		ops, err := decode(current)
		if err == nil {
			n = len(ops)
		}
		return nil, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", err)
	}
	return n, nil
}

func (q *Queue) mutate(ctx context.Context, fn func([]model.PendingOperation) ([]model.PendingOperation, error)) error {
	return q.kv.Update(ctx, Key, func(current []byte) ([]byte, error) {
		ops, err := decode(current)
		if err != nil {
			return nil, err
		}
		next, err := fn(ops)
		if err != nil {
			return nil, err
		}
		return json.Marshal(next)
	})
}

func decode(data []byte) ([]model.PendingOperation, error) {
	if len(data) == 0 {
		return []model.PendingOperation{}, nil
	}
	var ops []model.PendingOperation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("%w: pending operations: %v", common.ErrDatabaseCorrupted, err)
	}
	return ops, nil
}
