// Package ledger holds the remote ledger error contract and an in-memory ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/service"
)

// Ledger errors.
var (
	// ErrNotAuthenticated means credentials are missing or were rejected.
	// Operations stay queued until credentials become available.
	ErrNotAuthenticated = errors.New("ledger: not authenticated")
	// ErrRecordNotFound means an update or delete targeted an unknown id.
	ErrRecordNotFound = errors.New("ledger: record not found")
)

// Call records one invocation against a Memory ledger.
type Call struct {
	Error  error
	Fields model.Record
	Method string
	Entity model.EntityType
	ID     string
}

// Memory is an in-process ledger used by tests and --dry-run.
type Memory struct {
	// FailFunc, when set, is consulted before every call. A non-nil return
	// fails the call without touching the stored records.
	FailFunc func(method string, entity model.EntityType, id string) error

	records map[model.EntityType][]model.Record
	calls   []Call
	nextID  int
	mu      sync.Mutex
}

var _ service.Ledger = (*Memory)(nil)

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[model.EntityType][]model.Record)}
}

// CreateRecord implements service.Ledger. The record keeps its "id" field when
// set, and creating an id that already exists replaces that record.
func (m *Memory) CreateRecord(ctx context.Context, entity model.EntityType, fields model.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fields.ID()
	if err := m.fail(ctx, "CreateRecord", entity, id, fields); err != nil {
		return "", err
	}
	if id == "" {
		m.nextID++
		id = fmt.Sprintf("rec-%d", m.nextID)
	}

	rec := copyRecord(fields)
	rec[model.RecordIDKey] = id
	if i := m.indexOf(entity, id); i >= 0 {
		m.records[entity][i] = rec
	} else {
		m.records[entity] = append(m.records[entity], rec)
	}
	m.calls = append(m.calls, Call{Method: "CreateRecord", Entity: entity, ID: id, Fields: copyRecord(rec)})
	return id, nil
}

// UpdateRecord implements service.Ledger.
func (m *Memory) UpdateRecord(ctx context.Context, entity model.EntityType, id string, fields model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(ctx, "UpdateRecord", entity, id, fields); err != nil {
		return err
	}
	if i := m.indexOf(entity, id); i >= 0 {
		next := copyRecord(fields)
		next[model.RecordIDKey] = id
		m.records[entity][i] = next
		m.calls = append(m.calls, Call{Method: "UpdateRecord", Entity: entity, ID: id, Fields: copyRecord(next)})
		return nil
	}
	err := fmt.Errorf("%s %s: %w", entity, id, ErrRecordNotFound)
	m.calls = append(m.calls, Call{Method: "UpdateRecord", Entity: entity, ID: id, Error: err})
	return err
}

// DeleteRecord implements service.Ledger.
func (m *Memory) DeleteRecord(ctx context.Context, entity model.EntityType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(ctx, "DeleteRecord", entity, id, nil); err != nil {
		return err
	}
	if i := m.indexOf(entity, id); i >= 0 {
		recs := m.records[entity]
		m.records[entity] = append(recs[:i], recs[i+1:]...)
		m.calls = append(m.calls, Call{Method: "DeleteRecord", Entity: entity, ID: id})
		return nil
	}
	err := fmt.Errorf("%s %s: %w", entity, id, ErrRecordNotFound)
	m.calls = append(m.calls, Call{Method: "DeleteRecord", Entity: entity, ID: id, Error: err})
	return err
}

// ListRecords implements service.Ledger.
func (m *Memory) ListRecords(ctx context.Context, entity model.EntityType) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail(ctx, "ListRecords", entity, "", nil); err != nil {
		return nil, err
	}
	m.calls = append(m.calls, Call{Method: "ListRecords", Entity: entity})
	return m.copyRecords(entity), nil
}

// Records returns a copy of the stored records for entity.
func (m *Memory) Records(entity model.EntityType) []model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyRecords(entity)
}

// Calls returns a copy of every recorded call.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]Call, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// SetError makes every following call fail with err. A nil err clears it.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		m.FailFunc = nil
		return
	}
	m.FailFunc = func(string, model.EntityType, string) error { return err }
}

// Reset clears records, calls and failure hooks.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[model.EntityType][]model.Record)
	m.calls = nil
	m.nextID = 0
	m.FailFunc = nil
}

func (m *Memory) fail(ctx context.Context, method string, entity model.EntityType, id string, fields model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailFunc == nil {
		return nil
	}
	err := m.FailFunc(method, entity, id)
	if err != nil {
		m.calls = append(m.calls, Call{Method: method, Entity: entity, ID: id, Fields: copyRecord(fields), Error: err})
	}
	return err
}

func (m *Memory) indexOf(entity model.EntityType, id string) int {
	for i, rec := range m.records[entity] {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}

func (m *Memory) copyRecords(entity model.EntityType) []model.Record {
	out := make([]model.Record, 0, len(m.records[entity]))
	for _, rec := range m.records[entity] {
		out = append(out, copyRecord(rec))
	}
	return out
}

func copyRecord(r model.Record) model.Record {
	out := make(model.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
