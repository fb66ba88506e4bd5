package ledger

import (
	"context"
	"fmt"

	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/service"
)

// Unconfigured stands in for the remote ledger when no credentials are
// available. Every call fails with ErrNotAuthenticated so drains halt and
// operations stay queued.
type Unconfigured struct {
	// Cause explains why the ledger could not be configured.
	Cause error
}

var _ service.Ledger = Unconfigured{}

func (u Unconfigured) err() error {
	if u.Cause == nil {
		return ErrNotAuthenticated
	}
	return fmt.Errorf("%w: %w", ErrNotAuthenticated, u.Cause)
}

// CreateRecord always fails with ErrNotAuthenticated.
func (u Unconfigured) CreateRecord(context.Context, model.EntityType, model.Record) (string, error) {
	return "", u.err()
}

// UpdateRecord always fails with ErrNotAuthenticated.
func (u Unconfigured) UpdateRecord(context.Context, model.EntityType, string, model.Record) error {
	return u.err()
}

// DeleteRecord always fails with ErrNotAuthenticated.
func (u Unconfigured) DeleteRecord(context.Context, model.EntityType, string) error {
	return u.err()
}

// ListRecords always fails with ErrNotAuthenticated.
func (u Unconfigured) ListRecords(context.Context, model.EntityType) ([]model.Record, error) {
	return nil, u.err()
}
