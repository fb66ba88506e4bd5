package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/spice-inbox/internal/ledger"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/service"
)

// ErrUnknownKind is returned for an operation kind Apply cannot dispatch.
var ErrUnknownKind = errors.New("unknown operation kind")

// Apply performs one pending operation against the ledger. Deleting a record
// that is already gone counts as applied.
func Apply(ctx context.Context, l service.Ledger, op model.PendingOperation) error {
	if op.Payload == nil {
		return fmt.Errorf("operation %s has no payload", op.ID)
	}
	entity := op.EntityType()
	id := op.Payload.RecordID()

	switch op.Kind {
	case model.OperationCreate:
		rec, err := model.ToRecord(op.Payload)
		if err != nil {
			return err
		}
		_, err = l.CreateRecord(ctx, entity, rec)
		return err
	case model.OperationUpdate:
		rec, err := model.ToRecord(op.Payload)
		if err != nil {
			return err
		}
		return l.UpdateRecord(ctx, entity, id, rec)
	case model.OperationDelete:
		err := l.DeleteRecord(ctx, entity, id)
		if errors.Is(err, ledger.ErrRecordNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, op.Kind)
	}
}

// MergeRecords reconciles a remote listing with records that exist only
// locally. Remote records win for ids present on both sides; local-only ids
// are appended in their local order.
func MergeRecords(local, remote []model.Record) []model.Record {
	seen := make(map[string]struct{}, len(remote))
	merged := make([]model.Record, 0, len(remote)+len(local))
	for _, rec := range remote {
		seen[rec.ID()] = struct{}{}
		merged = append(merged, rec)
	}
	for _, rec := range local {
		if _, ok := seen[rec.ID()]; ok {
			continue
		}
		seen[rec.ID()] = struct{}{}
		merged = append(merged, rec)
	}
	return merged
}

// Pull lists the ledger's records for entity and merges in records still
// waiting in queued creates.
func (e *Engine) Pull(ctx context.Context, entity model.EntityType) ([]model.Record, error) {
	var remote []model.Record
	_, err := e.breaker.Execute(func() (any, error) {
		var listErr error
		remote, listErr = e.ledger.ListRecords(ctx, entity)
		return nil, listErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", entity, err)
	}

	ops, err := e.queue.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	var local []model.Record
	for _, op := range ops {
		if op.Kind != model.OperationCreate || op.EntityType() != entity {
			continue
		}
		rec, err := model.ToRecord(op.Payload)
		if err != nil {
			e.logger.Warn("Skipping unencodable queued record", "id", op.ID, "error", err)
			continue
		}
		local = append(local, rec)
	}
	return MergeRecords(local, remote), nil
}
