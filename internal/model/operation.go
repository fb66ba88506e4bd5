package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OperationKind is the mutation a pending operation applies to the ledger.
type OperationKind string

// Operation kinds.
const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// EntityType names a ledger collection.
type EntityType string

// Entity types.
const (
	EntityTransaction EntityType = "transaction"
	EntityBankAccount EntityType = "bank_account"
	EntityBudget      EntityType = "budget"
	EntityCategory    EntityType = "category"
)

// ErrUnknownEntity is returned when decoding a payload for an unrecognized entity type.
var ErrUnknownEntity = errors.New("unknown entity type")

// Payload is the closed set of values a pending operation can carry.
// Implementations are Transaction, BankAccount, Budget and Category.
type Payload interface {
	EntityType() EntityType
	RecordID() string
	isPayload()
}

// PendingOperation is a ledger mutation that has not been confirmed as applied.
type PendingOperation struct {
	CreatedAt  time.Time
	Payload    Payload
	ID         string
	Kind       OperationKind
	RetryCount int
}

// EntityType returns the entity type of the carried payload.
func (op PendingOperation) EntityType() EntityType {
	if op.Payload == nil {
		return ""
	}
	return op.Payload.EntityType()
}

type pendingOperationJSON struct {
	CreatedAt  time.Time       `json:"created_at"`
	ID         string          `json:"id"`
	Kind       OperationKind   `json:"kind"`
	EntityType EntityType      `json:"entity_type"`
	Payload    json.RawMessage `json:"payload"`
	RetryCount int             `json:"retry_count"`
}

// MarshalJSON writes the operation with an entity_type discriminator.
func (op PendingOperation) MarshalJSON() ([]byte, error) {
	if op.Payload == nil {
		return nil, fmt.Errorf("operation %s has no payload", op.ID)
	}
	payload, err := json.Marshal(op.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return json.Marshal(pendingOperationJSON{
		ID:         op.ID,
		Kind:       op.Kind,
		EntityType: op.Payload.EntityType(),
		Payload:    payload,
		CreatedAt:  op.CreatedAt,
		RetryCount: op.RetryCount,
	})
}

// UnmarshalJSON restores the concrete payload type from the discriminator.
func (op *PendingOperation) UnmarshalJSON(data []byte) error {
	var raw pendingOperationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	payload, err := decodePayload(raw.EntityType, raw.Payload)
	if err != nil {
		return fmt.Errorf("operation %s: %w", raw.ID, err)
	}

	*op = PendingOperation{
		ID:         raw.ID,
		Kind:       raw.Kind,
		Payload:    payload,
		CreatedAt:  raw.CreatedAt,
		RetryCount: raw.RetryCount,
	}
	return nil
}

func decodePayload(entity EntityType, data json.RawMessage) (Payload, error) {
	switch entity {
	case EntityTransaction:
		var p Transaction
		err := json.Unmarshal(data, &p)
		return p, err
	case EntityBankAccount:
		var p BankAccount
		err := json.Unmarshal(data, &p)
		return p, err
	case EntityBudget:
		var p Budget
		err := json.Unmarshal(data, &p)
		return p, err
	case EntityCategory:
		var p Category
		err := json.Unmarshal(data, &p)
		return p, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
}

// EntityType implements Payload.
func (Transaction) EntityType() EntityType { return EntityTransaction }

// RecordID implements Payload.
func (t Transaction) RecordID() string { return t.ID }

func (Transaction) isPayload() {}

// EntityType implements Payload.
func (BankAccount) EntityType() EntityType { return EntityBankAccount }

// RecordID implements Payload.
func (a BankAccount) RecordID() string { return a.ID }

func (BankAccount) isPayload() {}

// EntityType implements Payload.
func (Budget) EntityType() EntityType { return EntityBudget }

// RecordID implements Payload.
func (b Budget) RecordID() string { return b.ID }

func (Budget) isPayload() {}

// EntityType implements Payload.
func (Category) EntityType() EntityType { return EntityCategory }

// RecordID implements Payload.
func (c Category) RecordID() string { return c.ID }

func (Category) isPayload() {}
