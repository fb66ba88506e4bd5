package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Record is the flat, column-keyed form of an entity as stored on the remote ledger.
// Every record carries its identifier under the "id" key.
type Record map[string]string

// RecordIDKey is the column holding a record's identifier.
const RecordIDKey = "id"

// ID returns the record identifier.
func (r Record) ID() string {
	return r[RecordIDKey]
}

// Columns returns the ledger column order for an entity type.
func Columns(entity EntityType) []string {
	switch entity {
	case EntityTransaction:
		return []string{
			"id", "date", "amount", "direction", "merchant", "category", "needs_review",
			"account_tail", "reference_id", "bank_or_app", "balance", "source", "fingerprint", "description",
		}
	case EntityBankAccount:
		return []string{"id", "name", "bank", "account_tail", "balance"}
	case EntityBudget:
		return []string{"id", "category", "limit", "period"}
	case EntityCategory:
		return []string{"id", "name", "type", "created_at"}
	default:
		return nil
	}
}

// ToRecord flattens a payload into ledger columns.
func ToRecord(p Payload) (Record, error) {
	switch v := p.(type) {
	case Transaction:
		return Record{
			"id":           v.ID,
			"date":         v.OccurredAt.UTC().Format(time.RFC3339),
			"amount":       v.Amount.StringFixed(2),
			"direction":    string(v.Direction),
			"merchant":     v.Merchant,
			"category":     v.Category,
			"needs_review": strconv.FormatBool(v.NeedsReview),
			"account_tail": v.AccountTail,
			"reference_id": v.ReferenceID,
			"bank_or_app":  v.BankOrApp,
			"balance":      formatOptional(v.Balance),
			"source":       string(v.Source),
			"fingerprint":  v.Fingerprint,
			"description":  v.Description,
		}, nil
	case BankAccount:
		return Record{
			"id":           v.ID,
			"name":         v.Name,
			"bank":         v.Bank,
			"account_tail": v.AccountTail,
			"balance":      formatOptional(v.Balance),
		}, nil
	case Budget:
		return Record{
			"id":       v.ID,
			"category": v.Category,
			"limit":    v.Limit.StringFixed(2),
			"period":   v.Period,
		}, nil
	case Category:
		return Record{
			"id":         v.ID,
			"name":       v.Name,
			"type":       string(v.Type),
			"created_at": v.CreatedAt.UTC().Format(time.RFC3339),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEntity, p)
	}
}

// TransactionFromRecord rebuilds a transaction from its ledger columns.
func TransactionFromRecord(r Record) (Transaction, error) {
	txn := Transaction{
		ID:          r["id"],
		Direction:   Direction(r["direction"]),
		Merchant:    r["merchant"],
		Category:    r["category"],
		AccountTail: r["account_tail"],
		ReferenceID: r["reference_id"],
		BankOrApp:   r["bank_or_app"],
		Source:      Channel(r["source"]),
		Fingerprint: r["fingerprint"],
		Description: r["description"],
	}
	if txn.ID == "" {
		return Transaction{}, fmt.Errorf("record has no id")
	}

	if v := r["date"]; v != "" {
		date, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Transaction{}, fmt.Errorf("invalid date %q: %w", v, err)
		}
		txn.OccurredAt = date
	}

	amount, err := decimal.NewFromString(r["amount"])
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid amount %q: %w", r["amount"], err)
	}
	txn.Amount = amount

	if v := r["balance"]; v != "" {
		balance, err := decimal.NewFromString(v)
		if err != nil {
			return Transaction{}, fmt.Errorf("invalid balance %q: %w", v, err)
		}
		txn.Balance = &balance
	}

	txn.NeedsReview, _ = strconv.ParseBool(r["needs_review"])
	return txn, nil
}

func formatOptional(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}
