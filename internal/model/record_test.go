package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRecord_CoversColumns(t *testing.T) {
	balance := decimal.RequireFromString("4500")
	payloads := []Payload{
		Transaction{ID: "t1", Amount: decimal.NewFromInt(1), Balance: &balance},
		BankAccount{ID: "a1"},
		Budget{ID: "b1"},
		Category{ID: "c1"},
	}

	for _, p := range payloads {
		t.Run(string(p.EntityType()), func(t *testing.T) {
			rec, err := ToRecord(p)
			require.NoError(t, err)
			assert.Equal(t, p.RecordID(), rec.ID())

			columns := Columns(p.EntityType())
			assert.Equal(t, RecordIDKey, columns[0])
			assert.Len(t, rec, len(columns))
			for _, c := range columns {
				assert.Contains(t, rec, c)
			}
		})
	}

	assert.Nil(t, Columns("invoice"))
}

func TestTransactionFromRecord(t *testing.T) {
	balance := decimal.RequireFromString("4500.00")
	original := Transaction{
		ID:          "t1",
		OccurredAt:  time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("1250.50"),
		Balance:     &balance,
		Direction:   DirectionDebit,
		Merchant:    "YOGI BABU",
		AccountTail: "5678",
		ReferenceID: "412345678901",
		BankOrApp:   "ICICI Bank",
		Category:    CategoryNeedsReview,
		Fingerprint: "ref:412345678901",
		Source:      ChannelSMS,
		NeedsReview: true,
	}

	rec, err := ToRecord(original)
	require.NoError(t, err)
	assert.Equal(t, "1250.50", rec["amount"])
	assert.Equal(t, "2024-01-12T10:00:00Z", rec["date"])
	assert.Equal(t, "true", rec["needs_review"])

	got, err := TransactionFromRecord(rec)
	require.NoError(t, err)
	assert.True(t, original.Amount.Equal(got.Amount))
	require.NotNil(t, got.Balance)
	assert.True(t, balance.Equal(*got.Balance))
	assert.True(t, original.OccurredAt.Equal(got.OccurredAt))
	got.Amount, got.Balance, got.OccurredAt = original.Amount, original.Balance, original.OccurredAt
	assert.Equal(t, original, got)
}

func TestTransactionFromRecord_Invalid(t *testing.T) {
	tests := []struct {
		rec  Record
		name string
	}{
		{name: "no id", rec: Record{"amount": "1"}},
		{name: "bad amount", rec: Record{"id": "t1", "amount": "abc"}},
		{name: "bad date", rec: Record{"id": "t1", "amount": "1", "date": "yesterday"}},
		{name: "bad balance", rec: Record{"id": "t1", "amount": "1", "balance": "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TransactionFromRecord(tt.rec)
			assert.Error(t, err)
		})
	}
}
