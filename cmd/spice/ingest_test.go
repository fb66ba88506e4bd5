package main

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/spice-inbox/internal/extract"
	"github.com/Veraticus/spice-inbox/internal/ingest"
	"github.com/Veraticus/spice-inbox/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDescribeResult(t *testing.T) {
	txn := model.Transaction{
		ID:        "txn-1",
		Amount:    decimal.RequireFromString("500"),
		Direction: model.DirectionDebit,
		Merchant:  "SWIGGY",
		Category:  "food",
	}

	queued := describeResult(ingest.Result{Outcome: ingest.OutcomeQueued, Transaction: txn})
	assert.Contains(t, queued, "₹500.00 SWIGGY → food (queued)")
	assert.NotContains(t, queued, "needs review")

	txn.Category = model.CategoryNeedsReview
	txn.NeedsReview = true
	review := describeResult(ingest.Result{Outcome: ingest.OutcomeSynced, Transaction: txn})
	assert.Contains(t, review, "spice categorize txn-1")

	assert.Contains(t, describeResult(ingest.Result{Outcome: ingest.OutcomeDuplicate, Fingerprint: "ref:412345678901"}), "ref:412345678901")
	assert.Contains(t, describeResult(ingest.Result{Outcome: ingest.OutcomeRejected, Reason: extract.ReasonSensitive}), string(extract.ReasonSensitive))
	assert.Contains(t, describeResult(ingest.Result{Outcome: ingest.OutcomeFailed, Err: errors.New("disk full")}), "disk full")
}
