package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-inbox/internal/ledger"
	"github.com/Veraticus/spice-inbox/internal/model"
)

func TestApply_Dispatch(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()

	txn := testTransaction("t1")
	require.NoError(t, Apply(ctx, l, model.PendingOperation{ID: "op-1", Kind: model.OperationCreate, Payload: txn}))

	txn.Category = "groceries"
	require.NoError(t, Apply(ctx, l, model.PendingOperation{ID: "op-2", Kind: model.OperationUpdate, Payload: txn}))
	recs := l.Records(model.EntityTransaction)
	require.Len(t, recs, 1)
	assert.Equal(t, "groceries", recs[0]["category"])

	require.NoError(t, Apply(ctx, l, model.PendingOperation{ID: "op-3", Kind: model.OperationDelete, Payload: txn}))
	assert.Empty(t, l.Records(model.EntityTransaction))

	assert.NoError(t, Apply(ctx, l, model.PendingOperation{ID: "op-4", Kind: model.OperationDelete, Payload: txn}),
		"deleting a record that is already gone is applied")

	err := Apply(ctx, l, model.PendingOperation{ID: "op-5", Kind: model.OperationUpdate, Payload: txn})
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)

	err = Apply(ctx, l, model.PendingOperation{ID: "op-6", Kind: "upsert", Payload: txn})
	assert.ErrorIs(t, err, ErrUnknownKind)

	err = Apply(ctx, l, model.PendingOperation{ID: "op-7", Kind: model.OperationCreate})
	assert.Error(t, err)

	require.NoError(t, Apply(ctx, l, model.PendingOperation{
		ID:      "op-8",
		Kind:    model.OperationCreate,
		Payload: model.Category{ID: "c1", Name: "food", Type: model.CategoryTypeExpense},
	}))
	assert.Len(t, l.Records(model.EntityCategory), 1)
}

func TestMergeRecords(t *testing.T) {
	local := []model.Record{
		{"id": "a", "amount": "1.00"},
		{"id": "c", "amount": "3.00"},
	}
	remote := []model.Record{
		{"id": "a", "amount": "9.00"},
		{"id": "b", "amount": "2.00"},
	}

	merged := MergeRecords(local, remote)
	require.Len(t, merged, 3)
	assert.Equal(t, "9.00", merged[0]["amount"], "remote wins on shared ids")
	assert.Equal(t, "b", merged[1].ID())
	assert.Equal(t, "c", merged[2].ID())

	assert.Empty(t, MergeRecords(nil, nil))
}

func TestPull(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, Options{})

	_, err := f.ledger.CreateRecord(ctx, model.EntityTransaction, model.Record{"id": "remote-1", "amount": "10.00"})
	require.NoError(t, err)
	f.enqueue(t, "local-1")
	_, err = f.queue.Enqueue(ctx, model.OperationCreate, model.Category{ID: "c1", Name: "food"})
	require.NoError(t, err)

	records, err := f.engine.Pull(ctx, model.EntityTransaction)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "remote-1", records[0].ID())
	assert.Equal(t, "local-1", records[1].ID())

	f.ledger.SetError(ledger.ErrNotAuthenticated)
	_, err = f.engine.Pull(ctx, model.EntityTransaction)
	assert.ErrorIs(t, err, ledger.ErrNotAuthenticated)
}
