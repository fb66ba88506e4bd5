package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-inbox/internal/categorize"
	"github.com/Veraticus/spice-inbox/internal/dedup"
	"github.com/Veraticus/spice-inbox/internal/extract"
	"github.com/Veraticus/spice-inbox/internal/ledger"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/queue"
	"github.com/Veraticus/spice-inbox/internal/storage"
	"github.com/Veraticus/spice-inbox/internal/syncer"
	"github.com/Veraticus/spice-inbox/internal/testutil"
)

type staticConn bool

func (c staticConn) Online() bool { return bool(c) }

type pipeline struct {
	orch   *Orchestrator
	queue  *queue.Queue
	rules  *categorize.RuleStore
	ledger *ledger.Memory
	kv     *storage.MemoryStorage
	now    *time.Time
}

// newPipeline builds an orchestrator over in-memory stores. A nil conn
// disables the immediate push.
func newPipeline(t *testing.T, conn Connectivity) pipeline {
	t.Helper()
	now := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	kv := storage.NewMemoryStorage()
	tables, err := categorize.LoadEmbedded()
	require.NoError(t, err)

	n := 0
	q := queue.New(kv, queue.Options{Now: clock, NewID: func() string {
		n++
		return fmt.Sprintf("op-%d", n)
	}})
	rules := categorize.NewRuleStore(kv, nil)
	l := ledger.NewMemory()

	opts := Options{Now: clock, Conn: conn}
	if conn != nil {
		opts.Pusher = syncer.NewEngine(q, l, conn, syncer.Options{})
	}

	txnSeq := 0
	opts.NewID = func() string {
		txnSeq++
		return fmt.Sprintf("txn-%d", txnSeq)
	}

	orch := New(dedup.NewStore(kv, dedup.Options{Now: clock}), rules, categorize.New(tables), q, opts)
	return pipeline{orch: orch, queue: q, rules: rules, ledger: l, kv: kv, now: &now}
}

func sms(body, sender string) model.RawMessage {
	return model.RawMessage{Sender: sender, Body: body, Channel: model.ChannelSMS}
}

func (p pipeline) queued(t *testing.T) []model.PendingOperation {
	t.Helper()
	ops, err := p.queue.List(context.Background())
	require.NoError(t, err)
	return ops
}

func TestIngest_SwiggyDebitIsFood(t *testing.T) {
	p := newPipeline(t, nil)

	res := p.orch.Ingest(context.Background(), sms("Rs.500.00 debited from A/c XX1234 at SWIGGY on 12-01-24. Avl Bal Rs 4,500.00", "VM-HDFCBK"))
	require.Equal(t, OutcomeQueued, res.Outcome)
	assert.Equal(t, "food", res.Transaction.Category)
	assert.False(t, res.Transaction.NeedsReview)
	assert.True(t, decimal.NewFromInt(500).Equal(res.Transaction.Amount))
	assert.Equal(t, model.DirectionDebit, res.Transaction.Direction)
	assert.Equal(t, "HDFC Bank", res.Transaction.BankOrApp)

	ops := p.queued(t)
	require.Len(t, ops, 1)
	assert.Equal(t, model.OperationCreate, ops[0].Kind)
	assert.Equal(t, res.Transaction.ID, ops[0].Payload.RecordID())
}

func TestIngest_SMSAndPushAreDeduplicated(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, nil)

	first := p.orch.Ingest(ctx, sms("INR 1,250.50 paid to YOGI BABU via UPI from a/c **5678. UPI Ref: 412345678901", "AX-ICICIB"))
	require.Equal(t, OutcomeQueued, first.Outcome)
	assert.Equal(t, model.Fingerprint("ref:412345678901"), first.Fingerprint)

	second := p.orch.Ingest(ctx, model.RawMessage{
		Sender:     "Paid to Yogi Babu",
		Body:       "₹1,250.50 via UPI. UPI Ref No 412345678901",
		Channel:    model.ChannelPushNotification,
		AppPackage: "com.google.android.apps.nbu.paisa.user",
	})
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Len(t, p.queued(t), 1)
}

func TestIngest_OTPIsRejected(t *testing.T) {
	p := newPipeline(t, nil)

	res := p.orch.Ingest(context.Background(), sms("Your OTP for login is 482913. Do not share.", "VM-HDFCBK"))
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, extract.ReasonSensitive, res.Reason)
	assert.ErrorIs(t, res.Err, extract.ErrRejected)
	assert.Empty(t, p.queued(t))
}

func TestIngest_IgnoredMessagesProduceNoOperation(t *testing.T) {
	bodies := []string{
		"Transaction of Rs 500 failed due to insufficient funds",
		"Reminder: your credit card bill of Rs 4,000 is due on 15-01-24",
		"Ramesh has requested Rs 200 from you via UPI",
		"Your scheduled payment of Rs 999 will be processed tomorrow",
		"Avl Bal in A/c XX1234 is Rs 10,000.00",
		"Hello, how are you?",
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			p := newPipeline(t, nil)
			res := p.orch.Ingest(context.Background(), sms(body, ""))
			assert.Equal(t, OutcomeRejected, res.Outcome)
			assert.Empty(t, p.queued(t))
		})
	}
}

func TestIngest_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, nil)
	msg := sms("Rs 250 debited from A/c XX1234 at UBER on 12-01-24", "VM-HDFCBK")

	assert.Equal(t, OutcomeQueued, p.orch.Ingest(ctx, msg).Outcome)
	for i := 0; i < 3; i++ {
		assert.Equal(t, OutcomeDuplicate, p.orch.Ingest(ctx, msg).Outcome)
	}
	assert.Len(t, p.queued(t), 1)
}

func TestIngest_ManualRuleAppliesToLaterMessages(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, nil)

	first := p.orch.Ingest(ctx, sms("INR 1,250.50 paid to Yogi Babu via UPI from a/c **5678. UPI Ref: 412345678901", "AX-ICICIB"))
	require.Equal(t, OutcomeQueued, first.Outcome)
	require.True(t, first.Transaction.NeedsReview)

	assigned, err := p.orch.AssignCategory(ctx, first.Transaction, "food")
	require.NoError(t, err)
	require.NotNil(t, assigned.Rule)
	assert.Equal(t, "yogi babu", assigned.Rule.Pattern)
	assert.Equal(t, "food", assigned.Transaction.Category)
	assert.False(t, assigned.Transaction.NeedsReview)
	assert.Equal(t, model.OperationUpdate, assigned.Operation.Kind)

	later := p.orch.Ingest(ctx, sms("INR 80.00 paid to YOGI BABU via UPI from a/c **5678. UPI Ref: 412345678999", "AX-ICICIB"))
	require.Equal(t, OutcomeQueued, later.Outcome)
	assert.Equal(t, "food", later.Transaction.Category)
	assert.False(t, later.Transaction.NeedsReview)
	assert.Equal(t, categorize.SourceRule, later.Category.Source)

	assert.Len(t, p.queued(t), 3)
}

func TestAssignCategory_GuardRejectsMetadataMerchant(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, nil)

	txn := model.Transaction{ID: "t1", Merchant: "debited from a/c 1234", Amount: decimal.NewFromInt(10)}
	res, err := p.orch.AssignCategory(ctx, txn, "shopping")
	require.NoError(t, err)
	assert.Nil(t, res.Rule)
	assert.ErrorIs(t, res.RuleErr, categorize.ErrInvalidRulePattern)
	assert.Equal(t, "shopping", res.Transaction.Category)

	rules, err := p.rules.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
	assert.Len(t, p.queued(t), 1)

	_, err = p.orch.AssignCategory(ctx, txn, "  ")
	assert.Error(t, err)
}

func TestIngest_ImmediatePush(t *testing.T) {
	ctx := context.Background()
	msg := sms("Rs.500.00 debited from A/c XX1234 at SWIGGY on 12-01-24", "VM-HDFCBK")

	t.Run("online push removes the operation", func(t *testing.T) {
		p := newPipeline(t, staticConn(true))
		res := p.orch.Ingest(ctx, msg)
		assert.Equal(t, OutcomeSynced, res.Outcome)
		assert.Empty(t, p.queued(t))
		assert.Len(t, p.ledger.Records(model.EntityTransaction), 1)
	})

	t.Run("offline leaves it queued", func(t *testing.T) {
		p := newPipeline(t, staticConn(false))
		res := p.orch.Ingest(ctx, msg)
		assert.Equal(t, OutcomeQueued, res.Outcome)
		assert.Len(t, p.queued(t), 1)
		assert.Empty(t, p.ledger.Calls())
	})

	t.Run("missing credentials leave it queued", func(t *testing.T) {
		p := newPipeline(t, staticConn(true))
		p.ledger.SetError(ledger.ErrNotAuthenticated)
		res := p.orch.Ingest(ctx, msg)
		assert.Equal(t, OutcomeQueued, res.Outcome)
		assert.NoError(t, res.Err)

		ops := p.queued(t)
		require.Len(t, ops, 1)
		assert.Zero(t, ops[0].RetryCount)
	})
}

func TestIngest_StorageFailureNeverRaises(t *testing.T) {
	p := newPipeline(t, nil)
	p.kv.FailWith = errors.New("disk full")

	var res Result
	assert.NotPanics(t, func() {
		res = p.orch.Ingest(context.Background(), sms("Rs.500.00 debited from A/c XX1234 at SWIGGY on 12-01-24", "VM-HDFCBK"))
	})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
}

func TestIngest_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := testutil.SharedDBPath(t)
	tables, err := categorize.LoadEmbedded()
	require.NoError(t, err)

	start := func() (*Orchestrator, *queue.Queue) {
		kv := testutil.OpenDB(t, path)
		q := queue.New(kv, queue.Options{})
		orch := New(dedup.NewStore(kv, dedup.Options{}), categorize.NewRuleStore(kv, nil), categorize.New(tables), q, Options{})
		return orch, q
	}
	msg := sms("INR 1,250.50 paid to YOGI BABU via UPI from a/c **5678. UPI Ref: 412345678901", "AX-ICICIB")

	before, _ := start()
	require.Equal(t, OutcomeQueued, before.Ingest(ctx, msg).Outcome)

	after, q := start()
	assert.Equal(t, OutcomeDuplicate, after.Ingest(ctx, msg).Outcome)
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
