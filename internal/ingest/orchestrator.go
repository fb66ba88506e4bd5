// Package ingest runs one inbound message through the pipeline: extract,
// deduplicate, categorize, enqueue and, when possible, push immediately.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-inbox/internal/categorize"
	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/dedup"
	"github.com/Veraticus/spice-inbox/internal/extract"
	"github.com/Veraticus/spice-inbox/internal/metrics"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/queue"
)

// DefaultBudget bounds the wall-clock time of one ingestion.
const DefaultBudget = 25 * time.Second

// Outcome is what happened to an ingested message.
type Outcome string

// Ingestion outcomes.
const (
	OutcomeRejected  Outcome = "rejected"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeQueued    Outcome = "queued"
	OutcomeSynced    Outcome = "synced"
	OutcomeFailed    Outcome = "failed"
)

// Pusher applies a queued operation right away and removes it on success.
type Pusher interface {
	PushOne(ctx context.Context, op model.PendingOperation) error
}

// Connectivity reports whether the ledger is currently reachable.
type Connectivity interface {
	Online() bool
}

// Result describes one ingestion.
type Result struct {
	// Err explains a rejected or failed ingestion. It is informational; the
	// message has already been handled.
	Err         error
	Transaction model.Transaction
	Operation   model.PendingOperation
	Category    categorize.Result
	Outcome     Outcome
	Reason      extract.Reason
	Fingerprint model.Fingerprint
}

// Options configures an Orchestrator.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Pusher is nil when no ledger credentials are available.
	Pusher Pusher
	// Conn gates the immediate push. Nil means always attempt.
	Conn   Connectivity
	Now    func() time.Time
	NewID  func() string
	Budget time.Duration
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	dedup       *dedup.Store
	rules       *categorize.RuleStore
	categorizer *categorize.Categorizer
	queue       *queue.Queue
	pusher      Pusher
	conn        Connectivity
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
	budget      time.Duration
}

// New creates an orchestrator.
func New(store *dedup.Store, rules *categorize.RuleStore, categorizer *categorize.Categorizer, q *queue.Queue, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	return &Orchestrator{
		dedup:       store,
		rules:       rules,
		categorizer: categorizer,
		queue:       q,
		pusher:      opts.Pusher,
		conn:        opts.Conn,
		metrics:     opts.Metrics,
		logger:      common.OrDefault(opts.Logger),
		now:         opts.Now,
		newID:       opts.NewID,
		budget:      opts.Budget,
	}
}

// Ingest processes one message. It never returns an error; the Result says
// what happened. Once the outcome is queued the transaction is durable.
func (o *Orchestrator) Ingest(ctx context.Context, msg model.RawMessage) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Ingestion panicked", "panic", r, "channel", msg.Channel)
			res = Result{Outcome: OutcomeFailed, Err: fmt.Errorf("ingestion panicked: %v", r)}
		}
		o.metrics.IncrIngest(string(res.Outcome))
	}()

	ctx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	msg = extract.ReceivedNow(msg, o.now)
	candidate, err := extract.ExtractMessage(msg)
	if err != nil {
		res = Result{Outcome: OutcomeRejected, Err: err}
		var rej *extract.Rejection
		if errors.As(err, &rej) {
			res.Reason = rej.Reason
		}
		o.logger.Debug("Message rejected", "reason", res.Reason, "sender", msg.Sender, "channel", msg.Channel)
		return res
	}

	fp := dedup.Fingerprint(candidate)
	res.Fingerprint = fp
	if o.dedup.IsDuplicate(ctx, fp) {
		o.logger.Info("Duplicate message skipped", "fingerprint", fp, "channel", msg.Channel)
		res.Outcome = OutcomeDuplicate
		return res
	}

	first, err := o.dedup.MarkProcessed(ctx, fp, candidate.Channel)
	if err != nil {
		o.logger.Warn("Fingerprint not persisted", "fingerprint", fp, "error", err)
	}
	if !first {
		o.logger.Info("Duplicate message skipped", "fingerprint", fp, "channel", msg.Channel)
		res.Outcome = OutcomeDuplicate
		return res
	}

	res.Category = o.categorize(ctx, candidate)
	res.Transaction = model.NewTransaction(o.newID(), candidate, fp, res.Category.Category, res.Category.NeedsReview)

	op, err := o.queue.Enqueue(ctx, model.OperationCreate, res.Transaction)
	if err != nil {
		o.logger.Error("Failed to queue transaction", "fingerprint", fp, "error", err)
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	res.Operation = op
	res.Outcome = OutcomeQueued

	if o.push(ctx, op) {
		res.Outcome = OutcomeSynced
	}

	o.logger.Info("Ingested transaction",
		"id", res.Transaction.ID,
		"amount", res.Transaction.Amount.StringFixed(2),
		"direction", res.Transaction.Direction,
		"merchant", res.Transaction.Merchant,
		"category", res.Transaction.Category,
		"needs_review", res.Transaction.NeedsReview,
		"outcome", res.Outcome)
	return res
}

// AssignResult describes a manual categorization.
type AssignResult struct {
	// Rule is nil when the merchant could not become a rule.
	Rule        *model.MerchantRule
	RuleErr     error
	Transaction model.Transaction
	Operation   model.PendingOperation
	Synced      bool
}

// AssignCategory sets a transaction's category by hand. When the merchant
// passes the rule guard a merchant rule is saved so later messages from the
// same merchant categorize automatically. The update is queued like any
// other mutation.
func (o *Orchestrator) AssignCategory(ctx context.Context, txn model.Transaction, category string) (AssignResult, error) {
	category = categorize.NormalizePattern(category)
	if category == "" {
		return AssignResult{}, fmt.Errorf("%w: category is required", common.ErrInvalidConfig)
	}
	if txn.ID == "" {
		return AssignResult{}, fmt.Errorf("%w: transaction id is required", common.ErrInvalidConfig)
	}

	ctx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	txn.Category = category
	txn.NeedsReview = false
	res := AssignResult{Transaction: txn}

	if txn.Merchant == "" {
		res.RuleErr = fmt.Errorf("%w: no merchant", categorize.ErrInvalidRulePattern)
	} else if err := categorize.ValidateRulePattern(txn.Merchant); err != nil {
		res.RuleErr = err
	} else {
		rule, err := o.rules.Upsert(ctx, txn.Merchant, category, categorize.MatchTypeFor(txn.Merchant))
		if err != nil {
			return AssignResult{}, err
		}
		res.Rule = &rule
	}
	if res.RuleErr != nil {
		o.logger.Info("No merchant rule created", "merchant", txn.Merchant, "reason", res.RuleErr)
	}

	op, err := o.queue.Enqueue(ctx, model.OperationUpdate, txn)
	if err != nil {
		return AssignResult{}, err
	}
	res.Operation = op
	res.Synced = o.push(ctx, op)
	return res, nil
}

func (o *Orchestrator) categorize(ctx context.Context, candidate model.TransactionCandidate) categorize.Result {
	rules, err := o.rules.List(ctx)
	if err != nil {
		o.logger.Warn("Merchant rules unavailable, using built-in tables", "error", err)
		rules = nil
	}
	return o.categorizer.Categorize(candidate, rules)
}

// push makes one immediate attempt. Failures leave the operation queued for
// the sync engine.
func (o *Orchestrator) push(ctx context.Context, op model.PendingOperation) bool {
	if o.pusher == nil {
		return false
	}
	if o.conn != nil && !o.conn.Online() {
		return false
	}
	if err := o.pusher.PushOne(ctx, op); err != nil {
		o.logger.Info("Immediate push failed, operation stays queued", "id", op.ID, "error", err)
		return false
	}
	return true
}
