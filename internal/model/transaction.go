package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates whether money left or entered the user's account.
type Direction string

// Direction constants.
const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// CategoryNeedsReview is the sentinel category for transactions no rule or table could place.
const CategoryNeedsReview = "needs_review"

// TransactionCandidate is what the extractor recovers from a single message.
// It is immutable once built and is never persisted; only the Transaction derived
// from it and its fingerprint survive ingestion.
type TransactionCandidate struct {
	OccurredAt        time.Time
	Amount            decimal.Decimal
	Balance           *decimal.Decimal
	Direction         Direction
	Merchant          string
	AccountTail       string
	ReferenceID       string
	BankOrApp         string
	Description       string
	RawText           string
	SuggestedCategory string
	Channel           Channel
}

// Transaction is the record written to the remote ledger.
type Transaction struct {
	OccurredAt  time.Time        `json:"occurred_at"`
	Amount      decimal.Decimal  `json:"amount"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	ID          string           `json:"id"`
	Direction   Direction        `json:"direction"`
	Merchant    string           `json:"merchant,omitempty"`
	AccountTail string           `json:"account_tail,omitempty"`
	ReferenceID string           `json:"reference_id,omitempty"`
	BankOrApp   string           `json:"bank_or_app,omitempty"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category"`
	Fingerprint string           `json:"fingerprint"`
	Source      Channel          `json:"source"`
	NeedsReview bool             `json:"needs_review"`
}

// NewTransaction builds the ledger record for an accepted candidate.
func NewTransaction(id string, c TransactionCandidate, fingerprint Fingerprint, category string, needsReview bool) Transaction {
	return Transaction{
		ID:          id,
		OccurredAt:  c.OccurredAt,
		Amount:      c.Amount,
		Balance:     c.Balance,
		Direction:   c.Direction,
		Merchant:    c.Merchant,
		AccountTail: c.AccountTail,
		ReferenceID: c.ReferenceID,
		BankOrApp:   c.BankOrApp,
		Description: c.Description,
		Category:    category,
		Fingerprint: string(fingerprint),
		Source:      c.Channel,
		NeedsReview: needsReview,
	}
}
