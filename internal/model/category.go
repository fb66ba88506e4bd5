package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryType indicates whether a category is for income or spending.
type CategoryType string

const (
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "income"
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "expense"
)

// Category is a spending or income category kept on the ledger.
type Category struct {
	CreatedAt time.Time    `json:"created_at"`
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Type      CategoryType `json:"type"`
}

// BankAccount is an account the user receives messages about.
type BankAccount struct {
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Bank        string           `json:"bank"`
	AccountTail string           `json:"account_tail"`
}

// Budget is a spending limit for one category over a period.
type Budget struct {
	Limit    decimal.Decimal `json:"limit"`
	ID       string          `json:"id"`
	Category string          `json:"category"`
	Period   string          `json:"period"`
}
