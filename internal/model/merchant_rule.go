package model

import "time"

// MatchType controls how a merchant rule pattern is compared.
type MatchType string

// Match type constants.
const (
	// MatchExact compares the normalized merchant name for equality.
	MatchExact MatchType = "exact"
	// MatchContains looks for the pattern inside description and merchant.
	MatchContains MatchType = "contains"
)

// MerchantRule is a user-created categorization rule. Rules never expire;
// re-ruling the same pattern updates the category in place.
type MerchantRule struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Pattern   string    `json:"pattern"`
	Category  string    `json:"category"`
	MatchType MatchType `json:"match_type"`
}
