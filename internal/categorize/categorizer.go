// Package categorize assigns spending categories to transaction candidates.
package categorize

import (
	"sort"
	"strings"

	"github.com/Veraticus/spice-inbox/internal/model"
)

// Source identifies which tier produced a category.
type Source string

// Categorization sources, in priority order.
const (
	SourceRule     Source = "rule"
	SourceMerchant Source = "merchant_table"
	SourceKeyword  Source = "keyword_table"
	SourceHint     Source = "extractor_hint"
	SourceNone     Source = "none"
)

// Result is the outcome of categorizing one candidate.
type Result struct {
	Category    string
	Source      Source
	RuleID      string
	MatchedTerm string
	NeedsReview bool
}

// Categorizer is a pure lookup over user rules and the built-in tables.
type Categorizer struct {
	tables *Tables
}

// New creates a categorizer over the given tables. A nil tables value
// categorizes with user rules only.
func New(tables *Tables) *Categorizer {
	if tables == nil {
		tables = &Tables{}
	}
	return &Categorizer{tables: tables}
}

// Categorize picks a category for c, trying user rules, then the merchant
// table, then the keyword table. Anything unmatched is marked for review.
func (c *Categorizer) Categorize(candidate model.TransactionCandidate, rules []model.MerchantRule) Result {
	merchant := NormalizePattern(candidate.Merchant)
	haystack := NormalizePattern(candidate.Description + " " + candidate.Merchant)

	if rule, ok := matchRule(rules, merchant, haystack); ok {
		return Result{
			Category:    rule.Category,
			Source:      SourceRule,
			RuleID:      rule.ID,
			MatchedTerm: rule.Pattern,
		}
	}

	if category, term, ok := matchEntries(c.tables.Merchants, haystack, func(e *Entry) []string { return e.Names }); ok {
		return Result{Category: category, Source: SourceMerchant, MatchedTerm: term}
	}

	if category, term, ok := matchEntries(c.tables.Keywords, haystack, func(e *Entry) []string { return e.Words }); ok {
		return Result{Category: category, Source: SourceKeyword, MatchedTerm: term}
	}

	if candidate.SuggestedCategory != "" {
		return Result{Category: candidate.SuggestedCategory, Source: SourceHint}
	}

	return Result{
		Category:    model.CategoryNeedsReview,
		Source:      SourceNone,
		NeedsReview: true,
	}
}

// matchRule returns the most specific matching rule: exact rules before
// contains rules, longer patterns before shorter ones.
func matchRule(rules []model.MerchantRule, merchant, haystack string) (model.MerchantRule, bool) {
	if len(rules) == 0 {
		return model.MerchantRule{}, false
	}

	ordered := make([]model.MerchantRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].MatchType != ordered[j].MatchType {
			return ordered[i].MatchType == model.MatchExact
		}
		return len(ordered[i].Pattern) > len(ordered[j].Pattern)
	})

	for _, rule := range ordered {
		pattern := NormalizePattern(rule.Pattern)
		if pattern == "" {
			continue
		}
		switch rule.MatchType {
		case model.MatchExact:
			if merchant != "" && merchant == pattern {
				return rule, true
			}
		case model.MatchContains:
			if strings.Contains(haystack, pattern) {
				return rule, true
			}
		}
	}
	return model.MerchantRule{}, false
}

// NormalizePattern lowercases s and collapses internal whitespace.
func NormalizePattern(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
