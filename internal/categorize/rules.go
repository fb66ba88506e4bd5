package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/service"
)

// RulesKey is the key-value entry holding all merchant rules.
const RulesKey = "merchant_rules"

// MaxRulePatternLength bounds how long a rule pattern may be.
const MaxRulePatternLength = 50

// MinContainsPatternLength is the shortest pattern that becomes a contains rule.
// Shorter patterns only match a merchant exactly.
const MinContainsPatternLength = 4

// ErrInvalidRulePattern is returned when a merchant string looks like
// transaction metadata rather than a payee.
var ErrInvalidRulePattern = errors.New("invalid rule pattern")

var (
	metadataWords  = regexp.MustCompile(`(?i)\b(debited|credited|debit|credit|balance|bal|avl|ref|refno|inr|rs|a/c|acct|txn|utr|upi ref|otp)\b`)
	decimalPattern = regexp.MustCompile(`\d+\.\d+`)
)

// ValidateRulePattern rejects merchant strings that should not become rules.
func ValidateRulePattern(pattern string) error {
	p := NormalizePattern(pattern)
	switch {
	case p == "":
		return fmt.Errorf("%w: empty", ErrInvalidRulePattern)
	case utf8.RuneCountInString(p) > MaxRulePatternLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidRulePattern, MaxRulePatternLength)
	case metadataWords.MatchString(p):
		return fmt.Errorf("%w: %q looks like transaction metadata", ErrInvalidRulePattern, pattern)
	case decimalPattern.MatchString(p):
		return fmt.Errorf("%w: %q contains an amount", ErrInvalidRulePattern, pattern)
	}
	return nil
}

// MatchTypeFor picks the match type a user rule for pattern should use.
func MatchTypeFor(pattern string) model.MatchType {
	if utf8.RuneCountInString(NormalizePattern(pattern)) < MinContainsPatternLength {
		return model.MatchExact
	}
	return model.MatchContains
}

// RuleStore persists merchant rules as one JSON document in a key-value store.
type RuleStore struct {
	kv     service.KeyValueStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRuleStore creates a rule store.
func NewRuleStore(kv service.KeyValueStore, logger *slog.Logger) *RuleStore {
	return &RuleStore{
		kv:     kv,
		logger: common.OrDefault(logger),
		now:    time.Now,
	}
}

// List returns all rules in creation order.
func (s *RuleStore) List(ctx context.Context) ([]model.MerchantRule, error) {
	data, err := s.kv.Get(ctx, RulesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load merchant rules: %w", err)
	}
	return decodeRules(data)
}

// Upsert creates a rule for pattern or, when one already exists for the same
// normalized pattern, updates its category in place.
func (s *RuleStore) Upsert(ctx context.Context, pattern, category string, matchType model.MatchType) (model.MerchantRule, error) {
	if err := ValidateRulePattern(pattern); err != nil {
		return model.MerchantRule{}, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return model.MerchantRule{}, fmt.Errorf("%w: category", common.ErrInvalidConfig)
	}
	if matchType != model.MatchExact && matchType != model.MatchContains {
		return model.MerchantRule{}, fmt.Errorf("%w: match type %q", ErrInvalidRulePattern, matchType)
	}

	normalized := NormalizePattern(pattern)
	now := s.now().UTC()
	var saved model.MerchantRule

	err := s.kv.Update(ctx, RulesKey, func(current []byte) ([]byte, error) {
		rules, err := decodeRules(current)
		if err != nil {
			return nil, err
		}

		found := false
		for i := range rules {
			if rules[i].Pattern == normalized {
				rules[i].Category = category
				rules[i].MatchType = matchType
				rules[i].UpdatedAt = now
				saved = rules[i]
				found = true
				break
			}
		}
		if !found {
			saved = model.MerchantRule{
				ID:        uuid.NewString(),
				Pattern:   normalized,
				Category:  category,
				MatchType: matchType,
				CreatedAt: now,
				UpdatedAt: now,
			}
			rules = append(rules, saved)
		}
		return json.Marshal(rules)
	})
	if err != nil {
		return model.MerchantRule{}, fmt.Errorf("failed to save merchant rule: %w", err)
	}

	s.logger.Info("Saved merchant rule",
		"pattern", saved.Pattern,
		"category", saved.Category,
		"match_type", saved.MatchType)
	return saved, nil
}

// Delete removes the rule with the given id or pattern.
func (s *RuleStore) Delete(ctx context.Context, idOrPattern string) error {
	target := NormalizePattern(idOrPattern)
	removed := false

	err := s.kv.Update(ctx, RulesKey, func(current []byte) ([]byte, error) {
		rules, err := decodeRules(current)
		if err != nil {
			return nil, err
		}
		kept := rules[:0]
		for _, r := range rules {
			if r.ID == idOrPattern || r.Pattern == target {
				removed = true
				continue
			}
			kept = append(kept, r)
		}
		return json.Marshal(kept)
	})
	if err != nil {
		return fmt.Errorf("failed to delete merchant rule: %w", err)
	}
	if !removed {
		return fmt.Errorf("merchant rule %q: %w", idOrPattern, common.ErrNotFound)
	}
	return nil
}

func decodeRules(data []byte) ([]model.MerchantRule, error) {
	if len(data) == 0 {
		return []model.MerchantRule{}, nil
	}
	var rules []model.MerchantRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("%w: merchant rules: %v", common.ErrDatabaseCorrupted, err)
	}
	return rules, nil
}
