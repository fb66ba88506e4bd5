package categorize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/storage"
)

func TestValidateRulePattern(t *testing.T) {
	tests := []struct {
		pattern string
		wantErr bool
	}{
		{"Yogi Babu", false},
		{"Chai Point", false},
		{"zomato.order@icici", false},
		{"", true},
		{"   ", true},
		{"Rs 500 debited", true},
		{"Avl Bal", true},
		{"Ref No 1234", true},
		{"INR payment", true},
		{"paid 45.50 at store", true},
		{strings.Repeat("a", 51), true},
		{strings.Repeat("a", 50), false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			err := ValidateRulePattern(tt.pattern)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRulePattern)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMatchTypeFor(t *testing.T) {
	assert.Equal(t, model.MatchExact, MatchTypeFor("ola"))
	assert.Equal(t, model.MatchContains, MatchTypeFor("yogi babu"))
}

func TestRuleStore_UpsertListDelete(t *testing.T) {
	ctx := context.Background()
	store := NewRuleStore(storage.NewMemoryStorage(), nil)
	store.now = func() time.Time { return time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC) }

	rules, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	created, err := store.Upsert(ctx, "  Yogi   BABU ", "food", model.MatchContains)
	require.NoError(t, err)
	assert.Equal(t, "yogi babu", created.Pattern)
	assert.NotEmpty(t, created.ID)

	store.now = func() time.Time { return time.Date(2024, 1, 13, 9, 0, 0, 0, time.UTC) }
	updated, err := store.Upsert(ctx, "yogi babu", "dining", model.MatchContains)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID, "re-ruling a pattern updates in place")
	assert.Equal(t, "dining", updated.Category)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	_, err = store.Upsert(ctx, "ola", "transport", model.MatchExact)
	require.NoError(t, err)

	rules, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "yogi babu", rules[0].Pattern)

	require.NoError(t, store.Delete(ctx, created.ID))
	require.NoError(t, store.Delete(ctx, "OLA"))
	err = store.Delete(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	rules, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRuleStore_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := NewRuleStore(storage.NewMemoryStorage(), nil)

	_, err := store.Upsert(ctx, "Rs 45.00 debited", "food", model.MatchContains)
	assert.ErrorIs(t, err, ErrInvalidRulePattern)

	_, err = store.Upsert(ctx, "swiggy", " ", model.MatchContains)
	assert.Error(t, err)

	_, err = store.Upsert(ctx, "swiggy", "food", "regex")
	assert.ErrorIs(t, err, ErrInvalidRulePattern)
}

func TestRuleStore_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStorage()
	require.NoError(t, kv.Set(ctx, RulesKey, []byte("{not json")))

	store := NewRuleStore(kv, nil)
	_, err := store.List(ctx)
	assert.ErrorIs(t, err, common.ErrDatabaseCorrupted)
}

func TestRuleStore_StorageFailure(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStorage()
	kv.FailWith = errors.New("disk full")

	store := NewRuleStore(kv, nil)
	_, err := store.List(ctx)
	assert.Error(t, err)
	_, err = store.Upsert(ctx, "swiggy", "food", model.MatchContains)
	assert.Error(t, err)
}
