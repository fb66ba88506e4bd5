package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/model"
	"github.com/Veraticus/spice-inbox/internal/service"
)

// CacheKey is the key-value entry holding the fingerprint cache.
const CacheKey = "dedup_cache"

const cacheVersion = 1

// Defaults for Options.
const (
	DefaultTTL     = 10 * time.Minute
	DefaultSoftCap = 100
)

// Options configures a Store.
type Options struct {
	Logger  *slog.Logger
	Now     func() time.Time
	TTL     time.Duration
	SoftCap int
}

type cacheDocument struct {
	Entries []model.FingerprintEntry `json:"entries"`
	Version int                      `json:"version"`
}

// Store is a time-bounded cache of processed fingerprints, persisted as one
// document in a key-value store. Storage failures degrade to an in-memory
// cache: an occasional duplicate is preferred over a lost transaction.
type Store struct {
	kv      service.KeyValueStore
	logger  *slog.Logger
	now     func() time.Time
	entries map[model.Fingerprint]model.FingerprintEntry
	ttl     time.Duration
	softCap int
	mu      sync.Mutex
	loaded  bool
}

// NewStore creates a fingerprint store backed by kv.
func NewStore(kv service.KeyValueStore, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SoftCap <= 0 {
		opts.SoftCap = DefaultSoftCap
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		kv:      kv,
		logger:  common.OrDefault(opts.Logger),
		now:     opts.Now,
		ttl:     opts.TTL,
		softCap: opts.SoftCap,
		entries: make(map[model.Fingerprint]model.FingerprintEntry),
	}
}

// IsDuplicate reports whether fp was already processed within the TTL.
func (s *Store) IsDuplicate(ctx context.Context, fp model.Fingerprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoaded(ctx)
	now := s.now()
	s.pruneLocked(now)

	_, ok := s.entries[fp]
	return ok
}

// MarkProcessed records the first sighting of fp. It reports true when this
// call recorded it and false when fp was already present, in memory or in the
// persisted cache written by another process. A persistence error is returned
// after the in-memory cache has been updated.
func (s *Store) MarkProcessed(ctx context.Context, fp model.Fingerprint, source model.Channel) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoaded(ctx)
	now := s.now()

	if e, ok := s.entries[fp]; ok && !e.Expired(now, s.ttl) {
		return false, nil
	}

	entry := model.FingerprintEntry{
		FirstSeenAt: now,
		Fingerprint: fp,
		Source:      source,
	}
	s.entries[fp] = entry
	if len(s.entries) > s.softCap {
		s.pruneLocked(now)
	}

	first := true
	err := s.kv.Update(ctx, CacheKey, func(current []byte) ([]byte, error) {
		persisted := s.decode(current)
		for _, e := range persisted {
			if e.Expired(now, s.ttl) {
				continue
			}
			if e.Fingerprint == fp {
				first = false
			}
			if _, ok := s.entries[e.Fingerprint]; !ok || e.Fingerprint == fp {
				s.entries[e.Fingerprint] = e
			}
		}
		s.pruneLocked(now)
		return s.encodeLocked()
	})
	if err != nil {
		return first, fmt.Errorf("failed to persist fingerprint cache: %w", err)
	}

	if !first {
		s.logger.Debug("Fingerprint already recorded by another writer", "fingerprint", fp)
	}
	return first, nil
}

// Len returns the number of cached fingerprints.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ensureLoaded reads the persisted cache once per Store.
func (s *Store) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := s.kv.Get(ctx, CacheKey)
	if err != nil {
		s.logger.Warn("Failed to load fingerprint cache, starting empty", "error", err)
		return
	}
	for _, e := range s.decode(data) {
		s.entries[e.Fingerprint] = e
	}
	s.pruneLocked(s.now())
}

func (s *Store) decode(data []byte) []model.FingerprintEntry {
	if len(data) == 0 {
		return nil
	}
	var doc cacheDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("Discarding unreadable fingerprint cache", "error", err)
		return nil
	}
	if doc.Version != cacheVersion {
		s.logger.Warn("Discarding fingerprint cache with unknown version", "version", doc.Version)
		return nil
	}
	return doc.Entries
}

func (s *Store) encodeLocked() ([]byte, error) {
	doc := cacheDocument{
		Version: cacheVersion,
		Entries: make([]model.FingerprintEntry, 0, len(s.entries)),
	}
	for _, e := range s.entries {
		doc.Entries = append(doc.Entries, e)
	}
	sort.Slice(doc.Entries, func(i, j int) bool {
		a, b := doc.Entries[i], doc.Entries[j]
		if !a.FirstSeenAt.Equal(b.FirstSeenAt) {
			return a.FirstSeenAt.Before(b.FirstSeenAt)
		}
		return a.Fingerprint < b.Fingerprint
	})
	return json.Marshal(doc)
}

func (s *Store) pruneLocked(now time.Time) {
	for fp, e := range s.entries {
		if e.Expired(now, s.ttl) {
			delete(s.entries, fp)
		}
	}
}
