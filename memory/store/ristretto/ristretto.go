// Package ristretto is the fast, bounded memory backend built on the
// ristretto cache. Records can be evicted under pressure or expire after a
// TTL, so it serves as a hot replica rather than a primary.
package ristretto

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

const (
	DefaultMaxItems = 10000

	defaultSearchLimit = 10
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("ristretto store is closed")

// Config configures the store.
type Config struct {
	// MaxItems bounds the number of records held.
	MaxItems int64

	// TTL expires records after the given duration. Zero keeps them until
	// evicted.
	TTL time.Duration

	Logger *zerolog.Logger
}

// Store keeps records in a ristretto cache plus a key index for search,
// since the cache itself cannot be iterated.
type Store struct {
	cache  *ristretto.Cache
	ttl    time.Duration
	logger zerolog.Logger

	mu     sync.RWMutex
	keys   map[string]struct{}
	closed bool
}

// New creates the store.
func New(cfg Config) (*Store, error) {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	s := &Store{
		ttl:    cfg.TTL,
		keys:   make(map[string]struct{}),
		logger: telemetry.DefaultComponent("ristretto"),
	}
	if cfg.Logger != nil {
		s.logger = telemetry.Component(*cfg.Logger, "ristretto")
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxItems * 10,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict:            s.forget,
		OnReject:           s.forget,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

func (s *Store) forget(item *ristretto.Item) {
	rec, ok := item.Value.(*memory.Record)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.keys, rec.Key)
	s.mu.Unlock()
}

// Store caches rec. Writes are visible once Store returns.
func (s *Store) Store(ctx context.Context, rec *memory.Record) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.keys[rec.Key] = struct{}{}
	s.mu.Unlock()

	cp := *rec
	if cp.StoredAt.IsZero() {
		cp.StoredAt = time.Now()
	}

	var ok bool
	if s.ttl > 0 {
		ok = s.cache.SetWithTTL(rec.Key, &cp, 1, s.ttl)
	} else {
		ok = s.cache.Set(rec.Key, &cp, 1)
	}
	if !ok {
		s.mu.Lock()
		delete(s.keys, rec.Key)
		s.mu.Unlock()
		return fmt.Errorf("cache dropped %q", rec.Key)
	}
	s.cache.Wait()
	return nil
}

// Retrieve returns the cached record under key.
func (s *Store) Retrieve(ctx context.Context, key string) (*memory.Record, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, nil
	}
	rec := *v.(*memory.Record)
	return &rec, nil
}

// Search scans every cached record with memory.KeywordScore.
func (s *Store) Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	var (
		hits  []memory.SearchResult
		stale []string
	)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, ok := s.cache.Get(k)
		if !ok {
			stale = append(stale, k)
			continue
		}
		rec := v.(*memory.Record)
		if !memory.MatchesMetadata(rec.Metadata, opts.Metadata) {
			continue
		}
		content := rec.Content()
		score := memory.KeywordScore(query, content)
		if score == 0 || score < opts.Threshold {
			continue
		}
		hits = append(hits, memory.SearchResult{
			Key:      rec.Key,
			Content:  content,
			Score:    score,
			Metadata: rec.Metadata,
		})
	}

	if len(stale) > 0 {
		s.mu.Lock()
		for _, k := range stale {
			delete(s.keys, k)
		}
		s.mu.Unlock()
		s.logger.Debug().Int("count", len(stale)).Msg("Pruned expired keys")
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Key < hits[j].Key
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete evicts key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.cache.Del(key)
	s.cache.Wait()

	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
	return nil
}

// Probe fails once the store is closed.
func (s *Store) Probe(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	return ctx.Err()
}

// Len returns the number of indexed keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Close stops the cache's background goroutines.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.keys = make(map[string]struct{})
	s.mu.Unlock()

	s.cache.Close()
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
