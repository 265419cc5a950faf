// Package chromem is the vector-search memory backend built on chromem-go,
// a pure Go embedded vector database.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

const (
	// DefaultCollection holds every record.
	DefaultCollection = "memories"

	defaultSearchLimit = 10

	// Reserved metadata keys.
	metaValue    = "_value"
	metaStoredAt = "_stored_at"
	metaUser     = "_meta"
)

// Config configures the store.
type Config struct {
	// PersistDir enables on-disk persistence. Empty keeps everything in memory.
	PersistDir string

	Collection string
	Logger     *zerolog.Logger
}

// Store wraps a chromem collection.
type Store struct {
	db       *chromem.DB
	col      *chromem.Collection
	embedder memory.Embedder
	logger   zerolog.Logger

	// mu serializes count-then-query so nResults never exceeds the
	// collection size.
	mu sync.RWMutex
}

// New creates a chromem-backed store that embeds content with embedder.
func New(cfg Config, embedder memory.Embedder) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.PersistDir != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistDir, false)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	name := cfg.Collection
	if name == "" {
		name = DefaultCollection
	}

	col, err := db.GetOrCreateCollection(name, nil, chromem.EmbeddingFunc(embedder.Embed))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	logger := telemetry.DefaultComponent("chromem")
	if cfg.Logger != nil {
		logger = telemetry.Component(*cfg.Logger, "chromem")
	}

	return &Store{
		db:       db,
		col:      col,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Store saves rec, embedding its content.
func (s *Store) Store(ctx context.Context, rec *memory.Record) error {
	doc, err := toDocument(rec)
	if err != nil {
		return err
	}

	embedding, err := s.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embed record: %w", err)
	}
	doc.Embedding = embedding

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug().Str("key", rec.Key).Msg("Storing memory")
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Retrieve returns the record stored under key.
func (s *Store) Retrieve(ctx context.Context, key string) (*memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.col.GetByID(ctx, key)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return fromDocument(doc.ID, doc.Metadata)
}

// Search runs a cosine similarity query.
func (s *Store) Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// chromem-go requires nResults <= collection size.
	if n := s.col.Count(); n < limit {
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}

	results, err := s.col.QueryEmbedding(ctx, embedding, limit, metadataWhere(opts.Metadata), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]memory.SearchResult, 0, len(results))
	for _, r := range results {
		score := float64(r.Similarity)
		if score < opts.Threshold {
			continue
		}
		rec, err := fromDocument(r.ID, r.Metadata)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", r.ID).Msg("Skipping undecodable result")
			continue
		}
		hits = append(hits, memory.SearchResult{
			Key:      rec.Key,
			Content:  rec.Content(),
			Score:    score,
			Metadata: rec.Metadata,
		})
	}
	return hits, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.col.Delete(ctx, nil, nil, key); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Probe reports the collection as live. chromem runs in-process.
func (s *Store) Probe(ctx context.Context) error {
	return ctx.Err()
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	return s.col.Count()
}

// Close releases resources.
func (s *Store) Close() error {
	// chromem-go writes through on every add, nothing to flush
	return nil
}

// toDocument serializes a record into chromem's string metadata. Caller
// metadata values are flattened individually for where-filters and kept
// whole as JSON for round-tripping.
func toDocument(rec *memory.Record) (chromem.Document, error) {
	value, err := json.Marshal(rec.Value)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("marshal value: %w", err)
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("marshal metadata: %w", err)
	}

	stored := rec.StoredAt
	if stored.IsZero() {
		stored = time.Now()
	}

	metadata := map[string]string{
		metaValue:    string(value),
		metaStoredAt: stored.Format(time.RFC3339Nano),
		metaUser:     string(meta),
	}
	for k, v := range rec.Metadata {
		if strings.HasPrefix(k, "_") {
			continue
		}
		metadata[k] = memory.ContentOf(v)
	}

	return chromem.Document{
		ID:       rec.Key,
		Content:  rec.Content(),
		Metadata: metadata,
	}, nil
}

func fromDocument(id string, metadata map[string]string) (*memory.Record, error) {
	rec := &memory.Record{Key: id}

	if err := json.Unmarshal([]byte(metadata[metaValue]), &rec.Value); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	if raw := metadata[metaUser]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	rec.StoredAt, _ = time.Parse(time.RFC3339Nano, metadata[metaStoredAt])
	return rec, nil
}

func metadataWhere(filter map[string]string) map[string]string {
	if len(filter) == 0 {
		return nil
	}
	return filter
}
