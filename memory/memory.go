package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Record is a stored memory entry.
type Record struct {
	Key string `json:"key"`

	// Value is any JSON-encodable value.
	Value any `json:"value"`

	Metadata map[string]any `json:"metadata,omitempty"`
	StoredAt time.Time      `json:"storedAt"`
}

// Content returns the searchable text of the record.
func (r *Record) Content() string {
	return ContentOf(r.Value)
}

// ContentOf renders a value as searchable text: strings verbatim, anything
// else as JSON.
func ContentOf(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}

// SearchResult is one search hit.
type SearchResult struct {
	Key     string `json:"key"`
	Content string `json:"content"`

	// Score is the backend's relevance score. Backends that cannot score
	// leave it at zero.
	Score float64 `json:"score"`

	// Source names the backend that produced the hit. Set by the federation.
	Source string `json:"source"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchOptions narrows a backend search.
type SearchOptions struct {
	// Limit caps the number of hits. Zero means the backend default.
	Limit int

	// Threshold drops hits scoring below it.
	Threshold float64

	// Metadata requires an exact string match on every listed key.
	Metadata map[string]string
}

// Query is a federation-level search.
type Query struct {
	Query     string            `json:"query"`
	Limit     int               `json:"limit,omitempty"`
	Threshold float64           `json:"threshold,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Backend is implemented once per storage provider.
type Backend interface {
	// Store writes rec, replacing any record under the same key.
	Store(ctx context.Context, rec *Record) error

	// Retrieve returns the record under key, or nil with no error on a miss.
	Retrieve(ctx context.Context, key string) (*Record, error)

	// Search returns hits for query. Source is left empty.
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Probe is a cheap liveness check for the health monitor.
	Probe(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// MatchesMetadata reports whether meta carries every key/value in filter.
// Non-string metadata values are compared by their ContentOf rendering.
func MatchesMetadata(meta map[string]any, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok || ContentOf(got) != want {
			return false
		}
	}
	return true
}

// Tokenize splits text into lowercase letter/digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// KeywordScore is the fraction of distinct query words that appear in
// content. Backends without vector search rank with it.
func KeywordScore(query, content string) float64 {
	words := Tokenize(query)
	if len(words) == 0 {
		return 0
	}

	have := make(map[string]struct{})
	for _, w := range Tokenize(content) {
		have[w] = struct{}{}
	}

	seen := make(map[string]struct{}, len(words))
	matched := 0
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := have[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}
