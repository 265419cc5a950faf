// Package sqlite is the durable memory backend built on the pure Go SQLite
// driver. Search is keyword based: candidates are selected with LIKE against a
// Go-lowercased copy of the content and ranked by memory.KeywordScore.
// SQLite's own lower() and LIKE only fold ASCII.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

// InMemory opens a private in-memory database.
const InMemory = ":memory:"

const defaultSearchLimit = 10

const schema = `
	CREATE TABLE IF NOT EXISTS memories (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		content TEXT NOT NULL,
		content_lc TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		stored_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_stored_at ON memories(stored_at DESC);
`

// Store persists records in a single table.
type Store struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the database at path. Use InMemory for tests.
func Open(path string, logger *zerolog.Logger) (*Store, error) {
	if path != InMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	// One connection: an in-memory database is per-connection, and SQLite
	// serializes writers anyway.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize memory schema: %w", err)
	}
	if err := migrateFoldedContent(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate memory schema: %w", err)
	}

	l := telemetry.DefaultComponent("sqlite")
	if logger != nil {
		l = telemetry.Component(*logger, "sqlite")
	}
	l.Debug().Str("path", path).Msg("Opened memory database")

	return &Store{conn: conn, logger: l}, nil
}

// Store upserts rec.
func (s *Store) Store(ctx context.Context, rec *memory.Record) error {
	value, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	var meta []byte
	if rec.Metadata != nil {
		if meta, err = json.Marshal(rec.Metadata); err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	content := rec.Content()
	stored := rec.StoredAt
	if stored.IsZero() {
		stored = time.Now()
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO memories (key, value, content, content_lc, metadata, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			content = excluded.content,
			content_lc = excluded.content_lc,
			metadata = excluded.metadata,
			stored_at = excluded.stored_at
	`, rec.Key, string(value), content, strings.ToLower(content), nullString(meta), stored.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}
	return nil
}

// Retrieve returns the record under key.
func (s *Store) Retrieve(ctx context.Context, key string) (*memory.Record, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT key, value, metadata, stored_at FROM memories WHERE key = ?`, key)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve memory: %w", err)
	}
	return rec, nil
}

// Search matches rows containing any query word.
func (s *Store) Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	words := memory.Tokenize(query)
	if len(words) == 0 {
		return nil, nil
	}

	clauses := make([]string, len(words))
	args := make([]any, len(words))
	for i, w := range words {
		clauses[i] = "content_lc LIKE ? ESCAPE '\\'"
		args[i] = "%" + escapeLike(w) + "%"
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT key, value, metadata, stored_at, content FROM memories WHERE `+strings.Join(clauses, " OR "),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}
	defer rows.Close()

	var hits []memory.SearchResult
	for rows.Next() {
		var content string
		rec, err := scanRecord(func(dest ...any) error {
			return rows.Scan(append(dest, &content)...)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		if !memory.MatchesMetadata(rec.Metadata, opts.Metadata) {
			continue
		}
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memories: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
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

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM memories WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return nil
}

// Probe pings the database.
func (s *Store) Probe(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// migrateFoldedContent adds and backfills content_lc on databases created
// before the column existed.
func migrateFoldedContent(conn *sql.DB) error {
	rows, err := conn.Query(`PRAGMA table_info(memories)`)
	if err != nil {
		return err
	}
	found := false
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		if name == "content_lc" {
			found = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if found {
		return nil
	}

	if _, err := conn.Exec(`ALTER TABLE memories ADD COLUMN content_lc TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}

	type row struct{ key, content string }
	var pending []row
	rs, err := conn.Query(`SELECT key, content FROM memories`)
	if err != nil {
		return err
	}
	for rs.Next() {
		var r row
		if err := rs.Scan(&r.key, &r.content); err != nil {
			rs.Close()
			return err
		}
		pending = append(pending, r)
	}
	rs.Close()
	if err := rs.Err(); err != nil {
		return err
	}

	for _, r := range pending {
		if _, err := conn.Exec(`UPDATE memories SET content_lc = ? WHERE key = ?`, strings.ToLower(r.content), r.key); err != nil {
			return err
		}
	}
	return nil
}

func scanRecord(scan func(dest ...any) error) (*memory.Record, error) {
	var (
		rec      memory.Record
		value    string
		meta     sql.NullString
		storedAt string
	)
	if err := scan(&rec.Key, &value, &meta, &storedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(value), &rec.Value); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	rec.StoredAt, _ = time.Parse(time.RFC3339Nano, storedAt)
	return &rec, nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
