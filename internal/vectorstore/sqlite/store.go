// Package sqlite persists records in a SQLite file and answers nearest
// neighbour queries by scanning the collection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"kbrag/internal/domain"
	"kbrag/internal/metadata"
	"kbrag/internal/vectorstore"
)

// FileName is the database file created under the persist directory.
const FileName = "kb.sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS vectors (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_vectors_collection ON vectors(collection);
`

// Storage is a domain.VectorStore scoped to one collection.
type Storage struct {
	db         *sql.DB
	path       string
	collection string
}

// Open creates persistDir if needed and opens the database in it.
func Open(persistDir, collection string) (*Storage, error) {
	if err := domain.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(persistDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating persist directory: %w", err)
	}
	dbPath := filepath.Join(persistDir, FileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Storage{db: db, path: dbPath, collection: collection}, nil
}

// Path returns the database file path.
func (s *Storage) Path() string { return s.path }

func (s *Storage) Close() error { return s.db.Close() }

func (s *Storage) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE collection = ?`, s.collection); err != nil {
		return fmt.Errorf("%w: sqlite reset: %v", domain.ErrTransport, err)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: sqlite begin: %v", domain.ErrTransport, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors(collection, id, content, metadata, embedding) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("%w: sqlite prepare: %v", domain.ErrTransport, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record id must be set")
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata of %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, r.ID, r.Content, string(meta), EncodeEmbedding(r.Embedding)); err != nil {
			return fmt.Errorf("%w: sqlite insert %s: %v", domain.ErrTransport, r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: sqlite commit: %v", domain.ErrTransport, err)
	}
	return nil
}

// Nearest pushes the metadata filter into SQL and ranks the matching rows
// in process.
func (s *Storage) Nearest(ctx context.Context, query []float32, k int, filter domain.Filter) ([]domain.Candidate, error) {
	q := `SELECT id, content, metadata, embedding FROM vectors WHERE collection = ?`
	args := []any{s.collection}
	for _, t := range filter.Terms() {
		q += ` AND CAST(json_extract(metadata, ?) AS TEXT) = ?`
		args = append(args, "$."+t.Key, t.Value)
	}
	records, err := s.query(ctx, q+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, err
	}
	return vectorstore.Nearest(records, query, k, domain.Filter{})
}

func (s *Storage) All(ctx context.Context) ([]domain.Record, error) {
	return s.query(ctx, `SELECT id, content, metadata, embedding FROM vectors WHERE collection = ? ORDER BY rowid`, s.collection)
}

func (s *Storage) query(ctx context.Context, q string, args ...any) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite query: %v", domain.ErrTransport, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var (
			r    domain.Record
			meta string
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("%w: sqlite scan: %v", domain.ErrTransport, err)
		}
		r.Metadata = metadata.Metadata{}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of %s: %w", r.ID, err)
		}
		if r.Embedding, err = DecodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: sqlite rows: %v", domain.ErrTransport, err)
	}
	return out, nil
}

// EncodeEmbedding packs vec as little-endian float32 values.
func EncodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding reverses EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

var _ domain.VectorStore = (*Storage)(nil)
