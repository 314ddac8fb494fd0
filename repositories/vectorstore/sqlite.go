package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

// Corpus names of the two policy indexes
const (
	CorpusFull = "full"
	CorpusQA   = "qa"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	corpus    TEXT    NOT NULL,
	id        TEXT    NOT NULL,
	position  INTEGER NOT NULL,
	text      TEXT    NOT NULL,
	metadata  TEXT    NOT NULL DEFAULT '{}',
	embedding BLOB    NOT NULL,
	PRIMARY KEY (corpus, id)
);
CREATE INDEX IF NOT EXISTS documents_corpus_position ON documents (corpus, position);
`

// EmbeddedDocument is a document together with its pre-computed embedding
type EmbeddedDocument struct {
	Document  models.Document
	Embedding []float32
}

// SQLite persists embedded corpora in a single SQLite file
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if missing) the index file at path and applies the schema
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply index schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the index file
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Save replaces corpus with docs, keeping their order
func (s *SQLite) Save(ctx context.Context, corpus string, docs []EmbeddedDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE corpus = ?`, corpus); err != nil {
		return fmt.Errorf("failed to clear corpus %s: %w", corpus, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (corpus, id, position, text, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, d := range docs {
		meta, err := json.Marshal(d.Document.Metadata)
		if err != nil {
			return fmt.Errorf("document %s: failed to encode metadata: %w", d.Document.ID, err)
		}
		if len(d.Embedding) == 0 {
			return fmt.Errorf("document %s: %w", d.Document.ID, ErrEmptyEmbedding)
		}
		if _, err := stmt.ExecContext(ctx, corpus, d.Document.ID, i, d.Document.Text, string(meta), encodeVector(d.Embedding)); err != nil {
			return fmt.Errorf("document %s: failed to insert: %w", d.Document.ID, err)
		}
	}

	return tx.Commit()
}

// Load reads corpus into a new Memory index
func (s *SQLite) Load(ctx context.Context, corpus string) (*Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, metadata, embedding
		FROM documents
		WHERE corpus = ?
		ORDER BY position
	`, corpus)
	if err != nil {
		return nil, fmt.Errorf("failed to query corpus %s: %w", corpus, err)
	}
	defer rows.Close()

	mem := NewMemory()
	for rows.Next() {
		var (
			doc  models.Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &meta, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("document %s: invalid metadata: %w", doc.ID, err)
			}
		}
		vector, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		if err := mem.Add(doc, vector); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", corpus, err)
	}

	return mem, nil
}

// Count returns the number of documents stored for corpus
func (s *SQLite) Count(ctx context.Context, corpus string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE corpus = ?`, corpus).Scan(&n)
	return n, err
}

// encodeVector stores a vector as little-endian float32s
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
