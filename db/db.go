// Package db stores embedded transcript chunks for one chat session in a
// SQLite file and answers nearest-neighbour queries over them.
package db

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const fileName = "vectors.db"

type Chunk struct {
	ID         string
	DocumentID string
	Title      string
	URL        string
	Position   int
	Text       string
	Embedding  []float32
}

type ScoredChunk struct {
	Chunk
	Score float64
}

type Store struct {
	db   *sql.DB
	path string
}

// Open creates (or reopens) the vector store inside dir.
func Open(dir string) (*Store, error) {
	logrus.WithField("dir", dir).Debug("Initializing vector store")

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "error creating directory for vector store")
	}

	path := filepath.Join(dir, fileName)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening vector store")
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
                    id TEXT PRIMARY KEY,
                    document_id TEXT NOT NULL,
                    title TEXT NOT NULL DEFAULT '',
                    url TEXT NOT NULL DEFAULT '',
                    position INTEGER NOT NULL,
                    text TEXT NOT NULL,
                    embedding BLOB NOT NULL,
                    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error creating table")
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AddChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "error beginning transaction")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (id, document_id, title, url, position, text, embedding)
                    VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "error preparing statement")
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			tx.Rollback()
			return errors.Errorf("chunk %s has no embedding", c.ID)
		}
		_, err = stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Title, c.URL, c.Position, c.Text, encodeVector(c.Embedding))
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, "error executing statement")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "error committing transaction")
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "error querying database")
	}
	return n, nil
}

// Search returns up to k chunks ordered by cosine similarity to query,
// most similar first. Equal scores keep insertion order.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document_id, title, url, position, text, embedding FROM chunks ORDER BY rowid")
	if err != nil {
		return nil, errors.Wrap(err, "error querying database")
	}
	defer rows.Close()

	var scored []ScoredChunk
	for rows.Next() {
		var (
			c    Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Title, &c.URL, &c.Position, &c.Text, &blob); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		c.Embedding = decodeVector(blob)
		if len(c.Embedding) != len(query) {
			return nil, errors.Errorf("embedding dimension mismatch: stored %d, query %d", len(c.Embedding), len(query))
		}
		scored = append(scored, ScoredChunk{Chunk: c, Score: cosine(query, c.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
