package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/xhad/ragbot/internal/models"
)

const sqliteFile = "index.db"

// SQLiteIndex persists chunks and their embeddings in a single SQLite file
// under dir. Similarity is computed in process over every stored vector.
type SQLiteIndex struct {
	dir  string
	path string
	db   *sql.DB
}

func NewSQLiteIndex(dir string) *SQLiteIndex {
	return &SQLiteIndex{dir: dir, path: filepath.Join(dir, sqliteFile)}
}

func (s *SQLiteIndex) Open(ctx context.Context, dim int) error {
	if dim <= 0 {
		return errors.New("invalid dimension")
	}
	if s.db != nil {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	// WAL lets searches proceed while a batch is being written.
	db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chunks (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			source      TEXT NOT NULL,
			page        INTEGER NOT NULL DEFAULT 0,
			chunk_index INTEGER NOT NULL,
			content     TEXT NOT NULL,
			embedding   BLOB NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating chunks table: %w", err)
	}

	var stored sql.NullInt64
	err = db.QueryRowContext(ctx, "SELECT length(embedding) FROM chunks LIMIT 1").Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		db.Close()
		return fmt.Errorf("reading stored dimension: %w", err)
	}
	if stored.Valid && int(stored.Int64/4) != dim {
		db.Close()
		return fmt.Errorf("index at %s holds %d-dimensional vectors, embedder produces %d", s.path, stored.Int64/4, dim)
	}

	s.db = db
	return nil
}

func (s *SQLiteIndex) Add(ctx context.Context, records []Record) error {
	if s.db == nil {
		return errors.New("index not open")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, page, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		c := r.Chunk
		if _, err := stmt.ExecContext(ctx, c.ID, c.Source, c.Page, c.Index, c.Content, float32SliceToBytes(r.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Search(ctx context.Context, query []float32, k int) ([]models.Chunk, error) {
	if s.db == nil {
		return nil, errors.New("index not open")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, source, page, chunk_index, content, embedding FROM chunks ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var candidates []scored
	for rows.Next() {
		var c models.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Source, &c.Page, &c.Index, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		candidates = append(candidates, scored{chunk: c, score: cosineSim(bytesToFloat32Slice(blob), query)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return topK(candidates, k), nil
}

func (s *SQLiteIndex) Reset(ctx context.Context) error {
	if s.db == nil {
		return errors.New("index not open")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) List(ctx context.Context) ([]models.Chunk, error) {
	if s.db == nil {
		return nil, errors.New("index not open")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, source, page, chunk_index, content FROM chunks ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.Source, &c.Page, &c.Index, &c.Content); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, errors.New("index not open")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Location returns the database file path.
func (s *SQLiteIndex) Location() string { return s.path }

func (s *SQLiteIndex) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
