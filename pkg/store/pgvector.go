package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/ragbot/internal/models"
)

type PgvectorConfig struct {
	ConnString string
	TableName  string
	BatchSize  int
}

// PgvectorIndex stores chunks in a Postgres table with a pgvector column and
// lets the database rank them by cosine distance.
type PgvectorIndex struct {
	config PgvectorConfig
	table  string
	pool   *pgxpool.Pool
}

func NewPgvectorIndex(config PgvectorConfig) *PgvectorIndex {
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	return &PgvectorIndex{
		config: config,
		table:  pgx.Identifier{config.TableName}.Sanitize(),
	}
}

func (p *PgvectorIndex) Open(ctx context.Context, dim int) error {
	if dim <= 0 {
		return errors.New("invalid dimension")
	}
	if p.pool != nil {
		return nil
	}

	pool, err := pgxpool.New(ctx, p.config.ConnString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := p.initialize(ctx, pool, dim); err != nil {
		pool.Close()
		return err
	}

	p.pool = pool
	return nil
}

func (p *PgvectorIndex) initialize(ctx context.Context, pool *pgxpool.Pool, dim int) error {
	// Enable pgvector extension
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			page INTEGER NOT NULL DEFAULT 0,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, p.table, dim)

	if _, err := pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indexName := pgx.Identifier{p.config.TableName + "_embedding_idx"}.Sanitize()
	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING hnsw (embedding vector_cosine_ops)`,
		indexName, p.table)

	if _, err := pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (p *PgvectorIndex) Add(ctx context.Context, records []Record) error {
	if p.pool == nil {
		return errors.New("index not open")
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, page, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		p.table)

	// Insert records in batches
	for start := 0; start < len(records); start += p.config.BatchSize {
		end := min(start+p.config.BatchSize, len(records))

		batch := &pgx.Batch{}
		for _, r := range records[start:end] {
			c := r.Chunk
			batch.Queue(stmt,
				c.ID,
				sanitizeUTF8(c.Source),
				c.Page,
				c.Index,
				sanitizeUTF8(c.Content),
				pgvector.NewVector(r.Embedding),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *PgvectorIndex) Search(ctx context.Context, query []float32, k int) ([]models.Chunk, error) {
	if p.pool == nil {
		return nil, errors.New("index not open")
	}

	sql := fmt.Sprintf(`
		SELECT id, source, page, chunk_index, content
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		p.table)

	rows, err := p.pool.Query(ctx, sql, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	return scanChunks(rows)
}

// Reset truncates the table. The schema and vector index stay in place.
func (p *PgvectorIndex) Reset(ctx context.Context) error {
	if p.pool == nil {
		return errors.New("index not open")
	}
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", p.table)); err != nil {
		return fmt.Errorf("failed to truncate table: %w", err)
	}
	return nil
}

func (p *PgvectorIndex) List(ctx context.Context) ([]models.Chunk, error) {
	if p.pool == nil {
		return nil, errors.New("index not open")
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(
		"SELECT id, source, page, chunk_index, content FROM %s ORDER BY seq", p.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return scanChunks(rows)
}

func (p *PgvectorIndex) Count(ctx context.Context) (int, error) {
	if p.pool == nil {
		return 0, errors.New("index not open")
	}
	var n int
	if err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", p.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Location returns the table name.
func (p *PgvectorIndex) Location() string { return p.config.TableName }

func (p *PgvectorIndex) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

func scanChunks(rows pgx.Rows) ([]models.Chunk, error) {
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.Source, &c.Page, &c.Index, &c.Content); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// sanitizeUTF8 drops invalid bytes and NULs, both of which Postgres rejects
// in TEXT columns. PDF extraction produces either now and then.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, 0) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == 0 {
			continue
		}
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
