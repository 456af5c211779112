// Package speakerdb persists named speaker embeddings in PostgreSQL with the
// pgvector extension, so diarization clusters can be attributed to known
// speakers across recordings.
//
// The registry is optional: the pipeline runs fully without it, and the CLI
// only connects when a DSN is configured.
package speakerdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Speaker is one registered identity.
type Speaker struct {
	ID        uuid.UUID
	Name      string
	Embedding []float32
}

// Match is a nearest-neighbour lookup result. Distance is the Euclidean
// distance between the query and the stored embedding — lower is closer.
type Match struct {
	Speaker  Speaker
	Distance float64
}

// Store is the pgvector-backed registry. All operations are safe for
// concurrent use; the pool handles connection lifecycle.
type Store struct {
	pool *pgxpool.Pool
	dims int
}

// New connects to the database at dsn, registers pgvector types on every
// connection, and ensures the schema exists. dims must match the embedding
// provider's Dimensions(); changing it later requires a manual migration.
func New(ctx context.Context, dsn string, dims int) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("speakerdb: dims %d must be positive", dims)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("speakerdb: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("speakerdb: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("speakerdb: ping: %w", err)
	}

	s := &Store{pool: pool, dims: dims}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// migrate creates the extension and table when missing.
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS speakers (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dims),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("speakerdb: migrate: %w", err)
		}
	}
	return nil
}

// Upsert registers or refreshes a named speaker's embedding and returns its ID.
func (s *Store) Upsert(ctx context.Context, name string, embedding []float32) (uuid.UUID, error) {
	if len(embedding) != s.dims {
		return uuid.Nil, fmt.Errorf("speakerdb: embedding has %d dims, want %d", len(embedding), s.dims)
	}
	id := uuid.New()
	var got uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO speakers (id, name, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (name)
		DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()
		RETURNING id`,
		id, name, pgvector.NewVector(embedding),
	).Scan(&got)
	if err != nil {
		return uuid.Nil, fmt.Errorf("speakerdb: upsert %q: %w", name, err)
	}
	return got, nil
}

// Nearest returns the k registered speakers closest to the query embedding,
// nearest first.
func (s *Store) Nearest(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("speakerdb: query has %d dims, want %d", len(embedding), s.dims)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, embedding, embedding <-> $1 AS distance
		FROM speakers
		ORDER BY distance
		LIMIT $2`,
		pgvector.NewVector(embedding), k,
	)
	if err != nil {
		return nil, fmt.Errorf("speakerdb: nearest: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var vec pgvector.Vector
		if err := rows.Scan(&m.Speaker.ID, &m.Speaker.Name, &vec, &m.Distance); err != nil {
			return nil, fmt.Errorf("speakerdb: scan: %w", err)
		}
		m.Speaker.Embedding = vec.Slice()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("speakerdb: nearest: %w", err)
	}
	return out, nil
}

// List returns all registered speakers ordered by name.
func (s *Store) List(ctx context.Context) ([]Speaker, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, embedding FROM speakers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("speakerdb: list: %w", err)
	}
	defer rows.Close()

	var out []Speaker
	for rows.Next() {
		var sp Speaker
		var vec pgvector.Vector
		if err := rows.Scan(&sp.ID, &sp.Name, &vec); err != nil {
			return nil, fmt.Errorf("speakerdb: scan: %w", err)
		}
		sp.Embedding = vec.Slice()
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("speakerdb: list: %w", err)
	}
	return out, nil
}
