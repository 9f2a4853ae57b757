package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"mcq-queue-service/internal/domain"
)

// DefaultDocument names the row that holds the queue document.
const DefaultDocument = "default"

// DocumentStore keeps the queue document as one JSONB row of mcq_documents.
// The table is created by the migrations package.
type DocumentStore struct {
	pool *pgxpool.Pool
	name string
}

func NewDocumentStore(pool *pgxpool.Pool, name string) *DocumentStore {
	if name == "" {
		name = DefaultDocument
	}
	return &DocumentStore{pool: pool, name: name}
}

func (s *DocumentStore) Load(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM mcq_documents WHERE name=$1`, s.name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return raw, nil
}

func (s *DocumentStore) Save(ctx context.Context, data []byte) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO mcq_documents (name, data, updated_at) VALUES ($1, $2::jsonb, now())
ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		s.name, string(data))
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}
