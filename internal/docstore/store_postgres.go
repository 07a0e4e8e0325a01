package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nutridash/pkg/platform/sentinel"
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        BIGSERIAL   NOT NULL,
	collection TEXT        NOT NULL,
	id         UUID        NOT NULL,
	fields     JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_seq_idx ON documents (collection, seq);
`

// PostgresStore persists every collection in one JSONB documents table.
// Insertion order is the BIGSERIAL seq column.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgres constructs a PostgreSQL-backed document store.
func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, documentsSchema); err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

type documentRow struct {
	ID     string `db:"id"`
	Fields []byte `db:"fields"`
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Document, error) {
	var rows []documentRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id::text AS id, fields FROM documents WHERE collection = $1 ORDER BY seq`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w: %w", collection, sentinel.ErrUnavailable, err)
	}
	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		var fields Fields
		if err := json.Unmarshal(row.Fields, &fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w: %w", collection, row.ID, sentinel.ErrUnavailable, err)
		}
		out = append(out, Document{ID: row.ID, Fields: fields})
	}
	return out, nil
}

func (s *PostgresStore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3)`,
		collection, id, body)
	if err != nil {
		return "", fmt.Errorf("create in %s: %w: %w", collection, sentinel.ErrUnavailable, err)
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET fields = $3, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, id, body)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w: %w", collection, id, sentinel.ErrUnavailable, err)
	}
	return requireAffected(res, "update", collection, id)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w: %w", collection, id, sentinel.ErrUnavailable, err)
	}
	return requireAffected(res, "delete", collection, id)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireAffected(res rowsAffecter, op, collection, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s/%s: %w: %w", op, collection, id, sentinel.ErrUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s/%s: %w", op, collection, id, sentinel.ErrNotFound)
	}
	return nil
}
