package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/StricklySoft/stricklysoft-functions/pkg/clients/postgres"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// DefaultTable is the table documents are stored in when the
// configuration does not name one.
const DefaultTable = "documents"

// PostgresStore persists documents as JSONB rows through the platform
// Postgres client. Each row holds the collection, the id, the body, and
// the bookkeeping timestamps; writes are upserts keyed on (collection,
// id).
//
// PostgresStore is safe for concurrent use by multiple goroutines.
type PostgresStore struct {
	client *postgres.Client
	table  string
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore over the given client. An
// empty table name means [DefaultTable]. The table is not created; call
// [PostgresStore.EnsureSchema] during bootstrap.
func NewPostgresStore(client *postgres.Client, table string) (*PostgresStore, error) {
	if client == nil {
		return nil, sserr.Validation("dao: postgres store requires a client")
	}
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{client: client, table: table}, nil
}

// EnsureSchema creates the documents table if it does not exist. It is
// idempotent and safe to call on every cold start.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (collection, id)
	)`, s.table)
	if _, err := s.client.Exec(ctx, stmt); err != nil {
		return sserr.Wrap(err, sserr.CodeInternalStorage,
			"dao: failed to ensure document schema")
	}
	return nil
}

// Get returns the document stored under collection and id.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if collection == "" || id == "" {
		return nil, sserr.Validation("dao: collection and id must not be empty")
	}

	stmt := fmt.Sprintf(
		`SELECT body, created_at, updated_at FROM %s WHERE collection = $1 AND id = $2`,
		s.table)

	doc := &Document{Collection: collection, ID: id}
	row := s.client.QueryRow(ctx, stmt, collection, id)
	if err := row.Scan(&doc.Body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sserr.Newf(sserr.CodeNotFoundResource,
				"dao: document %s/%s not found", collection, id)
		}
		return nil, sserr.Wrap(err, sserr.CodeInternalStorage,
			"dao: failed to load document")
	}
	return doc, nil
}

// Put stores the document, replacing any existing document with the same
// collection and id. The store assigns UpdatedAt on every write and
// CreatedAt on the first.
func (s *PostgresStore) Put(ctx context.Context, doc *Document) error {
	if doc == nil {
		return sserr.Validation("dao: document must not be nil")
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	stmt := fmt.Sprintf(
		`INSERT INTO %s (collection, id, body, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		s.table)

	if _, err := s.client.Exec(ctx, stmt, doc.Collection, doc.ID, doc.Body, now); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalStorage,
			"dao: failed to store document %s/%s", doc.Collection, doc.ID)
	}
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return nil
}

// Delete removes the document stored under collection and id.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if collection == "" || id == "" {
		return sserr.Validation("dao: collection and id must not be empty")
	}

	stmt := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND id = $2`, s.table)
	tag, err := s.client.Exec(ctx, stmt, collection, id)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeInternalStorage,
			"dao: failed to delete document")
	}
	if tag.RowsAffected() == 0 {
		return sserr.Newf(sserr.CodeNotFoundResource,
			"dao: document %s/%s not found", collection, id)
	}
	return nil
}

// List returns up to limit documents from the collection ordered by id.
func (s *PostgresStore) List(ctx context.Context, collection string, limit, offset int) ([]*Document, error) {
	if collection == "" {
		return nil, sserr.Validation("dao: collection must not be empty")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	stmt := fmt.Sprintf(
		`SELECT id, body, created_at, updated_at FROM %s
		 WHERE collection = $1 ORDER BY id LIMIT $2 OFFSET $3`,
		s.table)

	rows, err := s.client.Query(ctx, stmt, collection, limit, offset)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalStorage,
			"dao: failed to list documents")
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc := &Document{Collection: collection}
		if err := rows.Scan(&doc.ID, &doc.Body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, sserr.Wrap(err, sserr.CodeInternalStorage,
				"dao: failed to scan document row")
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalStorage,
			"dao: failed to read document rows")
	}
	return docs, nil
}
