// Package dao provides the document store the load and save lifecycle
// phases read and write. Functions address their persistent state as JSON
// documents grouped into named collections; the store hides whether those
// documents live in Postgres or in process memory.
//
// # Stores
//
// Two store variants exist, selected by the declarative storage
// configuration:
//
//   - [MemoryStore]: documents live in process memory. Suitable for local
//     development and tests only.
//   - [PostgresStore]: documents are persisted as JSONB rows through the
//     platform Postgres client.
//
// # Errors
//
// All stores return *[sserr.Error] values: a missing document carries
// [sserr.CodeNotFoundResource], invalid arguments carry
// [sserr.CodeValidation], and backend faults carry
// [sserr.CodeInternalStorage] or [sserr.CodeTimeoutDependency].
package dao

import (
	"context"
	"encoding/json"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// DefaultListLimit caps List results when the caller does not set a
// limit.
const DefaultListLimit = 100

// Document is a JSON document stored under a collection and identifier.
type Document struct {
	// Collection groups related documents, typically one collection per
	// function or entity type.
	Collection string `json:"collection"`

	// ID identifies the document within its collection.
	ID string `json:"id"`

	// Body is the document payload. It must be valid JSON.
	Body json.RawMessage `json:"body"`

	// CreatedAt is the UTC timestamp when the document was first stored.
	// Assigned by the store.
	CreatedAt time.Time `json:"created_at,omitempty"`

	// UpdatedAt is the UTC timestamp of the last write. Assigned by the
	// store.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks the document's addressing fields and payload, returning
// a *[sserr.Error] with code [sserr.CodeValidation] on the first problem.
func (d *Document) Validate() *sserr.Error {
	if d.Collection == "" {
		return sserr.Validation("dao: document collection must not be empty")
	}
	if d.ID == "" {
		return sserr.Validation("dao: document id must not be empty")
	}
	if len(d.Body) == 0 || !json.Valid(d.Body) {
		return sserr.Validation("dao: document body must be valid JSON")
	}
	return nil
}

// Unmarshal decodes the document body into dest.
func (d *Document) Unmarshal(dest any) error {
	if err := json.Unmarshal(d.Body, dest); err != nil {
		return sserr.Wrap(err, sserr.CodeValidation,
			"dao: failed to decode document body")
	}
	return nil
}

// Store is the document store surface exposed to the function lifecycle.
// Implementations are safe for concurrent use.
type Store interface {
	// Get returns the document stored under collection and id, or a
	// *[sserr.Error] with code [sserr.CodeNotFoundResource] when absent.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Put stores the document, replacing any existing document with the
	// same collection and id.
	Put(ctx context.Context, doc *Document) error

	// Delete removes the document stored under collection and id. It
	// returns a *[sserr.Error] with code [sserr.CodeNotFoundResource]
	// when no such document exists.
	Delete(ctx context.Context, collection, id string) error

	// List returns up to limit documents from the collection ordered by
	// id, skipping offset documents. A non-positive limit means
	// [DefaultListLimit].
	List(ctx context.Context, collection string, limit, offset int) ([]*Document, error)
}
