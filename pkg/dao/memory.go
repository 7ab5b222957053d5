package dao

import (
	"context"
	"sort"
	"sync"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// MemoryStore keeps documents in process memory. Documents do not survive
// a host restart; it exists for local development and tests.
//
// MemoryStore is safe for concurrent use by multiple goroutines.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*Document
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]*Document{}}
}

// Get returns the document stored under collection and id.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	if collection == "" || id == "" {
		return nil, sserr.Validation("dao: collection and id must not be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, sserr.Newf(sserr.CodeNotFoundResource,
			"dao: document %s/%s not found", collection, id)
	}
	return cloneDocument(doc), nil
}

// Put stores the document, replacing any existing document with the same
// collection and id.
func (s *MemoryStore) Put(_ context.Context, doc *Document) error {
	if doc == nil {
		return sserr.Validation("dao: document must not be nil")
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	doc.UpdatedAt = now
	if existing, ok := s.collections[doc.Collection][doc.ID]; ok {
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.CreatedAt = now
	}

	if s.collections[doc.Collection] == nil {
		s.collections[doc.Collection] = map[string]*Document{}
	}
	s.collections[doc.Collection][doc.ID] = cloneDocument(doc)
	return nil
}

// Delete removes the document stored under collection and id.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	if collection == "" || id == "" {
		return sserr.Validation("dao: collection and id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return sserr.Newf(sserr.CodeNotFoundResource,
			"dao: document %s/%s not found", collection, id)
	}
	delete(s.collections[collection], id)
	return nil
}

// List returns up to limit documents from the collection ordered by id.
func (s *MemoryStore) List(_ context.Context, collection string, limit, offset int) ([]*Document, error) {
	if collection == "" {
		return nil, sserr.Validation("dao: collection must not be empty")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.collections[collection]))
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if len(ids) > limit {
		ids = ids[:limit]
	}

	docs := make([]*Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, cloneDocument(s.collections[collection][id]))
	}
	return docs, nil
}

// cloneDocument copies a document so callers cannot mutate stored state.
func cloneDocument(doc *Document) *Document {
	clone := *doc
	clone.Body = append([]byte(nil), doc.Body...)
	return &clone
}
