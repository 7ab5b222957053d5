// Package session provides the session managers the HTTP add-on installs
// from declarative configuration. A session is a small string-to-string
// map resolved from a request cookie during context initialization and
// committed back during the terminate phase.
//
// # Managers
//
// Three manager variants exist, selected by the "_type" discriminant in
// the declarative HTTP section:
//
//   - CookieSessionManager: the session payload travels in the cookie
//     itself; nothing is stored server-side.
//   - MemorySessionManager: sessions live in process memory. Suitable for
//     local development and single-host deployments only.
//   - RedisSessionManager: sessions are persisted in Redis through the
//     platform Redis client, surviving host restarts and scale-out.
//
// Serialization is deliberately plain JSON; sessions carry small amounts
// of presentation state, not documents.
//
// # Concurrency
//
// A [*Session] belongs to a single invocation and is not safe for
// concurrent use. Managers are constructed once at bootstrap and are safe
// for concurrent use by all in-flight invocations.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultCookieName is the cookie the HTTP add-on uses when the
// declarative configuration does not name one.
const DefaultCookieName = "ss_session"

// DefaultTTL is the session lifetime applied when the declarative
// configuration does not set one.
const DefaultTTL = 30 * time.Minute

// Session is the per-invocation session state. It is created or resolved
// by a [Manager] during context initialization and committed during the
// terminate phase.
//
// A Session is owned by exactly one invocation and must not be shared
// across goroutines.
type Session struct {
	id     string
	values map[string]string
	isNew  bool
	dirty  bool
}

// newSession creates an empty session with a fresh identifier.
func newSession() *Session {
	return &Session{
		id:     uuid.NewString(),
		values: map[string]string{},
		isNew:  true,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// IsNew reports whether the session was created during this invocation
// rather than resolved from an existing cookie.
func (s *Session) IsNew() bool { return s.isNew }

// Dirty reports whether the session has been modified since it was
// resolved. Managers skip the store write for clean sessions.
func (s *Session) Dirty() bool { return s.dirty }

// Get returns the value stored under name, or "" when absent.
func (s *Session) Get(name string) string {
	return s.values[name]
}

// Set stores a value under name and marks the session dirty.
func (s *Session) Set(name, value string) {
	s.values[name] = value
	s.dirty = true
}

// Delete removes the value stored under name and marks the session dirty.
func (s *Session) Delete(name string) {
	if _, ok := s.values[name]; ok {
		delete(s.values, name)
		s.dirty = true
	}
}

// Values returns a copy of the session's values. Modifying the returned
// map does not affect the session.
func (s *Session) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Manager resolves and commits sessions for the HTTP add-on. The cookie
// value format is manager-specific: store-backed managers put the session
// id in the cookie, while the cookie manager encodes the whole payload.
type Manager interface {
	// CookieName returns the name of the cookie carrying the session.
	CookieName() string

	// TTL returns the session lifetime applied on commit.
	TTL() time.Duration

	// Resolve returns the session for the given cookie value. An empty
	// or unresolvable value yields a fresh session, never an error; a
	// stale cookie must not fail the request.
	Resolve(ctx context.Context, cookieValue string) (*Session, error)

	// Commit persists the session and returns the cookie value to send
	// back to the client. Clean store-backed sessions may skip the
	// store write but still return their cookie value.
	Commit(ctx context.Context, s *Session) (string, error)

	// Destroy removes the session from the backing store, if any.
	Destroy(ctx context.Context, s *Session) error
}
