package session

import (
	"context"
	"sync"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// MemoryManagerConfig holds the configuration for [MemoryManager].
type MemoryManagerConfig struct {
	// Cookie is the name of the session cookie. Defaults to
	// [DefaultCookieName].
	Cookie string `json:"cookie,omitempty" yaml:"cookie,omitempty"`

	// TTL is the session lifetime. Defaults to [DefaultTTL].
	TTL time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// memoryEntry is a stored session payload with its expiry deadline.
type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryManager keeps sessions in process memory. Sessions do not survive
// a host restart and are invisible to other hosts; it exists for local
// development and tests. Expired entries are dropped lazily on access.
//
// MemoryManager is safe for concurrent use by multiple goroutines.
type MemoryManager struct {
	cookie string
	ttl    time.Duration

	mu       sync.Mutex
	sessions map[string]memoryEntry

	// now is overridable in tests for deterministic expiry checks.
	now func() time.Time
}

// Compile-time assertion that MemoryManager implements Manager.
var _ Manager = (*MemoryManager)(nil)

// NewMemoryManager creates a MemoryManager from the given configuration.
func NewMemoryManager(cfg MemoryManagerConfig) *MemoryManager {
	cookie := cfg.Cookie
	if cookie == "" {
		cookie = DefaultCookieName
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryManager{
		cookie:   cookie,
		ttl:      ttl,
		sessions: map[string]memoryEntry{},
		now:      time.Now,
	}
}

// CookieName returns the name of the session cookie.
func (m *MemoryManager) CookieName() string { return m.cookie }

// TTL returns the session lifetime.
func (m *MemoryManager) TTL() time.Duration { return m.ttl }

// Resolve returns the stored session for the given cookie value, or a
// fresh session when the value is empty, unknown, or expired.
func (m *MemoryManager) Resolve(_ context.Context, cookieValue string) (*Session, error) {
	if cookieValue == "" {
		return newSession(), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[cookieValue]
	if !ok {
		return newSession(), nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.sessions, cookieValue)
		return newSession(), nil
	}

	values := make(map[string]string, len(entry.values))
	for k, v := range entry.values {
		values[k] = v
	}
	return &Session{id: cookieValue, values: values}, nil
}

// Commit stores the session payload and returns the session id as the
// cookie value. Clean existing sessions only have their expiry refreshed.
func (m *MemoryManager) Commit(_ context.Context, s *Session) (string, error) {
	if s == nil {
		return "", sserr.New(sserr.CodeInternal, "session: cannot commit nil session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt := m.now().Add(m.ttl)
	if entry, ok := m.sessions[s.id]; ok && !s.dirty {
		entry.expiresAt = expiresAt
		m.sessions[s.id] = entry
		return s.id, nil
	}

	values := make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	m.sessions[s.id] = memoryEntry{values: values, expiresAt: expiresAt}
	return s.id, nil
}

// Destroy removes the session from memory.
func (m *MemoryManager) Destroy(_ context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.id)
	return nil
}
