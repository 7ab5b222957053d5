package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// CookieManagerConfig holds the configuration for [CookieManager].
type CookieManagerConfig struct {
	// Cookie is the name of the session cookie. Defaults to
	// [DefaultCookieName].
	Cookie string `json:"cookie,omitempty" yaml:"cookie,omitempty"`

	// TTL is the session lifetime. Defaults to [DefaultTTL].
	TTL time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// cookiePayload is the serialized form of a cookie-carried session.
type cookiePayload struct {
	ID     string            `json:"id"`
	Values map[string]string `json:"values,omitempty"`
}

// CookieManager carries the whole session payload in the cookie value as
// base64-encoded JSON. Nothing is stored server-side, which suits
// anonymous presentation state; do not put anything sensitive or large in
// a cookie-carried session.
//
// CookieManager is stateless and safe for concurrent use by multiple
// goroutines.
type CookieManager struct {
	cookie string
	ttl    time.Duration
}

// Compile-time assertion that CookieManager implements Manager.
var _ Manager = (*CookieManager)(nil)

// NewCookieManager creates a CookieManager from the given configuration.
func NewCookieManager(cfg CookieManagerConfig) *CookieManager {
	cookie := cfg.Cookie
	if cookie == "" {
		cookie = DefaultCookieName
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CookieManager{cookie: cookie, ttl: ttl}
}

// CookieName returns the name of the session cookie.
func (m *CookieManager) CookieName() string { return m.cookie }

// TTL returns the session lifetime.
func (m *CookieManager) TTL() time.Duration { return m.ttl }

// Resolve decodes the session payload from the cookie value. An empty or
// undecodable value yields a fresh session; a tampered cookie must not
// fail the request.
func (m *CookieManager) Resolve(_ context.Context, cookieValue string) (*Session, error) {
	if cookieValue == "" {
		return newSession(), nil
	}

	data, err := base64.RawURLEncoding.DecodeString(cookieValue)
	if err != nil {
		return newSession(), nil
	}
	var payload cookiePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ID == "" {
		return newSession(), nil
	}

	values := payload.Values
	if values == nil {
		values = map[string]string{}
	}
	return &Session{id: payload.ID, values: values}, nil
}

// Commit serializes the session into the cookie value.
func (m *CookieManager) Commit(_ context.Context, s *Session) (string, error) {
	if s == nil {
		return "", sserr.New(sserr.CodeInternal, "session: cannot commit nil session")
	}
	data, err := json.Marshal(cookiePayload{ID: s.id, Values: s.values})
	if err != nil {
		return "", sserr.Wrap(err, sserr.CodeInternal, "session: failed to encode cookie payload")
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Destroy is a no-op: cookie-carried sessions have no server-side state.
// The HTTP layer clears the cookie itself.
func (m *CookieManager) Destroy(context.Context, *Session) error {
	return nil
}
