package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/StricklySoft/stricklysoft-functions/pkg/clients/redis"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// redisKeyPrefix namespaces session keys in the shared Redis database.
const redisKeyPrefix = "session:"

// Store is the subset of the platform Redis client the session manager
// uses. It is satisfied by [*redis.Client] and by fakes in tests.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
}

// Compile-time assertion that the platform Redis client satisfies Store.
var _ Store = (*redis.Client)(nil)

// RedisManagerConfig holds the configuration for [RedisManager].
type RedisManagerConfig struct {
	// Cookie is the name of the session cookie. Defaults to
	// [DefaultCookieName].
	Cookie string `json:"cookie,omitempty" yaml:"cookie,omitempty"`

	// TTL is the session lifetime. Defaults to [DefaultTTL].
	TTL time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`

	// Store is the Redis client backing the sessions. Required.
	Store Store `json:"-" yaml:"-"`
}

// Validate checks the configuration and returns a *[sserr.Error] with code
// [sserr.CodeValidation] if any field is invalid.
func (c *RedisManagerConfig) Validate() *sserr.Error {
	if c.Store == nil {
		return sserr.New(sserr.CodeValidation, "session: redis manager requires a store")
	}
	return nil
}

// RedisManager persists sessions in Redis through the platform Redis
// client. Sessions survive host restarts and are visible to every host
// sharing the Redis instance, which makes this the manager for scaled-out
// deployments.
//
// RedisManager is safe for concurrent use by multiple goroutines.
type RedisManager struct {
	cookie string
	ttl    time.Duration
	store  Store
}

// Compile-time assertion that RedisManager implements Manager.
var _ Manager = (*RedisManager)(nil)

// NewRedisManager creates a RedisManager from the given configuration.
// The configuration is validated before use.
func NewRedisManager(cfg RedisManagerConfig) (*RedisManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cookie := cfg.Cookie
	if cookie == "" {
		cookie = DefaultCookieName
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisManager{cookie: cookie, ttl: ttl, store: cfg.Store}, nil
}

// CookieName returns the name of the session cookie.
func (m *RedisManager) CookieName() string { return m.cookie }

// TTL returns the session lifetime.
func (m *RedisManager) TTL() time.Duration { return m.ttl }

// Resolve loads the session payload from Redis. An empty or unknown
// cookie value yields a fresh session. Store failures are returned: an
// unreachable session store is a real fault, unlike a stale cookie.
func (m *RedisManager) Resolve(ctx context.Context, cookieValue string) (*Session, error) {
	if cookieValue == "" {
		return newSession(), nil
	}

	raw, err := m.store.Get(ctx, redisKeyPrefix+cookieValue)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return newSession(), nil
		}
		return nil, sserr.Wrap(err, sserr.CodeInternalStorage,
			"session: failed to load session from store")
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		// A corrupt payload is treated like a stale cookie.
		return newSession(), nil
	}
	if values == nil {
		values = map[string]string{}
	}
	return &Session{id: cookieValue, values: values}, nil
}

// Commit persists the session payload with the configured TTL and returns
// the session id as the cookie value. Clean existing sessions only have
// their expiry refreshed.
func (m *RedisManager) Commit(ctx context.Context, s *Session) (string, error) {
	if s == nil {
		return "", sserr.New(sserr.CodeInternal, "session: cannot commit nil session")
	}

	key := redisKeyPrefix + s.id
	if !s.isNew && !s.dirty {
		if _, err := m.store.Expire(ctx, key, m.ttl); err != nil {
			return "", sserr.Wrap(err, sserr.CodeInternalStorage,
				"session: failed to refresh session expiry")
		}
		return s.id, nil
	}

	data, err := json.Marshal(s.values)
	if err != nil {
		return "", sserr.Wrap(err, sserr.CodeInternal,
			"session: failed to encode session payload")
	}
	if err := m.store.Set(ctx, key, string(data), m.ttl); err != nil {
		return "", sserr.Wrap(err, sserr.CodeInternalStorage,
			"session: failed to store session")
	}
	return s.id, nil
}

// Destroy removes the session from Redis.
func (m *RedisManager) Destroy(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	if _, err := m.store.Del(ctx, redisKeyPrefix+s.id); err != nil {
		return sserr.Wrap(err, sserr.CodeInternalStorage,
			"session: failed to destroy session")
	}
	return nil
}
