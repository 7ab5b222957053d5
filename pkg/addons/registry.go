package addons

import (
	"log/slog"
	"sync"
	"time"

	"github.com/StricklySoft/stricklysoft-functions/pkg/auth"
	minioclient "github.com/StricklySoft/stricklysoft-functions/pkg/clients/minio"
	redisclient "github.com/StricklySoft/stricklysoft-functions/pkg/clients/redis"
	"github.com/StricklySoft/stricklysoft-functions/pkg/dao"
	"github.com/StricklySoft/stricklysoft-functions/pkg/session"
)

// Schedule describes a timer trigger: the named verb is invoked every
// Interval.
type Schedule struct {
	// Name identifies the schedule in logs and invocation records.
	Name string `json:"name" yaml:"name"`

	// Interval is the firing period. Must be positive.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Verb is the function operation the timer invokes. Defaults to
	// "timer".
	Verb string `json:"verb,omitempty" yaml:"verb,omitempty"`
}

// Registry holds the services the add-ons publish during bootstrap and
// the request lifecycle consumes afterwards. The manager freezes the
// registry when bootstrap completes; any write after that is a
// programming error and panics.
//
// A frozen Registry is immutable and safe for unsynchronized concurrent
// reads.
type Registry struct {
	mu     sync.Mutex
	frozen bool

	attributes     *AttributeChain
	issuers        []auth.Issuer
	authenticators []auth.Authenticator
	tokenParameter *auth.TokenParameter
	policy         auth.RolePermissionMap
	sessionManager session.Manager
	documents      dao.Store
	blobs          *minioclient.Client
	blobBucket     string
	redis          *redisclient.Client
	schedules      []Schedule
	values         map[string]any
}

// newRegistry creates an unfrozen registry with the given attribute
// chain installed.
func newRegistry(attributes *AttributeChain) *Registry {
	return &Registry{
		attributes: attributes,
		policy:     auth.DefaultRolePermissions(),
		values:     map[string]any{},
	}
}

// write guards a registry mutation, panicking after freeze.
func (r *Registry) write(mutate func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("addons: registry is frozen; writes are only allowed during bootstrap")
	}
	mutate()
}

// freeze marks the registry immutable.
func (r *Registry) freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether bootstrap has completed and the registry is
// immutable.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Attributes returns the attribute parser chain assembled for this
// bootstrap. Config parsers use it to resolve nested typed objects.
func (r *Registry) Attributes() *AttributeChain { return r.attributes }

// AddIssuer publishes a token issuer for the JWT authenticator.
func (r *Registry) AddIssuer(iss auth.Issuer) {
	r.write(func() { r.issuers = append(r.issuers, iss) })
}

// Issuers returns the published token issuers.
func (r *Registry) Issuers() []auth.Issuer { return r.issuers }

// AddAuthenticator publishes an authenticator for the request chain.
func (r *Registry) AddAuthenticator(a auth.Authenticator) {
	r.write(func() { r.authenticators = append(r.authenticators, a) })
}

// Authenticators returns the published authenticators in the order they
// were added, which is the add-on dependency order.
func (r *Registry) Authenticators() []auth.Authenticator { return r.authenticators }

// AuthChain builds the authentication chain from the published
// authenticators.
func (r *Registry) AuthChain(logger *slog.Logger) *auth.Chain {
	chain := auth.NewChain(logger)
	for _, a := range r.authenticators {
		chain.Add(a)
	}
	return chain
}

// SetTokenParameter publishes the request token location shared by
// authenticators that do not configure their own.
func (r *Registry) SetTokenParameter(p auth.TokenParameter) {
	r.write(func() { r.tokenParameter = &p })
}

// TokenParameter returns the shared token location, or the conventional
// bearer default when none was configured.
func (r *Registry) TokenParameter() auth.TokenParameter {
	if r.tokenParameter == nil {
		return auth.DefaultTokenParameter()
	}
	return *r.tokenParameter
}

// SetPolicy publishes the role permission policy used by the authorize
// phase.
func (r *Registry) SetPolicy(policy auth.RolePermissionMap) {
	r.write(func() { r.policy = policy })
}

// Policy returns the role permission policy. Defaults to
// [auth.DefaultRolePermissions].
func (r *Registry) Policy() auth.RolePermissionMap { return r.policy }

// SetSessionManager publishes the session manager the HTTP add-on
// resolved from the descriptor.
func (r *Registry) SetSessionManager(m session.Manager) {
	r.write(func() { r.sessionManager = m })
}

// SessionManager returns the published session manager, or nil when the
// descriptor configured none.
func (r *Registry) SessionManager() session.Manager { return r.sessionManager }

// SetDocumentStore publishes the document store backing the load and
// save phases.
func (r *Registry) SetDocumentStore(s dao.Store) {
	r.write(func() { r.documents = s })
}

// DocumentStore returns the published document store, or nil when the
// descriptor configured none.
func (r *Registry) DocumentStore() dao.Store { return r.documents }

// SetBlobClient publishes the object storage client and its default
// bucket.
func (r *Registry) SetBlobClient(c *minioclient.Client, bucket string) {
	r.write(func() {
		r.blobs = c
		r.blobBucket = bucket
	})
}

// BlobClient returns the published object storage client and its default
// bucket. The client is nil when the descriptor configured none.
func (r *Registry) BlobClient() (*minioclient.Client, string) {
	return r.blobs, r.blobBucket
}

// SetRedisClient publishes the shared Redis client.
func (r *Registry) SetRedisClient(c *redisclient.Client) {
	r.write(func() { r.redis = c })
}

// RedisClient returns the published Redis client, or nil when the
// descriptor configured none.
func (r *Registry) RedisClient() *redisclient.Client { return r.redis }

// AddSchedule publishes a timer schedule.
func (r *Registry) AddSchedule(s Schedule) {
	r.write(func() { r.schedules = append(r.schedules, s) })
}

// Schedules returns the published timer schedules.
func (r *Registry) Schedules() []Schedule { return r.schedules }

// SetValue publishes an add-on specific extension value under a key,
// conventionally "<addon>.<name>".
func (r *Registry) SetValue(key string, value any) {
	r.write(func() { r.values[key] = value })
}

// Value returns the extension value published under key.
func (r *Registry) Value(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}
