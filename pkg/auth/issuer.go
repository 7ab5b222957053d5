package auth

import (
	"context"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/StricklySoft/stricklysoft-functions/pkg/auth"

// NonceSource returns the nonce expected for the given token, typically by
// looking it up in the session that initiated the sign-in flow. It is only
// consulted by issuers configured with nonce validation.
type NonceSource func(ctx context.Context, token *DecodedToken) (string, error)

// Issuer verifies a decoded token on behalf of a single token authority.
//
// Verify never returns an error: every failure along the verification path
// (issuer mismatch, key resolution, signature, audience, nonce) yields a
// negative [Verdict], with the reason logged at threat severity. The caller
// decides what an unverified token means for the request.
type Issuer interface {
	// Name returns the issuer identifier matched against the token's
	// "iss" claim.
	Name() string

	// Verify checks the token against this issuer and returns the verdict.
	Verify(ctx context.Context, token *DecodedToken) Verdict
}

// ---------------------------------------------------------------------------
// issuerCore — the verification state machine shared by all issuers
// ---------------------------------------------------------------------------

// keyResolver produces the verification key for a token together with the
// JWT signing methods acceptable for that key.
type keyResolver func(ctx context.Context, token *DecodedToken) (key any, methods []string, err error)

// issuerCore carries the configuration and verification sequence common to
// [LocalIssuer] and [OpenIDIssuer]. Verification proceeds in a fixed order:
// issuer match, key resolution, signature, audience membership, nonce.
// The first failing step produces the negative verdict.
type issuerCore struct {
	name          string
	audiences     []string
	assignments   RoleSet
	validateNonce bool
	nonceSource   NonceSource
	logger        *slog.Logger
	tracer        trace.Tracer
}

func newIssuerCore(name string, audiences, assignments []string, validateNonce bool, nonceSource NonceSource, logger *slog.Logger) issuerCore {
	if logger == nil {
		logger = slog.Default()
	}
	auds := make([]string, len(audiences))
	copy(auds, audiences)
	return issuerCore{
		name:          name,
		audiences:     auds,
		assignments:   NewRoleSet(assignments...),
		validateNonce: validateNonce,
		nonceSource:   nonceSource,
		logger:        logger,
		tracer:        otel.Tracer(tracerName),
	}
}

// verify runs the verification sequence with keys supplied by resolve.
func (c *issuerCore) verify(ctx context.Context, token *DecodedToken, resolve keyResolver) Verdict {
	ctx, span := c.tracer.Start(ctx, "auth.Issuer.Verify",
		trace.WithAttributes(attribute.String("auth.issuer", c.name)))
	defer span.End()

	if token == nil || token.Issuer() != c.name {
		// Not our token; stay silent so another issuer in the chain can
		// claim it.
		span.SetAttributes(attribute.Bool("auth.issuer_match", false))
		return Verdict{}
	}
	span.SetAttributes(attribute.Bool("auth.issuer_match", true))

	key, methods, err := resolve(ctx, token)
	if err != nil {
		c.threat(ctx, "key resolution failed", err)
		return Verdict{}
	}

	if err := verifySignature(token.Raw(), key, methods); err != nil {
		c.threat(ctx, "signature verification failed", err)
		return Verdict{}
	}

	if len(c.audiences) > 0 && !audienceMatch(token.Audiences(), c.audiences) {
		c.threat(ctx, "audience mismatch", nil)
		return Verdict{}
	}

	if c.validateNonce {
		if c.nonceSource == nil {
			c.logger.WarnContext(ctx, "auth: nonce validation enabled without a nonce source",
				slog.String("issuer", c.name))
		} else {
			expected, err := c.nonceSource(ctx, token)
			if err != nil {
				c.threat(ctx, "nonce lookup failed", err)
				return Verdict{}
			}
			if expected == "" || expected != token.Nonce() {
				c.threat(ctx, "nonce mismatch", nil)
				return Verdict{}
			}
		}
	}

	span.SetAttributes(attribute.Bool("auth.verified", true))
	return Verdict{Verified: true, Assignments: c.assignments.Clone()}
}

// threat logs a verification failure at warning level with the threat
// marker set, so security tooling can filter these events.
func (c *issuerCore) threat(ctx context.Context, msg string, err error) {
	attrs := []any{
		slog.String("issuer", c.name),
		slog.Bool("threat", true),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	c.logger.WarnContext(ctx, "auth: "+msg, attrs...)
}

// verifySignature cryptographically verifies the token signature against the
// given key, restricted to the given signing methods. Claim validation is
// deliberately disabled: expiry and audience are enforced elsewhere with
// the platform's own semantics.
func verifySignature(raw string, key any, methods []string) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.Parse(raw, func(*jwt.Token) (any, error) {
		return key, nil
	})
	return err
}

// audienceMatch reports whether any of the token's audiences appears in the
// issuer's accepted audience list.
func audienceMatch(tokenAudiences, accepted []string) bool {
	for _, ta := range tokenAudiences {
		for _, a := range accepted {
			if ta == a {
				return true
			}
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// LocalIssuer — shared-secret (HMAC) token verification
// ---------------------------------------------------------------------------

// localSigningMethods restricts local issuer verification to HMAC
// algorithms, preventing algorithm confusion attacks where an asymmetric
// token is presented against the shared secret.
var localSigningMethods = []string{"HS256", "HS384", "HS512"}

// LocalIssuerConfig holds the configuration for [LocalIssuer].
type LocalIssuerConfig struct {
	// Name is the issuer identifier matched against the token "iss" claim.
	// Required.
	Name string `json:"name" yaml:"name"`

	// Key is the shared HMAC secret used to verify token signatures.
	// Required. Keys shorter than 32 bytes are accepted but logged at
	// warn severity.
	Key Secret `json:"-" yaml:"-"`

	// Audiences is the list of accepted "aud" values. When empty, the
	// audience claim is not checked.
	Audiences []string `json:"audiences,omitempty" yaml:"audiences,omitempty"`

	// Assignments is the set of role names granted when verification
	// succeeds.
	Assignments []string `json:"assignments,omitempty" yaml:"assignments,omitempty"`

	// ValidateNonce enables nonce checking via NonceSource.
	ValidateNonce bool `json:"validate_nonce,omitempty" yaml:"validate_nonce,omitempty"`

	// NonceSource supplies the expected nonce per token. Required when
	// ValidateNonce is true.
	NonceSource NonceSource `json:"-" yaml:"-"`

	// Logger receives threat-severity verification failures. Defaults to
	// slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// Validate checks the configuration and returns a *[sserr.Error] with code
// [sserr.CodeValidation] if any field is invalid.
func (c *LocalIssuerConfig) Validate() *sserr.Error {
	if c.Name == "" {
		return sserr.New(sserr.CodeValidation, "auth: issuer name must not be empty")
	}
	if c.Key.Value() == "" {
		return sserr.New(sserr.CodeValidation, "auth: issuer signing key must not be empty")
	}
	return nil
}

// weakKeyThreshold is the key length below which [NewLocalIssuer] warns
// about a weak shared secret.
const weakKeyThreshold = 32

// LocalIssuer verifies tokens signed with a shared HMAC secret, typically
// issued by the platform itself for service-to-service calls or by a
// trusted first-party sign-in service.
//
// LocalIssuer is safe for concurrent use by multiple goroutines.
type LocalIssuer struct {
	core issuerCore
	key  Secret
}

// Compile-time assertion that LocalIssuer implements Issuer.
var _ Issuer = (*LocalIssuer)(nil)

// NewLocalIssuer creates a LocalIssuer from the given configuration. The
// configuration is validated before use.
func NewLocalIssuer(cfg LocalIssuerConfig) (*LocalIssuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	iss := &LocalIssuer{
		core: newIssuerCore(cfg.Name, cfg.Audiences, cfg.Assignments, cfg.ValidateNonce, cfg.NonceSource, cfg.Logger),
		key:  cfg.Key,
	}
	if len(cfg.Key.Value()) < weakKeyThreshold {
		iss.core.logger.Warn("auth: issuer signing key is shorter than 32 bytes",
			slog.String("issuer", cfg.Name))
	}
	return iss, nil
}

// Name returns the issuer identifier.
func (i *LocalIssuer) Name() string { return i.core.name }

// Verify checks the token signature against the shared secret and applies
// the issuer's audience and nonce rules.
func (i *LocalIssuer) Verify(ctx context.Context, token *DecodedToken) Verdict {
	return i.core.verify(ctx, token, i.resolveKey)
}

func (i *LocalIssuer) resolveKey(context.Context, *DecodedToken) (any, []string, error) {
	return []byte(i.key.Value()), localSigningMethods, nil
}
