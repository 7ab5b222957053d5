package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// Authenticator is one link of an authentication [Chain]. Implementations
// examine the request material exposed by the [Carrier], may record claims
// on the [Subject], and return a [Verdict].
//
// Returning an error signals that the authenticator could not evaluate the
// request at all (no token present, undecodable token, expired token). The
// chain treats an error as a negative verdict and logs it at threat
// severity; errors are never propagated to the caller.
type Authenticator interface {
	// Name identifies the authenticator in logs and chain results.
	Name() string

	// Required reports whether downstream policy treats this
	// authenticator as mandatory. The chain itself does not veto the
	// merged verdict on a required failure; it logs the failure at
	// threat severity and leaves enforcement to the policy layer.
	Required() bool

	// Authenticate evaluates the request and returns a verdict.
	Authenticate(ctx context.Context, sub *Subject, c Carrier) (Verdict, error)
}

// ---------------------------------------------------------------------------
// JWTAuthenticator
// ---------------------------------------------------------------------------

// JWTAuthenticatorConfig holds the configuration for [JWTAuthenticator].
type JWTAuthenticatorConfig struct {
	// Name identifies the authenticator in logs and chain results.
	// Defaults to "jwt".
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Required marks this authenticator as mandatory for downstream
	// policy checks. A required failure is logged at threat severity;
	// the chain's union verdict is unaffected.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Parameter describes where the token is found on the request.
	// Defaults to [DefaultTokenParameter] (Authorization: Bearer).
	Parameter *TokenParameter `json:"parameter,omitempty" yaml:"parameter,omitempty"`

	// Issuers is the list of token authorities this authenticator trusts.
	// At least one issuer is required.
	Issuers []Issuer `json:"-" yaml:"-"`

	// Logger receives threat-severity verification failures. Defaults to
	// slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`

	// now is overridable in tests for deterministic expiry checks.
	now func() time.Time
}

// Validate checks the configuration and returns a *[sserr.Error] with code
// [sserr.CodeValidation] if any field is invalid.
func (c *JWTAuthenticatorConfig) Validate() *sserr.Error {
	if len(c.Issuers) == 0 {
		return sserr.New(sserr.CodeValidation, "auth: jwt authenticator requires at least one issuer")
	}
	for _, iss := range c.Issuers {
		if iss == nil {
			return sserr.New(sserr.CodeValidation, "auth: jwt authenticator issuer must not be nil")
		}
	}
	return nil
}

// JWTAuthenticator extracts a bearer token from the request, decodes it
// onto the subject, and fans the decoded token out to its issuers in
// parallel. The per-issuer verdicts are merged with boolean-OR and
// set-union, so one vouching issuer suffices.
//
// JWTAuthenticator is safe for concurrent use by multiple goroutines.
type JWTAuthenticator struct {
	name      string
	required  bool
	parameter TokenParameter
	issuers   []Issuer
	now       func() time.Time
}

// Compile-time assertion that JWTAuthenticator implements Authenticator.
var _ Authenticator = (*JWTAuthenticator)(nil)

// NewJWTAuthenticator creates a JWTAuthenticator from the given
// configuration. The configuration is validated before use.
func NewJWTAuthenticator(cfg JWTAuthenticatorConfig) (*JWTAuthenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = "jwt"
	}
	parameter := DefaultTokenParameter()
	if cfg.Parameter != nil {
		parameter = *cfg.Parameter
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	issuers := make([]Issuer, len(cfg.Issuers))
	copy(issuers, cfg.Issuers)
	return &JWTAuthenticator{
		name:      name,
		required:  cfg.Required,
		parameter: parameter,
		issuers:   issuers,
		now:       now,
	}, nil
}

// Name returns the authenticator identifier.
func (a *JWTAuthenticator) Name() string { return a.name }

// Required reports whether downstream policy treats this authenticator
// as mandatory.
func (a *JWTAuthenticator) Required() bool { return a.required }

// Authenticate decodes the request token onto the subject and merges the
// verdicts of all configured issuers. Expiry is checked exactly, with no
// leeway, before any issuer runs.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, sub *Subject, c Carrier) (Verdict, error) {
	token, err := Decode(sub, a.parameter.Extract(c))
	if err != nil {
		return Verdict{}, err
	}
	if token.Expired(a.now()) {
		return Verdict{}, sserr.New(sserr.CodeAuthenticationExpired, "auth: token has expired")
	}

	verdicts := make([]Verdict, len(a.issuers))
	var wg sync.WaitGroup
	for idx, iss := range a.issuers {
		wg.Add(1)
		go func(idx int, iss Issuer) {
			defer wg.Done()
			verdicts[idx] = iss.Verify(ctx, token)
		}(idx, iss)
	}
	wg.Wait()

	return MergeVerdicts(verdicts...), nil
}

// ---------------------------------------------------------------------------
// Chain
// ---------------------------------------------------------------------------

// Chain runs a set of authenticators against a request and merges their
// verdicts. Authenticators run concurrently; the merged verdict is the
// boolean-OR of the individual verified flags and the set-union of the
// verified authenticators' assignments. A required authenticator that
// fails to verify does not force the merged verdict negative: this layer
// only computes the union, and required semantics are enforced by the
// downstream policy check against the granted roles.
//
// Chain never returns an error from [Chain.Assert]: per-authenticator
// failures are folded into the verdict and logged at threat severity.
//
// The chain is backed by an ordered slice rather than links between the
// authenticators themselves; add-ons still extend it member by member
// through [Chain.Add] without knowing the other members.
//
// Chain is safe for concurrent use once assembled; Add must not be called
// concurrently with Assert.
type Chain struct {
	authenticators []Authenticator
	logger         *slog.Logger
	tracer         trace.Tracer
}

// NewChain creates an empty authentication chain. A nil logger defaults to
// slog.Default().
func NewChain(logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Add appends an authenticator to the chain and returns the chain for
// call chaining. Nil authenticators are ignored.
func (ch *Chain) Add(a Authenticator) *Chain {
	if a != nil {
		ch.authenticators = append(ch.authenticators, a)
	}
	return ch
}

// Len returns the number of authenticators in the chain.
func (ch *Chain) Len() int { return len(ch.authenticators) }

// chainResult carries one authenticator's outcome through the fan-in.
type chainResult struct {
	name     string
	required bool
	verdict  Verdict
	err      error
}

// Assert runs every authenticator concurrently, merges the verdicts, and
// grants the merged assignments to the subject when the merged verdict is
// positive. An empty chain yields the zero (negative) verdict.
func (ch *Chain) Assert(ctx context.Context, sub *Subject, c Carrier) Verdict {
	ctx, span := ch.tracer.Start(ctx, "auth.Chain.Assert",
		trace.WithAttributes(attribute.Int("auth.chain_length", len(ch.authenticators))))
	defer span.End()

	if len(ch.authenticators) == 0 {
		return Verdict{}
	}

	results := make([]chainResult, len(ch.authenticators))
	var wg sync.WaitGroup
	for idx, a := range ch.authenticators {
		wg.Add(1)
		go func(idx int, a Authenticator) {
			defer wg.Done()
			verdict, err := a.Authenticate(ctx, sub, c)
			results[idx] = chainResult{
				name:     a.Name(),
				required: a.Required(),
				verdict:  verdict,
				err:      err,
			}
		}(idx, a)
	}
	wg.Wait()

	merged := Verdict{Assignments: NewRoleSet()}
	for _, r := range results {
		if r.err != nil {
			ch.logger.WarnContext(ctx, "auth: authenticator failed",
				slog.String("authenticator", r.name),
				slog.Bool("threat", true),
				slog.String("error", r.err.Error()),
			)
		}
		if r.verdict.Verified {
			merged.Verified = true
			if r.verdict.Assignments != nil {
				merged.Assignments = merged.Assignments.Union(r.verdict.Assignments)
			}
		} else if r.required {
			ch.logger.WarnContext(ctx, "auth: required authenticator did not verify",
				slog.String("authenticator", r.name),
				slog.Bool("threat", true),
			)
		}
	}

	if merged.Verified {
		if err := sub.Grant(merged.Assignments.Values()...); err != nil {
			ch.logger.ErrorContext(ctx, "auth: failed to grant assignments",
				slog.String("error", err.Error()))
			merged.Verified = false
		}
	}

	span.SetAttributes(attribute.Bool("auth.verified", merged.Verified))
	return merged
}
