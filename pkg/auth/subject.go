// Package auth implements the authentication and authorization layer of the
// StricklySoft Functions platform: the per-request [Subject], JWT decoding,
// issuer verification (shared-secret HMAC and OpenID Connect), HMAC request
// signing, and role-based authorization policy.
//
// Authentication is organized as a chain of [Authenticator] implementations
// that each produce a [Verdict]. Verdicts are merged with boolean-OR on the
// verified flag and set-union on the role assignments, so a request is
// authenticated when at least one authenticator vouches for it. Verification
// failures inside the chain are never raised to the caller; they yield a
// negative verdict and a threat-severity log entry, and the function host
// decides downstream whether an unauthenticated request may proceed.
package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// ---------------------------------------------------------------------------
// Reserved claim keys
// ---------------------------------------------------------------------------

// Reserved claim keys under which [Decode] stores token material that is not
// part of the JWT payload itself. The leading underscore keeps them out of
// the namespace used by standard and custom payload claims.
const (
	// ClaimRawToken holds the original, unmodified token string.
	ClaimRawToken = "_token"

	// ClaimHeader holds the decoded JOSE header object (map[string]any).
	ClaimHeader = "_header"

	// ClaimSignature holds the base64url-encoded signature segment.
	ClaimSignature = "_signature"

	// ClaimExpires holds the token expiry normalized to a time.Time.
	// Absent when the token carries no "exp" claim.
	ClaimExpires = "_expires"

	// ClaimIssued holds the token issued-at normalized to a time.Time.
	// Absent when the token carries no "iat" claim.
	ClaimIssued = "_issued"
)

// Well-known JWT payload claim names used throughout the package.
const (
	claimIssuer   = "iss"
	claimAudience = "aud"
	claimSubject  = "sub"
	claimNonce    = "nonce"
	claimExpiry   = "exp"
	claimIssuedAt = "iat"
)

// maxTokenSize is the maximum accepted size for a JWT token string (8 KB).
// Tokens larger than this are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// ---------------------------------------------------------------------------
// Subject — the per-request security principal
// ---------------------------------------------------------------------------

// Subject is the security principal of a single function invocation. It
// accumulates claims and role assignments during the authentication phase
// and is sealed by the host before control reaches the function handler,
// after which all mutation attempts fail.
//
// A Subject is created per request and must not be shared across requests.
// It is safe for concurrent use by the authenticators of a [Chain].
type Subject struct {
	mu     sync.RWMutex
	id     string
	claims map[string]any
	roles  RoleSet
	sealed bool
}

// NewSubject creates an empty, unsealed Subject with a generated unique ID.
func NewSubject() *Subject {
	return &Subject{
		id:     uuid.NewString(),
		claims: make(map[string]any),
		roles:  NewRoleSet(),
	}
}

// ID returns the unique identifier assigned to this subject at creation.
func (s *Subject) ID() string { return s.id }

// SetClaim records a single claim on the subject. Returns an error with code
// [sserr.CodeInternal] when the subject has already been sealed.
func (s *Subject) SetClaim(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return sserr.New(sserr.CodeInternal, "auth: subject is sealed")
	}
	s.claims[name] = value
	return nil
}

// Claim returns the named claim and whether it is present.
func (s *Subject) Claim(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.claims[name]
	return v, ok
}

// Claims returns a defensive copy of all claims on the subject.
func (s *Subject) Claims() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.claims))
	for k, v := range s.claims {
		out[k] = v
	}
	return out
}

// Grant adds the given role names to the subject's assignments. Returns an
// error with code [sserr.CodeInternal] when the subject has been sealed.
func (s *Subject) Grant(roles ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return sserr.New(sserr.CodeInternal, "auth: subject is sealed")
	}
	for _, r := range roles {
		s.roles.Add(r)
	}
	return nil
}

// Roles returns a defensive copy of the subject's role assignments.
func (s *Subject) Roles() RoleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles.Clone()
}

// HasRole reports whether the subject has been granted the named role.
func (s *Subject) HasRole(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles.Contains(name)
}

// Seal freezes the subject. Subsequent calls to SetClaim, Grant, or Decode
// fail. Sealing an already sealed subject is a no-op.
func (s *Subject) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
}

// Sealed reports whether the subject has been sealed.
func (s *Subject) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// applyClaims copies staged claims onto the subject in one step, so a failed
// decode never leaves the subject partially mutated.
func (s *Subject) applyClaims(staged map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return sserr.New(sserr.CodeInternal, "auth: subject is sealed")
	}
	for k, v := range staged {
		s.claims[k] = v
	}
	return nil
}

// ---------------------------------------------------------------------------
// DecodedToken — read-only view over a decoded JWT
// ---------------------------------------------------------------------------

// DecodedToken is an immutable view over a successfully decoded JWT,
// produced by [Decode]. It exposes the header, payload claims, signature
// segment, and the normalized expiry and issued-at times.
type DecodedToken struct {
	raw       string
	header    map[string]any
	claims    map[string]any
	signature string
	expiresAt time.Time
	issuedAt  time.Time
}

// Raw returns the original token string.
func (t *DecodedToken) Raw() string { return t.raw }

// Signature returns the base64url-encoded signature segment of the token.
func (t *DecodedToken) Signature() string { return t.signature }

// Header returns a defensive copy of the decoded JOSE header.
func (t *DecodedToken) Header() map[string]any {
	out := make(map[string]any, len(t.header))
	for k, v := range t.header {
		out[k] = v
	}
	return out
}

// KeyID returns the "kid" header value, or "" when absent.
func (t *DecodedToken) KeyID() string {
	kid, _ := t.header["kid"].(string)
	return kid
}

// Claim returns the named payload claim and whether it is present.
func (t *DecodedToken) Claim(name string) (any, bool) {
	v, ok := t.claims[name]
	return v, ok
}

// Issuer returns the "iss" payload claim, or "" when absent.
func (t *DecodedToken) Issuer() string {
	iss, _ := t.claims[claimIssuer].(string)
	return iss
}

// Subject returns the "sub" payload claim, or "" when absent.
func (t *DecodedToken) Subject() string {
	sub, _ := t.claims[claimSubject].(string)
	return sub
}

// Nonce returns the "nonce" payload claim, or "" when absent.
func (t *DecodedToken) Nonce() string {
	n, _ := t.claims[claimNonce].(string)
	return n
}

// Audiences returns the "aud" payload claim normalized to a string slice.
// A scalar audience yields a single-element slice; an absent claim yields
// an empty slice.
func (t *DecodedToken) Audiences() []string {
	switch aud := t.claims[claimAudience].(type) {
	case string:
		return []string{aud}
	case []string:
		out := make([]string, len(aud))
		copy(out, aud)
		return out
	case []any:
		out := make([]string, 0, len(aud))
		for _, v := range aud {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

// ExpiresAt returns the normalized "exp" time. The zero time means the
// token carries no expiry.
func (t *DecodedToken) ExpiresAt() time.Time { return t.expiresAt }

// IssuedAt returns the normalized "iat" time. The zero time means the
// token carries no issued-at claim.
func (t *DecodedToken) IssuedAt() time.Time { return t.issuedAt }

// Expired reports whether the token has expired at the given instant.
// The comparison is exact, with no leeway: a token is expired the moment
// now reaches its expiry. A token without an "exp" claim never expires.
func (t *DecodedToken) Expired(now time.Time) bool {
	if t.expiresAt.IsZero() {
		return false
	}
	return !now.Before(t.expiresAt)
}

// ---------------------------------------------------------------------------
// Decode
// ---------------------------------------------------------------------------

// Decode parses the raw JWT string without verifying its signature, records
// the payload claims and the reserved token material on the subject, and
// returns a read-only [DecodedToken] view. Signature verification is the
// responsibility of the configured issuers; Decode only establishes what
// the token says about itself.
//
// Decode fails with a 401-coded *[sserr.Error] when the token is empty or
// whitespace-only, exceeds the maximum size, is structurally malformed, or
// declares the "none" algorithm. On failure the subject is left untouched.
func Decode(sub *Subject, raw string) (*DecodedToken, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, sserr.New(sserr.CodeAuthenticationInvalid, "auth: token must not be empty")
	}
	if len(trimmed) > maxTokenSize {
		return nil, sserr.New(sserr.CodeAuthenticationInvalid, "auth: token exceeds maximum size")
	}

	parser := jwt.NewParser()
	parsed, parts, err := parser.ParseUnverified(trimmed, jwt.MapClaims{})
	if err != nil || parsed == nil || len(parts) != 3 {
		return nil, sserr.New(sserr.CodeAuthenticationInvalid, "auth: token is malformed")
	}

	// Reject alg:none — critical security check.
	if alg, _ := parsed.Header["alg"].(string); strings.EqualFold(alg, "none") {
		return nil, sserr.New(sserr.CodeAuthenticationInvalid, "auth: algorithm 'none' is not permitted")
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, sserr.New(sserr.CodeAuthenticationInvalid, "auth: unable to extract claims")
	}

	token := &DecodedToken{
		raw:       trimmed,
		header:    parsed.Header,
		claims:    map[string]any(mc),
		signature: parts[2],
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		token.expiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		token.issuedAt = iat.Time
	}

	// Stage everything first; the subject is mutated in a single step so a
	// sealed subject or any earlier failure never leaves partial state.
	staged := make(map[string]any, len(mc)+5)
	for k, v := range mc {
		staged[k] = v
	}
	staged[ClaimRawToken] = token.raw
	staged[ClaimHeader] = token.Header()
	staged[ClaimSignature] = token.signature
	if !token.expiresAt.IsZero() {
		staged[ClaimExpires] = token.expiresAt
	}
	if !token.issuedAt.IsZero() {
		staged[ClaimIssued] = token.issuedAt
	}
	if err := sub.applyClaims(staged); err != nil {
		return nil, err
	}

	return token, nil
}
