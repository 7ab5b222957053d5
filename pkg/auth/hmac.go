package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"log/slog"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// HMACAlgorithm selects the hash function used for request body digests.
type HMACAlgorithm string

const (
	// HMACSHA256 uses HMAC-SHA256. This is the default.
	HMACSHA256 HMACAlgorithm = "sha256"

	// HMACSHA512 uses HMAC-SHA512.
	HMACSHA512 HMACAlgorithm = "sha512"

	// HMACSHA1 uses HMAC-SHA1. Supported for webhook providers that still
	// sign with SHA-1; prefer SHA-256 for new integrations.
	HMACSHA1 HMACAlgorithm = "sha1"
)

// HMACEncoding selects how the presented digest is encoded on the wire.
type HMACEncoding string

const (
	// HMACHex expects a lowercase or uppercase hex digest.
	HMACHex HMACEncoding = "hex"

	// HMACBase64 expects a standard base64 digest.
	HMACBase64 HMACEncoding = "base64"
)

// HMACAuthenticatorConfig holds the configuration for [HMACAuthenticator].
type HMACAuthenticatorConfig struct {
	// Name identifies the authenticator in logs and chain results.
	// Defaults to "hmac".
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Required marks this authenticator as mandatory for downstream
	// policy checks. A required failure is logged at threat severity;
	// the chain's union verdict is unaffected.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Key is the shared secret used to compute the body digest. Required.
	Key Secret `json:"-" yaml:"-"`

	// Algorithm selects the digest hash. Defaults to [HMACSHA256].
	Algorithm HMACAlgorithm `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`

	// Encoding selects the wire encoding of the presented digest.
	// Defaults to [HMACHex].
	Encoding HMACEncoding `json:"encoding,omitempty" yaml:"encoding,omitempty"`

	// Parameter describes where the presented digest is found on the
	// request. Defaults to the [HeaderSignature] header.
	Parameter *TokenParameter `json:"parameter,omitempty" yaml:"parameter,omitempty"`

	// Assignments is the set of role names granted when the digest
	// matches.
	Assignments []string `json:"assignments,omitempty" yaml:"assignments,omitempty"`

	// Logger receives threat-severity verification failures. Defaults to
	// slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// Validate checks the configuration and returns a *[sserr.Error] with code
// [sserr.CodeValidation] if any field is invalid.
func (c *HMACAuthenticatorConfig) Validate() *sserr.Error {
	if c.Key.Value() == "" {
		return sserr.New(sserr.CodeValidation, "auth: hmac key must not be empty")
	}
	switch c.Algorithm {
	case "", HMACSHA256, HMACSHA512, HMACSHA1:
	default:
		return sserr.Newf(sserr.CodeValidation, "auth: unsupported hmac algorithm %q", c.Algorithm)
	}
	switch c.Encoding {
	case "", HMACHex, HMACBase64:
	default:
		return sserr.Newf(sserr.CodeValidation, "auth: unsupported hmac encoding %q", c.Encoding)
	}
	return nil
}

// HMACAuthenticator verifies that the request body carries a valid HMAC
// digest computed with a shared secret. It is typically used for webhook
// endpoints where the caller signs the payload rather than presenting a
// bearer token.
//
// HMACAuthenticator is safe for concurrent use by multiple goroutines.
type HMACAuthenticator struct {
	name        string
	required    bool
	key         Secret
	algorithm   HMACAlgorithm
	encoding    HMACEncoding
	parameter   TokenParameter
	assignments RoleSet
	logger      *slog.Logger
}

// Compile-time assertion that HMACAuthenticator implements Authenticator.
var _ Authenticator = (*HMACAuthenticator)(nil)

// NewHMACAuthenticator creates an HMACAuthenticator from the given
// configuration. The configuration is validated before use.
func NewHMACAuthenticator(cfg HMACAuthenticatorConfig) (*HMACAuthenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = "hmac"
	}
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = HMACSHA256
	}
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = HMACHex
	}
	parameter := TokenParameter{Location: ParameterHeader, Name: HeaderSignature}
	if cfg.Parameter != nil {
		parameter = *cfg.Parameter
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HMACAuthenticator{
		name:        name,
		required:    cfg.Required,
		key:         cfg.Key,
		algorithm:   algorithm,
		encoding:    encoding,
		parameter:   parameter,
		assignments: NewRoleSet(cfg.Assignments...),
		logger:      logger,
	}, nil
}

// Name returns the authenticator identifier.
func (a *HMACAuthenticator) Name() string { return a.name }

// Required reports whether downstream policy treats this authenticator
// as mandatory.
func (a *HMACAuthenticator) Required() bool { return a.required }

// Authenticate computes the HMAC digest of the request body and compares
// it in constant time against the digest presented on the request.
func (a *HMACAuthenticator) Authenticate(ctx context.Context, sub *Subject, c Carrier) (Verdict, error) {
	presented := a.parameter.Extract(c)
	if presented == "" {
		return Verdict{}, sserr.New(sserr.CodeAuthentication, "auth: request carries no signature")
	}

	presentedBytes, err := a.decodeDigest(presented)
	if err != nil {
		return Verdict{}, sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: signature is not valid "+string(a.encoding))
	}

	mac := hmac.New(a.hashFunc(), []byte(a.key.Value()))
	mac.Write(c.Body())
	if !hmac.Equal(mac.Sum(nil), presentedBytes) {
		return Verdict{}, nil
	}

	return Verdict{Verified: true, Assignments: a.assignments.Clone()}, nil
}

func (a *HMACAuthenticator) hashFunc() func() hash.Hash {
	switch a.algorithm {
	case HMACSHA512:
		return sha512.New
	case HMACSHA1:
		return sha1.New
	default:
		return sha256.New
	}
}

func (a *HMACAuthenticator) decodeDigest(presented string) ([]byte, error) {
	if a.encoding == HMACBase64 {
		return base64.StdEncoding.DecodeString(presented)
	}
	return hex.DecodeString(presented)
}
