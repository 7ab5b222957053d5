package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"regexp"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// ---------------------------------------------------------------------------
// HTTPClient interface
// ---------------------------------------------------------------------------

// HTTPClient abstracts the HTTP client used for fetching JWKS and OpenID
// discovery documents. This allows callers to provide custom HTTP clients
// with specific timeouts, transport settings, or middleware.
//
// The standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ---------------------------------------------------------------------------
// OpenIDIssuer — token verification via OpenID Connect discovery
// ---------------------------------------------------------------------------

// Signing methods accepted per resolved key type. jwt.WithValidMethods
// restricts the algorithms so a key can never be used outside its family.
var (
	rsaSigningMethods = []string{"RS256", "RS384", "RS512"}
	ecSigningMethods  = []string{"ES256", "ES384", "ES512"}
)

// claimTemplatePattern matches "{claim}" placeholders in a discovery URL
// template, e.g. "https://login.example.com/{tid}/.well-known/...".
var claimTemplatePattern = regexp.MustCompile(`\{([^{}]+)\}`)

// OpenIDIssuerConfig holds the configuration for [OpenIDIssuer].
type OpenIDIssuerConfig struct {
	// Name is the issuer identifier matched against the token "iss" claim.
	// Required.
	Name string `json:"name" yaml:"name"`

	// ConfigurationURL is the OpenID discovery document URL. It may embed
	// "{claim}" placeholders that are substituted with payload claim values
	// from the token under verification, supporting multi-tenant providers
	// whose discovery endpoint depends on a token claim. Required.
	ConfigurationURL string `json:"configuration_url" yaml:"configuration_url"`

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

	// HTTPClient is used for discovery and JWKS requests. If nil, a
	// default [http.Client] with a 10-second timeout is used.
	HTTPClient HTTPClient `json:"-" yaml:"-"`

	// Logger receives threat-severity verification failures. Defaults to
	// slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// Validate checks the configuration and returns a *[sserr.Error] with code
// [sserr.CodeValidation] if any field is invalid.
func (c *OpenIDIssuerConfig) Validate() *sserr.Error {
	if c.Name == "" {
		return sserr.New(sserr.CodeValidation, "auth: issuer name must not be empty")
	}
	if c.ConfigurationURL == "" {
		return sserr.New(sserr.CodeValidation, "auth: issuer configuration URL must not be empty")
	}
	return nil
}

// OpenIDIssuer verifies tokens against an OpenID Connect provider. The
// verification key is resolved for every request: the discovery document is
// fetched from the (claim-templated) configuration URL, the JWKS referenced
// by it is loaded, and the key matching the token's "kid" header is
// reconstructed. Keys are deliberately not cached, so provider-side key
// rotation takes effect immediately.
//
// OpenIDIssuer is safe for concurrent use by multiple goroutines.
type OpenIDIssuer struct {
	core   issuerCore
	url    string
	client HTTPClient
}

// Compile-time assertion that OpenIDIssuer implements Issuer.
var _ Issuer = (*OpenIDIssuer)(nil)

// NewOpenIDIssuer creates an OpenIDIssuer from the given configuration.
// The configuration is validated before use.
func NewOpenIDIssuer(cfg OpenIDIssuerConfig) (*OpenIDIssuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OpenIDIssuer{
		core:   newIssuerCore(cfg.Name, cfg.Audiences, cfg.Assignments, cfg.ValidateNonce, cfg.NonceSource, cfg.Logger),
		url:    cfg.ConfigurationURL,
		client: client,
	}, nil
}

// Name returns the issuer identifier.
func (i *OpenIDIssuer) Name() string { return i.core.name }

// Verify resolves the verification key from the provider and checks the
// token signature, audience membership, and nonce.
func (i *OpenIDIssuer) Verify(ctx context.Context, token *DecodedToken) Verdict {
	return i.core.verify(ctx, token, i.resolveKey)
}

// ExpandConfigurationURL substitutes every "{claim}" placeholder in the
// configuration URL with the corresponding payload claim of the token.
// List-valued claims contribute their first string element.
//
// Returns a 401-coded *[sserr.Error] when a referenced claim is absent or
// empty. The expansion is purely local; no network request is made.
func (i *OpenIDIssuer) ExpandConfigurationURL(token *DecodedToken) (string, error) {
	var missing string
	expanded := claimTemplatePattern.ReplaceAllStringFunc(i.url, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := token.Claim(name)
		if !ok {
			missing = name
			return match
		}
		s := claimToString(value)
		if s == "" {
			missing = name
		}
		return s
	})
	if missing != "" {
		return "", sserr.Newf(sserr.CodeAuthentication,
			"auth: token is missing claim %q referenced by the discovery URL", missing)
	}
	return expanded, nil
}

// claimToString renders a claim value for URL substitution. Lists yield
// their first string element; non-string scalars are formatted with
// fmt.Sprint.
func claimToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				return s
			}
		}
		return ""
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// resolveKey performs the per-request discovery and JWKS round trips and
// reconstructs the public key matching the token's kid header.
func (i *OpenIDIssuer) resolveKey(ctx context.Context, token *DecodedToken) (any, []string, error) {
	kid := token.KeyID()
	if kid == "" {
		return nil, nil, sserr.New(sserr.CodeAuthenticationInvalid, "auth: token header missing kid")
	}

	discoveryURL, err := i.ExpandConfigurationURL(token)
	if err != nil {
		return nil, nil, err
	}

	discovery, err := fetchOpenIDConfiguration(ctx, discoveryURL, i.client)
	if err != nil {
		return nil, nil, err
	}

	jwks, err := fetchJWKS(ctx, discovery.JWKSURI, i.client)
	if err != nil {
		return nil, nil, err
	}

	for _, k := range jwks.Keys {
		if k.Kid != kid {
			continue
		}
		return buildVerificationKey(k)
	}
	return nil, nil, sserr.Newf(sserr.CodeAuthenticationInvalid,
		"auth: key ID %q not found in JWKS from %s", kid, discovery.JWKSURI)
}

// buildVerificationKey reconstructs a public key from a JWK entry. An x5c
// certificate chain takes precedence; otherwise the key is rebuilt from
// its RSA modulus/exponent or EC curve coordinates.
func buildVerificationKey(k jwkKey) (any, []string, error) {
	if len(k.X5c) > 0 {
		pub, err := parseX5cPublicKey(k.X5c[0])
		if err != nil {
			return nil, nil, err
		}
		switch pub.(type) {
		case *rsa.PublicKey:
			return pub, rsaSigningMethods, nil
		case *ecdsa.PublicKey:
			return pub, ecSigningMethods, nil
		default:
			return nil, nil, fmt.Errorf("auth: unsupported certificate key type %T", pub)
		}
	}

	switch k.Kty {
	case "RSA":
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			return nil, nil, err
		}
		return pub, rsaSigningMethods, nil
	case "EC":
		pub, err := parseECPublicKey(k.Crv, k.X, k.Y)
		if err != nil {
			return nil, nil, err
		}
		return pub, ecSigningMethods, nil
	default:
		return nil, nil, fmt.Errorf("auth: unsupported JWK key type %q", k.Kty)
	}
}

// ---------------------------------------------------------------------------
// Discovery and JWKS documents
// ---------------------------------------------------------------------------

// maxDocumentSize limits discovery and JWKS response bodies to 1 MB to
// prevent resource exhaustion.
const maxDocumentSize = 1 << 20

// openidConfiguration represents the relevant fields from an OpenID
// provider's discovery document.
type openidConfiguration struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// jwksDocument represents the JSON structure of a JWKS endpoint response.
type jwksDocument struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey represents a single key in a JWKS response. Only the fields needed
// for key reconstruction are included.
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// Certificate chain
	X5c []string `json:"x5c"`
	// RSA fields
	N string `json:"n"`
	E string `json:"e"`
	// EC fields
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// fetchOpenIDConfiguration fetches and parses the OpenID discovery document.
func fetchOpenIDConfiguration(ctx context.Context, url string, client HTTPClient) (*openidConfiguration, error) {
	body, err := fetchJSONDocument(ctx, url, client)
	if err != nil {
		return nil, fmt.Errorf("auth: OpenID discovery failed: %w", err)
	}

	var cfg openidConfiguration
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("auth: failed to parse OpenID discovery JSON: %w", err)
	}
	if cfg.JWKSURI == "" {
		return nil, fmt.Errorf("auth: OpenID discovery document missing jwks_uri")
	}
	return &cfg, nil
}

// fetchJWKS fetches and parses a JWKS document.
func fetchJWKS(ctx context.Context, url string, client HTTPClient) (*jwksDocument, error) {
	body, err := fetchJSONDocument(ctx, url, client)
	if err != nil {
		return nil, fmt.Errorf("auth: JWKS fetch failed: %w", err)
	}

	var jwks jwksDocument
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, fmt.Errorf("auth: failed to parse JWKS JSON: %w", err)
	}
	return &jwks, nil
}

// fetchJSONDocument performs a size-limited GET against the given URL.
func fetchJSONDocument(ctx context.Context, url string, client HTTPClient) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// ---------------------------------------------------------------------------
// Key reconstruction
// ---------------------------------------------------------------------------

// parseX5cPublicKey extracts the public key from the first certificate of
// an x5c chain. The x5c entry is standard base64 DER; it is wrapped into a
// PEM CERTIFICATE block and parsed.
func parseX5cPublicKey(x5c string) (any, error) {
	der, err := base64.StdEncoding.DecodeString(x5c)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode x5c certificate: %w", err)
	}

	block := &pem.Block{Type: "CERTIFICATE", Bytes: der}
	return parseCertificatePEM(pem.EncodeToMemory(block))
}

// parseCertificatePEM parses a PEM-encoded X.509 certificate and returns
// its public key.
func parseCertificatePEM(pemBytes []byte) (any, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("auth: failed to decode certificate PEM block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to parse x5c certificate: %w", err)
	}
	return cert.PublicKey, nil
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name and
// base64url-encoded x and y coordinates.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("auth: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
