package auth

import (
	"encoding/json"
	"strings"
)

// Well-known header names used by the built-in token parameters.
const (
	// HeaderAuthorization is the standard bearer-token request header.
	HeaderAuthorization = "Authorization"

	// HeaderSignature is the request header carrying an HMAC body digest.
	HeaderSignature = "X-Signature"
)

// Carrier provides read access to the authentication material of an inbound
// request: headers, cookies, query parameters, and the raw body. The
// function host's request context implements this interface.
type Carrier interface {
	// Header returns the named request header, or "" when absent.
	Header(name string) string

	// Cookie returns the value of the named cookie, or "" when absent.
	Cookie(name string) string

	// Query returns the named query string parameter, or "" when absent.
	Query(name string) string

	// Body returns the raw request body. May be nil for bodyless requests.
	Body() []byte
}

// ParameterLocation identifies where in a request a token parameter lives.
type ParameterLocation string

const (
	// ParameterHeader reads the token from a request header.
	ParameterHeader ParameterLocation = "header"

	// ParameterCookie reads the token from a cookie.
	ParameterCookie ParameterLocation = "cookie"

	// ParameterQuery reads the token from a query string parameter.
	ParameterQuery ParameterLocation = "query"

	// ParameterBody reads the token from a top-level field of a JSON body.
	ParameterBody ParameterLocation = "body"
)

// TokenParameter describes where an authenticator finds its credential on
// the request and which authorization scheme prefix, if any, to strip.
type TokenParameter struct {
	// Location selects the part of the request to read from.
	Location ParameterLocation `json:"location" yaml:"location"`

	// Name is the header, cookie, query parameter, or JSON body field name.
	Name string `json:"name" yaml:"name"`

	// Scheme is an optional authorization scheme prefix (e.g. "Bearer")
	// stripped case-insensitively from the extracted value when present.
	Scheme string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
}

// DefaultTokenParameter returns the conventional bearer-token parameter:
// the Authorization header with the "Bearer" scheme.
func DefaultTokenParameter() TokenParameter {
	return TokenParameter{
		Location: ParameterHeader,
		Name:     HeaderAuthorization,
		Scheme:   "Bearer",
	}
}

// Extract reads the parameter value from the carrier and strips the
// configured scheme prefix. Returns "" when the parameter is absent or the
// location is unknown.
func (p TokenParameter) Extract(c Carrier) string {
	var raw string
	switch p.Location {
	case ParameterHeader:
		raw = c.Header(p.Name)
	case ParameterCookie:
		raw = c.Cookie(p.Name)
	case ParameterQuery:
		raw = c.Query(p.Name)
	case ParameterBody:
		raw = bodyField(c.Body(), p.Name)
	default:
		return ""
	}
	return p.stripScheme(strings.TrimSpace(raw))
}

// stripScheme removes a leading "<Scheme> " prefix, case-insensitively.
// A value without the prefix is returned unchanged, so parameters work
// whether or not callers send the scheme.
func (p TokenParameter) stripScheme(raw string) string {
	if p.Scheme == "" || raw == "" {
		return raw
	}
	prefix := p.Scheme + " "
	if len(raw) > len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
		return strings.TrimSpace(raw[len(prefix):])
	}
	return raw
}

// bodyField reads a top-level string field from a JSON body. Non-JSON
// bodies and non-string fields yield "".
func bodyField(body []byte, name string) string {
	if len(body) == 0 {
		return ""
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	s, _ := doc[name].(string)
	return s
}
