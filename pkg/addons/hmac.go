package addons

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/StricklySoft/stricklysoft-functions/pkg/auth"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// Descriptor section name owned by the HMAC add-on.
const (
	HMACAddonName = "hmac"
	SectionHMAC   = "HMAC"
)

// HMACAddon wires shared-secret body signing into the request chain,
// typically for webhook endpoints. Unlike the JWT add-on it is only
// meaningful when configured: registering it without a secret in the
// descriptor fails the bootstrap.
type HMACAddon struct {
	logger *slog.Logger

	configured  bool
	secret      auth.Secret
	name        string
	algorithm   auth.HMACAlgorithm
	encoding    auth.HMACEncoding
	parameter   *auth.TokenParameter
	assignments []string
	required    bool
}

// Compile-time assertion that HMACAddon implements Addon.
var _ Addon = (*HMACAddon)(nil)

// NewHMACAddon creates the HMAC add-on. A nil logger means
// slog.Default().
func NewHMACAddon(logger *slog.Logger) *HMACAddon {
	if logger == nil {
		logger = slog.Default()
	}
	return &HMACAddon{logger: logger}
}

// Name returns "hmac".
func (a *HMACAddon) Name() string { return HMACAddonName }

// Dependencies returns the HTTP add-on, which owns the request surface
// the signature is extracted from.
func (a *HMACAddon) Dependencies() []string { return []string{HTTPAddonName} }

// ConfigParsers returns the parser for the "HMAC" descriptor section.
func (a *HMACAddon) ConfigParsers() []ConfigParser {
	return []ConfigParser{&hmacSectionParser{addon: a}}
}

// AttributeParsers returns nil; the HMAC section reuses the HTTP
// add-on's parameter parser for its signature location.
func (a *HMACAddon) AttributeParsers() []AttributeParser { return nil }

// Initialize builds the HMAC authenticator. A registered HMAC add-on
// whose descriptor configured no secret is a configuration error.
func (a *HMACAddon) Initialize(_ context.Context, reg *Registry) error {
	if !a.configured || a.secret.Value() == "" {
		return sserr.Configuration(
			"addons: hmac add-on requires a secret in the HMAC section")
	}

	authenticator, err := auth.NewHMACAuthenticator(auth.HMACAuthenticatorConfig{
		Name:        a.name,
		Required:    a.required,
		Key:         a.secret,
		Algorithm:   a.algorithm,
		Encoding:    a.encoding,
		Parameter:   a.parameter,
		Assignments: a.assignments,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	reg.AddAuthenticator(authenticator)
	return nil
}

// hmacSectionParser applies the "HMAC" descriptor section.
type hmacSectionParser struct {
	addon *HMACAddon
}

func (*hmacSectionParser) Section() string { return SectionHMAC }

func (p *hmacSectionParser) Parse(ctx context.Context, raw json.RawMessage, reg *Registry) error {
	var sec struct {
		Secret      string          `json:"secret"`
		Name        string          `json:"name,omitempty"`
		Algorithm   string          `json:"algorithm,omitempty"`
		Encoding    string          `json:"encoding,omitempty"`
		Parameter   json.RawMessage `json:"parameter,omitempty"`
		Assignments []string        `json:"assignments,omitempty"`
		Required    bool            `json:"required,omitempty"`
	}
	if err := json.Unmarshal(raw, &sec); err != nil {
		return sserr.Wrap(err, sserr.CodeValidation,
			"addons: HMAC section is not a valid object")
	}
	if sec.Secret == "" {
		return sserr.Validation("addons: HMAC section requires a \"secret\"")
	}

	a := p.addon
	a.configured = true
	a.secret = auth.Secret(sec.Secret)
	a.name = sec.Name
	a.algorithm = auth.HMACAlgorithm(sec.Algorithm)
	a.encoding = auth.HMACEncoding(sec.Encoding)
	a.assignments = sec.Assignments
	a.required = sec.Required

	if len(sec.Parameter) > 0 {
		param, err := ParseAs[auth.TokenParameter](ctx, reg.Attributes(), sec.Parameter, reg)
		if err != nil {
			return err
		}
		a.parameter = &param
	}
	return nil
}
