package addons

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/StricklySoft/stricklysoft-functions/pkg/auth"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// Descriptor section and type names owned by the JWT add-on.
const (
	JWTAddonName = "jwt"
	SectionJWT   = "JWT"

	TypeLocalJwtIssuer  = "LocalJwtIssuer"
	TypeOpenIDJwtIssuer = "OpenIDJwtIssuer"
)

// JWTAddon wires bearer-token authentication into the request chain. The
// "JWT" descriptor section declares the trusted issuers; each issuer
// entry is a typed object resolved through the attribute chain, so other
// add-ons can contribute issuer kinds of their own.
type JWTAddon struct {
	logger *slog.Logger

	required  bool
	parameter *auth.TokenParameter
}

// Compile-time assertion that JWTAddon implements Addon.
var _ Addon = (*JWTAddon)(nil)

// NewJWTAddon creates the JWT add-on. A nil logger means slog.Default().
func NewJWTAddon(logger *slog.Logger) *JWTAddon {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTAddon{logger: logger}
}

// Name returns "jwt".
func (a *JWTAddon) Name() string { return JWTAddonName }

// Dependencies returns the HTTP add-on, which owns the request surface
// tokens are extracted from.
func (a *JWTAddon) Dependencies() []string { return []string{HTTPAddonName} }

// ConfigParsers returns the parser for the "JWT" descriptor section.
func (a *JWTAddon) ConfigParsers() []ConfigParser {
	return []ConfigParser{&jwtSectionParser{addon: a}}
}

// AttributeParsers returns the parsers for the built-in issuer kinds.
func (a *JWTAddon) AttributeParsers() []AttributeParser {
	return []AttributeParser{&jwtIssuerParser{logger: a.logger}}
}

// Initialize builds the JWT authenticator from the issuers the
// descriptor published. When the descriptor declared no issuers, no
// authenticator is installed and requests remain anonymous.
func (a *JWTAddon) Initialize(_ context.Context, reg *Registry) error {
	issuers := reg.Issuers()
	if len(issuers) == 0 {
		a.logger.Debug("no token issuers configured, skipping jwt authenticator")
		return nil
	}

	parameter := a.parameter
	if parameter == nil {
		p := reg.TokenParameter()
		parameter = &p
	}
	authenticator, err := auth.NewJWTAuthenticator(auth.JWTAuthenticatorConfig{
		Required:  a.required,
		Parameter: parameter,
		Issuers:   issuers,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	reg.AddAuthenticator(authenticator)
	return nil
}

// jwtSectionParser applies the "JWT" descriptor section.
type jwtSectionParser struct {
	addon *JWTAddon
}

func (*jwtSectionParser) Section() string { return SectionJWT }

func (p *jwtSectionParser) Parse(ctx context.Context, raw json.RawMessage, reg *Registry) error {
	var sec struct {
		Required  bool              `json:"required,omitempty"`
		Parameter json.RawMessage   `json:"parameter,omitempty"`
		Issuers   []json.RawMessage `json:"issuers"`
	}
	if err := json.Unmarshal(raw, &sec); err != nil {
		return sserr.Wrap(err, sserr.CodeValidation,
			"addons: JWT section is not a valid object")
	}

	p.addon.required = sec.Required
	if len(sec.Parameter) > 0 {
		param, err := ParseAs[auth.TokenParameter](ctx, reg.Attributes(), sec.Parameter, reg)
		if err != nil {
			return err
		}
		p.addon.parameter = &param
	}

	for _, rawIssuer := range sec.Issuers {
		issuer, err := ParseAs[auth.Issuer](ctx, reg.Attributes(), rawIssuer, reg)
		if err != nil {
			return err
		}
		reg.AddIssuer(issuer)
	}
	return nil
}

// jwtIssuerParser materializes the built-in issuer kinds.
type jwtIssuerParser struct {
	logger *slog.Logger
}

func (*jwtIssuerParser) Recognizes(typeName string) bool {
	switch typeName {
	case TypeLocalJwtIssuer, TypeOpenIDJwtIssuer:
		return true
	default:
		return false
	}
}

func (p *jwtIssuerParser) Parse(_ context.Context, raw json.RawMessage, _ *Registry) (any, error) {
	typeName, err := Discriminant(raw)
	if err != nil {
		return nil, err
	}

	var cfg struct {
		Issuer        string   `json:"issuer"`
		Audiences     []string `json:"audiences,omitempty"`
		Roles         []string `json:"roles,omitempty"`
		ValidateNonce bool     `json:"validateNonce,omitempty"`
		Key           string   `json:"key,omitempty"`
		ConfigURL     string   `json:"configURL,omitempty"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeValidation,
			"addons: %s configuration is not a valid object", typeName)
	}
	if cfg.Issuer == "" {
		return nil, sserr.Validationf("addons: %s requires an \"issuer\"", typeName)
	}

	switch typeName {
	case TypeLocalJwtIssuer:
		if cfg.Key == "" {
			return nil, sserr.Validation("addons: LocalJwtIssuer requires a \"key\"")
		}
		return auth.NewLocalIssuer(auth.LocalIssuerConfig{
			Name:          cfg.Issuer,
			Key:           auth.Secret(cfg.Key),
			Audiences:     cfg.Audiences,
			Assignments:   cfg.Roles,
			ValidateNonce: cfg.ValidateNonce,
			Logger:        p.logger,
		})

	case TypeOpenIDJwtIssuer:
		if cfg.ConfigURL == "" {
			return nil, sserr.Validation("addons: OpenIDJwtIssuer requires a \"configURL\"")
		}
		return auth.NewOpenIDIssuer(auth.OpenIDIssuerConfig{
			Name:             cfg.Issuer,
			ConfigurationURL: cfg.ConfigURL,
			Audiences:        cfg.Audiences,
			Assignments:      cfg.Roles,
			ValidateNonce:    cfg.ValidateNonce,
			Logger:           p.logger,
		})

	default:
		return nil, sserr.Newf(sserr.CodeConfigurationUnknownType,
			"addons: no parser recognizes configuration type %q", typeName)
	}
}
