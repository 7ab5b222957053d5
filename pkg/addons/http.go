package addons

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/StricklySoft/stricklysoft-functions/pkg/auth"
	redisclient "github.com/StricklySoft/stricklysoft-functions/pkg/clients/redis"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
	"github.com/StricklySoft/stricklysoft-functions/pkg/session"
)

// Descriptor section and type names owned by the HTTP add-on.
const (
	HTTPAddonName = "http"
	SectionHTTP   = "HTTP"

	TypeCookieSessionManager = "CookieSessionManager"
	TypeMemorySessionManager = "MemorySessionManager"
	TypeRedisSessionManager  = "RedisSessionManager"
	TypeHTTPParameter        = "HTTPParameter"
)

// HTTPAddon provides the HTTP request surface of the platform: session
// management and the shared token parameter location. Every other
// request-facing add-on depends on it.
type HTTPAddon struct {
	logger *slog.Logger
}

// Compile-time assertion that HTTPAddon implements Addon.
var _ Addon = (*HTTPAddon)(nil)

// NewHTTPAddon creates the HTTP add-on. A nil logger means
// slog.Default().
func NewHTTPAddon(logger *slog.Logger) *HTTPAddon {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPAddon{logger: logger}
}

// Name returns "http".
func (a *HTTPAddon) Name() string { return HTTPAddonName }

// Dependencies returns nil; the HTTP add-on is a root of the dependency
// graph.
func (a *HTTPAddon) Dependencies() []string { return nil }

// ConfigParsers returns the parser for the "HTTP" descriptor section.
func (a *HTTPAddon) ConfigParsers() []ConfigParser {
	return []ConfigParser{&httpSectionParser{}}
}

// AttributeParsers returns the parsers for session manager and token
// parameter objects.
func (a *HTTPAddon) AttributeParsers() []AttributeParser {
	return []AttributeParser{&sessionManagerParser{}, &httpParameterParser{}}
}

// Initialize installs a stateless cookie session manager when the
// descriptor configured none.
func (a *HTTPAddon) Initialize(_ context.Context, reg *Registry) error {
	if reg.SessionManager() == nil {
		reg.SetSessionManager(session.NewCookieManager(session.CookieManagerConfig{}))
		a.logger.Debug("no session manager configured, using cookie sessions")
	}
	return nil
}

// httpSectionParser applies the "HTTP" descriptor section.
type httpSectionParser struct{}

func (*httpSectionParser) Section() string { return SectionHTTP }

func (*httpSectionParser) Parse(ctx context.Context, raw json.RawMessage, reg *Registry) error {
	var sec struct {
		Session   json.RawMessage `json:"session,omitempty"`
		Parameter json.RawMessage `json:"parameter,omitempty"`
	}
	if err := json.Unmarshal(raw, &sec); err != nil {
		return sserr.Wrap(err, sserr.CodeValidation,
			"addons: HTTP section is not a valid object")
	}

	if len(sec.Session) > 0 {
		mgr, err := ParseAs[session.Manager](ctx, reg.Attributes(), sec.Session, reg)
		if err != nil {
			return err
		}
		reg.SetSessionManager(mgr)
	}
	if len(sec.Parameter) > 0 {
		p, err := ParseAs[auth.TokenParameter](ctx, reg.Attributes(), sec.Parameter, reg)
		if err != nil {
			return err
		}
		reg.SetTokenParameter(p)
	}
	return nil
}

// sessionManagerParser materializes the three session manager variants.
type sessionManagerParser struct{}

func (*sessionManagerParser) Recognizes(typeName string) bool {
	switch typeName {
	case TypeCookieSessionManager, TypeMemorySessionManager, TypeRedisSessionManager:
		return true
	default:
		return false
	}
}

func (*sessionManagerParser) Parse(ctx context.Context, raw json.RawMessage, reg *Registry) (any, error) {
	typeName, err := Discriminant(raw)
	if err != nil {
		return nil, err
	}

	var cfg struct {
		Cookie string `json:"cookie,omitempty"`
		TTL    string `json:"ttl,omitempty"`
		URI    string `json:"uri,omitempty"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeValidation,
			"addons: %s configuration is not a valid object", typeName)
	}
	ttl, err := parseDuration("session ttl", cfg.TTL)
	if err != nil {
		return nil, err
	}

	switch typeName {
	case TypeCookieSessionManager:
		return session.NewCookieManager(session.CookieManagerConfig{
			Cookie: cfg.Cookie,
			TTL:    ttl,
		}), nil

	case TypeMemorySessionManager:
		return session.NewMemoryManager(session.MemoryManagerConfig{
			Cookie: cfg.Cookie,
			TTL:    ttl,
		}), nil

	case TypeRedisSessionManager:
		if cfg.URI == "" {
			return nil, sserr.Validation(
				"addons: RedisSessionManager requires a \"uri\"")
		}
		client := reg.RedisClient()
		if client == nil {
			client, err = redisclient.NewClient(ctx, redisclient.Config{URI: cfg.URI})
			if err != nil {
				return nil, err
			}
			reg.SetRedisClient(client)
		}
		return session.NewRedisManager(session.RedisManagerConfig{
			Cookie: cfg.Cookie,
			TTL:    ttl,
			Store:  client,
		})

	default:
		return nil, sserr.Newf(sserr.CodeConfigurationUnknownType,
			"addons: no parser recognizes configuration type %q", typeName)
	}
}

// httpParameterParser materializes token parameter locations.
type httpParameterParser struct{}

func (*httpParameterParser) Recognizes(typeName string) bool {
	return typeName == TypeHTTPParameter
}

func (*httpParameterParser) Parse(_ context.Context, raw json.RawMessage, _ *Registry) (any, error) {
	var cfg struct {
		Location string `json:"location"`
		Name     string `json:"name"`
		Scheme   string `json:"scheme,omitempty"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation,
			"addons: HTTPParameter configuration is not a valid object")
	}
	if cfg.Name == "" {
		return nil, sserr.Validation("addons: HTTPParameter requires a \"name\"")
	}
	location := auth.ParameterLocation(cfg.Location)
	switch location {
	case auth.ParameterHeader, auth.ParameterCookie, auth.ParameterQuery, auth.ParameterBody:
	case "":
		location = auth.ParameterHeader
	default:
		return nil, sserr.Validationf(
			"addons: HTTPParameter location %q is not one of header, cookie, query, body",
			cfg.Location)
	}
	return auth.TokenParameter{
		Location: location,
		Name:     cfg.Name,
		Scheme:   cfg.Scheme,
	}, nil
}
