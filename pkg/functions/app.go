package functions

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-functions/pkg/addons"
	"github.com/StricklySoft/stricklysoft-functions/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// AppConfig configures an [App].
type AppConfig struct {
	// Name is the application name stamped on controllers and logs.
	// Required.
	Name string

	// DescriptorPath is the path of the declarative bootstrap document
	// (JSON or YAML). Exactly one of DescriptorPath and Descriptor must
	// be set.
	DescriptorPath string

	// Descriptor is an already-parsed bootstrap document, used instead
	// of DescriptorPath.
	Descriptor config.Descriptor

	// Addons are application-specific add-ons registered alongside the
	// built-in ones.
	Addons []addons.Addon

	// Logger receives bootstrap and pipeline logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Validate checks the configuration for missing required fields.
func (c *AppConfig) Validate() *sserr.Error {
	if c.Name == "" {
		return sserr.Validation("functions: app requires a name")
	}
	if c.DescriptorPath == "" && c.Descriptor == nil {
		return sserr.Validation(
			"functions: app requires a descriptor path or a parsed descriptor")
	}
	if c.DescriptorPath != "" && c.Descriptor != nil {
		return sserr.Validation(
			"functions: descriptor path and parsed descriptor are mutually exclusive")
	}
	return nil
}

// App owns a function application's cold start: loading the bootstrap
// descriptor, registering the built-in and application add-ons, and
// running the add-on bootstrap exactly once per process. The registry it
// produces is frozen; controllers built from it share the live objects
// the descriptor declared.
//
// App is safe for concurrent use after [App.Bootstrap] returns.
type App struct {
	name   string
	cfg    AppConfig
	logger *slog.Logger
	tracer trace.Tracer

	manager *addons.Manager

	mu       sync.Mutex
	registry *addons.Registry
}

// NewApp creates an application from the given configuration. Add-ons are
// registered during [App.Bootstrap], not here, because the built-in set
// depends on which sections the descriptor declares.
func NewApp(cfg AppConfig) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("app", cfg.Name))

	return &App{
		name:    cfg.Name,
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		manager: addons.NewManager(logger),
	}, nil
}

// Name returns the application name.
func (a *App) Name() string { return a.name }

// Registry returns the frozen add-on registry, or nil before a
// successful bootstrap.
func (a *App) Registry() *addons.Registry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry
}

// Bootstrap loads the descriptor, registers the add-ons, and initializes
// them in dependency order. It runs exactly once per App; a second call
// returns a [sserr.CodeConfiguration] error, mirroring the underlying
// add-on manager's guarantee.
func (a *App) Bootstrap(ctx context.Context) error {
	ctx, span := a.tracer.Start(ctx, "functions.Bootstrap",
		trace.WithAttributes(attribute.String("app.name", a.name)))
	defer span.End()

	desc := a.cfg.Descriptor
	if desc == nil {
		loaded, err := config.LoadDescriptor(a.cfg.DescriptorPath)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return err
		}
		desc = loaded
	}

	if err := a.register(desc); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	reg, err := a.manager.Bootstrap(ctx, desc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	a.mu.Lock()
	a.registry = reg
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "functions: app bootstrapped",
		slog.Int("sections", len(desc)),
		slog.Int("authenticators", len(reg.Authenticators())),
		slog.Int("schedules", len(reg.Schedules())),
	)
	span.SetStatus(otelcodes.Ok, "")
	return nil
}

// register registers the built-in add-ons and the application's own. The
// HMAC add-on is only registered when the descriptor declares an HMAC
// section, because it refuses to initialize without a secret.
func (a *App) register(desc config.Descriptor) error {
	builtins := []addons.Addon{
		addons.NewHTTPAddon(a.logger),
		addons.NewJWTAddon(a.logger),
		addons.NewTimerAddon(a.logger),
		addons.NewStorageAddon(a.logger),
	}
	if _, ok := desc.Section(addons.SectionHMAC); ok {
		builtins = append(builtins, addons.NewHMACAddon(a.logger))
	}

	for _, addon := range append(builtins, a.cfg.Addons...) {
		if err := a.manager.Register(addon); err != nil {
			return err
		}
	}
	return nil
}

// Controller builds a lifecycle controller bound to the app's registry.
// It must be called after [App.Bootstrap].
func (a *App) Controller(cfg ControllerConfig) (*Controller, error) {
	reg := a.Registry()
	if reg == nil {
		return nil, sserr.New(sserr.CodeConfiguration,
			"functions: app is not bootstrapped")
	}
	cfg.Registry = reg
	if cfg.Logger == nil {
		cfg.Logger = a.logger
	}
	return NewController(cfg)
}
