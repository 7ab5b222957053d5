package functions

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-functions/pkg/addons"
	"github.com/StricklySoft/stricklysoft-functions/pkg/auth"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
	"github.com/StricklySoft/stricklysoft-functions/pkg/models"
)

// Handler processes one invocation during the process phase. fc carries
// the request, the authenticated subject, the session, and any values the
// load phase staged. Handlers respond via [Context.Respond] or
// [Context.RespondJSON]; a handler that returns nil without responding
// yields a 204.
type Handler func(ctx context.Context, fc *Context) error

// Hook is an optional phase extension point (validate, load, save). A
// non-nil error aborts the pipeline and routes to the exception handler.
type Hook func(ctx context.Context, fc *Context) error

// ControllerConfig configures a [Controller].
type ControllerConfig struct {
	// Function is the function's name, recorded on invocation records
	// and log entries.
	Function string

	// Registry is the frozen add-on registry produced by bootstrap. It
	// supplies the authenticator chain, the role policy, and the session
	// manager. Required.
	Registry *addons.Registry

	// Handlers maps a lowercase verb ("get", "post", "timer", ...) to
	// its process-phase handler. A verb with no entry draws a 501.
	Handlers map[string]Handler

	// Resource is the policy resource checked during the authorize
	// phase, with the invocation verb as the action. Empty disables the
	// policy check and the function accepts anonymous requests.
	Resource string

	// OnValidate, OnLoad, and OnSave are optional phase hooks, run in
	// that order around the process phase.
	OnValidate Hook
	OnLoad     Hook
	OnSave     Hook

	// Logger receives pipeline logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Validate checks the configuration for missing required fields.
func (c *ControllerConfig) Validate() *sserr.Error {
	if c.Function == "" {
		return sserr.Validation("functions: controller requires a function name")
	}
	if c.Registry == nil {
		return sserr.Validation("functions: controller requires a bootstrapped registry")
	}
	return nil
}

// Controller drives the fixed request lifecycle for one function. It is
// constructed once after bootstrap and is safe for concurrent use: all of
// its fields are read-only, and all per-invocation state lives on the
// [Context] created inside [Controller.Invoke].
//
// The pipeline is a fixed linear sequence, not a state machine. Add-ons
// and hooks cannot skip or reorder phases; an error at any phase routes
// to the exception handler, which writes a response and still runs the
// terminate phase.
type Controller struct {
	function string
	registry *addons.Registry
	chain    *auth.Chain
	handlers map[string]Handler
	resource string

	validate Hook
	load     Hook
	save     Hook

	logger *slog.Logger
	tracer trace.Tracer
}

// phase is one named step of the pipeline.
type phase struct {
	name string
	run  func(ctx context.Context, fc *Context) error
}

// NewController creates a lifecycle controller from the given
// configuration. The authenticator chain is assembled once, here, from
// the registry's authenticators.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("function", cfg.Function))

	handlers := make(map[string]Handler, len(cfg.Handlers))
	for verb, h := range cfg.Handlers {
		if h == nil {
			continue
		}
		handlers[strings.ToLower(verb)] = h
	}

	return &Controller{
		function: cfg.Function,
		registry: cfg.Registry,
		chain:    cfg.Registry.AuthChain(logger),
		handlers: handlers,
		resource: cfg.Resource,
		validate: cfg.OnValidate,
		load:     cfg.OnLoad,
		save:     cfg.OnSave,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// Function returns the controller's function name.
func (c *Controller) Function() string { return c.function }

// Registry returns the add-on registry the controller was built from.
func (c *Controller) Registry() *addons.Registry { return c.registry }

// Invoke runs the full lifecycle for one host invocation and returns the
// invocation's audit record. A response is always written to the host
// binding, and the terminate phase always runs, even when an earlier
// phase fails.
func (c *Controller) Invoke(ctx context.Context, host HostContext) *models.Invocation {
	ctx, span := c.tracer.Start(ctx, "functions.Invoke",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("function.name", c.function),
			attribute.String("function.trigger", string(host.Trigger())),
			attribute.String("function.verb", strings.ToLower(host.Verb())),
		),
	)
	defer span.End()

	// Bootstrap phase: bind the host context.
	fc := newContext(host, c.logger)
	span.SetAttributes(attribute.String("function.request_id", fc.requestID))

	pipeline := []phase{
		{"initialize", c.initialize},
		{"authenticate", c.authenticate},
		{"authorize", c.authorize},
		{"validate", c.runHook(c.validate)},
		{"load", c.runHook(c.load)},
		{"process", c.process},
		{"save", c.runHook(c.save)},
	}

	for _, p := range pipeline {
		if err := c.runPhase(ctx, p, fc); err != nil {
			c.exception(ctx, fc, p.name, err)
			break
		}
	}

	if !fc.responded {
		fc.Respond(http.StatusNoContent, nil)
	}

	// Terminate always runs; a failure inside it is logged, never
	// re-entered.
	if err := c.runPhase(ctx, phase{"terminate", c.terminate}, fc); err != nil {
		c.logger.ErrorContext(ctx, "functions: terminate phase failed",
			slog.String("request_id", fc.requestID),
			slog.String("error", err.Error()),
		)
	}

	if fc.invocation != nil && !fc.invocation.IsTerminal() {
		fc.invocation.Complete(fc.status)
	}
	span.SetAttributes(attribute.Int("function.status", fc.status))
	span.SetStatus(codes.Ok, "")
	return fc.invocation
}

// runPhase wraps one phase in a child span.
func (c *Controller) runPhase(ctx context.Context, p phase, fc *Context) error {
	ctx, span := c.tracer.Start(ctx, "functions.phase."+p.name)
	defer span.End()

	if err := p.run(ctx, fc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// runHook adapts an optional hook into a phase body. A nil hook is a
// no-op phase.
func (c *Controller) runHook(h Hook) func(ctx context.Context, fc *Context) error {
	return func(ctx context.Context, fc *Context) error {
		if h == nil {
			return nil
		}
		return h(ctx, fc)
	}
}

// initialize resolves the session from the request cookie, reads the
// monitor-mode header, stamps the request id on the response, and opens
// the invocation record.
func (c *Controller) initialize(ctx context.Context, fc *Context) error {
	fc.monitor = monitorEnabled(fc.host.Header(HeaderMonitor))
	fc.host.SetHeader(HeaderRequestID, fc.requestID)

	if mgr := c.registry.SessionManager(); mgr != nil {
		sess, err := mgr.Resolve(ctx, fc.host.Cookie(mgr.CookieName()))
		if err != nil {
			return err
		}
		fc.session = sess
	}

	inv, err := models.NewInvocation(c.function, fc.Trigger())
	if err != nil {
		return err
	}
	inv.Verb = fc.Verb()
	inv.Status = models.InvocationStatusRunning
	fc.invocation = inv

	c.logger.DebugContext(ctx, "functions: invocation started",
		slog.String("request_id", fc.requestID),
		slog.String("trigger", string(fc.Trigger())),
		slog.String("verb", fc.Verb()),
		slog.Bool("monitor", fc.monitor),
	)
	return nil
}

// authenticate runs the authenticator chain and seals the subject. An
// empty chain leaves the request anonymous; verification failures are
// folded into the verdict by the chain, never surfaced here.
func (c *Controller) authenticate(ctx context.Context, fc *Context) error {
	if c.chain.Len() > 0 {
		verdict := c.chain.Assert(ctx, fc.subject, fc)
		if verdict.Verified {
			fc.invocation.SubjectID = fc.subject.ID()
			if sub, ok := fc.subject.Claim("sub"); ok {
				if s, isString := sub.(string); isString && s != "" {
					fc.invocation.SubjectID = s
				}
			}
		}
	}
	fc.subject.Seal()
	return nil
}

// authorize checks the subject's roles against the registry policy for
// the controller's resource and the invocation verb. A controller with no
// resource accepts anonymous requests.
func (c *Controller) authorize(_ context.Context, fc *Context) error {
	if c.resource == "" {
		return nil
	}
	if err := auth.Authorize(fc.subject, c.resource, fc.Verb(), c.registry.Policy()); err != nil {
		return err
	}
	return nil
}

// process routes the invocation to the handler registered for its verb.
// An unregistered verb draws a [sserr.CodeUnsupportedVerb] error, which
// the exception handler maps to a 501.
func (c *Controller) process(ctx context.Context, fc *Context) error {
	handler, ok := c.handlers[fc.Verb()]
	if !ok {
		return sserr.Newf(sserr.CodeUnsupportedVerb,
			"functions: no handler registered for verb %q", fc.Verb())
	}
	return handler(ctx, fc)
}

// terminate flushes the session back to its manager and sets the session
// cookie on the response.
func (c *Controller) terminate(ctx context.Context, fc *Context) error {
	mgr := c.registry.SessionManager()
	if mgr == nil || fc.session == nil {
		return nil
	}
	value, err := mgr.Commit(ctx, fc.session)
	if err != nil {
		return err
	}
	maxAge := int(mgr.TTL().Seconds())
	fc.host.SetHeader("Set-Cookie", sessionCookie(mgr.CookieName(), value, maxAge))
	return nil
}

// exception maps a phase error to an HTTP-style response and marks the
// invocation failed. Classified errors keep their own status via
// [sserr.Error.HTTPStatus]; anything else is wrapped as a 500.
func (c *Controller) exception(ctx context.Context, fc *Context, phaseName string, err error) {
	classified, ok := sserr.AsError(err)
	if !ok {
		classified = sserr.Wrapf(err, sserr.CodeInternal,
			"functions: %s phase failed", phaseName)
	}
	status := classified.HTTPStatus()

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	c.logger.LogAttrs(ctx, level, "functions: invocation failed",
		slog.String("request_id", fc.requestID),
		slog.String("phase", phaseName),
		slog.String("code", string(classified.Code)),
		slog.Int("status", status),
		slog.String("error", classified.Error()),
	)

	body := map[string]any{
		"error": map[string]any{
			"code":    string(classified.Code),
			"message": classified.Message,
		},
	}
	if jsonErr := fc.RespondJSON(status, body); jsonErr != nil {
		fc.Respond(status, nil)
	}
	if fc.invocation != nil {
		fc.invocation.Fail(status, classified.Message)
	}
}
