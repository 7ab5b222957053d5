// Package functions runs serverless cloud functions over a fixed request
// lifecycle. Every invocation, whatever its trigger, moves through the
// same linear phase pipeline: bind the host context, initialize the
// per-request [Context] (cookies, session, monitor mode, request id),
// authenticate against the add-on registry's authenticator chain,
// authorize against the role policy, then validate, load, process, save,
// and terminate. No phase may be skipped or reordered.
//
// The [Controller] owns the pipeline. Application code supplies verb
// handlers and optional validate/load/save hooks; everything else comes
// from the frozen [addons.Registry] produced by [App.Bootstrap].
//
// Error codes returned by this package:
//   - UNSUP_002: the invocation's verb has no registered handler (501).
//   - INT_001: a phase failed with an unclassified error (500).
package functions

import (
	"encoding/json"
	"log/slog"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/StricklySoft/stricklysoft-functions/pkg/auth"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
	"github.com/StricklySoft/stricklysoft-functions/pkg/models"
	"github.com/StricklySoft/stricklysoft-functions/pkg/session"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
// It follows the Go module path convention for OTel instrumentation libraries.
const tracerName = "github.com/StricklySoft/stricklysoft-functions/pkg/functions"

// HeaderMonitor is the request header that switches an invocation into
// monitor mode. Any non-empty value other than "0" and "false" enables it.
const HeaderMonitor = "X-Monitor-Mode"

// HeaderRequestID is the response header carrying the invocation's
// request id.
const HeaderRequestID = "X-Request-Id"

// HostContext is the function host's invocation binding: the object through
// which the framework reads the inbound request and writes the outbound
// response. The core does not own this object's shape; [pkg/functions]
// ships an HTTP adapter and in-process timer/queue bindings, and tests
// substitute fakes.
//
// Hosts buffer writes: SetStatus, SetHeader, and SetBody record the
// response, and the concrete host flushes it after the pipeline finishes.
type HostContext interface {
	// Trigger reports what kind of event produced this invocation.
	Trigger() models.TriggerKind

	// Verb is the routing key for the process phase: the HTTP method for
	// HTTP triggers, the schedule verb for timers, the configured verb
	// for queue messages.
	Verb() string

	// Path returns the request path, or "" for non-HTTP triggers.
	Path() string

	// Header returns the named request header, or "" when absent.
	Header(name string) string

	// Cookie returns the value of the named cookie, or "" when absent.
	Cookie(name string) string

	// Query returns the named query string parameter, or "" when absent.
	Query(name string) string

	// Body returns the raw request payload. May be nil.
	Body() []byte

	// SetStatus records the response status code.
	SetStatus(code int)

	// SetHeader records a response header.
	SetHeader(name, value string)

	// SetBody records the response body.
	SetBody(body []byte)
}

// Context is the per-invocation request context threaded through every
// phase of the pipeline. It is created fresh for each invocation and never
// shared across concurrent invocations, so its methods need no locking.
//
// Context implements [auth.Carrier] by delegating to the host binding, so
// the authenticator chain reads credentials straight off it.
type Context struct {
	host       HostContext
	requestID  string
	subject    *auth.Subject
	session    *session.Session
	invocation *models.Invocation
	monitor    bool
	logger     *slog.Logger

	values map[string]any

	status    int
	responded bool
}

// Compile-time check that the request context can feed the authenticator
// chain directly.
var _ auth.Carrier = (*Context)(nil)

// newContext binds a host invocation context into a fresh request context
// with a new request id and an unauthenticated subject.
func newContext(host HostContext, logger *slog.Logger) *Context {
	requestID := uuid.NewString()
	return &Context{
		host:      host,
		requestID: requestID,
		subject:   auth.NewSubject(),
		logger:    logger.With(slog.String("request_id", requestID)),
		values:    make(map[string]any),
	}
}

// RequestID returns the unique identifier assigned to this invocation.
func (c *Context) RequestID() string { return c.requestID }

// Host returns the underlying host invocation binding.
func (c *Context) Host() HostContext { return c.host }

// Verb returns the invocation's routing verb, lowercased.
func (c *Context) Verb() string { return strings.ToLower(c.host.Verb()) }

// Trigger reports what kind of event produced this invocation.
func (c *Context) Trigger() models.TriggerKind { return c.host.Trigger() }

// Subject returns the invocation's principal. It is mutable during the
// authenticate phase and sealed afterward.
func (c *Context) Subject() *auth.Subject { return c.subject }

// Session returns the invocation's session, or nil when no session
// manager is configured.
func (c *Context) Session() *session.Session { return c.session }

// Invocation returns the audit record for this invocation, or nil before
// the initialize phase has run.
func (c *Context) Invocation() *models.Invocation { return c.invocation }

// Monitor reports whether the invocation runs in monitor mode. Monitor
// invocations are synthetic health probes; handlers may skip side effects
// for them.
func (c *Context) Monitor() bool { return c.monitor }

// Logger returns the invocation's logger, annotated with the request id.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Header returns the named request header, or "" when absent.
func (c *Context) Header(name string) string { return c.host.Header(name) }

// Cookie returns the value of the named cookie, or "" when absent.
func (c *Context) Cookie(name string) string { return c.host.Cookie(name) }

// Query returns the named query string parameter, or "" when absent.
func (c *Context) Query(name string) string { return c.host.Query(name) }

// Body returns the raw request payload. May be nil.
func (c *Context) Body() []byte { return c.host.Body() }

// Bind unmarshals the request body into v. An empty body or malformed
// JSON yields a [sserr.CodeValidation] error.
func (c *Context) Bind(v any) error {
	body := c.host.Body()
	if len(body) == 0 {
		return sserr.Validation("functions: request body is empty")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return sserr.Wrap(err, sserr.CodeValidation,
			"functions: request body is not valid JSON")
	}
	return nil
}

// SetValue stores a per-invocation value, typically set by the load phase
// for the process phase to consume.
func (c *Context) SetValue(key string, value any) {
	c.values[key] = value
}

// Value returns a per-invocation value stored by [Context.SetValue].
func (c *Context) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Status returns the response status recorded so far, or 0 when no
// response has been written.
func (c *Context) Status() int { return c.status }

// Responded reports whether a response has been written.
func (c *Context) Responded() bool { return c.responded }

// Respond records the response status and raw body on the host binding.
// The last call wins.
func (c *Context) Respond(status int, body []byte) {
	c.status = status
	c.responded = true
	c.host.SetStatus(status)
	c.host.SetBody(body)
}

// RespondJSON marshals v and records it as a JSON response. A marshal
// failure is returned without writing a response.
func (c *Context) RespondJSON(status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeInternal,
			"functions: failed to encode response body")
	}
	c.host.SetHeader("Content-Type", "application/json")
	c.Respond(status, body)
	return nil
}

// monitorEnabled interprets the monitor-mode header value.
func monitorEnabled(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false":
		return false
	default:
		return true
	}
}

// sessionCookie formats the Set-Cookie response header value for a
// committed session.
func sessionCookie(name, value string, maxAge int) string {
	var b strings.Builder
	b.WriteString(textproto.TrimString(name))
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteString("; Path=/; Max-Age=")
	b.WriteString(strconv.Itoa(maxAge))
	b.WriteString("; HttpOnly; SameSite=Lax")
	return b.String()
}
