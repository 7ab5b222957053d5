package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type used for context keys in this package.
// Using a distinct type prevents collisions with keys from other packages.
type contextKey int

const (
	// subjectKey stores the request Subject in the context.
	subjectKey contextKey = iota
)

// ContextWithSubject returns a new context with the given Subject attached.
// The subject can later be retrieved with [SubjectFromContext].
//
// This is typically called by the function host after the authentication
// phase has run, before the function handler is invoked.
func ContextWithSubject(ctx context.Context, sub *Subject) context.Context {
	return context.WithValue(ctx, subjectKey, sub)
}

// SubjectFromContext retrieves the Subject from the context.
// Returns the subject and true if present, or nil and false if no subject
// has been set. This function never returns a non-nil subject with false.
func SubjectFromContext(ctx context.Context) (*Subject, bool) {
	sub, ok := ctx.Value(subjectKey).(*Subject)
	return sub, ok
}

// MustSubjectFromContext retrieves the Subject from the context, panicking
// if no subject is present. This should only be used in code paths where a
// subject is guaranteed to exist (e.g., inside a function handler running
// under the host's request pipeline).
func MustSubjectFromContext(ctx context.Context) *Subject {
	sub, ok := SubjectFromContext(ctx)
	if !ok {
		panic("auth: no subject in context; ensure the request pipeline is configured")
	}
	return sub
}

// TraceIDFromContext extracts the OpenTelemetry trace ID from the context.
// Returns the trace ID as a hex string and true if a valid trace is active,
// or an empty string and false if no trace is present.
//
// This allows correlating authentication events with distributed traces.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}
