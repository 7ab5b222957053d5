// Package models defines the core data models for the StricklySoft
// functions platform.
//
// The models in this package represent the record types shared across the
// function host, the add-on layer, and persistent storage. They are
// designed for serialization (JSON) and database persistence.
//
// Invocation Model:
//
// The [Invocation] type represents a single function invocation — the
// record the controller creates when a trigger fires and updates as the
// request moves through the lifecycle phases. Every invocation is tracked
// with a unique record that connects the trigger, the authenticated
// subject, status, and outcome.
//
// An Invocation flows through a defined lifecycle:
//
//	pending → running → completed
//	                  → failed
//	                  → timeout
//
// Once an invocation reaches a terminal state (completed, failed,
// timeout), it cannot transition to another state. The
// [Invocation.IsTerminal] method identifies terminal states.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InvocationSchemaVersion identifies the current schema version of the
// Invocation model. Increment this when making breaking changes to the
// struct fields or serialization format.
const InvocationSchemaVersion = 1

// TriggerKind identifies the kind of trigger that started an invocation.
type TriggerKind string

const (
	// TriggerHTTP marks invocations started by an inbound HTTP request.
	TriggerHTTP TriggerKind = "http"

	// TriggerTimer marks invocations started by a schedule firing.
	TriggerTimer TriggerKind = "timer"

	// TriggerQueue marks invocations started by a queue message.
	TriggerQueue TriggerKind = "queue"
)

// Valid reports whether the trigger kind is one of the recognized values.
func (k TriggerKind) Valid() bool {
	switch k {
	case TriggerHTTP, TriggerTimer, TriggerQueue:
		return true
	default:
		return false
	}
}

// InvocationStatus represents the lifecycle state of a function
// invocation. Invocations begin in [InvocationStatusPending] and progress
// through the lifecycle until reaching a terminal state.
type InvocationStatus string

const (
	// InvocationStatusPending indicates the invocation has been created
	// but processing has not started. This is the initial state set by
	// [NewInvocation].
	InvocationStatusPending InvocationStatus = "pending"

	// InvocationStatusRunning indicates the invocation is moving through
	// the lifecycle phases.
	InvocationStatusRunning InvocationStatus = "running"

	// InvocationStatusCompleted indicates the invocation finished and a
	// response was produced. This is a terminal state.
	InvocationStatusCompleted InvocationStatus = "completed"

	// InvocationStatusFailed indicates a lifecycle phase raised an error
	// that the exception handler turned into an error response. This is a
	// terminal state. The error details are recorded in
	// [Invocation.ErrorMessage].
	InvocationStatusFailed InvocationStatus = "failed"

	// InvocationStatusTimeout indicates the invocation exceeded its
	// deadline and was terminated. This is a terminal state.
	InvocationStatusTimeout InvocationStatus = "timeout"
)

// String returns the string representation of the invocation status.
func (s InvocationStatus) String() string {
	return string(s)
}

// Valid reports whether the invocation status is one of the recognized
// values.
func (s InvocationStatus) Valid() bool {
	switch s {
	case InvocationStatusPending, InvocationStatusRunning,
		InvocationStatusCompleted, InvocationStatusFailed,
		InvocationStatusTimeout:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether this status represents a final state from
// which no further transitions are possible.
func (s InvocationStatus) IsTerminal() bool {
	switch s {
	case InvocationStatusCompleted, InvocationStatusFailed,
		InvocationStatusTimeout:
		return true
	default:
		return false
	}
}

// Invocation represents a single function invocation. The controller
// creates one per trigger firing and records the outcome when the
// terminate phase completes.
//
// Fields carry JSON tags for API serialization and persistence as a JSON
// document. Optional fields use omitempty to exclude zero values from
// serialized output.
//
// Invocation records are created via [NewInvocation] and are immutable
// after creation except for status-related updates (Status, EndTime,
// StatusCode, ErrorMessage, Metadata, UpdatedAt).
type Invocation struct {
	// ID is the unique identifier for this invocation (UUID v4). It is
	// also the request identifier exposed to handlers and echoed in
	// responses.
	ID string `json:"id"`

	// Function is the name of the function that handled the invocation.
	Function string `json:"function"`

	// Trigger identifies the kind of trigger that started the
	// invocation. See [TriggerKind] for valid values.
	Trigger TriggerKind `json:"trigger"`

	// Verb is the operation requested of the function. For HTTP triggers
	// this is the lowercased request method.
	Verb string `json:"verb,omitempty"`

	// SubjectID identifies the authenticated subject on whose behalf the
	// invocation ran. Empty for anonymous invocations.
	SubjectID string `json:"subject_id,omitempty"`

	// Status is the current lifecycle state of the invocation.
	// See [InvocationStatus] for valid values.
	Status InvocationStatus `json:"status"`

	// StartTime is the UTC timestamp when the invocation began. Set to
	// the creation time by [NewInvocation].
	StartTime time.Time `json:"start_time"`

	// EndTime is the UTC timestamp when the invocation reached a
	// terminal state. Nil while the invocation is pending or running.
	EndTime *time.Time `json:"end_time,omitempty"`

	// StatusCode is the HTTP status of the produced response. Zero for
	// non-HTTP triggers and for invocations that have not terminated.
	StatusCode int `json:"status_code,omitempty"`

	// ErrorMessage contains the error details when the invocation has
	// failed. Empty for non-failed invocations.
	ErrorMessage string `json:"error_message,omitempty"`

	// Metadata is an extensible key-value store for function-specific
	// data. Nil metadata is normalized to an empty map by
	// [NewInvocation].
	Metadata map[string]any `json:"metadata"`

	// CreatedAt is the UTC timestamp when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the UTC timestamp when the record was last modified.
	// Updated on every status change.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInvocation creates a new Invocation record with a generated UUID,
// pending status, and UTC timestamps. The metadata map is initialized to
// an empty map.
//
// Returns an error if the function name is empty or the trigger kind is
// not recognized.
func NewInvocation(function string, trigger TriggerKind) (*Invocation, error) {
	if function == "" {
		return nil, errors.New("models: invocation function must not be empty")
	}
	if !trigger.Valid() {
		return nil, fmt.Errorf("models: invalid invocation trigger %q", trigger)
	}

	now := time.Now().UTC()
	return &Invocation{
		ID:        uuid.New().String(),
		Function:  function,
		Trigger:   trigger,
		Status:    InvocationStatusPending,
		StartTime: now,
		Metadata:  make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate checks that all required fields are present and that the
// status and trigger are recognized values. Returns the first validation
// error encountered, or nil if the invocation is valid.
func (i *Invocation) Validate() error {
	if i.ID == "" {
		return errors.New("models: invocation ID is required")
	}
	if i.Function == "" {
		return errors.New("models: invocation function is required")
	}
	if !i.Trigger.Valid() {
		return fmt.Errorf("models: invalid invocation trigger %q", i.Trigger)
	}
	if !i.Status.Valid() {
		return fmt.Errorf("models: invalid invocation status %q", i.Status)
	}
	if i.StartTime.IsZero() {
		return errors.New("models: invocation start time is required")
	}
	if i.CreatedAt.IsZero() {
		return errors.New("models: invocation created_at is required")
	}
	if i.UpdatedAt.IsZero() {
		return errors.New("models: invocation updated_at is required")
	}
	return nil
}

// IsTerminal reports whether the invocation has reached a final state
// from which no further transitions are possible (completed, failed, or
// timeout).
func (i *Invocation) IsTerminal() bool {
	return i.Status.IsTerminal()
}

// Complete marks the invocation completed with the given response status
// code and stamps the end time.
func (i *Invocation) Complete(statusCode int) {
	now := time.Now().UTC()
	i.Status = InvocationStatusCompleted
	i.StatusCode = statusCode
	i.EndTime = &now
	i.UpdatedAt = now
}

// Fail marks the invocation failed with the given response status code
// and error message, and stamps the end time.
func (i *Invocation) Fail(statusCode int, message string) {
	now := time.Now().UTC()
	i.Status = InvocationStatusFailed
	i.StatusCode = statusCode
	i.ErrorMessage = message
	i.EndTime = &now
	i.UpdatedAt = now
}

// Duration returns the wall-clock duration of the invocation. If the
// invocation has an EndTime, the duration is calculated from StartTime to
// EndTime. If the invocation is still in progress (EndTime is nil), the
// duration is calculated from StartTime to the current time.
//
// Returns zero if StartTime is zero.
func (i *Invocation) Duration() time.Duration {
	if i.StartTime.IsZero() {
		return 0
	}
	if i.EndTime != nil {
		return i.EndTime.Sub(i.StartTime)
	}
	return time.Since(i.StartTime)
}
