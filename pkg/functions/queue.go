package functions

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
	"github.com/StricklySoft/stricklysoft-functions/pkg/models"
)

// DefaultQueueVerb is the routing verb for queue invocations whose
// message does not name one.
const DefaultQueueVerb = "queue"

// HeaderMessageID is the pseudo-header on queue invocations carrying the
// message id.
const HeaderMessageID = "X-Message-Id"

// QueueMessage is one message delivered to a queue-triggered function.
// The broker adapter producing these is external; this package only
// binds them to the lifecycle pipeline.
type QueueMessage struct {
	// ID identifies the message for deduplication and logging. Filled
	// with a generated id when empty.
	ID string `json:"id"`

	// Verb selects the process-phase handler. Defaults to
	// [DefaultQueueVerb] when empty.
	Verb string `json:"verb,omitempty"`

	// Body is the message payload, exposed to handlers as the request
	// body.
	Body []byte `json:"body,omitempty"`

	// Attributes are broker metadata, exposed to handlers as request
	// headers.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// queueHost is the host binding for queue-triggered invocations.
type queueHost struct {
	msg QueueMessage

	status int
	out    []byte
}

var _ HostContext = (*queueHost)(nil)

func (h *queueHost) Trigger() models.TriggerKind { return models.TriggerQueue }

func (h *queueHost) Verb() string {
	if h.msg.Verb == "" {
		return DefaultQueueVerb
	}
	return h.msg.Verb
}

func (h *queueHost) Path() string { return "" }

func (h *queueHost) Header(name string) string {
	if name == HeaderMessageID {
		return h.msg.ID
	}
	return h.msg.Attributes[name]
}

func (h *queueHost) Cookie(string) string { return "" }

func (h *queueHost) Query(string) string { return "" }

func (h *queueHost) Body() []byte { return h.msg.Body }

func (h *queueHost) SetStatus(code int) { h.status = code }

func (h *queueHost) SetHeader(string, string) {}

func (h *queueHost) SetBody(body []byte) { h.out = body }

// QueueBinding dispatches broker messages through the lifecycle pipeline.
// The broker adapter (or a test) calls [QueueBinding.Dispatch] per
// message and redelivers on error.
type QueueBinding struct {
	controller *Controller
	logger     *slog.Logger
}

// NewQueueBinding creates a queue binding for the given controller.
func NewQueueBinding(c *Controller, logger *slog.Logger) *QueueBinding {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueBinding{controller: c, logger: logger}
}

// Dispatch runs one message through the pipeline. It returns the
// invocation record, and a [sserr.CodeInternal] error when the
// invocation failed so the broker can redeliver the message.
func (b *QueueBinding) Dispatch(ctx context.Context, msg QueueMessage) (*models.Invocation, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	host := &queueHost{msg: msg}
	inv := b.controller.Invoke(ctx, host)
	if inv != nil && inv.Status == models.InvocationStatusFailed {
		b.logger.WarnContext(ctx, "functions: queue invocation failed",
			slog.String("message_id", msg.ID),
			slog.String("invocation_id", inv.ID),
			slog.String("error", inv.ErrorMessage),
		)
		return inv, sserr.Newf(sserr.CodeInternal,
			"functions: message %s failed with status %d", msg.ID, inv.StatusCode)
	}
	return inv, nil
}
