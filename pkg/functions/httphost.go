package functions

import (
	"io"
	"net/http"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
	"github.com/StricklySoft/stricklysoft-functions/pkg/models"
)

// maxRequestBody caps the inbound request body read by the HTTP adapter
// (1 MB). Larger bodies are rejected with a 400 before the pipeline runs.
const maxRequestBody = 1 << 20

// httpHost adapts one net/http exchange to the [HostContext] binding. The
// response is buffered and flushed after the pipeline finishes, so the
// terminate phase can still add cookies after a handler responded.
type httpHost struct {
	r    *http.Request
	body []byte

	status  int
	headers http.Header
	out     []byte
}

var _ HostContext = (*httpHost)(nil)

func newHTTPHost(r *http.Request, body []byte) *httpHost {
	return &httpHost{
		r:       r,
		body:    body,
		status:  http.StatusOK,
		headers: make(http.Header),
	}
}

func (h *httpHost) Trigger() models.TriggerKind { return models.TriggerHTTP }

func (h *httpHost) Verb() string { return h.r.Method }

func (h *httpHost) Path() string { return h.r.URL.Path }

func (h *httpHost) Header(name string) string { return h.r.Header.Get(name) }

func (h *httpHost) Cookie(name string) string {
	c, err := h.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *httpHost) Query(name string) string { return h.r.URL.Query().Get(name) }

func (h *httpHost) Body() []byte { return h.body }

func (h *httpHost) SetStatus(code int) { h.status = code }

func (h *httpHost) SetHeader(name, value string) { h.headers.Set(name, value) }

func (h *httpHost) SetBody(body []byte) { h.out = body }

// flush writes the buffered response to the ResponseWriter.
func (h *httpHost) flush(w http.ResponseWriter) {
	for name, values := range h.headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(h.status)
	if len(h.out) > 0 {
		_, _ = w.Write(h.out)
	}
}

// NewHTTPHandler wraps a controller into a standard [http.Handler] for
// serving the function locally or behind any Go HTTP host. Each request
// runs the full lifecycle pipeline.
func NewHTTPHandler(c *Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if len(body) > maxRequestBody {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		host := newHTTPHost(r, body)
		c.Invoke(r.Context(), host)
		host.flush(w)
	})
}

// ListenAndServe serves the controller on addr until the listener fails.
// It is a convenience for local development; production deployments embed
// [NewHTTPHandler] in their own server.
func ListenAndServe(addr string, c *Controller) error {
	srv := &http.Server{Addr: addr, Handler: NewHTTPHandler(c)}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return sserr.Wrap(err, sserr.CodeInternal, "functions: http server failed")
	}
	return nil
}
