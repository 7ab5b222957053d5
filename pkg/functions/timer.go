package functions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/StricklySoft/stricklysoft-functions/pkg/addons"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
	"github.com/StricklySoft/stricklysoft-functions/pkg/models"
)

// HeaderTimerName is the pseudo-header on timer invocations carrying the
// schedule name.
const HeaderTimerName = "X-Timer-Name"

// HeaderTimerPastDue is the pseudo-header set to "true" when a timer
// invocation fires later than its schedule intended, e.g. on the first
// tick after a cold start that missed one or more intervals.
const HeaderTimerPastDue = "X-Timer-Past-Due"

// timerHost is the host binding for timer-triggered invocations. Timer
// invocations have no caller, so the response is recorded only for the
// invocation record.
type timerHost struct {
	schedule addons.Schedule
	pastDue  bool

	status int
	out    []byte
}

var _ HostContext = (*timerHost)(nil)

func (h *timerHost) Trigger() models.TriggerKind { return models.TriggerTimer }

func (h *timerHost) Verb() string { return h.schedule.Verb }

func (h *timerHost) Path() string { return "" }

func (h *timerHost) Header(name string) string {
	switch name {
	case HeaderTimerName:
		return h.schedule.Name
	case HeaderTimerPastDue:
		if h.pastDue {
			return "true"
		}
	}
	return ""
}

func (h *timerHost) Cookie(string) string { return "" }

func (h *timerHost) Query(string) string { return "" }

func (h *timerHost) Body() []byte { return nil }

func (h *timerHost) SetStatus(code int) { h.status = code }

func (h *timerHost) SetHeader(string, string) {}

func (h *timerHost) SetBody(body []byte) { h.out = body }

// Scheduler fires timer invocations for the schedules declared in the
// Timer section of the bootstrap descriptor. Each schedule runs on its
// own ticker goroutine; invocations for distinct schedules may overlap,
// invocations of the same schedule never do.
type Scheduler struct {
	controller *Controller
	logger     *slog.Logger
}

// NewScheduler creates a scheduler driving the given controller. The
// schedules come from the controller's registry.
func NewScheduler(c *Controller, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{controller: c, logger: logger}
}

// Run fires every configured schedule at its interval until ctx is
// canceled. It returns a [sserr.CodeConfiguration] error when no
// schedules are configured, and nil once ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	schedules := s.controller.Registry().Schedules()
	if len(schedules) == 0 {
		return sserr.New(sserr.CodeConfiguration,
			"functions: no timer schedules configured")
	}

	var wg sync.WaitGroup
	for _, sched := range schedules {
		wg.Add(1)
		go func(sched addons.Schedule) {
			defer wg.Done()
			s.runSchedule(ctx, sched)
		}(sched)
	}
	wg.Wait()
	return nil
}

// runSchedule ticks one schedule. A tick that arrives while the previous
// invocation is still running is observed late by the ticker; the next
// invocation is then marked past due.
func (s *Scheduler) runSchedule(ctx context.Context, sched addons.Schedule) {
	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "functions: schedule started",
		slog.String("schedule", sched.Name),
		slog.Duration("interval", sched.Interval),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "functions: schedule stopped",
				slog.String("schedule", sched.Name))
			return
		case tick := <-ticker.C:
			pastDue := time.Since(tick) > sched.Interval
			s.Fire(ctx, sched, pastDue)
		}
	}
}

// Fire runs one timer invocation for the given schedule immediately and
// returns its invocation record.
func (s *Scheduler) Fire(ctx context.Context, sched addons.Schedule, pastDue bool) *models.Invocation {
	host := &timerHost{schedule: sched, pastDue: pastDue}
	inv := s.controller.Invoke(ctx, host)
	if inv != nil && inv.Status == models.InvocationStatusFailed {
		s.logger.WarnContext(ctx, "functions: timer invocation failed",
			slog.String("schedule", sched.Name),
			slog.String("invocation_id", inv.ID),
			slog.String("error", inv.ErrorMessage),
		)
	}
	return inv
}
