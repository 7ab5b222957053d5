package addons

import (
	"context"
	"encoding/json"
	"log/slog"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// Descriptor section name owned by the timer add-on.
const (
	TimerAddonName = "timer"
	SectionTimer   = "Timer"
)

// DefaultTimerVerb is the function operation a schedule invokes when the
// descriptor does not name one.
const DefaultTimerVerb = "timer"

// TimerAddon publishes timer schedules from the descriptor. The function
// host's timer trigger reads them from the registry and fires the named
// verb on each interval.
type TimerAddon struct {
	logger *slog.Logger
}

// Compile-time assertion that TimerAddon implements Addon.
var _ Addon = (*TimerAddon)(nil)

// NewTimerAddon creates the timer add-on. A nil logger means
// slog.Default().
func NewTimerAddon(logger *slog.Logger) *TimerAddon {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimerAddon{logger: logger}
}

// Name returns "timer".
func (a *TimerAddon) Name() string { return TimerAddonName }

// Dependencies returns nil; timers do not need the HTTP surface.
func (a *TimerAddon) Dependencies() []string { return nil }

// ConfigParsers returns the parser for the "Timer" descriptor section.
func (a *TimerAddon) ConfigParsers() []ConfigParser {
	return []ConfigParser{&timerSectionParser{}}
}

// AttributeParsers returns nil.
func (a *TimerAddon) AttributeParsers() []AttributeParser { return nil }

// Initialize logs the published schedules. The schedules themselves were
// validated and published at parse time.
func (a *TimerAddon) Initialize(_ context.Context, reg *Registry) error {
	for _, s := range reg.Schedules() {
		a.logger.Info("timer schedule registered",
			"schedule", s.Name, "interval", s.Interval, "verb", s.Verb)
	}
	return nil
}

// timerSectionParser applies the "Timer" descriptor section.
type timerSectionParser struct{}

func (*timerSectionParser) Section() string { return SectionTimer }

func (*timerSectionParser) Parse(_ context.Context, raw json.RawMessage, reg *Registry) error {
	var sec struct {
		Schedules []struct {
			Name     string `json:"name"`
			Interval string `json:"interval"`
			Verb     string `json:"verb,omitempty"`
		} `json:"schedules"`
	}
	if err := json.Unmarshal(raw, &sec); err != nil {
		return sserr.Wrap(err, sserr.CodeValidation,
			"addons: Timer section is not a valid object")
	}

	for _, s := range sec.Schedules {
		if s.Name == "" {
			return sserr.Validation("addons: timer schedule requires a \"name\"")
		}
		interval, err := parseDuration("timer interval", s.Interval)
		if err != nil {
			return err
		}
		if interval <= 0 {
			return sserr.Validationf(
				"addons: timer schedule %q requires a positive interval", s.Name)
		}
		verb := s.Verb
		if verb == "" {
			verb = DefaultTimerVerb
		}
		reg.AddSchedule(Schedule{Name: s.Name, Interval: interval, Verb: verb})
	}
	return nil
}
