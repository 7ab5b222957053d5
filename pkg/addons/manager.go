package addons

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-functions/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// tracerName is the instrumentation scope for add-on bootstrap spans.
const tracerName = "github.com/StricklySoft/stricklysoft-functions/pkg/addons"

// entry tracks a registered add-on and its bootstrap state.
type entry struct {
	addon Addon
	state State
}

// Manager composes registered add-ons into a frozen [Registry] during a
// single bootstrap. Registration happens before bootstrap; bootstrap runs
// exactly once.
//
// Manager is safe for concurrent use, though the expected pattern is
// sequential: register everything on cold start, then bootstrap.
type Manager struct {
	logger *slog.Logger

	mu           sync.Mutex
	entries      map[string]*entry
	order        []string
	bootstrapped bool
	registry     *Registry
}

// NewManager creates an empty Manager. A nil logger means
// slog.Default().
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:  logger,
		entries: map[string]*entry{},
	}
}

// Register adds an add-on to the manager. Registration order breaks ties
// between add-ons with no dependency relationship. Registering a
// duplicate name or registering after bootstrap is a configuration
// error.
func (m *Manager) Register(a Addon) error {
	if a == nil {
		return sserr.Validation("addons: cannot register a nil add-on")
	}
	name := a.Name()
	if name == "" {
		return sserr.Validation("addons: add-on name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bootstrapped {
		return sserr.Configurationf(
			"addons: cannot register %q after bootstrap", name)
	}
	if _, exists := m.entries[name]; exists {
		return sserr.Configurationf(
			"addons: add-on %q is already registered", name)
	}
	m.entries[name] = &entry{addon: a, state: StateRegistered}
	m.order = append(m.order, name)
	return nil
}

// State returns the bootstrap state of the named add-on, or
// [StateUnknown] when the name is not registered.
func (m *Manager) State(name string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return StateUnknown
	}
	return e.state
}

// Registry returns the frozen registry produced by bootstrap, or nil
// before bootstrap has completed successfully.
func (m *Manager) Registry() *Registry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry
}

// transition moves an add-on to the given state, rejecting invalid
// transitions. Invalid transitions indicate a manager bug, so they
// panic.
func (m *Manager) transition(name string, to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[name]
	if !ValidTransition(e.state, to) {
		panic("addons: invalid state transition " + e.state.String() + " -> " + to.String() + " for " + name)
	}
	e.state = to
}

// Bootstrap composes the registered add-ons against the function
// descriptor and returns the frozen registry.
//
// The steps, in order: resolve the dependency order (a missing or cyclic
// dependency fails the whole bootstrap before any add-on initializes),
// assemble the parser chains in that order, apply every descriptor
// section through the config chain, initialize each add-on exactly once
// in dependency order, and freeze the registry.
//
// Bootstrap runs at most once per manager; a second call is a
// configuration error.
func (m *Manager) Bootstrap(ctx context.Context, desc config.Descriptor) (*Registry, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "addons.Bootstrap",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	m.mu.Lock()
	if m.bootstrapped {
		m.mu.Unlock()
		err := sserr.Configuration("addons: bootstrap already ran")
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	m.bootstrapped = true
	m.mu.Unlock()

	order, err := m.resolveOrder()
	if err != nil {
		m.failAll()
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.StringSlice("addons.order", order))

	// Parser chains follow the dependency order so a dependency's
	// parsers always win ties against a dependent's.
	var attrParsers []AttributeParser
	chain := &configChain{}
	parserOwner := map[string]string{}
	for _, name := range order {
		addon := m.entries[name].addon
		attrParsers = append(attrParsers, addon.AttributeParsers()...)
		for _, cp := range addon.ConfigParsers() {
			chain.parsers = append(chain.parsers, cp)
			if _, claimed := parserOwner[cp.Section()]; !claimed {
				parserOwner[cp.Section()] = name
			}
		}
	}
	reg := newRegistry(NewAttributeChain(attrParsers...))

	if err := m.applyDescriptor(ctx, desc, chain, parserOwner, reg); err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	for _, name := range order {
		addon := m.entries[name].addon
		m.transition(name, StateInitializing)
		m.logger.Debug("initializing add-on", "addon", name)

		if err := addon.Initialize(ctx, reg); err != nil {
			m.transition(name, StateFailed)
			// Keep the add-on's own classification when it has one.
			wrapped, ok := sserr.AsError(err)
			if !ok {
				wrapped = sserr.Wrapf(err, sserr.CodeConfiguration,
					"addons: add-on %q failed to initialize", name)
			}
			m.logger.Error("add-on initialization failed",
				"addon", name, "error", err)
			span.SetStatus(otelcodes.Error, wrapped.Error())
			return nil, wrapped
		}
		m.transition(name, StateReady)
		m.logger.Info("add-on ready", "addon", name)
	}

	reg.freeze()
	m.mu.Lock()
	m.registry = reg
	m.mu.Unlock()
	return reg, nil
}

// resolveOrder computes the dependency order of the registered add-ons
// with a stable topological sort: among add-ons whose dependencies are
// satisfied, registration order wins. A dependency on an unregistered
// name or a dependency cycle fails the resolution.
func (m *Manager) resolveOrder() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.order {
		for _, dep := range m.entries[name].addon.Dependencies() {
			if _, ok := m.entries[dep]; !ok {
				return nil, sserr.Newf(sserr.CodeConfigurationDependency,
					"addons: add-on %q depends on %q, which is not registered",
					name, dep)
			}
		}
	}

	resolved := make(map[string]bool, len(m.order))
	order := make([]string, 0, len(m.order))
	for len(order) < len(m.order) {
		progressed := false
		for _, name := range m.order {
			if resolved[name] {
				continue
			}
			ready := true
			for _, dep := range m.entries[name].addon.Dependencies() {
				if !resolved[dep] {
					ready = false
					break
				}
			}
			if ready {
				resolved[name] = true
				order = append(order, name)
				progressed = true
			}
		}
		if !progressed {
			return nil, sserr.Newf(sserr.CodeConfiguration,
				"addons: dependency cycle among %v", m.unresolvedNames(resolved))
		}
	}
	return order, nil
}

// unresolvedNames returns the registered names not yet resolved, in
// registration order. Used for cycle diagnostics.
func (m *Manager) unresolvedNames(resolved map[string]bool) []string {
	var names []string
	for _, name := range m.order {
		if !resolved[name] {
			names = append(names, name)
		}
	}
	return names
}

// applyDescriptor routes every descriptor section through the config
// chain. A section no parser claims fails the bootstrap; a parse failure
// marks the owning add-on failed.
func (m *Manager) applyDescriptor(ctx context.Context, desc config.Descriptor, chain *configChain, parserOwner map[string]string, reg *Registry) error {
	// Apply in chain order for determinism, then sweep for unclaimed
	// sections.
	seen := map[string]bool{}
	for _, p := range chain.parsers {
		raw, ok := desc.Section(p.Section())
		if !ok || seen[p.Section()] {
			continue
		}
		seen[p.Section()] = true

		if err := p.Parse(ctx, raw, reg); err != nil {
			owner := parserOwner[p.Section()]
			m.transition(owner, StateFailed)
			m.logger.Error("descriptor section rejected",
				"section", p.Section(), "addon", owner, "error", err)
			return sserr.FromError(err)
		}
		m.logger.Debug("descriptor section applied",
			"section", p.Section(), "addon", parserOwner[p.Section()])
	}

	for _, name := range desc.Names() {
		if !seen[name] {
			return sserr.Newf(sserr.CodeConfigurationUnknownType,
				"addons: no add-on claims descriptor section %q", name)
		}
	}
	return nil
}

// failAll marks every non-terminal add-on failed. Used when order
// resolution fails before any add-on initializes.
func (m *Manager) failAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if !e.state.IsTerminal() {
			e.state = StateFailed
		}
	}
}
