package addons

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-functions/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// fakeAddon is a scriptable add-on that records its initializations in a
// shared order slice.
type fakeAddon struct {
	name      string
	deps      []string
	initErr   error
	initCount int
	order     *[]string

	configParsers    []ConfigParser
	attributeParsers []AttributeParser
}

func (a *fakeAddon) Name() string                        { return a.name }
func (a *fakeAddon) Dependencies() []string              { return a.deps }
func (a *fakeAddon) ConfigParsers() []ConfigParser       { return a.configParsers }
func (a *fakeAddon) AttributeParsers() []AttributeParser { return a.attributeParsers }

func (a *fakeAddon) Initialize(context.Context, *Registry) error {
	a.initCount++
	if a.order != nil {
		*a.order = append(*a.order, a.name)
	}
	return a.initErr
}

// fakeSectionParser claims one section and records the raw content.
type fakeSectionParser struct {
	section string
	raw     json.RawMessage
	err     error
}

func (p *fakeSectionParser) Section() string { return p.section }

func (p *fakeSectionParser) Parse(_ context.Context, raw json.RawMessage, _ *Registry) error {
	p.raw = raw
	return p.err
}

func TestManagerRegister(t *testing.T) {
	t.Parallel()

	t.Run("Duplicate", func(t *testing.T) {
		t.Parallel()

		m := NewManager(nil)
		require.NoError(t, m.Register(&fakeAddon{name: "a"}))

		err := m.Register(&fakeAddon{name: "a"})
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeConfiguration))
	})

	t.Run("Nil", func(t *testing.T) {
		t.Parallel()

		m := NewManager(nil)
		require.Error(t, m.Register(nil))
	})

	t.Run("EmptyName", func(t *testing.T) {
		t.Parallel()

		m := NewManager(nil)
		require.Error(t, m.Register(&fakeAddon{}))
	})

	t.Run("AfterBootstrap", func(t *testing.T) {
		t.Parallel()

		m := NewManager(nil)
		require.NoError(t, m.Register(&fakeAddon{name: "a"}))
		_, err := m.Bootstrap(context.Background(), config.Descriptor{})
		require.NoError(t, err)

		err = m.Register(&fakeAddon{name: "b"})
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeConfiguration))
	})
}

func TestManagerBootstrap_DependencyOrder(t *testing.T) {
	t.Parallel()

	// Register the dependent before its dependency; the dependency must
	// still initialize first.
	var order []string
	b := &fakeAddon{name: "b", deps: []string{"a"}, order: &order}
	a := &fakeAddon{name: "a", order: &order}
	c := &fakeAddon{name: "c", deps: []string{"b"}, order: &order}

	m := NewManager(nil)
	require.NoError(t, m.Register(b))
	require.NoError(t, m.Register(c))
	require.NoError(t, m.Register(a))

	_, err := m.Bootstrap(context.Background(), config.Descriptor{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, StateReady, m.State("a"))
	assert.Equal(t, StateReady, m.State("b"))
	assert.Equal(t, StateReady, m.State("c"))
}

func TestManagerBootstrap_MissingDependency(t *testing.T) {
	t.Parallel()

	// The failure must surface before either add-on initializes.
	a := &fakeAddon{name: "a"}
	b := &fakeAddon{name: "b", deps: []string{"ghost"}}

	m := NewManager(nil)
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))

	_, err := m.Bootstrap(context.Background(), config.Descriptor{})
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeConfigurationDependency))
	assert.Contains(t, err.Error(), "ghost")
	assert.Zero(t, a.initCount)
	assert.Zero(t, b.initCount)
	assert.Equal(t, StateFailed, m.State("a"))
	assert.Equal(t, StateFailed, m.State("b"))
}

func TestManagerBootstrap_DependencyCycle(t *testing.T) {
	t.Parallel()

	a := &fakeAddon{name: "a", deps: []string{"b"}}
	b := &fakeAddon{name: "b", deps: []string{"a"}}

	m := NewManager(nil)
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))

	_, err := m.Bootstrap(context.Background(), config.Descriptor{})
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeConfiguration))
	assert.Zero(t, a.initCount)
	assert.Zero(t, b.initCount)
}

func TestManagerBootstrap_InitializeExactlyOnce(t *testing.T) {
	t.Parallel()

	a := &fakeAddon{name: "a"}
	m := NewManager(nil)
	require.NoError(t, m.Register(a))

	_, err := m.Bootstrap(context.Background(), config.Descriptor{})
	require.NoError(t, err)
	assert.Equal(t, 1, a.initCount)

	_, err = m.Bootstrap(context.Background(), config.Descriptor{})
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeConfiguration))
	assert.Equal(t, 1, a.initCount)
}

func TestManagerBootstrap_InitializeFailure(t *testing.T) {
	t.Parallel()

	var order []string
	a := &fakeAddon{name: "a", order: &order, initErr: errors.New("no backend")}
	b := &fakeAddon{name: "b", deps: []string{"a"}, order: &order}

	m := NewManager(nil)
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))

	_, err := m.Bootstrap(context.Background(), config.Descriptor{})
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeConfiguration))
	assert.Contains(t, err.Error(), `"a"`)
	assert.Equal(t, StateFailed, m.State("a"))
	// The dependent never ran.
	assert.Equal(t, []string{"a"}, order)
	assert.Zero(t, b.initCount)
	assert.Nil(t, m.Registry())
}

func TestManagerBootstrap_SectionsRouted(t *testing.T) {
	t.Parallel()

	parser := &fakeSectionParser{section: "Widgets"}
	a := &fakeAddon{name: "a", configParsers: []ConfigParser{parser}}

	m := NewManager(nil)
	require.NoError(t, m.Register(a))

	desc, err := config.ParseDescriptor([]byte(`{"Widgets": {"count": 3}}`))
	require.NoError(t, err)

	_, err = m.Bootstrap(context.Background(), desc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count": 3}`, string(parser.raw))
}

func TestManagerBootstrap_UnclaimedSection(t *testing.T) {
	t.Parallel()

	a := &fakeAddon{name: "a", configParsers: []ConfigParser{
		&fakeSectionParser{section: "Widgets"},
	}}

	m := NewManager(nil)
	require.NoError(t, m.Register(a))

	desc, err := config.ParseDescriptor([]byte(`{"Widgets": {}, "Gadgets": {}}`))
	require.NoError(t, err)

	_, err = m.Bootstrap(context.Background(), desc)
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeConfigurationUnknownType))
	assert.Contains(t, err.Error(), "Gadgets")
	assert.Zero(t, a.initCount)
}

func TestManagerBootstrap_SectionParseFailure(t *testing.T) {
	t.Parallel()

	parser := &fakeSectionParser{
		section: "Widgets",
		err:     sserr.Validation("widgets need a count"),
	}
	a := &fakeAddon{name: "a", configParsers: []ConfigParser{parser}}

	m := NewManager(nil)
	require.NoError(t, m.Register(a))

	desc, err := config.ParseDescriptor([]byte(`{"Widgets": {}}`))
	require.NoError(t, err)

	_, err = m.Bootstrap(context.Background(), desc)
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeValidation))
	assert.Equal(t, StateFailed, m.State("a"))
	assert.Zero(t, a.initCount)
}

func TestManagerBootstrap_RegistryFrozen(t *testing.T) {
	t.Parallel()

	m := NewManager(nil)
	require.NoError(t, m.Register(&fakeAddon{name: "a"}))

	reg, err := m.Bootstrap(context.Background(), config.Descriptor{})
	require.NoError(t, err)
	require.True(t, reg.Frozen())
	assert.Same(t, reg, m.Registry())

	assert.Panics(t, func() { reg.SetValue("a.key", 1) })
	assert.Panics(t, func() { reg.AddSchedule(Schedule{Name: "late"}) })
}

func TestManagerState_Unregistered(t *testing.T) {
	t.Parallel()

	m := NewManager(nil)
	assert.Equal(t, StateUnknown, m.State("nope"))
}
