package addons

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// recordingParser recognizes a single type and records how often it ran.
type recordingParser struct {
	typeName string
	value    any
	calls    int
}

func (p *recordingParser) Recognizes(typeName string) bool {
	return typeName == p.typeName
}

func (p *recordingParser) Parse(context.Context, json.RawMessage, *Registry) (any, error) {
	p.calls++
	return p.value, nil
}

func TestDiscriminant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "primary field", raw: `{"_type":"LocalJwtIssuer"}`, want: "LocalJwtIssuer"},
		{name: "bare fallback", raw: `{"type":"LocalJwtIssuer"}`, want: "LocalJwtIssuer"},
		{name: "primary wins over fallback", raw: `{"_type":"A","type":"B"}`, want: "A"},
		{name: "missing discriminant", raw: `{"issuer":"x"}`, wantErr: true},
		{name: "not json", raw: `{broken`, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Discriminant(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, sserr.HasCode(err, sserr.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttributeChain_FirstMatchWins(t *testing.T) {
	t.Parallel()

	first := &recordingParser{typeName: "Widget", value: "from-first"}
	second := &recordingParser{typeName: "Widget", value: "from-second"}
	chain := NewAttributeChain(first, second)

	value, err := chain.Parse(context.Background(), json.RawMessage(`{"_type":"Widget"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "from-first", value)
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, second.calls)
}

func TestAttributeChain_UnknownTypeNamesIt(t *testing.T) {
	t.Parallel()

	chain := NewAttributeChain(&recordingParser{typeName: "Widget"})

	_, err := chain.Parse(context.Background(), json.RawMessage(`{"_type":"Gadget"}`), nil)
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeConfigurationUnknownType))
	assert.Contains(t, err.Error(), "Gadget")
}

func TestParseAs(t *testing.T) {
	t.Parallel()

	chain := NewAttributeChain(&recordingParser{typeName: "Widget", value: 42})

	t.Run("Match", func(t *testing.T) {
		t.Parallel()

		n, err := ParseAs[int](context.Background(), chain, json.RawMessage(`{"_type":"Widget"}`), nil)
		require.NoError(t, err)
		assert.Equal(t, 42, n)
	})

	t.Run("Mismatch", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAs[string](context.Background(), chain, json.RawMessage(`{"_type":"Widget"}`), nil)
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeConfiguration))
		assert.Contains(t, err.Error(), "Widget")
	})
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	d, err := parseDuration("ttl", "30m")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)

	d, err = parseDuration("ttl", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = parseDuration("ttl", "soon")
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeValidation))

	_, err = parseDuration("ttl", "-5m")
	require.Error(t, err)
}
