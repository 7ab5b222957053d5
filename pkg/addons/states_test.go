package addons

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		from  State
		to    State
		valid bool
	}{
		{name: "registered to initializing", from: StateRegistered, to: StateInitializing, valid: true},
		{name: "registered to failed", from: StateRegistered, to: StateFailed, valid: true},
		{name: "initializing to ready", from: StateInitializing, to: StateReady, valid: true},
		{name: "initializing to failed", from: StateInitializing, to: StateFailed, valid: true},
		{name: "registered to ready skips initializing", from: StateRegistered, to: StateReady, valid: false},
		{name: "ready is terminal", from: StateReady, to: StateInitializing, valid: false},
		{name: "failed is terminal", from: StateFailed, to: StateInitializing, valid: false},
		{name: "same state rejected", from: StateRegistered, to: StateRegistered, valid: false},
		{name: "unknown has no transitions", from: StateUnknown, to: StateInitializing, valid: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.valid, ValidTransition(tt.from, tt.to))
		})
	}
}

func TestStateIsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, StateReady.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateRegistered.IsTerminal())
	assert.False(t, StateInitializing.IsTerminal())
	assert.False(t, StateUnknown.IsTerminal())
}
