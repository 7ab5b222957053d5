package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvocation(t *testing.T) {
	t.Parallel()

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()

		inv, err := NewInvocation("orders", TriggerHTTP)
		require.NoError(t, err)

		assert.NotEmpty(t, inv.ID)
		assert.Equal(t, "orders", inv.Function)
		assert.Equal(t, TriggerHTTP, inv.Trigger)
		assert.Equal(t, InvocationStatusPending, inv.Status)
		assert.False(t, inv.StartTime.IsZero())
		assert.Nil(t, inv.EndTime)
		assert.NotNil(t, inv.Metadata)
		require.NoError(t, inv.Validate())
	})

	t.Run("EmptyFunction", func(t *testing.T) {
		t.Parallel()

		_, err := NewInvocation("", TriggerHTTP)
		require.Error(t, err)
	})

	t.Run("UnknownTrigger", func(t *testing.T) {
		t.Parallel()

		_, err := NewInvocation("orders", TriggerKind("webhook"))
		require.Error(t, err)
	})
}

func TestInvocationStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   InvocationStatus
		valid    bool
		terminal bool
	}{
		{InvocationStatusPending, true, false},
		{InvocationStatusRunning, true, false},
		{InvocationStatusCompleted, true, true},
		{InvocationStatusFailed, true, true},
		{InvocationStatusTimeout, true, true},
		{InvocationStatus("canceled"), false, false},
		{InvocationStatus(""), false, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.valid, tt.status.Valid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestInvocation_CompleteAndFail(t *testing.T) {
	t.Parallel()

	t.Run("Complete", func(t *testing.T) {
		t.Parallel()

		inv, err := NewInvocation("orders", TriggerHTTP)
		require.NoError(t, err)

		inv.Complete(200)

		assert.Equal(t, InvocationStatusCompleted, inv.Status)
		assert.Equal(t, 200, inv.StatusCode)
		require.NotNil(t, inv.EndTime)
		assert.True(t, inv.IsTerminal())
	})

	t.Run("Fail", func(t *testing.T) {
		t.Parallel()

		inv, err := NewInvocation("orders", TriggerTimer)
		require.NoError(t, err)

		inv.Fail(500, "boom")

		assert.Equal(t, InvocationStatusFailed, inv.Status)
		assert.Equal(t, 500, inv.StatusCode)
		assert.Equal(t, "boom", inv.ErrorMessage)
		require.NotNil(t, inv.EndTime)
		assert.True(t, inv.IsTerminal())
	})
}

func TestInvocation_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *Invocation {
		inv, err := NewInvocation("orders", TriggerQueue)
		require.NoError(t, err)
		return inv
	}

	tests := []struct {
		name    string
		mutate  func(*Invocation)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Invocation) {}, wantErr: false},
		{name: "missing id", mutate: func(i *Invocation) { i.ID = "" }, wantErr: true},
		{name: "missing function", mutate: func(i *Invocation) { i.Function = "" }, wantErr: true},
		{name: "bad trigger", mutate: func(i *Invocation) { i.Trigger = "webhook" }, wantErr: true},
		{name: "bad status", mutate: func(i *Invocation) { i.Status = "done" }, wantErr: true},
		{name: "zero start time", mutate: func(i *Invocation) { i.StartTime = time.Time{} }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			inv := valid()
			tt.mutate(inv)

			err := inv.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestInvocation_Duration(t *testing.T) {
	t.Parallel()

	inv, err := NewInvocation("orders", TriggerHTTP)
	require.NoError(t, err)

	end := inv.StartTime.Add(250 * time.Millisecond)
	inv.EndTime = &end

	assert.Equal(t, 250*time.Millisecond, inv.Duration())

	assert.Zero(t, (&Invocation{}).Duration())
}

func TestInvocation_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	inv, err := NewInvocation("orders", TriggerHTTP)
	require.NoError(t, err)
	inv.Verb = "get"
	inv.SubjectID = "user-1"
	inv.Complete(200)

	data, err := json.Marshal(inv)
	require.NoError(t, err)

	var decoded Invocation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, inv.ID, decoded.ID)
	assert.Equal(t, inv.Status, decoded.Status)
	assert.Equal(t, inv.StatusCode, decoded.StatusCode)
	assert.Equal(t, inv.Verb, decoded.Verb)
}
