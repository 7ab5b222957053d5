package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleSet(t *testing.T) {
	t.Parallel()

	rs := NewRoleSet("b", "a")
	assert.Equal(t, 2, rs.Len())
	assert.True(t, rs.Contains("a"))
	assert.False(t, rs.Contains("c"))

	rs.Add("c")
	rs.Add("c")
	assert.Equal(t, 3, rs.Len())
	assert.Equal(t, []string{"a", "b", "c"}, rs.Values())
}

func TestRoleSetClone(t *testing.T) {
	t.Parallel()

	rs := NewRoleSet("a")
	clone := rs.Clone()
	clone.Add("b")
	assert.False(t, rs.Contains("b"))

	var nilSet RoleSet
	cloned := nilSet.Clone()
	cloned.Add("x")
	assert.True(t, cloned.Contains("x"))
}

func TestRoleSetUnion(t *testing.T) {
	t.Parallel()

	a := NewRoleSet("a", "b")
	b := NewRoleSet("b", "c")
	union := a.Union(b)

	assert.Equal(t, []string{"a", "b", "c"}, union.Values())
	// The operands are untouched.
	assert.Equal(t, []string{"a", "b"}, a.Values())
	assert.Equal(t, []string{"b", "c"}, b.Values())
}

func TestMergeVerdicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		verdicts     []Verdict
		wantVerified bool
		wantRoles    []string
	}{
		{
			name:         "no verdicts",
			verdicts:     nil,
			wantVerified: false,
			wantRoles:    []string{},
		},
		{
			name: "single positive",
			verdicts: []Verdict{
				{Verified: true, Assignments: NewRoleSet("reader")},
			},
			wantVerified: true,
			wantRoles:    []string{"reader"},
		},
		{
			name: "positive wins over negative",
			verdicts: []Verdict{
				{},
				{Verified: true, Assignments: NewRoleSet("reader")},
				{},
			},
			wantVerified: true,
			wantRoles:    []string{"reader"},
		},
		{
			name: "assignments are unioned",
			verdicts: []Verdict{
				{Verified: true, Assignments: NewRoleSet("reader")},
				{Verified: true, Assignments: NewRoleSet("writer", "reader")},
			},
			wantVerified: true,
			wantRoles:    []string{"reader", "writer"},
		},
		{
			name: "all negative",
			verdicts: []Verdict{
				{},
				{},
			},
			wantVerified: false,
			wantRoles:    []string{},
		},
		{
			name: "unverified verdicts grant nothing",
			verdicts: []Verdict{
				{Verified: true, Assignments: NewRoleSet("reader")},
				{Verified: false, Assignments: NewRoleSet("admin")},
			},
			wantVerified: true,
			wantRoles:    []string{"reader"},
		},
		{
			name: "nil assignments treated as empty set",
			verdicts: []Verdict{
				{Verified: true},
			},
			wantVerified: true,
			wantRoles:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			merged := MergeVerdicts(tt.verdicts...)
			assert.Equal(t, tt.wantVerified, merged.Verified)
			assert.Equal(t, tt.wantRoles, merged.Assignments.Values())
		})
	}
}
