package auth

import "sort"

// ---------------------------------------------------------------------------
// RoleSet
// ---------------------------------------------------------------------------

// RoleSet is an unordered set of role names. The zero value is not usable;
// construct sets with [NewRoleSet] or [RoleSet.Clone].
type RoleSet map[string]struct{}

// NewRoleSet creates a RoleSet containing the given role names.
func NewRoleSet(names ...string) RoleSet {
	rs := make(RoleSet, len(names))
	for _, n := range names {
		rs[n] = struct{}{}
	}
	return rs
}

// Add inserts a role name into the set. Adding an existing name is a no-op.
func (rs RoleSet) Add(name string) { rs[name] = struct{}{} }

// Contains reports whether the set holds the given role name.
func (rs RoleSet) Contains(name string) bool {
	_, ok := rs[name]
	return ok
}

// Len returns the number of roles in the set.
func (rs RoleSet) Len() int { return len(rs) }

// Clone returns an independent copy of the set. Cloning a nil set returns
// an empty, usable set.
func (rs RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(rs))
	for n := range rs {
		out[n] = struct{}{}
	}
	return out
}

// Union returns a new set containing every role present in either set.
func (rs RoleSet) Union(other RoleSet) RoleSet {
	out := rs.Clone()
	for n := range other {
		out[n] = struct{}{}
	}
	return out
}

// Values returns the role names in sorted order.
func (rs RoleSet) Values() []string {
	out := make([]string, 0, len(rs))
	for n := range rs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Verdict
// ---------------------------------------------------------------------------

// Verdict is the outcome of a single verification attempt by an [Issuer] or
// [Authenticator]. The zero value is a negative verdict with no assignments.
type Verdict struct {
	// Verified reports whether the verifier vouches for the request.
	Verified bool

	// Assignments is the set of roles the verifier grants when Verified
	// is true. A nil Assignments is treated as the empty set.
	Assignments RoleSet
}

// MergeVerdicts combines verdicts by boolean-OR on Verified and set-union
// on Assignments. Only verified verdicts contribute assignments: a
// verifier that did not vouch for the request grants nothing, whatever
// its Assignments field holds. Merging no verdicts yields the zero
// (negative) Verdict.
func MergeVerdicts(verdicts ...Verdict) Verdict {
	merged := Verdict{Assignments: NewRoleSet()}
	for _, v := range verdicts {
		if !v.Verified {
			continue
		}
		merged.Verified = true
		if v.Assignments != nil {
			merged.Assignments = merged.Assignments.Union(v.Assignments)
		}
	}
	return merged
}
