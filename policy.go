package rbind

import "sync/atomic"

// Policy governs how aggressively the emitter inserts cross-type
// conversions when a column's source type does not exactly match an
// attribute's type.
type Policy int32

const (
	// PolicyStrict permits only a direct cast from the read type to the
	// attribute's underlying type.
	PolicyStrict Policy = iota
	// PolicyAutomatic additionally applies known widening/narrowing
	// conversions (numeric widening and narrowing, Guid<->string) before
	// falling back to a direct cast. time.Time and string are not
	// converted into each other; such a pair gets the direct cast, which
	// fails at invocation.
	PolicyAutomatic
)

func (p Policy) String() string {
	if p == PolicyAutomatic {
		return "automatic"
	}
	return "strict"
}

// globalPolicy is the process-wide default, sampled once at plan-build
// time by each Compile* call; no Compile* call takes a per-call policy.
// Storing it as an atomic (rather than reading it from inside the
// compiled plan's hot path) keeps already-compiled accessors immune to
// later SetPolicy calls, matching the compile-once-invoke-many model.
var globalPolicy atomic.Int32

// SetPolicy changes the process-wide default conversion policy. It has
// no effect on accessors already compiled.
func SetPolicy(p Policy) { globalPolicy.Store(int32(p)) }

// CurrentPolicy returns the process-wide default conversion policy.
func CurrentPolicy() Policy { return Policy(globalPolicy.Load()) }

func parsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "strict":
		return PolicyStrict, true
	case "automatic":
		return PolicyAutomatic, true
	default:
		return PolicyStrict, false
	}
}
