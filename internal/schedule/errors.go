package schedule

import "fmt"

// InvalidConstraintError reports a malformed or out-of-range constraint
// field. It is returned synchronously at creation time; the entry is never
// installed.
type InvalidConstraintError struct {
	Field    string // empty when the constraint as a whole is empty
	Value    int
	Min, Max int
	NoValues bool
}

func (e *InvalidConstraintError) Error() string {
	switch {
	case e.Field == "":
		return "schedule: constraint is empty"
	case e.NoValues:
		return fmt.Sprintf("schedule: %s has no allowed values", e.Field)
	default:
		return fmt.Sprintf("schedule: %s must be between %d and %d, got %d", e.Field, e.Min, e.Max, e.Value)
	}
}

// UnsatisfiableConstraintError reports a constraint with no solution within
// the resolver's step bound. It can surface at creation or at re-arm time.
type UnsatisfiableConstraintError struct {
	Constraint Constraint
}

func (e *UnsatisfiableConstraintError) Error() string {
	return fmt.Sprintf("schedule: no instant satisfies constraint %s within %d steps", e.Constraint, maxResolveSteps)
}
