package param

import (
	"fmt"
	"strings"
)

// MaxCombinations bounds a single expansion.
const MaxCombinations = 1_000_000

// Assignment binds one parameter to one candidate.
type Assignment struct {
	Name  string
	Value Value
}

// Combination assigns exactly one candidate to every name of a set, in
// declaration order.
type Combination struct {
	assignments []Assignment
}

// NewCombination builds a combination from explicit assignments.
func NewCombination(assignments ...Assignment) Combination {
	return Combination{assignments: append([]Assignment(nil), assignments...)}
}

// Len returns the number of assignments.
func (c Combination) Len() int { return len(c.assignments) }

// Assignments returns a copy of the assignments in declaration order.
func (c Combination) Assignments() []Assignment {
	return append([]Assignment(nil), c.assignments...)
}

// Get returns the value assigned to name.
func (c Combination) Get(name string) (Value, bool) {
	for _, a := range c.assignments {
		if a.Name == name {
			return a.Value, true
		}
	}
	return Value{}, false
}

// String renders the combination as space separated name=value pairs.
func (c Combination) String() string {
	parts := make([]string, len(c.assignments))
	for i, a := range c.assignments {
		parts[i] = a.Name + "=" + a.Value.String()
	}
	return strings.Join(parts, " ")
}

// Expand computes the cartesian product of set. The first declared name
// varies slowest and the last declared name varies fastest. The empty set
// expands to a single empty combination.
func Expand(set ParameterSet) ([]Combination, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}

	total := 1
	for _, p := range set.params {
		total *= len(p.Candidates)
		if total > MaxCombinations {
			return nil, fmt.Errorf("%w: more than %d combinations", ErrInvalidParameterSet, MaxCombinations)
		}
	}

	combos := make([]Combination, total)
	for i := range combos {
		combos[i].assignments = make([]Assignment, len(set.params))
	}

	repeat := 1
	for dim := len(set.params) - 1; dim >= 0; dim-- {
		p := set.params[dim]
		cycle := len(p.Candidates)
		for i := 0; i < total; i++ {
			combos[i].assignments[dim] = Assignment{Name: p.Name, Value: p.Candidates[(i/repeat)%cycle]}
		}
		repeat *= cycle
	}

	return combos, nil
}
