// Package param models sweep parameters: ordered sets of named candidate
// lists and the combinations obtained by expanding them.
package param

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidParameterSet is returned when a parameter set cannot be expanded,
// for example because a candidate list is empty.
var ErrInvalidParameterSet = errors.New("invalid parameter set")

// Parameter is one named axis of variation.
type Parameter struct {
	Name       string
	Candidates []Value
}

// ParameterSet is an immutable, ordered list of parameters. Declaration order
// drives both enumeration order and argument emission order.
type ParameterSet struct {
	params []Parameter
}

// NewParameterSet validates params and returns a set holding a private copy.
func NewParameterSet(params ...Parameter) (ParameterSet, error) {
	set := ParameterSet{params: make([]Parameter, 0, len(params))}
	for _, p := range params {
		set.params = append(set.params, Parameter{Name: p.Name, Candidates: slices.Clone(p.Candidates)})
	}
	if err := set.Validate(); err != nil {
		return ParameterSet{}, err
	}
	return set, nil
}

// MustParameterSet is like NewParameterSet but panics on error. It is meant
// for statically known sets.
func MustParameterSet(params ...Parameter) ParameterSet {
	set, err := NewParameterSet(params...)
	if err != nil {
		panic(err)
	}
	return set
}

// Validate checks that every name is non-empty and unique and that every
// candidate list is non-empty.
func (s ParameterSet) Validate() error {
	seen := make(map[string]bool, len(s.params))
	for _, p := range s.params {
		if p.Name == "" {
			return fmt.Errorf("%w: empty parameter name", ErrInvalidParameterSet)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidParameterSet, p.Name)
		}
		seen[p.Name] = true
		if len(p.Candidates) == 0 {
			return fmt.Errorf("%w: parameter %q has no candidates", ErrInvalidParameterSet, p.Name)
		}
	}
	return nil
}

// Len returns the number of parameters.
func (s ParameterSet) Len() int { return len(s.params) }

// Names returns the parameter names in declaration order.
func (s ParameterSet) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// Parameters returns a copy of the parameters in declaration order.
func (s ParameterSet) Parameters() []Parameter {
	out := make([]Parameter, len(s.params))
	for i, p := range s.params {
		out[i] = Parameter{Name: p.Name, Candidates: slices.Clone(p.Candidates)}
	}
	return out
}

// Candidates returns the candidates declared for name.
func (s ParameterSet) Candidates(name string) ([]Value, bool) {
	for _, p := range s.params {
		if p.Name == name {
			return slices.Clone(p.Candidates), true
		}
	}
	return nil, false
}

// Has reports whether name is declared.
func (s ParameterSet) Has(name string) bool {
	_, ok := s.Candidates(name)
	return ok
}

// Size returns the number of combinations Expand would produce. The empty set
// has size 1.
func (s ParameterSet) Size() int {
	total := 1
	for _, p := range s.params {
		total *= len(p.Candidates)
	}
	return total
}

func (s ParameterSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range s.params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": [")
		for j, v := range p.Candidates {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(v.String())
		}
		b.WriteByte(']')
	}
	b.WriteByte('}')
	return b.String()
}

// Builder derives parameter sets without mutating existing ones.
type Builder struct {
	params []Parameter
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// From returns a builder seeded with a copy of set.
func From(set ParameterSet) *Builder {
	return &Builder{params: set.Parameters()}
}

// Set replaces the candidates of name. An existing name keeps its position,
// a new name is appended.
func (b *Builder) Set(name string, values ...Value) *Builder {
	for i := range b.params {
		if b.params[i].Name == name {
			b.params[i].Candidates = slices.Clone(values)
			return b
		}
	}
	b.params = append(b.params, Parameter{Name: name, Candidates: slices.Clone(values)})
	return b
}

// Add appends a single candidate to name, declaring it if needed.
func (b *Builder) Add(name string, value Value) *Builder {
	for i := range b.params {
		if b.params[i].Name == name {
			b.params[i].Candidates = append(b.params[i].Candidates, value)
			return b
		}
	}
	b.params = append(b.params, Parameter{Name: name, Candidates: []Value{value}})
	return b
}

// Unset removes name. Removing an undeclared name is a no-op.
func (b *Builder) Unset(name string) *Builder {
	b.params = slices.DeleteFunc(b.params, func(p Parameter) bool { return p.Name == name })
	return b
}

// Build validates and returns the set.
func (b *Builder) Build() (ParameterSet, error) {
	return NewParameterSet(b.params...)
}
