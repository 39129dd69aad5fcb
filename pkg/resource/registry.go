package resource

import (
	"fmt"
	"sort"
)

// Registry holds the set of known resource types for a generation run:
// the built-in types plus any tenant-declared custom types.
type Registry struct {
	types  []Type
	byName map[string]Type
}

// NewRegistry creates a registry with the built-in types and appends the
// given custom types. Custom types without an explicit ListOrder are placed
// after all built-ins, in declaration order. A custom type redeclaring a
// built-in name is rejected.
func NewRegistry(custom ...Type) (*Registry, error) {
	r := &Registry{byName: make(map[string]Type)}

	for _, t := range BuiltinTypes() {
		r.types = append(r.types, t)
		r.byName[t.Name] = t
	}

	next := r.types[len(r.types)-1].ListOrder
	for _, t := range custom {
		if t.Name == "" {
			return nil, fmt.Errorf("custom resource type with empty name")
		}
		if _, exists := r.byName[t.Name]; exists {
			return nil, fmt.Errorf("duplicate resource type %q", t.Name)
		}
		if t.ListOrder == 0 {
			next += 10
			t.ListOrder = next
		} else if t.ListOrder > next {
			next = t.ListOrder
		}
		r.types = append(r.types, t)
		r.byName[t.Name] = t
	}

	sort.SliceStable(r.types, func(i, j int) bool {
		return r.types[i].ListOrder < r.types[j].ListOrder
	})
	return r, nil
}

// Lookup returns the type with the given name.
func (r *Registry) Lookup(name string) (Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// TypesInOrder returns all registered types sorted by ListOrder. The
// returned slice is a copy.
func (r *Registry) TypesInOrder() []Type {
	out := make([]Type, len(r.types))
	copy(out, r.types)
	return out
}
