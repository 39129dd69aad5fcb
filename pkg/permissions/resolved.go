package permissions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Entry identifies an allowed resource in a resolved permission set. Parent
// is set for attributes so the consuming side can reattach them to their
// layer.
type Entry struct {
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// RoleSet is the ordered collection of permitted resources for one role,
// grouped by resource type.
type RoleSet struct {
	Role string

	types   []string // type names in list_order
	entries map[string][]Entry
	lookup  map[string]map[string]bool
}

func newRoleSet(role string, types []string) *RoleSet {
	return &RoleSet{
		Role:    role,
		types:   types,
		entries: make(map[string][]Entry),
		lookup:  make(map[string]map[string]bool),
	}
}

func (rs *RoleSet) add(typeName string, e Entry) {
	rs.entries[typeName] = append(rs.entries[typeName], e)
	names := rs.lookup[typeName]
	if names == nil {
		names = make(map[string]bool)
		rs.lookup[typeName] = names
	}
	names[e.Name] = true
}

// Entries returns the allowed resources of a type, in output order.
func (rs *RoleSet) Entries(typeName string) []Entry {
	return rs.entries[typeName]
}

// Allowed reports whether the named resource of a type is in the set.
func (rs *RoleSet) Allowed(typeName, name string) bool {
	return rs.lookup[typeName][name]
}

// MarshalJSON serializes the role set with resource types in list_order.
// Types with no allowed resources are emitted as empty arrays so consumers
// see a stable shape.
func (rs *RoleSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"role":`)
	role, err := json.Marshal(rs.Role)
	if err != nil {
		return nil, err
	}
	buf.Write(role)
	buf.WriteString(`,"permissions":{`)
	for i, typeName := range rs.types {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(typeName)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		entries := rs.entries[typeName]
		if entries == nil {
			entries = []Entry{}
		}
		val, err := json.Marshal(entries)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// ResolvedSet holds the resolved permission sets of all roles. It is the
// artifact serialized into the tenant's permissions document. The public
// role comes first, remaining roles are sorted by name.
type ResolvedSet struct {
	types  []string
	roles  []*RoleSet
	byRole map[string]*RoleSet
}

// NewResolvedSet creates an empty resolved set for the given type order and
// roles. The public role is always included.
func NewResolvedSet(types []string, roles []string) *ResolvedSet {
	ordered := orderRoles(roles)
	s := &ResolvedSet{
		types:  types,
		byRole: make(map[string]*RoleSet, len(ordered)),
	}
	for _, role := range ordered {
		rs := newRoleSet(role, types)
		s.roles = append(s.roles, rs)
		s.byRole[role] = rs
	}
	return s
}

// orderRoles dedupes the given roles, guarantees the public role is present
// and first, and sorts the rest by name.
func orderRoles(roles []string) []string {
	seen := map[string]bool{PublicRole: true}
	var rest []string
	for _, r := range roles {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		rest = append(rest, r)
	}
	sort.Strings(rest)
	return append([]string{PublicRole}, rest...)
}

// Roles returns the role sets in output order.
func (s *ResolvedSet) Roles() []*RoleSet { return s.roles }

// RoleNames returns the role names in output order.
func (s *ResolvedSet) RoleNames() []string {
	names := make([]string, len(s.roles))
	for i, rs := range s.roles {
		names[i] = rs.Role
	}
	return names
}

// Role returns the role set for a role name, or nil.
func (s *ResolvedSet) Role(name string) *RoleSet { return s.byRole[name] }

// Types returns the resource type names in list_order.
func (s *ResolvedSet) Types() []string { return s.types }

// MarshalJSON serializes the set as an ordered array of role sets.
func (s *ResolvedSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.roles)
}

// ReplaceTypes replaces, for every role, the entries of the given resource
// types with those from the override set. Roles absent from the override
// set end up with no entries for those types. This implements the full
// replacement semantics of tenant-declared service overrides.
func (s *ResolvedSet) ReplaceTypes(override *ResolvedSet, types []string) error {
	for _, typeName := range types {
		known := false
		for _, t := range s.types {
			if t == typeName {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: %q", ErrUnknownResourceType, typeName)
		}
	}

	// override may introduce roles not present in the store-derived set
	for _, or := range override.Roles() {
		if s.byRole[or.Role] != nil {
			continue
		}
		rs := newRoleSet(or.Role, s.types)
		s.roles = append(s.roles, rs)
		s.byRole[or.Role] = rs
		sortRoleSets(s.roles)
	}

	for _, rs := range s.roles {
		for _, typeName := range types {
			delete(rs.entries, typeName)
			delete(rs.lookup, typeName)
			or := override.Role(rs.Role)
			if or == nil {
				continue
			}
			for _, e := range or.Entries(typeName) {
				rs.add(typeName, e)
			}
		}
	}
	return nil
}

func sortRoleSets(roles []*RoleSet) {
	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i].Role == PublicRole {
			return roles[j].Role != PublicRole
		}
		if roles[j].Role == PublicRole {
			return false
		}
		return roles[i].Role < roles[j].Role
	})
}
