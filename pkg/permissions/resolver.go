package permissions

import (
	"context"
	"fmt"

	"github.com/geoserve/confgen/pkg/resource"
)

// Reporter receives resolution log output. The generation task log and
// observability.Logger both satisfy it.
type Reporter interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Resolver computes resolved permission sets over a validated resource
// forest. A Resolver is built per generation run and is not safe for
// concurrent use.
type Resolver struct {
	forest *resource.Forest
	policy Policy
	grants map[string]map[string]map[string]bool // role -> type -> name
	roles  []string
	report Reporter

	// memoized allowance per role, shared across types so cascading
	// restriction sees parents of any type
	memo map[string]map[int64]bool
}

// NewResolver validates the grant rows against the forest's type registry
// and prepares a resolver for the given roles (grant roles are added
// automatically, the public role is always present).
//
// A grant referencing an unregistered resource type fails with
// ErrUnknownResourceType unless the policy sets IgnoreErrors, in which case
// the row is skipped and logged. Grants referencing resources absent from
// the forest are inert and logged.
func NewResolver(forest *resource.Forest, policy Policy, grants []Grant, roles []string, report Reporter) (*Resolver, error) {
	r := &Resolver{
		forest: forest,
		policy: policy,
		grants: make(map[string]map[string]map[string]bool),
		report: report,
		memo:   make(map[string]map[int64]bool),
	}

	seen := make(map[string]bool)
	for _, role := range roles {
		if role != "" && !seen[role] {
			seen[role] = true
			r.roles = append(r.roles, role)
		}
	}

	for _, g := range grants {
		if _, ok := forest.Registry().Lookup(g.ResourceType); !ok {
			if !policy.IgnoreErrors {
				return nil, fmt.Errorf("%w: permission for role %q references type %q",
					ErrUnknownResourceType, g.Role, g.ResourceType)
			}
			r.report.Warnf("Skipping permission for role '%s': unknown resource type '%s'",
				g.Role, g.ResourceType)
			continue
		}
		if _, ok := forest.Find(g.ResourceType, g.ResourceName); !ok {
			r.report.Warnf("Permission for role '%s' references missing resource %s '%s'",
				g.Role, g.ResourceType, g.ResourceName)
			continue
		}
		byType := r.grants[g.Role]
		if byType == nil {
			byType = make(map[string]map[string]bool)
			r.grants[g.Role] = byType
		}
		names := byType[g.ResourceType]
		if names == nil {
			names = make(map[string]bool)
			byType[g.ResourceType] = names
		}
		names[g.ResourceName] = true
		if !seen[g.Role] {
			seen[g.Role] = true
			r.roles = append(r.roles, g.Role)
		}
	}
	return r, nil
}

// Resolve computes the resolved permission set for every role. Resource
// types are processed in list_order; the context is checked between types
// so a long run can be cancelled cooperatively.
func (r *Resolver) Resolve(ctx context.Context) (*ResolvedSet, error) {
	types := r.forest.Registry().TypesInOrder()
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = t.Name
	}

	set := NewResolvedSet(typeNames, r.roles)
	for _, t := range types {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.resolveType(t.Name, set)
	}
	return set, nil
}

func (r *Resolver) resolveType(typeName string, set *ResolvedSet) {
	order := r.forest.ResolutionOrder(typeName)
	for _, rs := range set.Roles() {
		for _, n := range order {
			if !r.allowance(rs.Role, n) {
				continue
			}
			e := Entry{Name: n.Name}
			if n.Type == resource.TypeAttribute {
				e.Parent = n.ParentName()
			}
			rs.add(typeName, e)
		}
	}
}

// allowance resolves a single resource for a role, memoized. The parent is
// resolved first (on demand) so cascading restriction holds regardless of
// type processing order.
func (r *Resolver) allowance(role string, n *resource.Node) bool {
	memo := r.memo[role]
	if memo == nil {
		memo = make(map[int64]bool)
		r.memo[role] = memo
	}
	if v, ok := memo[n.ID]; ok {
		return v
	}

	allowed := r.baseAllowance(role, n)
	if p := n.ParentNode(); p != nil && !r.allowance(role, p) {
		// parent denial overrides everything, including explicit grants
		allowed = false
	}
	memo[n.ID] = allowed
	return allowed
}

func (r *Resolver) baseAllowance(role string, n *resource.Node) bool {
	if r.grants[role][n.Type][n.Name] {
		return true
	}
	if r.policy.InheritInfoPermissions {
		if ref, ok := r.infoCounterpart(n); ok {
			return r.allowance(role, ref)
		}
	}
	if n.Type == resource.TypeAttribute {
		return true
	}
	return r.policy.DefaultAllow
}

// infoCounterpart maps a feature info scoped resource to the map/layer/
// attribute resource it inherits from, matched by name.
func (r *Resolver) infoCounterpart(n *resource.Node) (*resource.Node, bool) {
	switch n.Type {
	case resource.TypeFeatureInfoService:
		return r.forest.Find(resource.TypeMap, n.Name)
	case resource.TypeFeatureInfoLayer:
		return r.forest.Find(resource.TypeLayer, n.Name)
	case resource.TypeAttribute:
		p := n.ParentNode()
		if p == nil || p.Type != resource.TypeFeatureInfoLayer {
			return nil, false
		}
		layer, ok := r.forest.Find(resource.TypeLayer, p.Name)
		if !ok {
			return nil, false
		}
		for _, c := range layer.Children() {
			if c.Type == resource.TypeAttribute && c.Name == n.Name {
				return c, true
			}
		}
	}
	return nil, false
}
