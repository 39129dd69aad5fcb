package resource

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMalformedResourceGraph indicates a cyclic or dangling parent reference,
// or a resource of an unregistered type. Always fatal to a generation run.
var ErrMalformedResourceGraph = errors.New("malformed resource graph")

// Node is a resource inside a validated Forest.
type Node struct {
	Record

	parent   *Node
	children []*Node
	seq      int // insertion order, tie-break for name sorting
}

// ParentNode returns the parent node, or nil for a root.
func (n *Node) ParentNode() *Node { return n.parent }

// Children returns the child nodes in insertion order.
func (n *Node) Children() []*Node { return n.children }

// ParentName returns the parent's name, or "" for a root.
func (n *Node) ParentName() string {
	if n.parent == nil {
		return ""
	}
	return n.parent.Name
}

// Forest is an arena of resources indexed by ID, validated to be acyclic
// with all parent references resolved and all types registered.
type Forest struct {
	registry *Registry
	nodes    map[int64]*Node
	order    []*Node // insertion order
	byType   map[string][]*Node
	byName   map[string]map[string]*Node // type -> name -> first node
}

// BuildForest validates the given records against the registry and links
// them into a forest. It fails with ErrMalformedResourceGraph on a duplicate
// ID, an unregistered type, a dangling parent reference or a cycle.
func BuildForest(registry *Registry, records []Record) (*Forest, error) {
	f := &Forest{
		registry: registry,
		nodes:    make(map[int64]*Node, len(records)),
		byType:   make(map[string][]*Node),
		byName:   make(map[string]map[string]*Node),
	}

	for i, rec := range records {
		if _, ok := registry.Lookup(rec.Type); !ok {
			return nil, fmt.Errorf("%w: resource %q has unregistered type %q",
				ErrMalformedResourceGraph, rec.Name, rec.Type)
		}
		if _, dup := f.nodes[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate resource id %d",
				ErrMalformedResourceGraph, rec.ID)
		}
		n := &Node{Record: rec, seq: i}
		f.nodes[rec.ID] = n
		f.order = append(f.order, n)
		f.byType[rec.Type] = append(f.byType[rec.Type], n)
		names := f.byName[rec.Type]
		if names == nil {
			names = make(map[string]*Node)
			f.byName[rec.Type] = names
		}
		if _, exists := names[rec.Name]; !exists {
			names[rec.Name] = n
		}
	}

	// link parents
	for _, n := range f.order {
		if n.Parent == nil {
			continue
		}
		p, ok := f.nodes[*n.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: resource %q (%s) references unknown parent %d",
				ErrMalformedResourceGraph, n.Name, n.Type, *n.Parent)
		}
		n.parent = p
		p.children = append(p.children, n)
	}

	if err := f.checkCycles(); err != nil {
		return nil, err
	}
	return f, nil
}

// checkCycles walks parent chains with a visited set. The forest has at most
// one parent per node, so any cycle is reachable by following parents.
func (f *Forest) checkCycles() error {
	state := make(map[int64]int, len(f.nodes)) // 0 unvisited, 1 in progress, 2 done
	for _, n := range f.order {
		cur := n
		var chain []*Node
		for cur != nil && state[cur.ID] == 0 {
			state[cur.ID] = 1
			chain = append(chain, cur)
			cur = cur.parent
		}
		if cur != nil && state[cur.ID] == 1 {
			return fmt.Errorf("%w: cycle through resource %q (%s)",
				ErrMalformedResourceGraph, cur.Name, cur.Type)
		}
		for _, c := range chain {
			state[c.ID] = 2
		}
	}
	return nil
}

// Registry returns the type registry the forest was built against.
func (f *Forest) Registry() *Registry { return f.registry }

// Len returns the number of resources in the forest.
func (f *Forest) Len() int { return len(f.order) }

// Get returns the node with the given ID.
func (f *Forest) Get(id int64) (*Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// Find returns the first resource of the given type and name, in insertion
// order. Used for name-matched lookups such as info permission inheritance.
func (f *Forest) Find(typeName, name string) (*Node, bool) {
	n, ok := f.byName[typeName][name]
	return n, ok
}

// OfType returns the resources of a type ordered by name, ties broken by
// insertion order. This is the output order for generated documents.
func (f *Forest) OfType(typeName string) []*Node {
	nodes := f.byType[typeName]
	out := make([]*Node, len(nodes))
	copy(out, nodes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// ResolutionOrder returns the resources of a type in forest pre-order:
// a resource whose parent has the same type always follows its parent.
// Roots (within the type) are ordered by name, as are sibling subtrees.
func (f *Forest) ResolutionOrder(typeName string) []*Node {
	sorted := f.OfType(typeName)

	childrenOf := make(map[int64][]*Node)
	var roots []*Node
	for _, n := range sorted {
		if n.parent != nil && n.parent.Type == typeName {
			childrenOf[n.parent.ID] = append(childrenOf[n.parent.ID], n)
		} else {
			roots = append(roots, n)
		}
	}

	out := make([]*Node, 0, len(sorted))
	var visit func(n *Node)
	visit = func(n *Node) {
		out = append(out, n)
		for _, c := range childrenOf[n.ID] {
			visit(c)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return out
}
