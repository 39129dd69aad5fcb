// Package resource provides the shared resource model for config generation.
//
// Resources (maps, layers, attributes, print templates, ...) form a forest
// via optional parent references. The package validates the forest at load
// time (no cycles, no dangling parents, only registered types) and provides
// the deterministic iteration orders that the permission resolver and the
// config assembler depend on: types ordered by list_order, resources within
// a type ordered by name (stable on ties), and a parents-before-children
// resolution order.
package resource
