// Package permissions implements the hierarchical, role-based permission
// resolution for config generation.
//
// # Overview
//
// For every role present in the input (the "public" role is always present),
// the Resolver computes the set of resources the role may access, merging
// explicit grants from the config store with the tenant's generation policy.
//
// # Resolution Rules
//
// Per role, resource types are processed in list_order and resources within
// a type in forest pre-order (parents before children):
//
//  1. An explicit grant (role, resource) allows the resource.
//  2. Otherwise, attributes are allowed by default, regardless of the
//     default_allow policy. This asymmetry is intentional: attribute rows
//     are rarely maintained explicitly, and denying them by default would
//     strip every layer of its fields under a deny-by-default policy.
//  3. Otherwise, the allowance equals the tenant's default_allow policy.
//  4. Cascading restriction: a resource whose parent resolved to denied is
//     denied, even over an explicit grant on the resource itself.
//  5. With inherit_info_permissions, an ungranted feature info resource
//     inherits the resolved allowance of the map/layer/attribute of the
//     same name in place of rules 2-3, before rule 4 applies.
//
// The result is deterministic: identical input rows and policy yield byte
// identical serialized output.
package permissions
