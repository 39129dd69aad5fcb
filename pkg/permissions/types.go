package permissions

import (
	"errors"

	"github.com/geoserve/confgen/pkg/resource"
)

// PublicRole is the distinguished role denoting the unauthenticated baseline.
const PublicRole = "public"

// ErrUnknownResourceType indicates a grant row referencing a resource type
// that is not registered. Recoverable when the policy sets IgnoreErrors.
var ErrUnknownResourceType = errors.New("unknown resource type")

// ErrAmbiguousOverride indicates tenant-declared overrides for a service
// name that appears more than once. Always fatal.
var ErrAmbiguousOverride = errors.New("ambiguous service override")

// Grant is an explicit permission record: (role, resource) is present.
// Absence of a grant is not a denial by itself; its effect is governed by
// the tenant policy.
type Grant struct {
	Role         string `json:"role"`
	ResourceType string `json:"type"`
	ResourceName string `json:"name"`
}

// Policy holds the tenant-scoped generation policy.
type Policy struct {
	DefaultAllow           bool            `json:"default_allow" yaml:"default_allow"`
	InheritInfoPermissions bool            `json:"inherit_info_permissions" yaml:"inherit_info_permissions"`
	ForceReadOnlyDatasets  bool            `json:"force_readonly_datasets" yaml:"force_readonly_datasets"`
	IgnoreErrors           bool            `json:"ignore_errors" yaml:"ignore_errors"`
	CustomResourceTypes    []resource.Type `json:"custom_resource_types,omitempty" yaml:"custom_resource_types,omitempty"`
}

// User is an identity record for the permissions document.
type User struct {
	Name   string   `json:"name"`
	Groups []string `json:"groups"`
	Roles  []string `json:"roles"`
}

// Group is a group record for the permissions document.
type Group struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}
