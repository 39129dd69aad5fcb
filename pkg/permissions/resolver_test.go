package permissions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoserve/confgen/pkg/observability"
	"github.com/geoserve/confgen/pkg/resource"
)

func ref(id int64) *int64 { return &id }

func buildForest(t *testing.T, records []resource.Record, custom ...resource.Type) *resource.Forest {
	t.Helper()
	reg, err := resource.NewRegistry(custom...)
	require.NoError(t, err)
	f, err := resource.BuildForest(reg, records)
	require.NoError(t, err)
	return f
}

func resolve(t *testing.T, f *resource.Forest, policy Policy, grants []Grant, roles ...string) *ResolvedSet {
	t.Helper()
	r, err := NewResolver(f, policy, grants, roles, observability.NopLogger())
	require.NoError(t, err)
	set, err := r.Resolve(context.Background())
	require.NoError(t, err)
	return set
}

// mapA > layerA > fieldA
func layerForest(t *testing.T) *resource.Forest {
	return buildForest(t, []resource.Record{
		{ID: 1, Type: resource.TypeMap, Name: "mapA"},
		{ID: 2, Type: resource.TypeLayer, Name: "layerA", Parent: ref(1)},
		{ID: 3, Type: resource.TypeAttribute, Name: "fieldA", Parent: ref(2)},
	})
}

func TestResolve_DefaultAllow(t *testing.T) {
	set := resolve(t, layerForest(t), Policy{DefaultAllow: true}, nil)

	pub := set.Role(PublicRole)
	require.NotNil(t, pub)
	assert.True(t, pub.Allowed(resource.TypeMap, "mapA"))
	assert.True(t, pub.Allowed(resource.TypeLayer, "layerA"))
	assert.True(t, pub.Allowed(resource.TypeAttribute, "fieldA"))
}

func TestResolve_DefaultDeny_EndToEndExample(t *testing.T) {
	// with default_allow=false and no grants, layerA is denied (type
	// default) and fieldA is denied by cascading restriction despite
	// attributes defaulting to allowed
	set := resolve(t, layerForest(t), Policy{DefaultAllow: false}, nil)

	pub := set.Role(PublicRole)
	assert.False(t, pub.Allowed(resource.TypeMap, "mapA"))
	assert.False(t, pub.Allowed(resource.TypeLayer, "layerA"))
	assert.False(t, pub.Allowed(resource.TypeAttribute, "fieldA"))
}

func TestResolve_ExplicitGrant(t *testing.T) {
	grants := []Grant{
		{Role: "editors", ResourceType: resource.TypeMap, ResourceName: "mapA"},
		{Role: "editors", ResourceType: resource.TypeLayer, ResourceName: "layerA"},
	}
	set := resolve(t, layerForest(t), Policy{DefaultAllow: false}, grants)

	ed := set.Role("editors")
	require.NotNil(t, ed)
	assert.True(t, ed.Allowed(resource.TypeMap, "mapA"))
	assert.True(t, ed.Allowed(resource.TypeLayer, "layerA"))
	// attribute default applies once its parent chain is allowed
	assert.True(t, ed.Allowed(resource.TypeAttribute, "fieldA"))

	// public got no grants
	assert.False(t, set.Role(PublicRole).Allowed(resource.TypeLayer, "layerA"))
}

func TestResolve_CascadingRestrictionOverridesChildGrant(t *testing.T) {
	// grant on fieldA but not on layerA: parent denial wins
	grants := []Grant{
		{Role: "viewers", ResourceType: resource.TypeMap, ResourceName: "mapA"},
		{Role: "viewers", ResourceType: resource.TypeAttribute, ResourceName: "fieldA"},
	}
	set := resolve(t, layerForest(t), Policy{DefaultAllow: false}, grants)

	v := set.Role("viewers")
	assert.True(t, v.Allowed(resource.TypeMap, "mapA"))
	assert.False(t, v.Allowed(resource.TypeLayer, "layerA"))
	assert.False(t, v.Allowed(resource.TypeAttribute, "fieldA"))
}

func TestResolve_AttributePermissiveness(t *testing.T) {
	// default deny, layer explicitly granted: the ungranted attribute is
	// still allowed
	grants := []Grant{
		{Role: PublicRole, ResourceType: resource.TypeMap, ResourceName: "mapA"},
		{Role: PublicRole, ResourceType: resource.TypeLayer, ResourceName: "layerA"},
	}
	set := resolve(t, layerForest(t), Policy{DefaultAllow: false}, grants)

	pub := set.Role(PublicRole)
	assert.True(t, pub.Allowed(resource.TypeAttribute, "fieldA"))

	entries := pub.Entries(resource.TypeAttribute)
	require.Len(t, entries, 1)
	assert.Equal(t, "fieldA", entries[0].Name)
	assert.Equal(t, "layerA", entries[0].Parent)
}

func infoForest(t *testing.T) *resource.Forest {
	return buildForest(t, []resource.Record{
		{ID: 1, Type: resource.TypeMap, Name: "mapA"},
		{ID: 2, Type: resource.TypeLayer, Name: "layerA", Parent: ref(1)},
		{ID: 3, Type: resource.TypeFeatureInfoService, Name: "mapA"},
		{ID: 4, Type: resource.TypeFeatureInfoLayer, Name: "layerA", Parent: ref(3)},
	})
}

func TestResolve_InheritInfoPermissions(t *testing.T) {
	grants := []Grant{
		{Role: "surveyors", ResourceType: resource.TypeMap, ResourceName: "mapA"},
		{Role: "surveyors", ResourceType: resource.TypeLayer, ResourceName: "layerA"},
	}
	policy := Policy{DefaultAllow: false, InheritInfoPermissions: true}
	set := resolve(t, infoForest(t), policy, grants)

	s := set.Role("surveyors")
	assert.True(t, s.Allowed(resource.TypeFeatureInfoService, "mapA"))
	assert.True(t, s.Allowed(resource.TypeFeatureInfoLayer, "layerA"))

	// without a map/layer grant the info resources stay denied
	pub := set.Role(PublicRole)
	assert.False(t, pub.Allowed(resource.TypeFeatureInfoService, "mapA"))
	assert.False(t, pub.Allowed(resource.TypeFeatureInfoLayer, "layerA"))
}

func TestResolve_InheritDisabledFallsBackToDefault(t *testing.T) {
	grants := []Grant{
		{Role: "surveyors", ResourceType: resource.TypeMap, ResourceName: "mapA"},
		{Role: "surveyors", ResourceType: resource.TypeLayer, ResourceName: "layerA"},
	}
	set := resolve(t, infoForest(t), Policy{DefaultAllow: false}, grants)

	s := set.Role("surveyors")
	assert.False(t, s.Allowed(resource.TypeFeatureInfoService, "mapA"))
	assert.False(t, s.Allowed(resource.TypeFeatureInfoLayer, "layerA"))
}

func TestResolve_InheritedAttributeUnderInfoLayer(t *testing.T) {
	f := buildForest(t, []resource.Record{
		{ID: 1, Type: resource.TypeMap, Name: "mapA"},
		{ID: 2, Type: resource.TypeLayer, Name: "layerA", Parent: ref(1)},
		{ID: 3, Type: resource.TypeAttribute, Name: "fieldA", Parent: ref(2)},
		{ID: 4, Type: resource.TypeFeatureInfoService, Name: "mapA"},
		{ID: 5, Type: resource.TypeFeatureInfoLayer, Name: "layerA", Parent: ref(4)},
		{ID: 6, Type: resource.TypeAttribute, Name: "fieldA", Parent: ref(5)},
	})

	// no grant on either fieldA: the attribute under layerA is allowed by
	// the attribute default, and the copy under the info layer inherits
	// that resolution instead of its own type default
	grants := []Grant{
		{Role: PublicRole, ResourceType: resource.TypeMap, ResourceName: "mapA"},
		{Role: PublicRole, ResourceType: resource.TypeLayer, ResourceName: "layerA"},
	}
	policy := Policy{DefaultAllow: false, InheritInfoPermissions: true}
	set := resolve(t, f, policy, grants)

	pub := set.Role(PublicRole)
	assert.True(t, pub.Allowed(resource.TypeFeatureInfoLayer, "layerA"))

	infoAttrs := pub.Entries(resource.TypeAttribute)
	var parents []string
	for _, e := range infoAttrs {
		parents = append(parents, e.Parent)
	}
	assert.Contains(t, parents, "layerA")
	require.Len(t, infoAttrs, 2) // one under the layer, one under the info layer
}

func TestResolve_UnknownGrantType(t *testing.T) {
	f := layerForest(t)
	grants := []Grant{
		{Role: PublicRole, ResourceType: "dataproduct", ResourceName: "x"},
	}

	_, err := NewResolver(f, Policy{}, grants, nil, observability.NopLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownResourceType)

	// with ignore_errors the row is skipped
	r, err := NewResolver(f, Policy{IgnoreErrors: true}, grants, nil, observability.NopLogger())
	require.NoError(t, err)
	set, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.NotNil(t, set.Role(PublicRole))
}

func TestResolve_GrantForMissingResourceIsInert(t *testing.T) {
	grants := []Grant{
		{Role: "editors", ResourceType: resource.TypeLayer, ResourceName: "no_such_layer"},
	}
	set := resolve(t, layerForest(t), Policy{DefaultAllow: false}, grants)
	assert.False(t, set.Role("editors").Allowed(resource.TypeLayer, "no_such_layer"))
}

func TestResolve_PublicAlwaysPresentAndFirst(t *testing.T) {
	set := resolve(t, layerForest(t), Policy{DefaultAllow: true}, nil, "zeta", "alpha")
	assert.Equal(t, []string{PublicRole, "alpha", "zeta"}, set.RoleNames())
}

func TestResolve_Idempotence(t *testing.T) {
	grants := []Grant{
		{Role: "editors", ResourceType: resource.TypeMap, ResourceName: "mapA"},
		{Role: PublicRole, ResourceType: resource.TypeLayer, ResourceName: "layerA"},
	}
	policy := Policy{DefaultAllow: false, InheritInfoPermissions: true}

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		set := resolve(t, layerForest(t), policy, grants, "editors")
		out, err := json.Marshal(set)
		require.NoError(t, err)
		outputs = append(outputs, out)
	}
	assert.Equal(t, string(outputs[0]), string(outputs[1]))
}

func TestResolve_CancelledContext(t *testing.T) {
	r, err := NewResolver(layerForest(t), Policy{}, nil, nil, observability.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Resolve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_CustomResourceType(t *testing.T) {
	f := buildForest(t, []resource.Record{
		{ID: 1, Type: "external_link", Name: "docs"},
	}, resource.Type{Name: "external_link"})

	set := resolve(t, f, Policy{DefaultAllow: true}, nil)
	assert.True(t, set.Role(PublicRole).Allowed("external_link", "docs"))
}
