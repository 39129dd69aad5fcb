package permissions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleSet_MarshalOrderedTypes(t *testing.T) {
	set := NewResolvedSet([]string{"map", "layer", "attribute"}, nil)
	pub := set.Role(PublicRole)
	pub.add("layer", Entry{Name: "rivers"})
	pub.add("attribute", Entry{Name: "name", Parent: "rivers"})

	out, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"role": "public",
		"permissions": {
			"map": [],
			"layer": [{"name": "rivers"}],
			"attribute": [{"name": "name", "parent": "rivers"}]
		}
	}`, string(out))

	// key order follows list_order, not JSON map semantics
	s := string(out)
	assert.Less(t, indexOf(s, `"map"`), indexOf(s, `"layer"`))
	assert.Less(t, indexOf(s, `"layer"`), indexOf(s, `"attribute"`))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestResolvedSet_ReplaceTypes(t *testing.T) {
	types := []string{"map", "layer", "solr_facet"}

	base := NewResolvedSet(types, []string{"editors"})
	base.Role(PublicRole).add("solr_facet", Entry{Name: "from_store"})
	base.Role(PublicRole).add("map", Entry{Name: "mapA"})
	base.Role("editors").add("solr_facet", Entry{Name: "from_store"})

	override := NewResolvedSet(types, nil)
	override.Role(PublicRole).add("solr_facet", Entry{Name: "declared"})

	require.NoError(t, base.ReplaceTypes(override, []string{"solr_facet"}))

	// declared records fully replace store-derived ones for the type
	pub := base.Role(PublicRole)
	assert.False(t, pub.Allowed("solr_facet", "from_store"))
	assert.True(t, pub.Allowed("solr_facet", "declared"))
	// other types untouched
	assert.True(t, pub.Allowed("map", "mapA"))
	// roles absent from the override lose their store-derived entries
	assert.Empty(t, base.Role("editors").Entries("solr_facet"))
}

func TestResolvedSet_ReplaceTypesUnknownType(t *testing.T) {
	base := NewResolvedSet([]string{"map"}, nil)
	err := base.ReplaceTypes(NewResolvedSet([]string{"map"}, nil), []string{"bogus"})
	assert.ErrorIs(t, err, ErrUnknownResourceType)
}

func TestResolvedSet_OverrideIntroducesRole(t *testing.T) {
	types := []string{"map"}
	base := NewResolvedSet(types, nil)

	override := NewResolvedSet(types, []string{"surveyors"})
	override.Role("surveyors").add("map", Entry{Name: "mapA"})

	require.NoError(t, base.ReplaceTypes(override, types))
	require.NotNil(t, base.Role("surveyors"))
	assert.True(t, base.Role("surveyors").Allowed("map", "mapA"))
	// public stays first
	assert.Equal(t, PublicRole, base.RoleNames()[0])
}
