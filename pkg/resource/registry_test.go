package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Builtins(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	types := reg.TypesInOrder()
	require.Len(t, types, len(BuiltinTypes()))
	assert.Equal(t, TypeMap, types[0].Name)
	assert.Equal(t, TypeSolrFacet, types[len(types)-1].Name)

	for i := 1; i < len(types); i++ {
		assert.Less(t, types[i-1].ListOrder, types[i].ListOrder)
	}
}

func TestNewRegistry_CustomTypesAppendedAfterBuiltins(t *testing.T) {
	reg, err := NewRegistry(
		Type{Name: "document_template"},
		Type{Name: "external_link"},
	)
	require.NoError(t, err)

	types := reg.TypesInOrder()
	require.Len(t, types, len(BuiltinTypes())+2)
	assert.Equal(t, "document_template", types[len(types)-2].Name)
	assert.Equal(t, "external_link", types[len(types)-1].Name)

	_, ok := reg.Lookup("document_template")
	assert.True(t, ok)
}

func TestNewRegistry_CustomTypeWithExplicitOrder(t *testing.T) {
	// list_order 15 slots the custom type between map (10) and layer (20)
	reg, err := NewRegistry(Type{Name: "background_layer", ListOrder: 15})
	require.NoError(t, err)

	types := reg.TypesInOrder()
	assert.Equal(t, TypeMap, types[0].Name)
	assert.Equal(t, "background_layer", types[1].Name)
	assert.Equal(t, TypeLayer, types[2].Name)
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(Type{Name: TypeLayer})
	assert.Error(t, err)

	_, err = NewRegistry(Type{Name: "x"}, Type{Name: "x"})
	assert.Error(t, err)

	_, err = NewRegistry(Type{Name: ""})
	assert.Error(t, err)
}
