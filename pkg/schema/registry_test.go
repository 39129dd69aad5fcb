package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["service", "config"],
	"properties": {
		"service": {"const": "search"},
		"config": {"type": "object"},
		"resources": {
			"type": "object",
			"properties": {
				"solr_facet": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["name"],
						"properties": {"name": {"type": "string"}}
					}
				}
			}
		}
	}
}`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search.schema.json"), []byte(searchSchema), 0o644))
	return NewRegistry(dir)
}

func TestValidate_Passes(t *testing.T) {
	r := newTestRegistry(t)
	doc := `{"service": "search", "config": {}, "resources": {"solr_facet": [{"name": "places"}]}}`

	violations, err := r.Validate("search", []byte(doc))
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestValidate_ReportsViolationPaths(t *testing.T) {
	r := newTestRegistry(t)
	doc := `{"service": "search", "config": {}, "resources": {"solr_facet": [{"title": "no name"}]}}`

	violations, err := r.Validate("search", []byte(doc))
	require.NoError(t, err)
	require.NotEmpty(t, violations)
	assert.Equal(t, "$.resources.solr_facet[0]", violations[0].Path)
}

func TestValidate_MissingRequiredTopLevel(t *testing.T) {
	r := newTestRegistry(t)

	violations, err := r.Validate("search", []byte(`{"service": "search"}`))
	require.NoError(t, err)
	require.NotEmpty(t, violations)
	assert.Equal(t, "$", violations[0].Path)
}

func TestValidate_NoSchemaRegistered(t *testing.T) {
	r := newTestRegistry(t)

	violations, err := r.Validate("elevation", []byte(`{"anything": "goes"}`))
	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.False(t, r.HasSchema("elevation"))
	assert.True(t, r.HasSchema("search"))
}

func TestValidate_BrokenSchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.schema.json"), []byte(`{"type": 42}`), 0o644))

	_, err := NewRegistry(dir).Validate("bad", []byte(`{}`))
	assert.Error(t, err)
}
