package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.GenerationsTotal.WithLabelValues("default", "succeeded").Inc()
	m.TasksActive.Set(1)
	m.DocumentsWrittenTotal.WithLabelValues("default", "ogc").Inc()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["confgen_generations_total"])
	assert.True(t, names["confgen_tasks_active"])
	assert.True(t, names["confgen_documents_written_total"])
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(nil)
	m.GenerationsTotal.WithLabelValues("default", "failed").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "confgen_generations_total")
}
