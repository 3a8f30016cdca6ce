package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/pipeline"
)

func setupDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, pipeline.FileCitationCounts),
		[]byte(`{"citation_counts":{"PART 3—FEES":1},"resolved_references":[]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, pipeline.FileTitleMetrics),
		[]byte(`{"title1_parsed.json":{"word_count":7,"readability":1.5,"checksum":"abc"}}`), 0644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "title2"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "title2", pipeline.FileGraph),
		[]byte(`{"nodes":[],"edges":[]}`), 0644))
	return dir
}

func do(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestIndex(t *testing.T) {
	rec := do(t, New(t.TempDir()), "/")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Endpoints []string `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Endpoints, "/api/metrics")
	assert.Contains(t, body.Endpoints, "/api/cross_reference_graph")
	assert.Contains(t, body.Endpoints, "/api/metrics_history")
}

func TestHealth(t *testing.T) {
	rec := do(t, New(t.TempDir()), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRootArtifacts(t *testing.T) {
	s := New(setupDir(t))

	rec := do(t, s, "/api/citation_counts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"citation_counts":{"PART 3—FEES":1},"resolved_references":[]}`, rec.Body.String())

	rec = do(t, s, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "title1_parsed.json")
}

func TestMissingArtifact(t *testing.T) {
	rec := do(t, New(setupDir(t)), "/api/metrics_history")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"metrics_history.json not found"}`, rec.Body.String())
}

func TestTitleArtifacts(t *testing.T) {
	s := New(setupDir(t))

	tests := []struct {
		name string
		path string
		want int
	}{
		{"present", "/api/titles/title2/cross_reference_graph", http.StatusOK},
		{"missing file", "/api/titles/title2/citation_counts", http.StatusNotFound},
		{"missing title", "/api/titles/title9/cross_references", http.StatusNotFound},
		{"unknown artifact", "/api/titles/title2/metrics_history", http.StatusNotFound},
		{"dot-dot", "/api/titles/title2..x/cross_reference_graph", http.StatusBadRequest},
		{"parent", "/api/titles/../cross_reference_graph", http.StatusBadRequest},
		{"backslash", "/api/titles/a%5Cb/cross_reference_graph", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.path)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(setupDir(t), WithRegistry(reg))

	do(t, s, "/api/citation_counts")
	do(t, s, "/api/citation_counts")
	do(t, s, "/api/metrics_history")

	assert.Equal(t, 2.0, testutil.ToFloat64(s.requests.WithLabelValues("/api/citation_counts", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.requests.WithLabelValues("/api/metrics_history", "404")))

	rec := do(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ecfr_http_requests_total")
}

func TestValidTitle(t *testing.T) {
	assert.True(t, validTitle("title1"))
	assert.False(t, validTitle(""))
	assert.False(t, validTitle(".."))
	assert.False(t, validTitle("a/b"))
	assert.False(t, validTitle(`a\b`))
}
