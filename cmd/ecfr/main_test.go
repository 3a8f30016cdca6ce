package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/document"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/pattern"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/pipeline"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/server"
)

func TestConvertedName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"data/raw/ECFR-title1.xml", "title1_parsed.json"},
		{"ECFR-title50.xml", "title50_parsed.json"},
		{"/tmp/custom.xml", "custom_parsed.json"},
	}

	for _, tt := range tests {
		if got := convertedName(tt.input); got != tt.want {
			t.Errorf("convertedName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBatchRunner_ReloadedMatcherAndSharedMetrics(t *testing.T) {
	in := t.TempDir()
	source := filepath.Join(in, "title1_parsed.json")
	doc := &document.Document{Parts: []*document.Part{{
		Heading: "PART 1—GENERAL",
		Sections: []*document.Section{
			{Heading: "§ 1.1 Scope", Paragraphs: []string{"See § 1.2 for definitions."}},
			{Heading: "§ 1.2 Definitions", Paragraphs: []string{"Terms used in this part."}},
		},
	}}}
	if err := document.WriteFile(source, doc); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	reg := newMetricsRegistry()
	registry := pattern.NewRegistry(zap.NewNop())
	batch := &batchRunner{
		pipeline: pipeline.New(pipeline.WithRegisterer(reg)),
		registry: registry,
		setID:    pattern.DefaultSetID,
		sources:  []string{source},
		output:   t.TempDir(),
	}

	_, results, err := batch.run(context.Background())
	if err != nil {
		t.Fatalf("first run error = %v", err)
	}
	if got := len(results[0].References); got != 1 {
		t.Fatalf("first run references = %d, want 1", got)
	}

	quiet := pattern.DefaultSet()
	quiet.Cues = []string{"no paragraph says this"}
	if err := quiet.Compile(); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if err := registry.Register(quiet); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	entry, results, err := batch.run(context.Background())
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if got := len(results[0].References); got != 0 {
		t.Errorf("second run references = %d, want 0 after matcher reload", got)
	}
	if entry.RunID == "" {
		t.Error("second run has no history entry")
	}

	srv := server.New(batch.output, server.WithRegistry(reg))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`ecfr_pipeline_documents_total{status="ok"} 2`,
		`ecfr_pipeline_cross_reference_records_total 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}
