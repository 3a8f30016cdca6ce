package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/pipeline"
)

type artifact struct {
	name string
	file string
}

// rootArtifacts are served from the top of the processed directory.
var rootArtifacts = []artifact{
	{"metrics", pipeline.FileTitleMetrics},
	{"part_section_metrics", pipeline.FilePartSectionMetrics},
	{"citation_counts", pipeline.FileCitationCounts},
	{"cross_references", pipeline.FileCrossReferences},
	{"cross_reference_graph", pipeline.FileGraph},
	{"metrics_history", pipeline.FileMetricsHistory},
}

// titleArtifacts are the per-document files written by batch runs.
var titleArtifacts = map[string]string{
	"part_section_metrics":  pipeline.FilePartSectionMetrics,
	"citation_counts":       pipeline.FileCitationCounts,
	"cross_references":      pipeline.FileCrossReferences,
	"cross_reference_graph": pipeline.FileGraph,
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	endpoints := make([]string, 0, len(rootArtifacts)+1)
	for _, a := range rootArtifacts {
		endpoints = append(endpoints, "/api/"+a.name)
	}
	endpoints = append(endpoints, "/api/titles/{title}/{artifact}")
	writeJSON(w, http.StatusOK, map[string]any{"endpoints": endpoints})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) serveArtifact(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sendFile(w, filepath.Join(s.dir, name))
	}
}

func (s *Server) handleTitleArtifact(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	if !validTitle(title) {
		jsonError(w, "invalid title", http.StatusBadRequest)
		return
	}

	file, ok := titleArtifacts[chi.URLParam(r, "artifact")]
	if !ok {
		jsonError(w, "unknown artifact", http.StatusNotFound)
		return
	}

	s.sendFile(w, filepath.Join(s.dir, title, file))
}

func (s *Server) sendFile(w http.ResponseWriter, path string) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		jsonError(w, filepath.Base(path)+" not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("reading artifact", zap.String("path", path), zap.Error(err))
		jsonError(w, "failed to read artifact", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func validTitle(title string) bool {
	if title == "" || strings.Contains(title, "..") {
		return false
	}
	return !strings.ContainsAny(title, `/\`)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
