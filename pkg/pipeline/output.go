package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/metrics"
)

// Artifact file names.
const (
	FileCrossReferences    = "cross_references.json"
	FileCitationCounts     = "citation_counts.json"
	FileGraph              = "cross_reference_graph.json"
	FilePartSectionMetrics = "part_section_metrics.json"
	FileTitleMetrics       = "metrics.json"
	FileMetricsHistory     = "metrics_history.json"
)

// ErrDuplicateSource is returned by WriteBatch when two results would write
// to the same artifact directory or title metrics key.
var ErrDuplicateSource = errors.New("duplicate source in batch")

// Stem derives the per-document directory name from a source file name:
// "title1_parsed.json" becomes "title1".
func Stem(source string) string {
	base := filepath.Base(source)
	for _, suffix := range []string{"_parsed.json", ".json"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return base
}

// WriteOutputs writes the four per-document artifacts of result into dir.
func WriteOutputs(dir string, result *Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	artifacts := []struct {
		name  string
		value any
	}{
		{FileCrossReferences, result.References},
		{FileCitationCounts, result.Citations},
		{FileGraph, result.Graph},
		{FilePartSectionMetrics, result.SectionMetrics},
	}
	for _, a := range artifacts {
		if err := writeJSON(filepath.Join(dir, a.name), a.value); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch writes the artifacts of every result, the title metrics of the
// batch and a new metrics history entry. A single document writes its
// artifacts directly into dir; larger batches use dir/<stem>. Nothing is
// written when two results share a source name or stem.
func WriteBatch(dir string, results []*Result) (metrics.HistoryEntry, error) {
	if err := checkDistinctSources(results); err != nil {
		return metrics.HistoryEntry{}, err
	}

	titles := make(metrics.TitleSet, len(results))
	for _, result := range results {
		target := dir
		if len(results) > 1 {
			target = filepath.Join(dir, Stem(result.Source))
		}
		if err := WriteOutputs(target, result); err != nil {
			return metrics.HistoryEntry{}, fmt.Errorf("writing outputs for %s: %w", result.Source, err)
		}
		titles[result.Source] = result.TitleMetrics
	}

	if err := metrics.WriteTitleSet(filepath.Join(dir, FileTitleMetrics), titles); err != nil {
		return metrics.HistoryEntry{}, err
	}

	entry := metrics.NewHistoryEntry(titles)
	if _, err := metrics.AppendHistory(filepath.Join(dir, FileMetricsHistory), entry); err != nil {
		return metrics.HistoryEntry{}, err
	}
	return entry, nil
}

func checkDistinctSources(results []*Result) error {
	sources := make(map[string]bool, len(results))
	stems := make(map[string]string, len(results))
	for _, result := range results {
		if sources[result.Source] {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, result.Source)
		}
		sources[result.Source] = true

		stem := Stem(result.Source)
		if other, ok := stems[stem]; ok {
			return fmt.Errorf("%w: %s and %s both write %s", ErrDuplicateSource, other, result.Source, stem)
		}
		stems[stem] = result.Source
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
