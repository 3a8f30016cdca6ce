package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/document"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/metrics"
)

func TestStem(t *testing.T) {
	tests := map[string]string{
		"title1_parsed.json":          "title1",
		"/data/processed/title7.json": "title7",
		"notes.txt":                   "notes.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, Stem(in), in)
	}
}

func TestWriteOutputs(t *testing.T) {
	result, err := New().Run("title1_parsed.json", sampleDocument())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteOutputs(dir, result))

	for _, name := range []string{FileCrossReferences, FileCitationCounts, FileGraph, FilePartSectionMetrics} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	data, err := os.ReadFile(filepath.Join(dir, FileCitationCounts))
	require.NoError(t, err)
	var counts struct {
		CitationCounts     map[string]int `json:"citation_counts"`
		ResolvedReferences []struct {
			Reference  string  `json:"reference"`
			ResolvedTo *string `json:"resolved_to"`
		} `json:"resolved_references"`
	}
	require.NoError(t, json.Unmarshal(data, &counts))
	assert.Equal(t, 1, counts.CitationCounts["PART 3—FEES"])
	require.Len(t, counts.ResolvedReferences, 5)
	assert.Nil(t, counts.ResolvedReferences[1].ResolvedTo, "appendix Z stays unresolved")

	data, err = os.ReadFile(filepath.Join(dir, FileCrossReferences))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"part_heading\": \"PART 1—GENERAL\"")
}

func TestWriteOutputs_EmptyDocumentWritesArrays(t *testing.T) {
	empty, err := New().Run("empty.json", &document.Document{})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, WriteOutputs(dir, empty))

	data, err := os.ReadFile(filepath.Join(dir, FileCrossReferences))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, FileGraph))
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes": [], "edges": []}`, string(data))
}

func TestWriteBatch_SingleDocument(t *testing.T) {
	result, err := New().Run("title1_parsed.json", sampleDocument())
	require.NoError(t, err)

	dir := t.TempDir()
	entry, err := WriteBatch(dir, []*Result{result})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.RunID)

	assert.FileExists(t, filepath.Join(dir, FileCrossReferences))
	assert.NoDirExists(t, filepath.Join(dir, "title1"))

	titles := readTitles(t, filepath.Join(dir, FileTitleMetrics))
	assert.Equal(t, result.TitleMetrics, titles["title1_parsed.json"])
}

func TestWriteBatch_ManyDocumentsAppendHistory(t *testing.T) {
	p := New()
	first, err := p.Run("title1_parsed.json", sampleDocument())
	require.NoError(t, err)
	second, err := p.Run("title2_parsed.json", sampleDocument())
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = WriteBatch(dir, []*Result{first, second})
	require.NoError(t, err)
	_, err = WriteBatch(dir, []*Result{first, second})
	require.NoError(t, err)

	for _, stem := range []string{"title1", "title2"} {
		assert.FileExists(t, filepath.Join(dir, stem, FileGraph))
	}
	assert.Len(t, readTitles(t, filepath.Join(dir, FileTitleMetrics)), 2)

	history, err := metrics.LoadHistory(filepath.Join(dir, FileMetricsHistory))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.NotEqual(t, history[0].RunID, history[1].RunID)
}

func TestWriteBatch_DuplicateSourcesWriteNothing(t *testing.T) {
	p := New()
	tests := map[string][2]string{
		"same source":  {"title1.json", "title1.json"},
		"same stem":   {"title1.json", "title1_parsed.json"},
	}

	for name, sources := range tests {
		t.Run(name, func(t *testing.T) {
			var results []*Result
			for _, source := range sources {
				result, err := p.Run(source, sampleDocument())
				require.NoError(t, err)
				results = append(results, result)
			}

			dir := t.TempDir()
			_, err := WriteBatch(dir, results)
			require.ErrorIs(t, err, ErrDuplicateSource)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestWriteBatch_SameNameInDifferentDirectories(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(in, "a"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(in, "b"), 0755))
	paths := []string{
		writeSample(t, filepath.Join(in, "a"), "title1.json"),
		writeSample(t, filepath.Join(in, "b"), "title1.json"),
	}

	results, err := New().RunFiles(context.Background(), paths)
	require.NoError(t, err)

	out := t.TempDir()
	_, err = WriteBatch(out, results)
	require.ErrorIs(t, err, ErrDuplicateSource)
	assert.NoFileExists(t, filepath.Join(out, FileTitleMetrics))
	assert.NoDirExists(t, filepath.Join(out, "title1"))
}

func readTitles(t *testing.T, path string) metrics.TitleSet {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var titles metrics.TitleSet
	require.NoError(t, json.Unmarshal(data, &titles))
	return titles
}
