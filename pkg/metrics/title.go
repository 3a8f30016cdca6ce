package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/document"
)

// Title measures a whole document: every heading and paragraph in
// traversal order.
func Title(doc *document.Document, engine Engine) TextMetrics {
	if engine == nil {
		engine = FleschKincaid{}
	}
	text := doc.FullText()
	m := engine.Measure(text)
	if m.Checksum == "" {
		m.Checksum = Checksum(text)
	}
	return m
}

// TitleSet maps a source file name to its title metrics.
type TitleSet map[string]TextMetrics

// HistoryEntry is one analysis run recorded in the metrics history.
// Entries written by older tooling carry no run ID.
type HistoryEntry struct {
	RunID     string    `json:"run_id,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
	Metrics   TitleSet  `json:"metrics"`
}

// NewHistoryEntry stamps metrics with a fresh run ID and the current time.
func NewHistoryEntry(metrics TitleSet) HistoryEntry {
	return HistoryEntry{
		RunID:     uuid.NewString(),
		Timestamp: Timestamp{time.Now().UTC()},
		Metrics:   metrics,
	}
}

// localTimestampLayout is ISO-8601 without a zone offset. Fractional
// seconds are accepted when parsing.
const localTimestampLayout = "2006-01-02T15:04:05"

// Timestamp is a history time. It encodes as RFC 3339 and also decodes
// ISO-8601 values without an offset, which are read as local time.
type Timestamp struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(localTimestampLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// WriteTitleSet writes metrics to path as indented JSON.
func WriteTitleSet(path string, metrics TitleSet) error {
	return writeJSON(path, metrics)
}

// LoadHistory reads a history file. A missing file is an empty history.
func LoadHistory(path string) ([]HistoryEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metrics history: %w", err)
	}

	var history []HistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parsing metrics history %s: %w", path, err)
	}
	if history == nil {
		history = []HistoryEntry{}
	}
	return history, nil
}

// AppendHistory adds entry to the history file at path, keeping existing
// entries, and returns the updated history.
func AppendHistory(path string, entry HistoryEntry) ([]HistoryEntry, error) {
	history, err := LoadHistory(path)
	if err != nil {
		return nil, err
	}
	history = append(history, entry)
	if err := writeJSON(path, history); err != nil {
		return nil, err
	}
	return history, nil
}

// writeJSON writes v to a temporary file beside path and renames it into
// place.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
