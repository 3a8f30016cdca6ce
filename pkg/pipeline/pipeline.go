// Package pipeline runs citation extraction, resolution, graph construction
// and text metrics over eCFR documents.
//
// A run over one document is sequential: the heading index is built once
// and handed to every stage that needs it. Batches of documents are
// processed concurrently, one goroutine per document.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/analysis"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/document"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/extract"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/metrics"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/pattern"
)

// Result holds every artifact produced for one document.
type Result struct {
	Source         string
	Document       *document.Document
	Index          *extract.HeadingIndex
	References     []*extract.CrossReference
	Citations      *extract.CitationReport
	Graph          *analysis.Graph
	SectionMetrics []metrics.Record
	TitleMetrics   metrics.TextMetrics
}

// Pipeline wires the analysis stages together. A Pipeline is long-lived:
// its instruments are registered once, and the matcher can be swapped
// between runs when pattern sets are reloaded.
type Pipeline struct {
	matcher    atomic.Pointer[pattern.Matcher]
	engine     metrics.Engine
	logger     *zap.Logger
	registerer prometheus.Registerer
	workers    int
	instr      *instruments
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMatcher sets the pattern matcher used for extraction.
func WithMatcher(m *pattern.Matcher) Option {
	return func(p *Pipeline) {
		p.SetMatcher(m)
	}
}

// WithEngine sets the metrics engine.
func WithEngine(e metrics.Engine) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.engine = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRegisterer registers the pipeline's Prometheus instruments with reg
// instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Pipeline) {
		if reg != nil {
			p.registerer = reg
		}
	}
}

// WithWorkers bounds the number of documents processed at once by RunFiles.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// New creates a Pipeline using the built-in pattern set and the plain
// Flesch-Kincaid engine unless options say otherwise.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:  metrics.FleschKincaid{},
		logger:  zap.NewNop(),
		workers: 1,
	}
	p.matcher.Store(pattern.DefaultMatcher())
	for _, opt := range opts {
		opt(p)
	}
	if p.registerer == nil {
		p.registerer = prometheus.NewRegistry()
	}
	p.instr = newInstruments(p.registerer)
	return p
}

// Matcher returns the matcher used for extraction.
func (p *Pipeline) Matcher() *pattern.Matcher {
	return p.matcher.Load()
}

// SetMatcher replaces the matcher for documents started afterwards. A nil
// matcher is ignored.
func (p *Pipeline) SetMatcher(m *pattern.Matcher) {
	if m != nil {
		p.matcher.Store(m)
	}
}

// Run analyzes one document.
func (p *Pipeline) Run(source string, doc *document.Document) (*Result, error) {
	if doc == nil {
		p.instr.documents.WithLabelValues(statusError).Inc()
		return nil, fmt.Errorf("analyzing %s: %w", source, document.ErrMalformedDocument)
	}

	start := time.Now()

	index := extract.BuildHeadingIndex(doc)
	extractor := extract.NewReferenceExtractor(
		extract.WithMatcher(p.matcher.Load()),
		extract.WithLogger(p.logger),
	)
	refs := extractor.ExtractFromDocument(doc)
	report := extract.NewReferenceResolver(index).Report(refs)

	result := &Result{
		Source:         source,
		Document:       doc,
		Index:          index,
		References:     refs,
		Citations:      report,
		Graph:          analysis.BuildGraph(doc, refs),
		SectionMetrics: metrics.Aggregate(doc, p.engine),
		TitleMetrics:   metrics.Title(doc, p.engine),
	}

	p.observe(result, time.Since(start))
	p.logger.Info("document analyzed",
		zap.String("source", source),
		zap.Int("records", len(refs)),
		zap.Int("references", len(report.ResolvedReferences)),
		zap.Int("nodes", len(result.Graph.Nodes)),
		zap.Int("edges", len(result.Graph.Edges)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// RunFile loads a Document Tree JSON file and analyzes it.
func (p *Pipeline) RunFile(path string) (*Result, error) {
	doc, err := document.LoadFile(path)
	if err != nil {
		p.instr.documents.WithLabelValues(statusError).Inc()
		return nil, err
	}
	return p.Run(filepath.Base(path), doc)
}

// RunFiles analyzes every path, at most Workers at a time. Results are in
// path order. The first failure cancels documents not yet started and is
// returned.
func (p *Pipeline) RunFiles(ctx context.Context, paths []string) ([]*Result, error) {
	results := make([]*Result, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			result, err := p.RunFile(path)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) observe(result *Result, elapsed time.Duration) {
	p.instr.documents.WithLabelValues(statusOK).Inc()
	p.instr.duration.Observe(elapsed.Seconds())
	p.instr.records.Add(float64(len(result.References)))
	for _, rr := range result.Citations.ResolvedReferences {
		if rr.Resolved() {
			p.instr.references.WithLabelValues(outcomeResolved).Inc()
		} else {
			p.instr.references.WithLabelValues(outcomeUnresolved).Inc()
		}
	}
}
