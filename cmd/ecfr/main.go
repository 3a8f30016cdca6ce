package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/analysis"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/config"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/document"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/extract"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/logging"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/metrics"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/pattern"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/pipeline"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/server"
)

var version = "0.1.0"

// Populated by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger = zap.NewNop()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ecfr",
		Short: "eCFR regulatory text analysis",
		Long: `ecfr analyzes titles of the Electronic Code of Federal Regulations.

It converts eCFR XML into document trees and produces:
  - Informal cross-references found in regulatory paragraphs
  - Citation counts resolved against part and section headings
  - A cross-reference graph of parts, sections and external citations
  - Word count and readability metrics per title, part and section
  - A read-only HTTP API over the processed artifacts`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				loaded.LogLevel, _ = cmd.Flags().GetString("log-level")
			}
			if cmd.Flags().Changed("log-format") {
				loaded.LogFormat, _ = cmd.Flags().GetString("log-format")
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded

			logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
			return err
		},
	}

	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (json, console)")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(refsCmd())
	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(impactCmd())
	rootCmd.AddCommand(matrixCmd())
	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(patternsCmd())
	rootCmd.AddCommand(serveCmd())

	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full analysis over document trees",
		Long: `Extract cross-references, resolve citations, build the cross-reference
graph and compute text metrics for one or more document tree files.

Without --source every *.json file in the raw data directory is analyzed.
With more than one document, each document's artifacts are written to
<output>/<title>/; metrics.json and metrics_history.json stay in <output>.

Examples:
  ecfr analyze --source data/raw/title1_parsed.json
  ecfr analyze --source data/raw/title1_parsed.json,data/raw/title2_parsed.json --workers 2
  ecfr analyze --patterns patterns --watch --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, _ := cmd.Flags().GetStringSlice("source")
			output, _ := cmd.Flags().GetString("output")
			patternDir, _ := cmd.Flags().GetString("patterns")
			setID, _ := cmd.Flags().GetString("pattern-set")
			workers, _ := cmd.Flags().GetInt("workers")
			watch, _ := cmd.Flags().GetBool("watch")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			if output == "" {
				output = cfg.ProcessedDir()
			}
			if patternDir == "" {
				patternDir = cfg.PatternDir
			}
			if setID == "" {
				setID = cfg.PatternSet
			}
			if workers <= 0 {
				workers = cfg.Workers
			}

			if len(sources) == 0 {
				found, err := filepath.Glob(filepath.Join(cfg.RawDir(), "*.json"))
				if err != nil {
					return fmt.Errorf("listing %s: %w", cfg.RawDir(), err)
				}
				sort.Strings(found)
				sources = found
			}
			if len(sources) == 0 {
				return fmt.Errorf("no document trees found; pass --source or convert XML first")
			}

			registry, err := loadRegistry(patternDir)
			if err != nil {
				return err
			}

			engine, err := metrics.NewEngine(cfg.MetricsCacheSize)
			if err != nil {
				return fmt.Errorf("creating metrics engine: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := newMetricsRegistry()
			p := pipeline.New(
				pipeline.WithEngine(engine),
				pipeline.WithLogger(logger),
				pipeline.WithWorkers(workers),
				pipeline.WithRegisterer(reg),
			)

			if metricsAddr != "" {
				srv := server.New(output, server.WithLogger(logger), server.WithRegistry(reg))
				srvErr := make(chan error, 1)
				go func() { srvErr <- srv.ListenAndServe(ctx, metricsAddr) }()
				defer func() {
					stop()
					if err := <-srvErr; err != nil {
						logger.Error("metrics server failed", zap.Error(err))
					}
				}()
			}

			batch := &batchRunner{
				pipeline: p,
				registry: registry,
				setID:    setID,
				sources:  sources,
				output:   output,
			}
			run := func() error {
				entry, results, err := batch.run(ctx)
				if err != nil {
					return err
				}
				printBatchSummary(results, output, entry)
				return nil
			}

			if err := run(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			if patternDir == "" {
				return fmt.Errorf("--watch requires --patterns or a configured pattern directory")
			}
			registry.SetOnChange(func(event string, set *pattern.PatternSet) {
				logger.Info("pattern sets changed, re-running analysis", zap.String("event", event))
				if err := run(); err != nil {
					logger.Error("analysis failed", zap.Error(err))
				}
			})
			if err := registry.Watch(); err != nil {
				return err
			}
			defer registry.StopWatch()

			fmt.Printf("Watching %s for pattern changes (Ctrl+C to stop)\n", patternDir)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringSliceP("source", "s", nil, "Document tree JSON files to analyze")
	cmd.Flags().StringP("output", "o", "", "Output directory (default: <data_dir>/processed)")
	cmd.Flags().StringP("patterns", "p", "", "Directory of pattern set YAML files")
	cmd.Flags().String("pattern-set", "", "Pattern set ID to use")
	cmd.Flags().IntP("workers", "w", 0, "Documents analyzed concurrently")
	cmd.Flags().Bool("watch", false, "Re-run when pattern set files change")
	cmd.Flags().String("metrics-addr", "", "Serve /metrics and the processed artifacts on this address while running")

	return cmd
}

func refsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs",
		Short: "Show cross-references and citation counts for a document",
		Long: `Extract and resolve the cross-references of one document tree.

Example:
  ecfr refs --source data/raw/title1_parsed.json
  ecfr refs --source data/raw/title1_parsed.json --top 20
  ecfr refs --source data/raw/title1_parsed.json --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			formatStr, _ := cmd.Flags().GetString("format")
			top, _ := cmd.Flags().GetInt("top")

			result, err := analyzeSource(cmd, source)
			if err != nil {
				return err
			}
			stats := extract.CalculateStats(result.References)

			switch formatStr {
			case "json":
				return printJSON(struct {
					Stats      extract.ReferenceStats    `json:"stats"`
					References []*extract.CrossReference `json:"cross_references"`
					Citations  *extract.CitationReport   `json:"citations"`
				}{stats, result.References, result.Citations})
			case "table":
				fmt.Printf("Reference Analysis: %s\n", result.Source)
				fmt.Println("=" + strings.Repeat("=", 50))
				fmt.Printf("\nRecords:            %d\n", stats.Records)
				fmt.Printf("Reference strings:  %d\n", stats.TotalReferences)
				fmt.Printf("Unique references:  %d\n", stats.UniqueReferences)
				fmt.Printf("Sections citing:    %d\n", stats.SectionsWithRefs)
				fmt.Printf("Parts citing:       %d\n", stats.PartsWithRefs)
				fmt.Printf("Resolution rate:    %.1f%%\n\n", result.Citations.ResolutionRate()*100)

				if len(stats.ByKind) > 0 {
					fmt.Println("By kind:")
					kinds := make([]string, 0, len(stats.ByKind))
					for kind := range stats.ByKind {
						kinds = append(kinds, kind)
					}
					sort.Strings(kinds)
					for _, kind := range kinds {
						fmt.Printf("  %-10s %d\n", kind, stats.ByKind[kind])
					}
					fmt.Println()
				}

				fmt.Printf("Most cited (top %d):\n", top)
				for _, row := range extract.TopCitations(result.Citations.CitationCounts, top) {
					fmt.Printf("  %-50s %d\n", analysis.Truncate(row.Key, 50), row.Count)
				}
				return nil
			default:
				return fmt.Errorf("unknown format: %s (use table or json)", formatStr)
			}
		},
	}

	cmd.Flags().StringP("source", "s", "", "Document tree JSON file")
	cmd.Flags().StringP("format", "f", "table", "Output format (table, json)")
	cmd.Flags().IntP("top", "n", 10, "Number of most-cited targets to show")

	return cmd
}

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Build the cross-reference graph of a document",
		Long: `Build the graph of parts, sections and the citations between them.

Examples:
  ecfr graph --source data/raw/title1_parsed.json
  ecfr graph --source data/raw/title1_parsed.json --format dot --output title1.dot
  ecfr graph --source data/raw/title1_parsed.json --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			formatStr, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			result, err := analyzeSource(cmd, source)
			if err != nil {
				return err
			}
			g := result.Graph

			var data []byte
			switch formatStr {
			case "text":
				fmt.Print(g.String())
				return nil
			case "json":
				data, err = g.ToJSON()
				if err != nil {
					return fmt.Errorf("failed to serialize graph: %w", err)
				}
			case "dot":
				data = []byte(g.ToDOT())
			default:
				return fmt.Errorf("unknown format: %s (use text, json or dot)", formatStr)
			}

			if output == "" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			stats := g.Stats()
			fmt.Printf("Graph exported to: %s (%d nodes, %d edges)\n", output, stats.Nodes, stats.Edges)
			return nil
		},
	}

	cmd.Flags().StringP("source", "s", "", "Document tree JSON file")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json, dot)")
	cmd.Flags().StringP("output", "o", "", "Output file path")

	return cmd
}

func impactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "impact",
		Short: "Analyze which headings a change to one heading affects",
		Long: `Traverse the cross-reference graph from one part or section.

  - Incoming: sections that cite the target
  - Outgoing: what the target cites
  - Transitive: configurable depth traversal

Examples:
  ecfr impact --source data/raw/title1_parsed.json --node "§ 1.1"
  ecfr impact --source data/raw/title1_parsed.json --node "§ 1.1" --depth 3 --direction incoming
  ecfr impact --source data/raw/title1_parsed.json --node "§ 1.1" --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			node, _ := cmd.Flags().GetString("node")
			depth, _ := cmd.Flags().GetInt("depth")
			directionStr, _ := cmd.Flags().GetString("direction")
			formatStr, _ := cmd.Flags().GetString("format")

			if node == "" {
				return fmt.Errorf("--node flag is required")
			}
			direction, err := analysis.ParseImpactDirection(directionStr)
			if err != nil {
				return err
			}

			result, err := analyzeSource(cmd, source)
			if err != nil {
				return err
			}

			analyzer := analysis.NewImpactAnalyzer(result.Graph)
			target, ok := analyzer.FindNode(node)
			if !ok {
				return fmt.Errorf("no heading or reference matches %q", node)
			}
			impact := analyzer.Analyze(target, depth, direction)

			switch formatStr {
			case "json":
				data, err := impact.ToJSON()
				if err != nil {
					return fmt.Errorf("failed to serialize result: %w", err)
				}
				fmt.Println(string(data))
			case "table":
				fmt.Println(impact.FormatTable())
			default:
				fmt.Println(impact.String())
			}
			return nil
		},
	}

	cmd.Flags().StringP("source", "s", "", "Document tree JSON file")
	cmd.Flags().StringP("node", "n", "", "Heading (or heading prefix) to analyze")
	cmd.Flags().IntP("depth", "d", 2, "Transitive depth (1=direct only)")
	cmd.Flags().StringP("direction", "D", "both", "Direction of analysis (incoming, outgoing, both)")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json, table)")

	return cmd
}

func matrixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Show part-to-part citation counts",
		Long: `Summarize the cross-reference graph as a matrix of citations between parts.

Examples:
  ecfr matrix --source data/raw/title1_parsed.json
  ecfr matrix --source data/raw/title1_parsed.json --format csv > parts.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			formatStr, _ := cmd.Flags().GetString("format")

			result, err := analyzeSource(cmd, source)
			if err != nil {
				return err
			}
			report := analysis.GenerateMatrixReport(result.Graph)

			switch formatStr {
			case "table":
				fmt.Print(report.String())
			case "csv":
				data, err := report.Matrix.ToCSV()
				if err != nil {
					return fmt.Errorf("failed to write CSV: %w", err)
				}
				fmt.Print(data)
			case "json":
				data, err := report.ToJSON()
				if err != nil {
					return fmt.Errorf("failed to serialize report: %w", err)
				}
				fmt.Println(string(data))
			default:
				return fmt.Errorf("unknown format: %s (use table, csv or json)", formatStr)
			}
			return nil
		},
	}

	cmd.Flags().StringP("source", "s", "", "Document tree JSON file")
	cmd.Flags().StringP("format", "f", "table", "Output format (table, csv, json)")

	return cmd
}

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert eCFR XML into document tree JSON",
		Long: `Convert govinfo eCFR XML files into document trees.

ECFR-title{N}.xml is written as title{N}_parsed.json. Without --source every
ECFR-title*.xml in the raw data directory is converted. A file that fails to
convert is reported and skipped.

Example:
  ecfr convert
  ecfr convert --source data/raw/ECFR-title1.xml --output data/raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, _ := cmd.Flags().GetStringSlice("source")
			output, _ := cmd.Flags().GetString("output")

			if output == "" {
				output = cfg.RawDir()
			}
			if len(sources) == 0 {
				found, err := filepath.Glob(filepath.Join(cfg.RawDir(), "ECFR-title*.xml"))
				if err != nil {
					return fmt.Errorf("listing %s: %w", cfg.RawDir(), err)
				}
				sort.Strings(found)
				sources = found
			}
			if len(sources) == 0 {
				return fmt.Errorf("no eCFR XML files found")
			}
			if err := os.MkdirAll(output, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			fmt.Printf("Found %d XML files to convert.\n", len(sources))
			converted := 0
			for _, source := range sources {
				target := filepath.Join(output, convertedName(source))
				doc, err := document.ConvertECFRFile(source, target)
				if err != nil {
					logger.Warn("conversion failed", zap.String("source", source), zap.Error(err))
					fmt.Printf("  FAILED %s: %v\n", source, err)
					continue
				}
				stats := doc.Stats()
				fmt.Printf("  %s -> %s (%d parts, %d sections, %d paragraphs)\n",
					filepath.Base(source), target, stats.Parts, stats.Sections, stats.Paragraphs)
				converted++
			}

			if converted == 0 {
				return fmt.Errorf("no files converted")
			}
			fmt.Printf("Converted %d of %d files.\n", converted, len(sources))
			return nil
		},
	}

	cmd.Flags().StringSliceP("source", "s", nil, "eCFR XML files to convert")
	cmd.Flags().StringP("output", "o", "", "Output directory (default: <data_dir>/raw)")

	return cmd
}

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List citation pattern sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			patternDir, _ := cmd.Flags().GetString("patterns")
			if patternDir == "" {
				patternDir = cfg.PatternDir
			}

			registry, err := loadRegistry(patternDir)
			if err != nil {
				return err
			}

			sets := registry.List()
			if _, ok := registry.Get(pattern.DefaultSetID); !ok {
				sets = append([]*pattern.PatternSet{pattern.DefaultSet()}, sets...)
			}

			for _, set := range sets {
				marker := ""
				if set.SetID == cfg.PatternSet {
					marker = " (active)"
				}
				fmt.Printf("%s v%s%s\n", set.SetID, set.Version, marker)
				fmt.Printf("  %s\n", set.Name)
				if set.Description != "" {
					fmt.Printf("  %s\n", set.Description)
				}
				fmt.Printf("  Cues: %s\n", strings.Join(set.Cues, ", "))
				fmt.Println("  Categories:")
				for _, category := range set.Categories {
					fmt.Printf("    %-9s %s\n", category.Kind, category.Pattern)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringP("patterns", "p", "", "Directory of pattern set YAML files")

	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve processed artifacts over HTTP",
		Long: `Serve the JSON artifacts of the processed data directory.

Endpoints:
  GET /                               endpoint list
  GET /health                         liveness
  GET /api/{artifact}                 top-level artifacts
  GET /api/titles/{title}/{artifact}  per-title artifacts of batch runs
  GET /metrics                        Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			addr, _ := cmd.Flags().GetString("addr")
			if dir == "" {
				dir = cfg.ProcessedDir()
			}
			if addr == "" {
				addr = cfg.ListenAddr
			}

			reg := newMetricsRegistry()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(dir, server.WithLogger(logger), server.WithRegistry(reg))
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().String("dir", "", "Processed data directory (default: <data_dir>/processed)")
	cmd.Flags().String("addr", "", "Listen address (default: config listen_addr)")

	return cmd
}

// batchRunner analyzes a fixed set of sources with one long-lived pipeline,
// picking up the registry's current matcher on every run.
type batchRunner struct {
	// Reruns triggered by the watcher must not interleave writes.
	mu sync.Mutex

	pipeline *pipeline.Pipeline
	registry *pattern.DefaultRegistry
	setID    string
	sources  []string
	output   string
}

func (b *batchRunner) run(ctx context.Context) (metrics.HistoryEntry, []*pipeline.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	matcher, err := b.registry.Matcher(b.setID)
	if err != nil {
		return metrics.HistoryEntry{}, nil, err
	}
	b.pipeline.SetMatcher(matcher)

	results, err := b.pipeline.RunFiles(ctx, b.sources)
	if err != nil {
		return metrics.HistoryEntry{}, nil, err
	}
	entry, err := pipeline.WriteBatch(b.output, results)
	if err != nil {
		return metrics.HistoryEntry{}, nil, err
	}
	return entry, results, nil
}

// newMetricsRegistry returns a Prometheus registry carrying the Go runtime
// and process collectors.
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// loadRegistry loads pattern sets from dir, or returns an empty registry
// that falls back to the built-in set when dir is empty.
func loadRegistry(dir string) (*pattern.DefaultRegistry, error) {
	if dir == "" {
		return pattern.NewRegistry(logger), nil
	}
	registry, err := pattern.NewRegistryWithDirectory(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("loading pattern sets: %w", err)
	}
	return registry, nil
}

// analyzeSource runs the pipeline over a single --source file using the
// configured pattern set.
func analyzeSource(cmd *cobra.Command, source string) (*pipeline.Result, error) {
	if source == "" {
		return nil, fmt.Errorf("--source flag is required")
	}
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return nil, fmt.Errorf("source file not found: %s", source)
	}

	registry, err := loadRegistry(cfg.PatternDir)
	if err != nil {
		return nil, err
	}
	matcher, err := registry.Matcher(cfg.PatternSet)
	if err != nil {
		return nil, err
	}
	engine, err := metrics.NewEngine(cfg.MetricsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating metrics engine: %w", err)
	}

	p := pipeline.New(
		pipeline.WithMatcher(matcher),
		pipeline.WithEngine(engine),
		pipeline.WithLogger(logger),
	)
	return p.RunFile(source)
}

// convertedName maps ECFR-title1.xml to title1_parsed.json.
func convertedName(xmlPath string) string {
	base := strings.TrimSuffix(filepath.Base(xmlPath), filepath.Ext(xmlPath))
	return strings.TrimPrefix(base, "ECFR-") + "_parsed.json"
}

func printBatchSummary(results []*pipeline.Result, output string, entry metrics.HistoryEntry) {
	fmt.Printf("Analyzed %d document(s) -> %s (run %s)\n", len(results), output, entry.RunID)
	for _, result := range results {
		stats := result.Graph.Stats()
		fmt.Printf("  %-30s %5d refs  %5.1f%% resolved  %4d nodes  %5d edges  grade %.2f\n",
			analysis.Truncate(result.Source, 30),
			len(result.Citations.ResolvedReferences),
			result.Citations.ResolutionRate()*100,
			stats.Nodes, stats.Edges,
			result.TitleMetrics.Readability)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
