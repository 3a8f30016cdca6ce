package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusOK    = "ok"
	statusError = "error"

	outcomeResolved   = "resolved"
	outcomeUnresolved = "unresolved"
)

type instruments struct {
	// documents counts analyzed documents. Labels: status (ok, error)
	documents *prometheus.CounterVec

	// records counts emitted cross-reference records.
	records prometheus.Counter

	// references counts reference strings. Labels: outcome (resolved, unresolved)
	references *prometheus.CounterVec

	// duration measures single-document analysis time.
	duration prometheus.Histogram
}

func newInstruments(reg prometheus.Registerer) *instruments {
	factory := promauto.With(reg)
	return &instruments{
		documents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecfr",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Documents analyzed by status",
		}, []string{"status"}),
		records: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ecfr",
			Subsystem: "pipeline",
			Name:      "cross_reference_records_total",
			Help:      "Cross-reference records extracted",
		}),
		references: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecfr",
			Subsystem: "pipeline",
			Name:      "references_total",
			Help:      "Reference strings by resolution outcome",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ecfr",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Time to analyze one document",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
