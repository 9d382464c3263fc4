package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var once sync.Once

var (
	// ExtractionsTotal counts successful extractions by engine tag.
	ExtractionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medassist",
		Subsystem: "reports",
		Name:      "extractions_total",
		Help:      "Total number of successful text extractions, labeled by engine (pdf-direct, ocr, raw-text).",
	}, []string{"engine"})

	// ExplanationsTotal counts explanation results by provider.
	ExplanationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medassist",
		Subsystem: "reports",
		Name:      "explanations_total",
		Help:      "Total number of generated explanations, labeled by provider (huggingface, fallback).",
	}, []string{"provider"})

	// ProviderSoftFailuresTotal counts external generation calls that were
	// absorbed by the fallback path.
	ProviderSoftFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "medassist",
		Subsystem: "reports",
		Name:      "provider_soft_failures_total",
		Help:      "External generation provider calls that failed or returned unusable output.",
	})

	// ProcessDurationSeconds measures the full Process phase per report.
	ProcessDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "medassist",
		Subsystem: "reports",
		Name:      "process_duration_seconds",
		Help:      "End-to-end time to parse and explain one report.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})
)

// Register registers all collectors with the given registerer. Call once at
// startup; repeated calls are no-ops.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(
			ExtractionsTotal,
			ExplanationsTotal,
			ProviderSoftFailuresTotal,
			ProcessDurationSeconds,
		)
	})
}
