package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for scans, OCR and model calls.
type Metrics struct {
	registry *prometheus.Registry

	// Scans by source (rules, llm, rules+llm) and outcome (ok, empty, failed)
	Scans *prometheus.CounterVec

	// Fields populated per record, by field name
	FieldsExtracted *prometheus.CounterVec

	// Checksum outcomes of extracted codes (valid, invalid)
	CodeChecks *prometheus.CounterVec

	// OCR latency by method
	OCRLatency *prometheus.HistogramVec

	// Model round trip latency
	LLMLatency prometheus.Histogram

	// Full scan latency
	ScanLatency prometheus.Histogram
}

// New creates a Metrics instance registered on its own registry, along with
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idcard_scans_total",
			Help: "Total scans by record source and outcome",
		}, []string{"source", "outcome"}),

		FieldsExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idcard_fields_extracted_total",
			Help: "Total populated record fields by field name",
		}, []string{"field"}),

		CodeChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idcard_code_checks_total",
			Help: "Checksum results for extracted personal numeric codes",
		}, []string{"result"}),

		OCRLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idcard_ocr_duration_seconds",
			Help:    "Duration of OCR by method",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),

		LLMLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "idcard_llm_duration_seconds",
			Help:    "Duration of model extraction calls",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		ScanLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "idcard_scan_duration_seconds",
			Help:    "Duration of a full scan including OCR and model calls",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncrementScan records a finished scan.
func (m *Metrics) IncrementScan(source, outcome string) {
	if m != nil {
		m.Scans.WithLabelValues(source, outcome).Inc()
	}
}

// AddFields counts the populated fields of one record.
func (m *Metrics) AddFields(fields []string) {
	if m != nil {
		for _, f := range fields {
			m.FieldsExtracted.WithLabelValues(f).Inc()
		}
	}
}

// IncrementCodeCheck records a checksum verdict.
func (m *Metrics) IncrementCodeCheck(valid bool) {
	if m != nil {
		result := "invalid"
		if valid {
			result = "valid"
		}
		m.CodeChecks.WithLabelValues(result).Inc()
	}
}

// ObserveOCRLatency records the duration of one OCR run.
func (m *Metrics) ObserveOCRLatency(method string, d time.Duration) {
	if m != nil {
		m.OCRLatency.WithLabelValues(method).Observe(d.Seconds())
	}
}

// ObserveLLMLatency records the duration of one model call.
func (m *Metrics) ObserveLLMLatency(d time.Duration) {
	if m != nil {
		m.LLMLatency.Observe(d.Seconds())
	}
}

// ObserveScanLatency records the total scan duration.
func (m *Metrics) ObserveScanLatency(d time.Duration) {
	if m != nil {
		m.ScanLatency.Observe(d.Seconds())
	}
}
