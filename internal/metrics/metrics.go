// Package metrics exposes Prometheus collectors for generation runs.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	reg        *prometheus.Registry
	llmCalls   *prometheus.CounterVec
	llmLatency prometheus.Histogram
	questions  *prometheus.CounterVec
	dropped    prometheus.Counter
	renders    *prometheus.CounterVec
	runs       *prometheus.CounterVec
	exports    *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examgen_llm_calls_total",
			Help: "LLM completion attempts by outcome.",
		}, []string{"outcome"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "examgen_llm_call_duration_seconds",
			Help:    "Latency of LLM completion calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examgen_questions_generated_total",
			Help: "Questions generated by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "examgen_slots_dropped_total",
			Help: "Question slots dropped after exhausting retries.",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examgen_diagrams_rendered_total",
			Help: "Diagrams rendered by kind.",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examgen_runs_total",
			Help: "Generation runs by final status.",
		}, []string{"status"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examgen_exports_total",
			Help: "Export files produced by format and outcome.",
		}, []string{"format", "outcome"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.llmCalls, m.llmLatency, m.questions, m.dropped, m.renders, m.runs, m.exports,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// LLMCall records one completion attempt.
func (m *Metrics) LLMCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(outcome(err)).Inc()
	m.llmLatency.Observe(d.Seconds())
}

// QuestionGenerated counts an accepted question.
func (m *Metrics) QuestionGenerated(qtype string) {
	if m == nil {
		return
	}
	m.questions.WithLabelValues(qtype).Inc()
}

// SlotDropped counts a dropped slot.
func (m *Metrics) SlotDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// DiagramRendered counts a rendered diagram.
func (m *Metrics) DiagramRendered(kind string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(kind).Inc()
}

// RunFinished counts a finished run.
func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

// Export counts one produced (or failed) export file.
func (m *Metrics) Export(format string, err error) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, outcome(err)).Inc()
}
