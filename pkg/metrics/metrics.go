package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Medium responses (500ms - 2s) ---
	750, 1000, 1250, 1500, 1750, 2000,

	// --- Slow responses (2s - 15s); provider calls time out at 10s by default ---
	2500, 3000, 4000, 5000, 7500, 10000, 15000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, namespace string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: m.Name, Help: m.Description},
		)
	case "gauge_vec":
		metric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets},
			m.Args,
		)
	case "summary_vec":
		metric = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{Namespace: namespace, Name: m.Name, Help: m.Description},
			m.Args,
		)
	}
	return metric
}

const Namespace = "subsync"

var reconcileTotal = &Metric{
	ID:          "reconcileTotal",
	Name:        "reconcile_total",
	Description: "Facts handled by the reconciliation engine, by provider, fact kind and outcome.",
	Type:        "counter_vec",
	Args:        []string{"provider", "kind", "outcome"},
}

var webhookTotal = &Metric{
	ID:          "webhookTotal",
	Name:        "webhook_total",
	Description: "Provider webhook deliveries, by provider and result.",
	Type:        "counter_vec",
	Args:        []string{"provider", "result"},
}

var providerCallDur = &Metric{
	ID:          "providerCallDur",
	Name:        "provider_call_dur_ms",
	Description: "Latency of outbound payment provider calls in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"provider", "op", "result"},
}

// Metrics owns the process registry and the domain collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	reconcile   *prometheus.CounterVec
	webhook     *prometheus.CounterVec
	providerDur *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Metrics{Registry: reg}
	for _, def := range []*Metric{reconcileTotal, webhookTotal, providerCallDur} {
		c := NewMetric(def, Namespace)
		reg.MustRegister(c)
		switch def {
		case reconcileTotal:
			m.reconcile = c.(*prometheus.CounterVec)
		case webhookTotal:
			m.webhook = c.(*prometheus.CounterVec)
		case providerCallDur:
			m.providerDur = c.(*prometheus.HistogramVec)
		}
	}
	return m
}

func (m *Metrics) ObserveReconcile(provider, kind, outcome string) {
	if m == nil {
		return
	}
	m.reconcile.WithLabelValues(provider, kind, outcome).Inc()
}

func (m *Metrics) ObserveWebhook(provider, result string) {
	if m == nil {
		return
	}
	m.webhook.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) ObserveProviderCall(provider, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerDur.WithLabelValues(provider, op, result).Observe(MillisecondsSince(start))
}

func MillisecondsSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}

var Module = fx.Options(
	fx.Provide(New, NewHTTPMetrics),
	fx.Invoke(runMetricsServer),
)
