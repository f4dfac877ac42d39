package metrics

/* HTTP middleware adapted from https://github.com/zsais/go-gin-prometheus
edits:
- collectors live on the injected registry instead of the global one
- metrics are served by a dedicated server bound to metrics_addr
*/

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/subsync/pkg/config"
)

const (
	RefererKey        = "X-Referer"
	defaultMetricPath = "/metrics"
)

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var resSz = &Metric{
	ID:          "resSz",
	Name:        "resp_sz_bytes",
	Description: "The HTTP response sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

/*
RequestCounterURLLabelMappingFn controls the cardinality of the "url" label.
The default uses the matched route template (c.FullPath()) so that
"/api/v1/webhook/card" and "/api/v1/webhook/paypal" share "/api/v1/webhook/:provider".
*/
type RequestCounterURLLabelMappingFn func(c *gin.Context) string

// HTTPMetrics records per-request counters for a gin engine.
type HTTPMetrics struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec
	resSz  *prometheus.SummaryVec

	ReqCntURLLabelMappingFn RequestCounterURLLabelMappingFn
}

// NewHTTPMetrics registers the request collectors on m's registry.
func NewHTTPMetrics(m *Metrics, log *zap.SugaredLogger) *HTTPMetrics {
	h := &HTTPMetrics{
		ReqCntURLLabelMappingFn: func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return "unmatched"
		},
	}
	for _, def := range []*Metric{reqCnt, reqDur, resSz} {
		c := NewMetric(def, Namespace)
		if err := m.Registry.Register(c); err != nil {
			log.Errorf("%s could not be registered in Prometheus, err=%v", def.Name, err)
		}
		switch def {
		case reqCnt:
			h.reqCnt = c.(*prometheus.CounterVec)
		case reqDur:
			h.reqDur = c.(*prometheus.HistogramVec)
		case resSz:
			h.resSz = c.(*prometheus.SummaryVec)
		}
		def.MetricCollector = c
	}
	return h
}

// HandlerFunc defines handler function for middleware
func (h *HTTPMetrics) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := h.ReqCntURLLabelMappingFn(c)
		ref := c.Request.Header.Get(RefererKey)

		h.reqDur.WithLabelValues(status, c.Request.Method, url, ref).Observe(MillisecondsSince(start))
		h.reqCnt.WithLabelValues(status, c.Request.Method, url, ref).Inc()
		h.resSz.WithLabelValues(status, c.Request.Method, url, ref).Observe(float64(c.Writer.Size()))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func runMetricsServer(lc fx.Lifecycle, cfg *config.Config, m *Metrics, log *zap.SugaredLogger) {
	if cfg == nil || cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(defaultMetricPath, m.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("metrics server error", "err", err)
				}
			}()
			log.Infow("metrics started", "addr", cfg.MetricsAddr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
