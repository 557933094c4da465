package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	hookDuration *prom.HistogramVec
	hookErrors   *prom.CounterVec
	pages        prom.Gauge
	renderCache  *prom.CounterVec
	buildSeconds prom.Histogram
	buildPages   prom.Gauge
	reloads      *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		hookDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "folio",
			Name:      "hook_duration_seconds",
			Help:      "Duration of plugin hook invocations",
			Buckets:   prom.DefBuckets,
		}, []string{"plugin", "hook"}),
		hookErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "folio",
			Name:      "hook_errors_total",
			Help:      "Plugin hook invocations that returned an error",
		}, []string{"plugin", "hook"}),
		pages: prom.NewGauge(prom.GaugeOpts{
			Namespace: "folio",
			Name:      "pages",
			Help:      "Number of pages in the last resolution",
		}),
		renderCache: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "folio",
			Name:      "markdown_render_cache_total",
			Help:      "Markdown render cache lookups by result",
		}, []string{"result"}),
		buildSeconds: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "folio",
			Name:      "build_duration_seconds",
			Help:      "Total static build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildPages: prom.NewGauge(prom.GaugeOpts{
			Namespace: "folio",
			Name:      "build_pages",
			Help:      "Pages written by the last static build",
		}),
		reloads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "folio",
			Name:      "dev_reloads_total",
			Help:      "Dev-mode page re-resolutions by result",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.hookDuration, pr.hookErrors, pr.pages, pr.renderCache, pr.buildSeconds, pr.buildPages, pr.reloads)
	return pr
}

func (p *PrometheusRecorder) ObserveHook(plugin, hook string, d time.Duration, err error) {
	p.hookDuration.WithLabelValues(plugin, hook).Observe(d.Seconds())
	if err != nil {
		p.hookErrors.WithLabelValues(plugin, hook).Inc()
	}
}

func (p *PrometheusRecorder) SetPages(n int) {
	p.pages.Set(float64(n))
}

func (p *PrometheusRecorder) IncRenderCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.renderCache.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) ObserveBuild(d time.Duration, pages int) {
	p.buildSeconds.Observe(d.Seconds())
	p.buildPages.Set(float64(pages))
}

func (p *PrometheusRecorder) IncReload(result string) {
	p.reloads.WithLabelValues(result).Inc()
}

// HTTPHandler returns an http.Handler that serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
