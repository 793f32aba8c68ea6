// Package metrics exposes probe outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazz-dev/urlcanary/internal/probe"
	"github.com/hazz-dev/urlcanary/internal/version"
)

const namespace = "urlcanary"

// Label names and values.
const (
	LabelStep    = "step"
	LabelResult  = "result"
	LabelOutcome = "outcome"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector holds the probe metrics.
type Collector struct {
	Up               *prometheus.GaugeVec
	ProbeTotal       *prometheus.CounterVec
	ProbeDuration    *prometheus.HistogramVec
	LastStatusCode   *prometheus.GaugeVec
	LastSuccessStamp *prometheus.GaugeVec
	BuildInfo        *prometheus.GaugeVec
}

// Bundle pairs a private registry with the collector registered on it.
type Bundle struct {
	Registry  *prometheus.Registry
	Collector *Collector
}

// NewBundle creates a registry with the Go and process collectors and the
// probe metrics.
func NewBundle() *Bundle {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		Up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "Whether the last probe of the step succeeded (1) or failed (0).",
		}, []string{LabelStep}),
		ProbeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_total",
			Help:      "Probes executed, by result and outcome kind.",
		}, []string{LabelStep, LabelResult, LabelOutcome}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Elapsed wall-clock time of a probe.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}, []string{LabelStep}),
		LastStatusCode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_status_code",
			Help:      "HTTP status code of the last probe, 0 when none was received.",
		}, []string{LabelStep}),
		LastSuccessStamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp",
			Help:      "Unix time of the last successful probe.",
		}, []string{LabelStep}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information.",
		}, []string{"version", "go_version", "os", "arch"}),
	}

	reg.MustRegister(
		c.Up,
		c.ProbeTotal,
		c.ProbeDuration,
		c.LastStatusCode,
		c.LastSuccessStamp,
		c.BuildInfo,
	)
	c.BuildInfo.WithLabelValues(version.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH).Set(1)

	return &Bundle{Registry: reg, Collector: c}
}

// Handler serves the bundle's registry in the Prometheus exposition format.
func (b *Bundle) Handler() http.Handler {
	return promhttp.HandlerFor(b.Registry, promhttp.HandlerOpts{Registry: b.Registry})
}

// Observe records one probe outcome for step.
func (c *Collector) Observe(step string, o probe.Outcome, elapsed time.Duration) {
	result := ResultFailure
	up := 0.0
	if o.OK() {
		result = ResultSuccess
		up = 1
		c.LastSuccessStamp.WithLabelValues(step).Set(float64(time.Now().Unix()))
	}

	c.Up.WithLabelValues(step).Set(up)
	c.ProbeTotal.WithLabelValues(step, result, string(o.Kind)).Inc()
	c.ProbeDuration.WithLabelValues(step).Observe(elapsed.Seconds())
	c.LastStatusCode.WithLabelValues(step).Set(float64(o.StatusCode))
}
