package metrics

import (
	"net/http"
	"time"

	"github.com/notargets/DGAverage/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records averaging activity on its own Prometheus registry. A nil
// *Collector is valid and records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	averages         *prometheus.CounterVec
	flooredWeights   prometheus.Counter
	tets             prometheus.Counter
	degeneratePoints prometheus.Counter
	writes           *prometheus.CounterVec
	passDuration     *prometheus.HistogramVec
}

// NewCollector registers the averaging metrics with registry, creating a
// fresh registry when nil
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "dgaverage"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "averaging"
	}
	c := &Collector{
		config:   cfg,
		registry: registry,
		averages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "averages_total",
			Help:      "Average calls by strategy and mode (plain or weighted)",
		}, []string{"method", "mode"}),
		flooredWeights: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "floored_weights_total",
			Help:      "Weight elements raised to the division floor",
		}),
		tets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "tets_visited_total",
			Help:      "Tetrahedra visited by accumulation passes",
		}),
		degeneratePoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "degenerate_points_total",
			Help:      "Points with zero accumulated volume",
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "field_writes_total",
			Help:      "Derived field writes by strategy and result",
		}, []string{"method", "result"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "pass_duration_seconds",
			Help:      "Duration of accumulation passes",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}, []string{"method"}),
	}
	registry.MustRegister(c.averages, c.flooredWeights, c.tets,
		c.degeneratePoints, c.writes, c.passDuration)
	return c
}

func (c *Collector) enabled() bool { return c != nil && c.config.Enabled }

// RecordAverage counts an Average (weighted=false) or AverageWeighted call
// and the number of weight elements that were floored
func (c *Collector) RecordAverage(method string, weighted bool, floored int) {
	if !c.enabled() {
		return
	}
	mode := "plain"
	if weighted {
		mode = "weighted"
	}
	c.averages.WithLabelValues(method, mode).Inc()
	if floored > 0 {
		c.flooredWeights.Add(float64(floored))
	}
}

// RecordPass records one accumulation pass
func (c *Collector) RecordPass(method string, tets, degenerate int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.tets.Add(float64(tets))
	c.degeneratePoints.Add(float64(degenerate))
	c.passDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordWrite counts one derived field write
func (c *Collector) RecordWrite(method string, ok bool) {
	if !c.enabled() {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	c.writes.WithLabelValues(method, result).Inc()
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
