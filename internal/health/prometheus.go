package health

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector mirrors the monitor's counters, timers, gauges and component
// statuses as Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	gauges   *prometheus.GaugeVec
	status   *prometheus.GaugeVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_component_events_total",
			Help: "Counters recorded by gateway components",
		}, []string{"component", "metric"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_component_latency_seconds",
			Help:    "Timers recorded by gateway components",
			Buckets: prometheus.DefBuckets,
		}, []string{"component", "metric"}),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_component_gauge",
			Help: "Current values read from gateway components",
		}, []string{"component", "metric"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_component_status",
			Help: "Component health: 0 healthy, 1 degraded, 2 unhealthy",
		}, []string{"component"}),
	}
	c.registry.MustRegister(
		c.events,
		c.latency,
		c.gauges,
		c.status,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) incr(component, metric string) {
	c.events.WithLabelValues(component, metric).Inc()
}

func (c *Collector) observe(component, metric string, d time.Duration) {
	c.latency.WithLabelValues(component, metric).Observe(d.Seconds())
}

func (c *Collector) setGauge(component, metric string, value float64) {
	c.gauges.WithLabelValues(component, metric).Set(value)
}

func (c *Collector) setStatus(component string, status Status) {
	c.status.WithLabelValues(component).Set(float64(status.rank()))
}
