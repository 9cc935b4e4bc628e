// Package health aggregates counters and timers from the gateway's
// components, evaluates them against threshold rules and raises alerts when
// the overall status changes.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"api-gateway/internal/common/logging"
	"api-gateway/internal/storage"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	default:
		return 0
	}
}

// Worse returns the more severe of a and b.
func Worse(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Components lists every component that always appears in a Report.
var Components = []string{ComponentGateway, ComponentAuth, ComponentRateLimiter, ComponentCache, ComponentDispatcher}

type Config struct {
	// Window is how far back Report looks.
	Window time.Duration
	// MinSamples is the number of attempts or verifications needed before a
	// ratio rule applies.
	MinSamples       int
	DegradedRatio    float64
	UnhealthyRatio   float64
	AuthFailureRatio float64
	// ShedThreshold is the dispatcher queue depth reported as degraded.
	ShedThreshold int
}

func DefaultConfig() Config {
	return Config{
		Window:           5 * time.Minute,
		MinSamples:       10,
		DegradedRatio:    0.05,
		UnhealthyRatio:   0.25,
		AuthFailureRatio: 0.5,
		ShedThreshold:    5000,
	}
}

// Check inspects a dependency. A non-nil error marks its component unhealthy.
type Check func(ctx context.Context) error

// Gauge reads a current value, such as a queue depth.
type Gauge func() float64

type seriesKey struct {
	component string
	metric    string
}

type series struct {
	count     int64
	durations []time.Duration
}

type minuteBucket struct {
	start   time.Time
	series  map[seriesKey]*series
	flushed bool
}

// unflushedRetention bounds how long buckets wait for Flush.
const unflushedRetention = time.Hour

// Monitor implements Recorder.
type Monitor struct {
	config    Config
	store     storage.MetricStore
	collector *Collector
	logger    logging.Logger
	now       func() time.Time

	mu      sync.Mutex
	minutes []*minuteBucket

	checksMu sync.RWMutex
	checks   map[string]Check
	gauges   map[seriesKey]Gauge

	alertMu   sync.Mutex
	notifiers []Notifier
	last      Status
}

type Option func(*Monitor)

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithStore enables Flush and Rollup.
func WithStore(store storage.MetricStore) Option {
	return func(m *Monitor) { m.store = store }
}

// WithCollector mirrors every recorded value into Prometheus.
func WithCollector(c *Collector) Option {
	return func(m *Monitor) { m.collector = c }
}

func WithNotifiers(notifiers ...Notifier) Option {
	return func(m *Monitor) { m.notifiers = append(m.notifiers, notifiers...) }
}

func WithLogger(logger logging.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

func NewMonitor(config Config, opts ...Option) *Monitor {
	if config.Window < time.Minute {
		config.Window = time.Minute
	}
	if config.MinSamples < 1 {
		config.MinSamples = 1
	}

	m := &Monitor{
		config: config,
		logger: logging.Component("health"),
		now:    time.Now,
		checks: make(map[string]Check),
		gauges: make(map[seriesKey]Gauge),
		last:   StatusHealthy,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) Incr(component, metric string) {
	m.mu.Lock()
	m.seriesFor(component, metric).count++
	m.mu.Unlock()

	if m.collector != nil {
		m.collector.incr(component, metric)
	}
}

func (m *Monitor) Observe(component, metric string, d time.Duration) {
	m.mu.Lock()
	s := m.seriesFor(component, metric)
	s.durations = append(s.durations, d)
	m.mu.Unlock()

	if m.collector != nil {
		m.collector.observe(component, metric, d)
	}
}

// RegisterCheck adds a check run on every Report.
func (m *Monitor) RegisterCheck(component string, check Check) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.checks[component] = check
}

// RegisterGauge adds a value read on every Report. The dispatcher's
// queue_depth gauge is compared against the shed threshold.
func (m *Monitor) RegisterGauge(component, metric string, gauge Gauge) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.gauges[seriesKey{component, metric}] = gauge
}

// seriesFor must be called with mu held.
func (m *Monitor) seriesFor(component, metric string) *series {
	now := m.now()
	start := now.Truncate(time.Minute)

	var bucket *minuteBucket
	if n := len(m.minutes); n > 0 && m.minutes[n-1].start.Equal(start) {
		bucket = m.minutes[n-1]
	} else {
		bucket = &minuteBucket{start: start, series: make(map[seriesKey]*series)}
		m.minutes = append(m.minutes, bucket)
		m.prune(now)
	}

	key := seriesKey{component, metric}
	s, ok := bucket.series[key]
	if !ok {
		s = &series{}
		bucket.series[key] = s
	}
	return s
}

// prune drops buckets that left the window and were flushed, or that
// waited too long for a flush.
func (m *Monitor) prune(now time.Time) {
	cutoff := now.Add(-m.config.Window)
	keep := m.minutes[:0]
	for _, b := range m.minutes {
		end := b.start.Add(time.Minute)
		expired := !end.After(cutoff) && (b.flushed || m.store == nil)
		stale := !end.After(now.Add(-unflushedRetention))
		if expired || stale {
			continue
		}
		keep = append(keep, b)
	}
	m.minutes = keep
}

// windowTotals sums counters and collects durations over the window. Only
// buckets starting at or after now - Window count, so a report never spans
// more than Window.
func (m *Monitor) windowTotals(now time.Time) map[seriesKey]*series {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-m.config.Window)
	totals := make(map[seriesKey]*series)
	for _, b := range m.minutes {
		if b.start.Before(cutoff) || b.start.After(now) {
			continue
		}
		for k, s := range b.series {
			t, ok := totals[k]
			if !ok {
				t = &series{}
				totals[k] = t
			}
			t.count += s.count
			t.durations = append(t.durations, s.durations...)
		}
	}
	return totals
}

// LatencyStats summarises one timer in milliseconds.
type LatencyStats struct {
	Count int     `json:"count"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

type ComponentReport struct {
	Status  Status                  `json:"status"`
	Counts  map[string]int64        `json:"counts"`
	Ratios  map[string]float64      `json:"ratios,omitempty"`
	Latency map[string]LatencyStats `json:"latency,omitempty"`
	Gauges  map[string]float64      `json:"gauges,omitempty"`
	Reasons []string                `json:"reasons,omitempty"`
}

type Report struct {
	Status      Status                      `json:"status"`
	Components  map[string]*ComponentReport `json:"components"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

// Report evaluates every component over the window. Checks run with ctx.
func (m *Monitor) Report(ctx context.Context) *Report {
	now := m.now()
	report := &Report{
		Status:      StatusHealthy,
		Components:  make(map[string]*ComponentReport, len(Components)),
		GeneratedAt: now,
	}
	component := func(name string) *ComponentReport {
		c, ok := report.Components[name]
		if !ok {
			c = &ComponentReport{Status: StatusHealthy, Counts: make(map[string]int64)}
			report.Components[name] = c
		}
		return c
	}
	for _, name := range Components {
		component(name)
	}

	for k, s := range m.windowTotals(now) {
		c := component(k.component)
		if len(s.durations) > 0 {
			if c.Latency == nil {
				c.Latency = make(map[string]LatencyStats)
			}
			c.Latency[k.metric] = latencyStats(s.durations)
			continue
		}
		c.Counts[k.metric] = s.count
	}

	m.checksMu.RLock()
	gauges := make(map[seriesKey]Gauge, len(m.gauges))
	for k, g := range m.gauges {
		gauges[k] = g
	}
	checks := make(map[string]Check, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.checksMu.RUnlock()

	for k, g := range gauges {
		c := component(k.component)
		if c.Gauges == nil {
			c.Gauges = make(map[string]float64)
		}
		value := g()
		c.Gauges[k.metric] = value
		if m.collector != nil {
			m.collector.setGauge(k.component, k.metric, value)
		}
	}

	for name, c := range report.Components {
		m.applyRules(name, c)
	}

	for name, check := range checks {
		if err := check(ctx); err != nil {
			c := component(name)
			c.Status = StatusUnhealthy
			c.Reasons = append(c.Reasons, "check failed: "+err.Error())
		}
	}

	for name, c := range report.Components {
		sort.Strings(c.Reasons)
		report.Status = Worse(report.Status, c.Status)
		if m.collector != nil {
			m.collector.setStatus(name, c.Status)
		}
	}
	return report
}

func latencyStats(durations []time.Duration) LatencyStats {
	values := make([]float64, len(durations))
	for i, d := range durations {
		values[i] = float64(d) / float64(time.Millisecond)
	}
	sort.Float64s(values)
	return LatencyStats{
		Count: len(values),
		P50Ms: percentile(values, 0.50),
		P95Ms: percentile(values, 0.95),
	}
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.999999999) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
