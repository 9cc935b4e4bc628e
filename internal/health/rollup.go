package health

import (
	"context"
	"sort"
	"time"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/models"
)

// Flush appends every completed, unflushed minute bucket to the metric
// store. Counters become one sample per minute holding the count; timers
// become one sample per observation holding milliseconds. Gauges are
// sampled at flush time.
func (m *Monitor) Flush(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	now := m.now()
	current := now.Truncate(time.Minute)

	m.mu.Lock()
	var pending []*minuteBucket
	var samples []models.MetricSample
	for _, b := range m.minutes {
		if b.flushed || !b.start.Before(current) {
			continue
		}
		pending = append(pending, b)
		samples = append(samples, bucketSamples(b)...)
	}
	m.mu.Unlock()

	m.checksMu.RLock()
	for k, g := range m.gauges {
		samples = append(samples, models.MetricSample{
			Component: k.component, Metric: k.metric, Value: g(), Timestamp: current,
		})
	}
	m.checksMu.RUnlock()

	if len(samples) == 0 {
		return 0, nil
	}
	if err := m.store.AppendSamples(ctx, samples); err != nil {
		return 0, errors.InternalError("failed to append health samples", err)
	}

	m.mu.Lock()
	for _, b := range pending {
		b.flushed = true
	}
	m.prune(now)
	m.mu.Unlock()

	m.logger.Debug("Flushed health samples", logging.Field{Key: "samples", Value: len(samples)})
	return len(samples), nil
}

func bucketSamples(b *minuteBucket) []models.MetricSample {
	keys := make([]seriesKey, 0, len(b.series))
	for k := range b.series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].component != keys[j].component {
			return keys[i].component < keys[j].component
		}
		return keys[i].metric < keys[j].metric
	})

	var out []models.MetricSample
	for _, k := range keys {
		s := b.series[k]
		if len(s.durations) == 0 {
			out = append(out, models.MetricSample{
				Component: k.component, Metric: k.metric, Value: float64(s.count), Timestamp: b.start,
			})
			continue
		}
		for _, d := range s.durations {
			out = append(out, models.MetricSample{
				Component: k.component,
				Metric:    k.metric,
				Value:     float64(d) / float64(time.Millisecond),
				Timestamp: b.start,
			})
		}
	}
	return out
}

// Rollup summarises the samples of the last completed window into one row
// per component and metric. Samples are left in place.
func (m *Monitor) Rollup(ctx context.Context, window time.Duration) ([]models.Rollup, error) {
	if m.store == nil {
		return nil, nil
	}
	if window <= 0 {
		return nil, errors.ValidationError("rollup window must be positive")
	}

	end := m.now().Truncate(window)
	start := end.Add(-window)
	samples, err := m.store.ListSamples(ctx, "", start, end)
	if err != nil {
		return nil, errors.InternalError("failed to load health samples", err)
	}

	grouped := make(map[seriesKey][]float64)
	for _, s := range samples {
		k := seriesKey{s.Component, s.Metric}
		grouped[k] = append(grouped[k], s.Value)
	}

	rollups := make([]models.Rollup, 0, len(grouped))
	for k, values := range grouped {
		rollups = append(rollups, summarise(k, values, start, window))
	}
	sort.Slice(rollups, func(i, j int) bool {
		if rollups[i].Component != rollups[j].Component {
			return rollups[i].Component < rollups[j].Component
		}
		return rollups[i].Metric < rollups[j].Metric
	})

	if len(rollups) == 0 {
		return rollups, nil
	}
	if err := m.store.SaveRollups(ctx, rollups); err != nil {
		return nil, errors.InternalError("failed to save health rollups", err)
	}

	m.logger.Info("Health rollup written",
		logging.Field{Key: "window_start", Value: start},
		logging.Field{Key: "window", Value: window.String()},
		logging.Field{Key: "rows", Value: len(rollups)},
	)
	return rollups, nil
}

func summarise(k seriesKey, values []float64, start time.Time, window time.Duration) models.Rollup {
	sort.Float64s(values)
	r := models.Rollup{
		Component:   k.component,
		Metric:      k.metric,
		WindowStart: start,
		Window:      window,
		Count:       len(values),
		Min:         values[0],
		Max:         values[len(values)-1],
		P50:         percentile(values, 0.50),
		P95:         percentile(values, 0.95),
	}
	for _, v := range values {
		r.Sum += v
	}
	return r
}
