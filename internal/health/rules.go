package health

import "fmt"

func (m *Monitor) applyRules(component string, c *ComponentReport) {
	switch component {
	case ComponentGateway:
		m.gatewayRule(c)
	case ComponentDispatcher:
		m.dispatcherRule(c)
	case ComponentAuth:
		m.authRule(c)
	case ComponentCache:
		cacheRule(c)
	case ComponentRateLimiter:
		if n := c.Counts[MetricStoreError]; n > 0 {
			c.degrade(fmt.Sprintf("%d counter store errors", n))
		}
	}
}

func (m *Monitor) dispatcherRule(c *ComponentReport) {
	attempts := c.Counts[MetricAttempt]
	failures := c.Counts[MetricFailed] + c.Counts[MetricDeadLettered]
	if attempts > 0 {
		ratio := float64(failures) / float64(attempts)
		c.ratio("failure_ratio", ratio)

		if attempts >= int64(m.config.MinSamples) {
			switch {
			case ratio > m.config.UnhealthyRatio:
				c.fail(fmt.Sprintf("delivery failure ratio %.2f", ratio))
			case ratio > m.config.DegradedRatio:
				c.degrade(fmt.Sprintf("delivery failure ratio %.2f", ratio))
			}
		}
	}

	if depth, ok := c.Gauges[MetricQueueDepth]; ok && m.config.ShedThreshold > 0 && depth >= float64(m.config.ShedThreshold) {
		c.degrade(fmt.Sprintf("queue depth %.0f at shed threshold", depth))
	}
}

// gatewayRule judges inbound traffic by its 5xx share; 4xx responses are
// counted but never degrade the gateway.
func (m *Monitor) gatewayRule(c *ComponentReport) {
	requests := c.Counts[MetricRequest]
	if requests == 0 {
		return
	}
	ratio := float64(c.Counts[MetricServerError]) / float64(requests)
	c.ratio("server_error_ratio", ratio)
	if requests < int64(m.config.MinSamples) {
		return
	}
	switch {
	case ratio > m.config.UnhealthyRatio:
		c.fail(fmt.Sprintf("server error ratio %.2f", ratio))
	case ratio > m.config.DegradedRatio:
		c.degrade(fmt.Sprintf("server error ratio %.2f", ratio))
	}
}

func cacheRule(c *ComponentReport) {
	if lookups := c.Counts[MetricHit] + c.Counts[MetricMiss]; lookups > 0 {
		c.ratio("hit_ratio", float64(c.Counts[MetricHit])/float64(lookups))
	}
	if n := c.Counts[MetricError]; n > 0 {
		c.degrade(fmt.Sprintf("%d cache backend errors", n))
	}
}

func (m *Monitor) authRule(c *ComponentReport) {
	failures := c.Counts[MetricVerifyFailure]
	total := c.Counts[MetricVerified] + failures
	if total == 0 {
		return
	}
	ratio := float64(failures) / float64(total)
	c.ratio("verify_failure_ratio", ratio)
	if total >= int64(m.config.MinSamples) && ratio > m.config.AuthFailureRatio {
		c.degrade(fmt.Sprintf("verification failure ratio %.2f", ratio))
	}
}

func (c *ComponentReport) ratio(name string, value float64) {
	if c.Ratios == nil {
		c.Ratios = make(map[string]float64)
	}
	c.Ratios[name] = value
}

func (c *ComponentReport) degrade(reason string) {
	c.Status = Worse(c.Status, StatusDegraded)
	c.Reasons = append(c.Reasons, reason)
}

func (c *ComponentReport) fail(reason string) {
	c.Status = StatusUnhealthy
	c.Reasons = append(c.Reasons, reason)
}
