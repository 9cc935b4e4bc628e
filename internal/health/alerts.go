package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"api-gateway/internal/common/logging"
)

// Alert describes one overall status transition.
type Alert struct {
	Previous Status    `json:"previous"`
	Current  Status    `json:"current"`
	Report   *Report   `json:"report"`
	At       time.Time `json:"at"`
}

// Notifier delivers alerts to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert Alert) error
}

// Evaluate builds a report and notifies every channel when the overall
// status differs from the previous evaluation. Channel errors are logged.
func (m *Monitor) Evaluate(ctx context.Context) *Report {
	report := m.Report(ctx)

	m.alertMu.Lock()
	defer m.alertMu.Unlock()

	previous := m.last
	m.last = report.Status
	if previous == report.Status {
		return report
	}

	alert := Alert{Previous: previous, Current: report.Status, Report: report, At: report.GeneratedAt}
	m.logger.WithContext(ctx).Info("Health status changed",
		logging.Field{Key: "previous", Value: previous},
		logging.Field{Key: "current", Value: report.Status},
	)

	var g errgroup.Group
	for _, n := range m.notifiers {
		n := n
		g.Go(func() error {
			if err := n.Notify(ctx, alert); err != nil {
				m.logger.Error("Failed to send health alert", err, logging.Field{Key: "channel", Value: n.Name()})
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// LastStatus is the overall status seen by the latest Evaluate.
func (m *Monitor) LastStatus() Status {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	return m.last
}
