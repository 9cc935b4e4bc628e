package handlers

import (
	"net/http"

	"api-gateway/internal/health"
)

// Health handles GET /health. It answers 503 while unhealthy.
// @Summary Health report
// @Description Per-component status over the reporting window
// @Tags health
// @Produce json
// @Success 200 {object} health.Report "Healthy or degraded"
// @Failure 503 {object} errors.Response "Unhealthy"
// @Router /health [get]
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	report := h.monitor.Report(r.Context())
	writeReport(w, report)
}

// EvaluateHealth handles POST /admin/health/evaluate: an on-demand
// evaluation that notifies alert channels on a status change.
// @Summary Evaluate health
// @Description Evaluates health now and notifies alert channels on a status change
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} health.Report "Health report"
// @Failure 503 {object} errors.Response "Unhealthy"
// @Router /admin/health/evaluate [post]
func (h *Handlers) EvaluateHealth(w http.ResponseWriter, r *http.Request) {
	writeReport(w, h.monitor.Evaluate(r.Context()))
}

func writeReport(w http.ResponseWriter, report *health.Report) {
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, report)
}
