package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"api-gateway/internal/circuitbreaker"
	"api-gateway/internal/ratelimit"
)

// JobRunner triggers background jobs on demand.
type JobRunner interface {
	RunJob(name string) (bool, error)
}

type statsResponse struct {
	QueueDepth int                    `json:"queue_depth"`
	Breakers   []circuitbreaker.Stats `json:"breakers"`
	RateLimit  *ratelimit.Stats       `json:"rate_limit,omitempty"`
}

// Stats handles GET /admin/stats.
// @Summary Gateway statistics
// @Description Queue depth, circuit breakers and rate limiter counters
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handlers.statsResponse "Statistics"
// @Failure 403 {object} errors.Response "Missing admin scope"
// @Router /admin/stats [get]
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Breakers: []circuitbreaker.Stats{}}
	if h.dispatcher != nil {
		resp.QueueDepth = h.dispatcher.Depth()
	}
	if h.breakers != nil {
		resp.Breakers = h.breakers.AllStats()
	}
	if h.limiter != nil {
		stats := h.limiter.Stats()
		resp.RateLimit = &stats
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

// RunJob handles POST /admin/jobs/{name}/run. A job already running
// elsewhere is reported with ran=false.
// @Summary Run background job
// @Description Runs a scheduled job now; ran is false when it is already running elsewhere
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param name path string true "Job name"
// @Success 200 {object} map[string]interface{} "Job result"
// @Failure 404 {object} errors.Response "Unknown job"
// @Router /admin/jobs/{name}/run [post]
func (h *Handlers) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ran, err := h.jobs.RunJob(name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job": name, "ran": ran})
}
