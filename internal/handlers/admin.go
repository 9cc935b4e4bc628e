package handlers

import (
	"context"
	"net/http"
	"time"

	"api-gateway/internal/auth"
	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/pagination"
	"api-gateway/internal/models"
)

type createClientRequest struct {
	ID     string   `json:"client_id" validate:"omitempty,max=64,excludesall=/?#%"`
	Name   string   `json:"name" validate:"required,max=128"`
	Scopes []string `json:"scopes" validate:"required,min=1,dive,scope"`
	Tier   string   `json:"tier" validate:"omitempty,max=64"`
	// MaxTokenLifetime caps access token lifetime, in seconds.
	MaxTokenLifetime int `json:"max_token_lifetime" validate:"omitempty,min=0,max=86400"`
}

type createClientResponse struct {
	ClientID     string            `json:"client_id"`
	ClientSecret string            `json:"client_secret"`
	Client       *models.ApiClient `json:"client"`
}

type invalidateRequest struct {
	Tag string `json:"tag" validate:"required,max=256"`
}

// CreateClient handles POST /admin/clients.
// @Summary Create API client
// @Description The client secret is only returned here
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body handlers.createClientRequest true "Client"
// @Success 201 {object} handlers.createClientResponse "Client and its secret"
// @Failure 400 {object} errors.Response "Invalid client"
// @Failure 409 {object} errors.Response "Client already exists"
// @Router /admin/clients [post]
func (h *Handlers) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	client, secret, err := h.auth.CreateClient(r.Context(), auth.ClientSpec{
		ID:               req.ID,
		Name:             req.Name,
		Scopes:           req.Scopes,
		Tier:             req.Tier,
		MaxTokenLifetime: time.Duration(req.MaxTokenLifetime) * time.Second,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.invalidateClients(r)
	writeJSON(w, http.StatusCreated, createClientResponse{ClientID: client.ID, ClientSecret: secret, Client: client})
}

// ListClients handles GET /admin/clients.
// @Summary List API clients
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param page query integer false "Page number"
// @Param per_page query integer false "Results per page (max 100)"
// @Success 200 {object} map[string]interface{} "Paginated clients"
// @Failure 403 {object} errors.Response "Missing admin scope"
// @Router /admin/clients [get]
func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	p := pagination.ParseParams(r)
	clients, total, err := h.auth.ListClients(r.Context(), p.Limit, p.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pagination.NewResponse(clients, p, total))
}

// SuspendClient handles POST /admin/clients/{id}/suspend.
// @Summary Suspend API client
// @Description Tokens of a suspended client are rejected until it is activated
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ID"
// @Success 200 {object} map[string]interface{} "Client suspended"
// @Failure 404 {object} errors.Response "Client not found"
// @Router /admin/clients/{id}/suspend [post]
func (h *Handlers) SuspendClient(w http.ResponseWriter, r *http.Request) {
	h.clientAction(w, r, h.auth.SuspendClient)
}

// ActivateClient handles POST /admin/clients/{id}/activate.
// @Summary Activate API client
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ID"
// @Success 200 {object} map[string]interface{} "Client activated"
// @Failure 404 {object} errors.Response "Client not found"
// @Router /admin/clients/{id}/activate [post]
func (h *Handlers) ActivateClient(w http.ResponseWriter, r *http.Request) {
	h.clientAction(w, r, h.auth.ActivateClient)
}

// RevokeClient handles POST /admin/clients/{id}/revoke.
// @Summary Revoke API client
// @Description Revocation is permanent
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ID"
// @Success 200 {object} map[string]interface{} "Client revoked"
// @Failure 404 {object} errors.Response "Client not found"
// @Router /admin/clients/{id}/revoke [post]
func (h *Handlers) RevokeClient(w http.ResponseWriter, r *http.Request) {
	h.clientAction(w, r, h.auth.RevokeClient)
}

func (h *Handlers) clientAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, clientID string) error) {
	id := pathID(r)
	if err := action(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateClients(r)

	client, err := h.auth.GetClient(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *Handlers) invalidateClients(r *http.Request) {
	if h.cache != nil {
		h.cache.InvalidateQuietly(r.Context(), TagClients)
	}
}

// InvalidateCache handles POST /admin/cache/invalidate.
// @Summary Invalidate cache tag
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body handlers.invalidateRequest true "Tag"
// @Success 200 {object} map[string]interface{} "Number of entries invalidated"
// @Failure 400 {object} errors.Response "Missing tag"
// @Failure 503 {object} errors.Response "Cache backend unavailable"
// @Router /admin/cache/invalidate [post]
func (h *Handlers) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	n, err := h.cache.Invalidate(r.Context(), req.Tag)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tag": req.Tag, "invalidated": n})
}

// ListSamples handles GET /admin/health/samples?component=&since=&until=.
// The range defaults to the last hour.
// @Summary List health samples
// @Description Raw per-minute samples, by default over the last hour
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param component query string false "Component name"
// @Param since query string false "RFC3339 start"
// @Param until query string false "RFC3339 end"
// @Success 200 {object} map[string]interface{} "Samples"
// @Failure 400 {object} errors.Response "Invalid time range"
// @Router /admin/health/samples [get]
func (h *Handlers) ListSamples(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	since, err := timeParam(r, "since", now.Add(-time.Hour))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	until, err := timeParam(r, "until", now)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !until.After(since) {
		h.writeError(w, r, errors.ValidationError("until must be after since"))
		return
	}

	samples, err := h.metrics.ListSamples(r.Context(), r.URL.Query().Get("component"), since, until)
	if err != nil {
		h.writeError(w, r, errors.InternalError("failed to list samples", err))
		return
	}
	if samples == nil {
		samples = []models.MetricSample{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"samples": samples})
}

// ListRollups handles GET /admin/health/rollups?component=&since=. The
// range defaults to the last day.
// @Summary List health rollups
// @Description Hourly rollups, by default over the last day
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param component query string false "Component name"
// @Param since query string false "RFC3339 start"
// @Success 200 {object} map[string]interface{} "Rollups"
// @Failure 400 {object} errors.Response "Invalid time range"
// @Router /admin/health/rollups [get]
func (h *Handlers) ListRollups(w http.ResponseWriter, r *http.Request) {
	since, err := timeParam(r, "since", h.now().Add(-24*time.Hour))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rollups, err := h.metrics.ListRollups(r.Context(), r.URL.Query().Get("component"), since)
	if err != nil {
		h.writeError(w, r, errors.InternalError("failed to list rollups", err))
		return
	}
	if rollups == nil {
		rollups = []models.Rollup{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rollups": rollups})
}

// ListAudit handles GET /admin/audit?client_id=.
// @Summary List audit log
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param client_id query string false "Filter by client"
// @Param page query integer false "Page number"
// @Param per_page query integer false "Results per page (max 100)"
// @Success 200 {object} map[string]interface{} "Paginated audit entries"
// @Failure 403 {object} errors.Response "Missing admin scope"
// @Router /admin/audit [get]
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	p := pagination.ParseParams(r)
	entries, total, err := h.auth.ListAudit(r.Context(), r.URL.Query().Get("client_id"), p.Limit, p.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pagination.NewResponse(entries, p, total))
}

func timeParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.ValidationError("query parameter '" + name + "' must be an RFC3339 timestamp")
	}
	return t, nil
}
