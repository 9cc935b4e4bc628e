package handlers

import (
	"context"
	"net/http"

	"api-gateway/internal/common/pagination"
	"api-gateway/internal/models"
)

type createSubscriptionRequest struct {
	TargetURL  string   `json:"target_url" validate:"required,max=2048"`
	EventTypes []string `json:"event_types" validate:"required,min=1,max=50,dive,event_filter"`
}

type secretResponse struct {
	SubscriptionID string               `json:"subscription_id"`
	Secret         string               `json:"secret"`
	Subscription   *models.Subscription `json:"subscription,omitempty"`
}

func (h *Handlers) invalidateWebhooks(r *http.Request, clientID string) {
	if h.cache != nil {
		h.cache.InvalidateQuietly(r.Context(), WebhooksTag(clientID))
	}
}

// CreateSubscription handles POST /webhooks.
// @Summary Create webhook subscription
// @Description Registers a target URL for the given event types. The signing secret is only returned here and by rotate
// @Tags webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body handlers.createSubscriptionRequest true "Subscription"
// @Success 201 {object} handlers.secretResponse "Subscription and its secret"
// @Failure 400 {object} errors.Response "Invalid target URL or event types"
// @Failure 403 {object} errors.Response "Missing webhooks:write scope"
// @Router /webhooks [post]
func (h *Handlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	clientID := principal(r).ClientID
	sub, secret, err := h.webhooks.Register(r.Context(), clientID, req.TargetURL, req.EventTypes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.invalidateWebhooks(r, clientID)
	writeJSON(w, http.StatusCreated, secretResponse{SubscriptionID: sub.ID, Secret: secret, Subscription: sub})
}

// ListSubscriptions handles GET /webhooks. Admins may pass ?client_id= to
// list another client's subscriptions.
// @Summary List webhook subscriptions
// @Description Lists the caller's subscriptions. Responses are cached per client
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param client_id query string false "Admin only: list another client's subscriptions"
// @Success 200 {object} map[string]interface{} "Subscriptions"
// @Failure 401 {object} errors.Response "Missing or invalid bearer token"
// @Failure 403 {object} errors.Response "Missing webhooks:read scope"
// @Router /webhooks [get]
func (h *Handlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	clientID := principal(r).ClientID
	if other := r.URL.Query().Get("client_id"); other != "" && owner(r) == "" {
		clientID = other
	}

	subs, err := h.webhooks.List(r.Context(), clientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subscriptions": subs})
}

// GetSubscription handles GET /webhooks/{id}.
// @Summary Get webhook subscription
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Success 200 {object} models.Subscription "Subscription"
// @Failure 404 {object} errors.Response "Subscription not found"
// @Router /webhooks/{id} [get]
func (h *Handlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.webhooks.Get(r.Context(), owner(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// RotateSecret handles POST /webhooks/{id}/rotate.
// @Summary Rotate signing secret
// @Description Replaces the subscription secret; later deliveries are signed with the new one
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Success 200 {object} handlers.secretResponse "New secret"
// @Failure 404 {object} errors.Response "Subscription not found"
// @Router /webhooks/{id}/rotate [post]
func (h *Handlers) RotateSecret(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	secret, err := h.webhooks.RotateSecret(r.Context(), owner(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, secretResponse{SubscriptionID: id, Secret: secret})
}

// PauseSubscription handles POST /webhooks/{id}/pause.
// @Summary Pause webhook subscription
// @Description Pending deliveries are held until the subscription is resumed
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Success 200 {object} models.Subscription "Paused subscription"
// @Failure 404 {object} errors.Response "Subscription not found"
// @Router /webhooks/{id}/pause [post]
func (h *Handlers) PauseSubscription(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.webhooks.Pause)
}

// ResumeSubscription handles POST /webhooks/{id}/resume.
// @Summary Resume webhook subscription
// @Description Reactivates a paused or failing subscription with a clean failure count
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Success 200 {object} models.Subscription "Resumed subscription"
// @Failure 404 {object} errors.Response "Subscription not found"
// @Router /webhooks/{id}/resume [post]
func (h *Handlers) ResumeSubscription(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.webhooks.Resume)
}

type statusChange func(ctx context.Context, clientID, id string) (*models.Subscription, error)

func (h *Handlers) changeStatus(w http.ResponseWriter, r *http.Request, change statusChange) {
	sub, err := change(r.Context(), owner(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateWebhooks(r, sub.ClientID)
	writeJSON(w, http.StatusOK, sub)
}

// DeleteSubscription handles DELETE /webhooks/{id}.
// @Summary Delete webhook subscription
// @Description Soft deletes the subscription; its pending deliveries are dead-lettered
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Success 204 "Subscription deleted"
// @Failure 404 {object} errors.Response "Subscription not found"
// @Router /webhooks/{id} [delete]
func (h *Handlers) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.webhooks.Get(r.Context(), owner(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.webhooks.Delete(r.Context(), owner(r), sub.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateWebhooks(r, sub.ClientID)
	w.WriteHeader(http.StatusNoContent)
}

// PingSubscription handles POST /webhooks/{id}/ping.
// @Summary Ping webhook subscription
// @Description Enqueues a webhook.ping delivery to the target
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Success 202 {object} webhook.PublishResult "Ping enqueued"
// @Failure 404 {object} errors.Response "Subscription not found"
// @Router /webhooks/{id}/ping [post]
func (h *Handlers) PingSubscription(w http.ResponseWriter, r *http.Request) {
	result, err := h.webhooks.Ping(r.Context(), owner(r), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// ListDeliveries handles GET /webhooks/{id}/deliveries.
// @Summary List delivery attempts
// @Description Attempt history, newest first
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Param page query integer false "Page number"
// @Param per_page query integer false "Results per page (max 100)"
// @Success 200 {object} map[string]interface{} "Paginated delivery attempts"
// @Failure 404 {object} errors.Response "Subscription not found"
// @Router /webhooks/{id}/deliveries [get]
func (h *Handlers) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	p := pagination.ParseParams(r)
	attempts, total, err := h.webhooks.Attempts(r.Context(), owner(r), pathID(r), p.Limit, p.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pagination.NewResponse(attempts, p, total))
}

// ListDeadLetters handles GET /webhooks/{id}/dead-letters.
// @Summary List dead-lettered deliveries
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Param page query integer false "Page number"
// @Param per_page query integer false "Results per page (max 100)"
// @Success 200 {object} map[string]interface{} "Paginated dead-lettered attempts"
// @Failure 404 {object} errors.Response "Subscription not found"
// @Router /webhooks/{id}/dead-letters [get]
func (h *Handlers) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	p := pagination.ParseParams(r)
	attempts, total, err := h.webhooks.DeadLetters(r.Context(), owner(r), pathID(r), p.Limit, p.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pagination.NewResponse(attempts, p, total))
}
