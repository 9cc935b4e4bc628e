package handlers

import (
	"net/http"

	"api-gateway/internal/events"
)

// PublishEvent handles POST /events. Shed events are still accepted; the
// response reports shed=true.
// @Summary Publish a domain event
// @Description Fans the event out to every matching subscription. Under backpressure non-critical events are accepted but shed
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body events.Message true "Event"
// @Success 202 {object} webhook.PublishResult "Event accepted"
// @Failure 400 {object} errors.Response "Invalid event"
// @Failure 403 {object} errors.Response "Missing events:publish scope"
// @Failure 429 {object} errors.Response "Too many requests"
// @Router /events [post]
func (h *Handlers) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var msg events.Message
	if err := decode(r, &msg, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.dispatcher.Publish(r.Context(), msg.Event())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}
