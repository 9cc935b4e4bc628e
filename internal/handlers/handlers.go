// Package handlers implements the gateway's HTTP API on top of the auth
// manager, the webhook service and the health monitor.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"api-gateway/internal/auth"
	"api-gateway/internal/cache"
	"api-gateway/internal/circuitbreaker"
	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/common/validation"
	"api-gateway/internal/health"
	"api-gateway/internal/ratelimit"
	"api-gateway/internal/storage"
	"api-gateway/internal/webhook"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Cache tags invalidated by the mutating handlers.
const (
	TagClients  = "clients"
	TagWebhooks = "webhooks:" + cache.ClientTag
)

// WebhooksTag is the cache tag of one client's subscription listing.
func WebhooksTag(clientID string) string {
	return "webhooks:" + clientID
}

type Handlers struct {
	auth       *auth.Manager
	webhooks   *webhook.Service
	dispatcher *webhook.Dispatcher
	cache      *cache.Cache
	monitor    *health.Monitor
	metrics    storage.MetricStore
	breakers   *circuitbreaker.Manager
	limiter    *ratelimit.Limiter
	jobs       JobRunner
	logger     logging.Logger
	now        func() time.Time
}

// Deps are the services the handlers call into.
type Deps struct {
	Auth       *auth.Manager
	Webhooks   *webhook.Service
	Dispatcher *webhook.Dispatcher
	Cache      *cache.Cache
	Monitor    *health.Monitor
	Metrics    storage.MetricStore
	Breakers   *circuitbreaker.Manager
	// Limiter is nil when rate limiting is disabled.
	Limiter *ratelimit.Limiter
	Jobs    JobRunner
}

func New(d Deps) *Handlers {
	return &Handlers{
		auth:       d.Auth,
		webhooks:   d.Webhooks,
		dispatcher: d.Dispatcher,
		cache:      d.Cache,
		monitor:    d.Monitor,
		metrics:    d.Metrics,
		breakers:   d.Breakers,
		limiter:    d.Limiter,
		jobs:       d.Jobs,
		logger:     logging.Component("handlers"),
		now:        time.Now,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError logs server-side failures before writing the error body.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.HTTPStatus(err) >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("Request failed", err,
			logging.Field{Key: "path", Value: r.URL.Path})
	}
	errors.WriteHTTP(w, err)
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted when allowEmpty is set.
func decode(r *http.Request, dst interface{}, allowEmpty bool) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return errors.ValidationError("failed to read request body")
	}
	if len(body) > maxBodyBytes {
		return errors.ValidationError("request body too large")
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return errors.ValidationError("request body is not valid JSON").WithCause(err)
		}
	} else if !allowEmpty {
		return errors.ValidationError("request body is required")
	}
	return validation.Struct(dst)
}

// principal returns the caller; RequireAuth guarantees one on protected routes.
func principal(r *http.Request) *auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	if p == nil {
		return &auth.Principal{}
	}
	return p
}

// owner is the client whose resources the caller may touch. Admins see
// everything, signalled by an empty owner.
func owner(r *http.Request) string {
	p := principal(r)
	if p.HasScope(auth.ScopeAdmin) {
		return ""
	}
	return p.ClientID
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}
