package app

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "api-gateway/docs"
	"api-gateway/internal/auth"
	"api-gateway/internal/common/errors"
	"api-gateway/internal/handlers"
	"api-gateway/internal/middleware"
)

// Route classes used as rate limit keys.
const (
	ClassRead    = "read"
	ClassWrite   = "write"
	ClassPublish = "publish"
	ClassAdmin   = "admin"
)

// Routes builds the HTTP handler with every route and middleware applied.
func (app *App) Routes() http.Handler {
	h := handlers.New(handlers.Deps{
		Auth:       app.Auth,
		Webhooks:   app.Webhooks,
		Dispatcher: app.Dispatcher,
		Cache:      app.Cache,
		Monitor:    app.Monitor,
		Metrics:    app.Storage,
		Breakers:   app.Breakers,
		Limiter:    app.Limiter,
		Jobs:       app,
	})

	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Logging, middleware.Metrics(app.Monitor), middleware.Recover)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteHTTP(w, errors.NotFoundError("route"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// Public endpoints
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", app.Collector.Handler()).Methods(http.MethodGet)

	// Swagger UI (no auth required)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Token endpoints are limited per source IP
	authRoutes := router.PathPrefix("/auth").Subrouter()
	if app.Limiter != nil {
		authRoutes.Use(app.Limiter.IPMiddleware(app.authRule()))
	}
	authRoutes.HandleFunc("/token", h.IssueToken).Methods(http.MethodPost)
	authRoutes.HandleFunc("/refresh", h.RefreshToken).Methods(http.MethodPost)
	authRoutes.Handle("/revoke", app.Auth.RequireAuth(http.HandlerFunc(h.RevokeToken))).Methods(http.MethodPost)

	// Protected endpoints
	api := router.NewRoute().Subrouter()
	api.Use(app.Auth.RequireAuth)

	listWebhooks := app.cached(h.ListSubscriptions, handlers.TagWebhooks)
	api.Handle("/webhooks", app.protect(auth.ScopeWebhooksWrite, ClassWrite, h.CreateSubscription)).Methods(http.MethodPost)
	api.Handle("/webhooks", app.protect(auth.ScopeWebhooksRead, ClassRead, listWebhooks)).Methods(http.MethodGet)
	api.Handle("/webhooks/{id}", app.protect(auth.ScopeWebhooksRead, ClassRead, h.GetSubscription)).Methods(http.MethodGet)
	api.Handle("/webhooks/{id}", app.protect(auth.ScopeWebhooksWrite, ClassWrite, h.DeleteSubscription)).Methods(http.MethodDelete)
	api.Handle("/webhooks/{id}/rotate", app.protect(auth.ScopeWebhooksWrite, ClassWrite, h.RotateSecret)).Methods(http.MethodPost)
	api.Handle("/webhooks/{id}/pause", app.protect(auth.ScopeWebhooksWrite, ClassWrite, h.PauseSubscription)).Methods(http.MethodPost)
	api.Handle("/webhooks/{id}/resume", app.protect(auth.ScopeWebhooksWrite, ClassWrite, h.ResumeSubscription)).Methods(http.MethodPost)
	api.Handle("/webhooks/{id}/ping", app.protect(auth.ScopeWebhooksWrite, ClassWrite, h.PingSubscription)).Methods(http.MethodPost)
	api.Handle("/webhooks/{id}/deliveries", app.protect(auth.ScopeWebhooksRead, ClassRead, h.ListDeliveries)).Methods(http.MethodGet)
	api.Handle("/webhooks/{id}/dead-letters", app.protect(auth.ScopeWebhooksRead, ClassRead, h.ListDeadLetters)).Methods(http.MethodGet)

	api.Handle("/events", app.protect(auth.ScopeEventsPublish, ClassPublish, h.PublishEvent)).Methods(http.MethodPost)

	// Administration
	admin := func(fn http.HandlerFunc) http.Handler {
		return app.protect(auth.ScopeAdmin, ClassAdmin, fn)
	}
	api.Handle("/admin/clients", admin(h.CreateClient)).Methods(http.MethodPost)
	api.Handle("/admin/clients", admin(app.cached(h.ListClients, handlers.TagClients))).Methods(http.MethodGet)
	api.Handle("/admin/clients/{id}/suspend", admin(h.SuspendClient)).Methods(http.MethodPost)
	api.Handle("/admin/clients/{id}/activate", admin(h.ActivateClient)).Methods(http.MethodPost)
	api.Handle("/admin/clients/{id}/revoke", admin(h.RevokeClient)).Methods(http.MethodPost)
	api.Handle("/admin/cache/invalidate", admin(h.InvalidateCache)).Methods(http.MethodPost)
	api.Handle("/admin/health/samples", admin(h.ListSamples)).Methods(http.MethodGet)
	api.Handle("/admin/health/rollups", admin(h.ListRollups)).Methods(http.MethodGet)
	api.Handle("/admin/health/evaluate", admin(h.EvaluateHealth)).Methods(http.MethodPost)
	api.Handle("/admin/audit", admin(h.ListAudit)).Methods(http.MethodGet)
	api.Handle("/admin/stats", admin(h.Stats)).Methods(http.MethodGet)
	api.Handle("/admin/jobs/{name}/run", admin(h.RunJob)).Methods(http.MethodPost)

	return router
}

// protect wraps a handler with the scope check and the per-client limit
// of its route class.
func (app *App) protect(scope, class string, h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	if app.Limiter != nil {
		handler = app.Limiter.Middleware(class)(handler)
	}
	return auth.RequireScope(scope)(handler)
}

// cached serves h through the response cache. Admin lookups of another
// client's listing carry a client_id query and bypass the cache, since
// mutations only invalidate the owner's tag.
func (app *App) cached(h http.HandlerFunc, tags ...string) http.HandlerFunc {
	through := app.Cache.Cached(app.cacheTTL(), tags...)(h)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("client_id") != "" {
			h(w, r)
			return
		}
		through.ServeHTTP(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(errors.Response{Code: "method_not_allowed", Message: "method not allowed"})
}
