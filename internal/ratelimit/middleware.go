package ratelimit

import (
	"net/http"
	"strconv"

	"api-gateway/internal/auth"
	"api-gateway/internal/common/errors"
)

// Middleware limits authenticated requests per client and route class. It
// must run after auth.RequireAuth.
func (l *Limiter) Middleware(routeClass string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			tier := ""
			if principal.Client != nil {
				tier = principal.Client.Tier
			}
			d := l.Admit(r.Context(), principal.ClientID, routeClass, tier)
			if !writeDecision(w, d) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPMiddleware limits unauthenticated routes per client IP.
func (l *Limiter) IPMiddleware(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.AdmitRule(r.Context(), "ip:"+ClientIP(r, l.trusted)+":"+classOrDefault(rule.RouteClass), rule)
			if !writeDecision(w, d) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeDecision sets the rate limit headers and, on denial, writes the 429.
// It reports whether the request may proceed.
func writeDecision(w http.ResponseWriter, d Decision) bool {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

	if d.Allowed {
		return true
	}

	retry := d.RetryAfterSeconds()
	h.Set("Retry-After", strconv.Itoa(retry))
	errors.WriteHTTP(w, errors.RateLimitError("rate limit exceeded, retry in "+strconv.Itoa(retry)+"s").
		WithContext("retry_after", retry))
	return false
}
