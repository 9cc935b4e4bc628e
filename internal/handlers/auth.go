package handlers

import (
	"net/http"
	"strings"

	"api-gateway/internal/auth"
	"api-gateway/internal/common/errors"
)

type tokenRequest struct {
	ClientID     string `json:"client_id" validate:"omitempty,max=128"`
	ClientSecret string `json:"client_secret" validate:"omitempty,max=256"`
	// Scope is a space separated list as in OAuth2.
	Scope string `json:"scope" validate:"omitempty,max=1024"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type revokeRequest struct {
	Token string `json:"token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

func (h *Handlers) tokenResponse(pair *auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn(h.now()),
		RefreshToken: pair.RefreshToken,
		Scope:        strings.Join(pair.Scopes, " "),
	}
}

// IssueToken handles POST /auth/token with credentials in the JSON body or
// HTTP Basic auth.
// @Summary Issue a token pair
// @Description Exchanges client credentials, from the JSON body or HTTP Basic auth, for an access and refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body handlers.tokenRequest false "Client credentials"
// @Success 200 {object} handlers.tokenResponse "Token pair"
// @Failure 400 {object} errors.Response "Invalid request body"
// @Failure 401 {object} errors.Response "Invalid client credentials"
// @Failure 429 {object} errors.Response "Too many requests"
// @Router /auth/token [post]
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	if id, secret, ok := r.BasicAuth(); ok {
		req.ClientID, req.ClientSecret = id, secret
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		h.writeError(w, r, errors.AuthError(errors.CodeInvalidCredentials, "client_id and client_secret are required"))
		return
	}

	pair, err := h.auth.Issue(r.Context(), req.ClientID, req.ClientSecret, strings.Fields(req.Scope))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.tokenResponse(pair))
}

// RefreshToken handles POST /auth/refresh.
// @Summary Refresh a token pair
// @Description Exchanges a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body handlers.refreshRequest true "Refresh token"
// @Success 200 {object} handlers.tokenResponse "Token pair"
// @Failure 400 {object} errors.Response "Invalid request body"
// @Failure 401 {object} errors.Response "Invalid or expired refresh token"
// @Failure 429 {object} errors.Response "Too many requests"
// @Router /auth/refresh [post]
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.tokenResponse(pair))
}

// RevokeToken handles POST /auth/revoke. Without a body the presented
// bearer token is revoked.
// @Summary Revoke a token
// @Description Revokes the given token, or the presented bearer token when the body is empty
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body handlers.revokeRequest false "Token to revoke"
// @Success 204 "Token revoked"
// @Failure 401 {object} errors.Response "Missing or invalid bearer token"
// @Failure 403 {object} errors.Response "Token belongs to another client"
// @Router /auth/revoke [post]
func (h *Handlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := decode(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Token == "" {
		req.Token, _ = auth.BearerToken(r)
	}

	if err := h.auth.RevokeAs(r.Context(), principal(r), req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
