package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/abdelhadiDevWeb/labocart/internal/auth"
	"github.com/abdelhadiDevWeb/labocart/internal/poller"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type Logouter interface {
	Logout(ctx context.Context) error
}

type AuthHandler struct {
	session   Logouter
	publisher Publisher
	log       logrus.FieldLogger
}

func NewAuthHandler(session Logouter, publisher Publisher, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{session: session, publisher: publisher, log: log}
}

type MeResponse struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

type RedirectResponse struct {
	ErrorResponse
	Redirect string `json:"redirect"`
}

// Me reports what the token claims. The signature is not checked.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.DecodeClaims(getToken(r.Context()))
	if errors.Is(err, auth.ErrNoToken) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	if err != nil {
		respondError(w, http.StatusUnauthorized, "malformed_token", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, &MeResponse{ID: claims.ID, Email: claims.Email, Role: claims.Role})
}

// Dashboard serves /dashboard/{role} to holders of that role and answers
// everyone else with where the UI should send them.
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	d, ok := auth.DashboardFor(role)
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "unknown dashboard")
		return
	}

	decision := auth.Authorize(getToken(r.Context()), role)
	switch {
	case decision.Allowed:
		respondJSON(w, http.StatusOK, d)
	case decision.Redirect == auth.LoginPath:
		respondJSON(w, http.StatusUnauthorized, &RedirectResponse{
			ErrorResponse: ErrorResponse{Error: "login required", Code: "unauthorized"},
			Redirect:      decision.Redirect,
		})
	default:
		respondJSON(w, http.StatusForbidden, &RedirectResponse{
			ErrorResponse: ErrorResponse{Error: "role " + decision.Role + " cannot open this dashboard", Code: "permission_denied"},
			Redirect:      decision.Redirect,
		})
	}
}

// Logout drops the stored token and empties the cart.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		handleError(w, err)
		return
	}
	if h.publisher != nil {
		if err := h.publisher.Publish(r.Context(), poller.EventLogout); err != nil {
			h.log.Warnf("logout not announced: %v", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
