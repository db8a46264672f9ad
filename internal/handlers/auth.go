package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jk-autos/storefront/internal/auth"
	"github.com/jk-autos/storefront/internal/platform/httpx"
)

const maxAuthBodySize = 8 * 1024

// AuthHandlers exposes the sign-in endpoints backed by the auth client.
type AuthHandlers struct {
	client *auth.Client
}

// NewAuthHandlers constructs handlers over the auth client.
func NewAuthHandlers(client *auth.Client) *AuthHandlers {
	return &AuthHandlers{client: client}
}

// Routes wires the /auth endpoints onto the provided router.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Get("/session", h.session)
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.client == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "auth service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	session, err := h.client.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "email or password is incorrect", http.StatusUnauthorized))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "sign in failed", http.StatusBadGateway))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"token":     session.Token,
		"email":     session.Email,
		"expiresAt": session.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if h.client != nil {
		h.client.Logout(r.Context())
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *AuthHandlers) session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.client == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "auth service is unavailable", http.StatusServiceUnavailable))
		return
	}

	session := h.client.Session()
	if session.Token == "" || h.client.Token() == "" {
		httpx.WriteError(ctx, w, httpx.NewError("session_expired", "no active session", http.StatusUnauthorized))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"email":     session.Email,
		"expiresAt": session.ExpiresAt.Format(time.RFC3339),
	})
}
