package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AdriBarda/url-shortener/internal/http/middleware"
	"github.com/AdriBarda/url-shortener/internal/http/response"
	"github.com/AdriBarda/url-shortener/internal/repository"
	"github.com/AdriBarda/url-shortener/internal/security"
	"github.com/AdriBarda/url-shortener/internal/service"
)

type AuthHandler struct {
	auth      *service.AuthService
	cookies   *security.CookieManager
	cookieTTL time.Duration
	webAppURL string
	logger    *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, cookies *security.CookieManager, cookieTTL time.Duration, webAppURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		cookies:   cookies,
		cookieTTL: cookieTTL,
		webAppURL: webAppURL,
		logger:    logger,
	}
}

// Start sends the browser to the provider's hosted OAuth page.
func (h *AuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	http.Redirect(w, r, h.auth.StartOAuth(next), http.StatusFound)
}

// Callback finishes the OAuth exchange, sets the session cookie, and bounces
// the browser back to the web app. Failures land on the login page rather
// than a bare error body since this is a browser-facing redirect chain.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, h.webAppURL+"/login?error=missing_code", http.StatusSeeOther)
		return
	}

	sid, err := h.auth.HandleCallback(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback failed", "error", err)
		http.Redirect(w, r, h.webAppURL+"/login?error=auth_failed", http.StatusSeeOther)
		return
	}

	h.cookies.SetSessionCookie(w, sid, h.cookieTTL)
	next := service.SafeNext(r.URL.Query().Get("next"))
	http.Redirect(w, r, h.webAppURL+next, http.StatusSeeOther)
}

// Me returns the identity the session guard attached.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	response.JSON(w, r, http.StatusOK, id)
}

// Logout clears the cookie before anything else: the client is logged out
// even if the store teardown or the upstream revoke goes sideways.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSessionCookie(w)

	sid := security.GetCookie(r, security.SessionCookie)
	if err := h.auth.Logout(r.Context(), sid); err != nil {
		if errors.Is(err, repository.ErrStoreUnavailable) {
			response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "session store unavailable, retry shortly")
			return
		}
		h.logger.Error("logout failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "logout failed")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]bool{"loggedOut": true})
}
