package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AdriBarda/url-shortener/internal/domain"
	"github.com/AdriBarda/url-shortener/internal/http/response"
	"github.com/AdriBarda/url-shortener/internal/service"
)

type RedirectHandler struct {
	redirect *service.RedirectService
	logger   *slog.Logger
}

func NewRedirectHandler(redirect *service.RedirectService, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{redirect: redirect, logger: logger}
}

// Resolve is the public hot path: look the code up, fire the click write in
// the background, send the browser on its way.
func (h *RedirectHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	destination, err := h.redirect.Resolve(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "short url not found")
		case errors.Is(err, service.ErrGone):
			response.Error(w, r, http.StatusGone, "GONE", "short url has expired")
		default:
			h.logger.Error("redirect resolve failed", "shortCode", code, "error", err)
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not resolve short url")
		}
		return
	}

	h.redirect.RecordClick(&domain.ClickEvent{
		ShortCode: code,
		Referrer:  r.Referer(),
		UserAgent: r.UserAgent(),
	})

	http.Redirect(w, r, destination, http.StatusFound)
}
