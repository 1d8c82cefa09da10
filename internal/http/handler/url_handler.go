package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AdriBarda/url-shortener/internal/http/middleware"
	"github.com/AdriBarda/url-shortener/internal/http/response"
	"github.com/AdriBarda/url-shortener/internal/service"
)

type URLHandler struct {
	urls     *service.URLService
	redirect *service.RedirectService
	logger   *slog.Logger
}

func NewURLHandler(urls *service.URLService, redirect *service.RedirectService, logger *slog.Logger) *URLHandler {
	return &URLHandler{urls: urls, redirect: redirect, logger: logger}
}

func (h *URLHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	var input service.CreateURLInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	result, err := h.urls.Create(r.Context(), id.UserID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		case errors.Is(err, service.ErrConflict):
			response.Error(w, r, http.StatusConflict, "CONFLICT", "alias already exists")
		default:
			h.logger.Error("create url failed", "error", err)
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not create short url")
		}
		return
	}
	response.JSON(w, r, http.StatusCreated, result)
}

func (h *URLHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	urls, err := h.urls.ListByUser(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("list urls failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not list urls")
		return
	}
	response.JSON(w, r, http.StatusOK, urls)
}

func (h *URLHandler) Stats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	stats, err := h.redirect.Stats(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "short url not found")
			return
		}
		h.logger.Error("url stats failed", "shortCode", code, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not load stats")
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}
