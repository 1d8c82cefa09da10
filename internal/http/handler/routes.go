package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/AdriBarda/url-shortener/internal/http/middleware"
	"github.com/AdriBarda/url-shortener/internal/observability"
)

type RouterDeps struct {
	Auth     *AuthHandler
	URLs     *URLHandler
	Redirect *RedirectHandler
	Health   *HealthHandler

	Guard   *middleware.SessionAuth
	Limiter middleware.Limiter

	CORSAllowedOrigins  []string
	AuthRateLimitPerMin int
	APIRateLimitPerMin  int

	Logger *slog.Logger
}

// NewRouter wires the HTTP surface. The auth endpoints get the tighter limit
// and fail closed; the API and redirect paths fail open so a limiter outage
// does not take link resolution down with it.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.CORS(deps.CORSAllowedOrigins))

	authLimit := middleware.NewRateLimiter(
		deps.Limiter, deps.AuthRateLimitPerMin, time.Minute,
		middleware.FailClosed, "auth", deps.Logger,
	)
	apiLimit := middleware.NewRateLimiter(
		deps.Limiter, deps.APIRateLimitPerMin, time.Minute,
		middleware.FailOpen, "api", deps.Logger,
	)

	r.Get("/healthz", deps.Health.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Use(authLimit.Middleware)
		r.Get("/github/start", deps.Auth.Start)
		r.Get("/callback", deps.Auth.Callback)
		r.Post("/logout", deps.Auth.Logout)
		r.With(deps.Guard.Middleware).Get("/me", deps.Auth.Me)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLimit.Middleware)
		r.Use(deps.Guard.Middleware)
		r.Post("/urls", deps.URLs.Create)
		r.Get("/urls", deps.URLs.List)
		r.Get("/urls/{code}/stats", deps.URLs.Stats)
	})

	r.With(apiLimit.Middleware).Get("/{code}", deps.Redirect.Resolve)

	return r
}
