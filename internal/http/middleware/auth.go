package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AdriBarda/url-shortener/internal/http/response"
	"github.com/AdriBarda/url-shortener/internal/repository"
	"github.com/AdriBarda/url-shortener/internal/security"
	"github.com/AdriBarda/url-shortener/internal/service"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Authenticator validates a session identifier for one request.
type Authenticator interface {
	Authenticate(ctx context.Context, sid string) (*service.Identity, error)
}

// SessionAuth guards routes behind a valid session. The cookie is the primary
// credential; a provider-issued bearer token is accepted as a fallback for
// non-browser clients when a signing secret is configured.
type SessionAuth struct {
	auth      Authenticator
	jwtSecret []byte
	jwtAud    string
	logger    *slog.Logger
}

func NewSessionAuth(auth Authenticator, jwtSecret []byte, jwtAud string, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{auth: auth, jwtSecret: jwtSecret, jwtAud: jwtAud, logger: logger}
}

func (m *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sid := security.GetCookie(r, security.SessionCookie); sid != "" {
			id, err := m.auth.Authenticate(r.Context(), sid)
			if err != nil {
				m.reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
			return
		}

		if id := m.identityFromBearer(r); id != nil {
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
			return
		}

		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	})
}

// reject distinguishes a dead session from a dead session store: clients must
// not be logged out because Redis is briefly unreachable.
func (m *SessionAuth) reject(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrStoreUnavailable) {
		m.logger.Error("session store unavailable", "error", err)
		response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "session store unavailable, retry shortly")
		return
	}
	response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "session is not valid")
}

func (m *SessionAuth) identityFromBearer(r *http.Request) *service.Identity {
	if len(m.jwtSecret) == 0 {
		return nil
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) < len("bearer ")+1 || !strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return nil
	}
	raw := strings.TrimSpace(auth[len("bearer "):])

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.jwtSecret, nil
	}, jwt.WithAudience(m.jwtAud), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil
	}
	email, _ := claims["email"].(string)
	return &service.Identity{UserID: sub, Email: email}
}

func withIdentity(ctx context.Context, id *service.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity attached by the session guard.
func IdentityFromContext(ctx context.Context) (*service.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*service.Identity)
	return id, ok && id != nil
}
