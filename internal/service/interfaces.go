package service

import (
	"context"
	"time"

	"github.com/AdriBarda/url-shortener/internal/domain"
	"github.com/AdriBarda/url-shortener/internal/identity"
)

// SessionStore is the key-value contract the session lifecycle needs. The
// Redis implementation lives in internal/repository.
type SessionStore interface {
	Put(ctx context.Context, sid string, record *domain.SessionRecord, ttl time.Duration) error
	Get(ctx context.Context, sid string) (*domain.SessionRecord, error)
	Delete(ctx context.Context, sid string) error
	AcquireRefreshLock(ctx context.Context, sid string, ttl time.Duration) (bool, error)
	ReleaseRefreshLock(ctx context.Context, sid string) error
}

// IdentityProvider is the upstream auth service, consumed opaquely.
type IdentityProvider interface {
	AuthorizeURL(redirectTo string) string
	ExchangeCode(ctx context.Context, code string) (*identity.Grant, error)
	RefreshGrant(ctx context.Context, refreshToken string) (*identity.Grant, error)
	Revoke(ctx context.Context, accessToken string) error
}

// CredentialCipher seals and opens the stored refresh credential.
type CredentialCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

type URLRepository interface {
	Create(ctx context.Context, url *domain.URL) (*domain.URL, error)
	FindByShortCode(ctx context.Context, shortCode string) (*domain.URL, error)
	ListByUser(ctx context.Context, userID string) ([]domain.URL, error)
}

type ClickRepository interface {
	Record(ctx context.Context, event *domain.ClickEvent) error
	Stats(ctx context.Context, shortCode string, now time.Time) (*domain.URLStats, error)
}
