package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/AdriBarda/url-shortener/internal/domain"
	"github.com/AdriBarda/url-shortener/internal/security"
)

// Identity is what a validated session exposes to the request path. The
// decrypted refresh credential never travels with it.
type Identity struct {
	UserID    string `json:"userId"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// AuthService owns session issuance, validation, and teardown.
type AuthService struct {
	store       SessionStore
	cipher      CredentialCipher
	provider    IdentityProvider
	coordinator *RefreshCoordinator
	policy      SessionPolicy
	logger      *slog.Logger
	baseURL     string

	now func() time.Time
}

func NewAuthService(store SessionStore, cipher CredentialCipher, provider IdentityProvider, coordinator *RefreshCoordinator, policy SessionPolicy, baseURL string, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:       store,
		cipher:      cipher,
		provider:    provider,
		coordinator: coordinator,
		policy:      policy,
		logger:      logger,
		baseURL:     baseURL,
		now:         time.Now,
	}
}

// SafeNext confines post-login redirects to same-site paths.
func SafeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/dashboard"
	}
	return next
}

// StartOAuth returns the provider's hosted OAuth URL for the browser to follow.
func (s *AuthService) StartOAuth(next string) string {
	redirectTo := s.baseURL + "/auth/callback?next=" + url.QueryEscape(SafeNext(next))
	return s.provider.AuthorizeURL(redirectTo)
}

// HandleCallback finishes the OAuth exchange and issues the session: new
// unguessable identifier, encrypted refresh credential, record written with
// the store TTL. The returned sid goes into the cookie with a matching
// max-age; the caller owns the Set-Cookie.
func (s *AuthService) HandleCallback(ctx context.Context, code string) (sid string, err error) {
	grant, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return "", err
	}

	sealed, err := s.cipher.Encrypt(grant.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("seal refresh credential: %w", err)
	}

	sid = security.NewSessionID()
	now := s.now().Unix()
	record := &domain.SessionRecord{
		UserID:        grant.UserID,
		Email:         grant.Email,
		AvatarURL:     grant.AvatarURL,
		RefreshToken:  sealed,
		ExpiresAt:     grant.ExpiresAt,
		CreatedAt:     now,
		LastSeenAt:    now,
		LastRefreshAt: now,
	}
	if err := s.store.Put(ctx, sid, record, s.policy.StoreTTL); err != nil {
		return "", err
	}
	s.logger.Info("session issued", "userId", grant.UserID)
	return sid, nil
}

// Authenticate validates one request's session identifier and applies policy:
//
//  1. unknown sid: unauthorized
//  2. past the hard cap: delete the record, unauthorized
//  3. refresh due: launch a background refresh, do not wait for it
//  4. past the grace period: unauthorized (the refresh launched in 3, if any,
//     serves later requests)
//
// Store failures propagate as ErrStoreUnavailable, never as unauthorized.
func (s *AuthService) Authenticate(ctx context.Context, sid string) (*Identity, error) {
	if sid == "" {
		return nil, ErrUnauthorized
	}
	record, err := s.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrUnauthorized
	}

	now := s.now()
	if s.policy.IsHardCapped(record, now) {
		if err := s.store.Delete(ctx, sid); err != nil {
			return nil, err
		}
		return nil, ErrUnauthorized
	}

	if s.policy.RefreshDue(record, now) {
		s.coordinator.Schedule(ctx, sid)
	}

	if !s.policy.WithinGrace(record, now) {
		return nil, ErrUnauthorized
	}

	return &Identity{UserID: record.UserID, Email: record.Email, AvatarURL: record.AvatarURL}, nil
}

// Logout tears the session down. The store delete is authoritative; the
// upstream revoke is best effort and its failures are swallowed; once the
// local record is gone the session is dead regardless of what the provider
// thinks. Store connectivity failures do propagate so the client can retry.
func (s *AuthService) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}

	record, err := s.store.Get(ctx, sid)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sid); err != nil {
		return err
	}
	if record == nil || record.RefreshToken == "" {
		return nil
	}

	refreshToken, err := s.cipher.Decrypt(record.RefreshToken)
	if err != nil {
		return nil
	}
	grant, err := s.provider.RefreshGrant(ctx, refreshToken)
	if err != nil || grant.AccessToken == "" {
		return nil
	}
	if err := s.provider.Revoke(ctx, grant.AccessToken); err != nil {
		s.logger.Debug("upstream revoke failed", "error", err)
	}
	return nil
}
