package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AdriBarda/url-shortener/internal/domain"
	"github.com/AdriBarda/url-shortener/internal/identity"
	"github.com/AdriBarda/url-shortener/internal/security"
	"github.com/AdriBarda/url-shortener/internal/service"
)

// memStore is a minimal in-memory session store for handler tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]*domain.SessionRecord
	locks   map[string]bool

	getErr    error
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]*domain.SessionRecord),
		locks:   make(map[string]bool),
	}
}

func (s *memStore) Put(_ context.Context, sid string, record *domain.SessionRecord, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[sid] = &clone
	return nil
}

func (s *memStore) Get(_ context.Context, sid string) (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	record, ok := s.records[sid]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (s *memStore) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.records, sid)
	return nil
}

func (s *memStore) AcquireRefreshLock(_ context.Context, sid string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[sid] {
		return false, nil
	}
	s.locks[sid] = true
	return true, nil
}

func (s *memStore) ReleaseRefreshLock(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, sid)
	return nil
}

func (s *memStore) has(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[sid]
	return ok
}

type memProvider struct {
	mu         sync.Mutex
	revokes    int
	exchangeFn func(code string) (*identity.Grant, error)
}

func (p *memProvider) AuthorizeURL(redirectTo string) string {
	return "https://auth.example.com/authorize?redirect_to=" + redirectTo
}

func (p *memProvider) ExchangeCode(_ context.Context, code string) (*identity.Grant, error) {
	if p.exchangeFn == nil {
		return nil, errors.New("not implemented")
	}
	return p.exchangeFn(code)
}

func (p *memProvider) RefreshGrant(_ context.Context, refreshToken string) (*identity.Grant, error) {
	return &identity.Grant{
		UserID:       "user-1",
		AccessToken:  "access",
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}, nil
}

func (p *memProvider) Revoke(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revokes++
	return nil
}

func (p *memProvider) revokeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revokes
}

type noopCipher struct{}

func (noopCipher) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }

func (noopCipher) Decrypt(envelope string) (string, error) {
	if len(envelope) < 4 || envelope[:4] != "enc:" {
		return "", errors.New("bad envelope")
	}
	return envelope[4:], nil
}

func testPolicy() service.SessionPolicy {
	return service.SessionPolicy{
		StoreTTL:        168 * time.Hour,
		HardCapAge:      336 * time.Hour,
		RefreshWindow:   5 * time.Minute,
		RefreshGrace:    time.Minute,
		RefreshCooldown: 5 * time.Minute,
		RefreshLockTTL:  time.Minute,
	}
}

type authFixture struct {
	store    *memStore
	provider *memProvider
	svc      *service.AuthService
	handler  *AuthHandler
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	store := newMemStore()
	provider := &memProvider{}
	cipher := noopCipher{}
	logger := slog.Default()
	coordinator := service.NewRefreshCoordinator(store, cipher, provider, testPolicy(), logger)
	svc := service.NewAuthService(store, cipher, provider, coordinator, testPolicy(), "http://localhost:8080", logger)
	h := NewAuthHandler(svc, security.NewCookieManager(false), testPolicy().StoreTTL, "http://localhost:5173", logger)
	return &authFixture{store: store, provider: provider, svc: svc, handler: h}
}
