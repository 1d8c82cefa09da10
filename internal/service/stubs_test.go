package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AdriBarda/url-shortener/internal/domain"
	"github.com/AdriBarda/url-shortener/internal/identity"
)

// stubSessionStore is an in-memory SessionStore with optional failure hooks,
// plus a mutex so the single-flight tests can hammer it concurrently.
type stubSessionStore struct {
	mu      sync.Mutex
	records map[string]*domain.SessionRecord
	locks   map[string]bool

	getErr    error
	putErr    error
	deleteErr error
	lockErr   error

	puts    int
	deletes int
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{
		records: make(map[string]*domain.SessionRecord),
		locks:   make(map[string]bool),
	}
}

func (s *stubSessionStore) Put(_ context.Context, sid string, record *domain.SessionRecord, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	clone := *record
	s.records[sid] = &clone
	s.puts++
	return nil
}

func (s *stubSessionStore) Get(_ context.Context, sid string) (*domain.SessionRecord, error) {
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

func (s *stubSessionStore) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.records, sid)
	s.deletes++
	return nil
}

func (s *stubSessionStore) AcquireRefreshLock(_ context.Context, sid string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockErr != nil {
		return false, s.lockErr
	}
	if s.locks[sid] {
		return false, nil
	}
	s.locks[sid] = true
	return true, nil
}

func (s *stubSessionStore) ReleaseRefreshLock(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, sid)
	return nil
}

func (s *stubSessionStore) has(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[sid]
	return ok
}

func (s *stubSessionStore) record(sid string) *domain.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[sid]; ok {
		clone := *r
		return &clone
	}
	return nil
}

// stubProvider implements IdentityProvider with function fields.
type stubProvider struct {
	mu         sync.Mutex
	refreshes  int
	revokes    int
	exchangeFn func(code string) (*identity.Grant, error)
	refreshFn  func(refreshToken string) (*identity.Grant, error)
	revokeErr  error
}

func (p *stubProvider) AuthorizeURL(redirectTo string) string {
	return "https://auth.example.com/auth/v1/authorize?redirect_to=" + redirectTo
}

func (p *stubProvider) ExchangeCode(_ context.Context, code string) (*identity.Grant, error) {
	if p.exchangeFn == nil {
		return nil, errors.New("not implemented")
	}
	return p.exchangeFn(code)
}

func (p *stubProvider) RefreshGrant(_ context.Context, refreshToken string) (*identity.Grant, error) {
	p.mu.Lock()
	p.refreshes++
	p.mu.Unlock()
	if p.refreshFn == nil {
		return nil, errors.New("not implemented")
	}
	return p.refreshFn(refreshToken)
}

func (p *stubProvider) Revoke(_ context.Context, _ string) error {
	p.mu.Lock()
	p.revokes++
	p.mu.Unlock()
	return p.revokeErr
}

func (p *stubProvider) refreshCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshes
}

func (p *stubProvider) revokeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revokes
}

// plainCipher is a reversible stand-in for the AES cipher so tests can assert
// on stored values.
type plainCipher struct {
	encryptErr error
	decryptErr error
}

func (c *plainCipher) Encrypt(plaintext string) (string, error) {
	if c.encryptErr != nil {
		return "", c.encryptErr
	}
	return "enc:" + plaintext, nil
}

func (c *plainCipher) Decrypt(envelope string) (string, error) {
	if c.decryptErr != nil {
		return "", c.decryptErr
	}
	if len(envelope) < 4 || envelope[:4] != "enc:" {
		return "", errors.New("bad envelope")
	}
	return envelope[4:], nil
}

// stubURLRepo implements URLRepository with function fields.
type stubURLRepo struct {
	createFn func(url *domain.URL) (*domain.URL, error)
	findFn   func(shortCode string) (*domain.URL, error)
	listFn   func(userID string) ([]domain.URL, error)
}

func (r *stubURLRepo) Create(_ context.Context, url *domain.URL) (*domain.URL, error) {
	if r.createFn == nil {
		return nil, errors.New("not implemented")
	}
	return r.createFn(url)
}

func (r *stubURLRepo) FindByShortCode(_ context.Context, shortCode string) (*domain.URL, error) {
	if r.findFn == nil {
		return nil, errors.New("not implemented")
	}
	return r.findFn(shortCode)
}

func (r *stubURLRepo) ListByUser(_ context.Context, userID string) ([]domain.URL, error) {
	if r.listFn == nil {
		return nil, errors.New("not implemented")
	}
	return r.listFn(userID)
}

// stubClickRepo implements ClickRepository.
type stubClickRepo struct {
	mu       sync.Mutex
	recorded []domain.ClickEvent
	statsFn  func(shortCode string) (*domain.URLStats, error)
}

func (r *stubClickRepo) Record(_ context.Context, event *domain.ClickEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, *event)
	return nil
}

func (r *stubClickRepo) Stats(_ context.Context, shortCode string, _ time.Time) (*domain.URLStats, error) {
	if r.statsFn == nil {
		return nil, errors.New("not implemented")
	}
	return r.statsFn(shortCode)
}

func (r *stubClickRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recorded)
}
