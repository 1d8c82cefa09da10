package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AdriBarda/url-shortener/internal/domain"
	"github.com/AdriBarda/url-shortener/internal/repository"
)

const (
	redirectCacheDefaultTTL = 24 * time.Hour
	redirectCacheMaxTTL     = 7 * 24 * time.Hour
)

// RedirectService resolves a short code to its destination, caching hot codes
// in Redis. Clicks are recorded out of band so the redirect itself stays fast.
type RedirectService struct {
	repo   URLRepository
	clicks ClickRepository
	cache  *repository.URLCache
	logger *slog.Logger

	now func() time.Time
	wg  sync.WaitGroup
}

func NewRedirectService(repo URLRepository, clicks ClickRepository, cache *repository.URLCache, logger *slog.Logger) *RedirectService {
	return &RedirectService{repo: repo, clicks: clicks, cache: cache, logger: logger, now: time.Now}
}

// Resolve returns the destination URL for a short code. ErrNotFound for
// unknown codes, ErrGone once the link's expiration has passed.
func (s *RedirectService) Resolve(ctx context.Context, shortCode string) (string, error) {
	now := s.now()

	if cached := s.cache.Get(ctx, shortCode); cached != nil {
		if cached.ExpirationTime != nil && !now.Before(*cached.ExpirationTime) {
			return "", ErrGone
		}
		return cached.OriginalURL, nil
	}

	link, err := s.repo.FindByShortCode(ctx, shortCode)
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", ErrNotFound
	}
	if link.Expired(now) {
		return "", ErrGone
	}

	s.cache.Set(ctx, shortCode, &repository.CachedURL{
		OriginalURL:    link.OriginalURL,
		ExpirationTime: link.ExpirationTime,
	}, s.cacheTTL(link, now))

	return link.OriginalURL, nil
}

// RecordClick fires the analytics insert in the background; a slow or broken
// analytics table must not delay the redirect.
func (s *RedirectService) RecordClick(event *domain.ClickEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.clicks.Record(ctx, event); err != nil {
			s.logger.Warn("click record failed", "error", err)
		}
	}()
}

func (s *RedirectService) Stats(ctx context.Context, shortCode string) (*domain.URLStats, error) {
	link, err := s.repo.FindByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotFound
	}
	return s.clicks.Stats(ctx, shortCode, s.now())
}

// Wait drains background click writes; used on shutdown and in tests.
func (s *RedirectService) Wait() {
	s.wg.Wait()
}

func (s *RedirectService) cacheTTL(link *domain.URL, now time.Time) time.Duration {
	if link.ExpirationTime == nil {
		return redirectCacheDefaultTTL
	}
	left := link.ExpirationTime.Sub(now)
	if left <= 0 {
		return 0
	}
	if left > redirectCacheMaxTTL {
		return redirectCacheMaxTTL
	}
	return left
}
