package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/AdriBarda/url-shortener/internal/domain"
	"github.com/AdriBarda/url-shortener/internal/repository"
	"github.com/AdriBarda/url-shortener/internal/security"
)

const (
	shortCodeLength = 6
	maxCodeAttempts = 10
)

var aliasPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{5,32}$`)

type CreateURLInput struct {
	OriginalURL    string `json:"originalUrl"`
	Alias          string `json:"alias,omitempty"`
	ExpirationTime string `json:"expirationTime,omitempty"`
}

type CreateURLResult struct {
	ShortURL    string `json:"shortUrl"`
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
}

type URLService struct {
	repo         URLRepository
	baseShortURL string

	now func() time.Time
}

func NewURLService(repo URLRepository, baseShortURL string) *URLService {
	return &URLService{repo: repo, baseShortURL: baseShortURL, now: time.Now}
}

// Create shortens a URL, honoring an optional custom alias and expiration.
// Random codes retry on collision; a taken alias is a conflict for the caller.
func (s *URLService) Create(ctx context.Context, userID string, input CreateURLInput) (*CreateURLResult, error) {
	cleanURL, err := NormalizeURL(input.OriginalURL)
	if err != nil {
		return nil, err
	}

	var expiration *time.Time
	if input.ExpirationTime != "" {
		t, err := time.Parse(time.RFC3339, input.ExpirationTime)
		if err != nil {
			return nil, fmt.Errorf("%w: expirationTime must be a valid RFC 3339 datetime", ErrValidation)
		}
		if !t.After(s.now()) {
			return nil, fmt.Errorf("%w: expirationTime must be in the future", ErrValidation)
		}
		expiration = &t
	}

	if input.Alias != "" {
		if !aliasPattern.MatchString(input.Alias) {
			return nil, fmt.Errorf("%w: alias is invalid", ErrValidation)
		}
		created, err := s.repo.Create(ctx, &domain.URL{
			ShortCode:      input.Alias,
			OriginalURL:    cleanURL,
			ExpirationTime: expiration,
			UserID:         userID,
		})
		if errors.Is(err, repository.ErrCodeTaken) {
			return nil, fmt.Errorf("%w: alias already exists", ErrConflict)
		}
		if err != nil {
			return nil, err
		}
		return s.result(created), nil
	}

	for i := 0; i < maxCodeAttempts; i++ {
		code, err := security.NewShortCode(shortCodeLength)
		if err != nil {
			return nil, err
		}
		created, err := s.repo.Create(ctx, &domain.URL{
			ShortCode:      code,
			OriginalURL:    cleanURL,
			ExpirationTime: expiration,
			UserID:         userID,
		})
		if errors.Is(err, repository.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.result(created), nil
	}
	return nil, fmt.Errorf("could not generate a unique short code after %d attempts", maxCodeAttempts)
}

func (s *URLService) ListByUser(ctx context.Context, userID string) ([]domain.URL, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *URLService) result(u *domain.URL) *CreateURLResult {
	return &CreateURLResult{
		ShortURL:    s.baseShortURL + "/" + u.ShortCode,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
	}
}

// NormalizeURL trims, defaults the scheme to https, and rejects anything that
// does not look like a dereferenceable web host.
func NormalizeURL(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("%w: originalUrl is required", ErrValidation)
	}
	if !strings.HasPrefix(strings.ToLower(trimmed), "http://") && !strings.HasPrefix(strings.ToLower(trimmed), "https://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: originalUrl is not a valid URL", ErrValidation)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: only http and https URLs are supported", ErrValidation)
	}
	host := u.Hostname()
	if !strings.Contains(host, ".") {
		return "", fmt.Errorf("%w: originalUrl host looks invalid", ErrValidation)
	}
	tld := host[strings.LastIndex(host, ".")+1:]
	if !tldPattern.MatchString(tld) {
		return "", fmt.Errorf("%w: originalUrl host looks invalid", ErrValidation)
	}
	return u.String(), nil
}

var tldPattern = regexp.MustCompile(`^[a-zA-Z]{2,63}$`)
