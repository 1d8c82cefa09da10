package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AdriBarda/url-shortener/internal/domain"
)

// ErrStoreUnavailable marks a lost connection to the session store. It maps to
// 503 at the HTTP layer so "auth backend down" never reads as "not logged in".
var ErrStoreUnavailable = errors.New("repository: session store unavailable")

const (
	sessionKeyPrefix = "sess:"
	refreshLockPrefix = "sess:refresh:"
)

// SessionStore keeps session records in Redis, keyed by the opaque session
// identifier. Records are stored as JSON; the store does not interpret them.
type SessionStore struct {
	client redis.UniversalClient
}

func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(sid string) string     { return sessionKeyPrefix + sid }
func refreshLockKey(sid string) string { return refreshLockPrefix + sid }

func (s *SessionStore) Put(ctx context.Context, sid string, record *domain.SessionRecord, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sid), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns nil without error when no record exists. A payload that no
// longer parses is deleted and reported as absent, so partial writes or format
// drift heal themselves instead of wedging the session.
func (s *SessionStore) Get(ctx context.Context, sid string) (*domain.SessionRecord, error) {
	raw, err := s.client.Get(ctx, sessionKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var record domain.SessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		_ = s.client.Del(ctx, sessionKey(sid)).Err()
		return nil, nil
	}
	return &record, nil
}

func (s *SessionStore) Delete(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// AcquireRefreshLock is an atomic set-if-absent with expiry. It is advisory:
// the TTL is the safety valve for a coordinator that dies mid-refresh.
func (s *SessionStore) AcquireRefreshLock(ctx context.Context, sid string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, refreshLockKey(sid), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

func (s *SessionStore) ReleaseRefreshLock(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, refreshLockKey(sid)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
