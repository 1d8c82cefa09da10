package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RefreshCoordinator exchanges a session's stored refresh credential for a new
// one, off the request path. The store lock makes the operation single-flight
// per session; the lock is advisory, not linearizable. A lost lock merely
// risks a wasted duplicate exchange, and the last successful writer wins.
type RefreshCoordinator struct {
	store    SessionStore
	cipher   CredentialCipher
	provider IdentityProvider
	policy   SessionPolicy
	logger   *slog.Logger

	now     func() time.Time
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRefreshCoordinator(store SessionStore, cipher CredentialCipher, provider IdentityProvider, policy SessionPolicy, logger *slog.Logger) *RefreshCoordinator {
	return &RefreshCoordinator{
		store:    store,
		cipher:   cipher,
		provider: provider,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
		timeout:  30 * time.Second,
	}
}

// Schedule tries to claim the per-session refresh lock and, on success, runs
// the exchange in a detached goroutine. It returns whether a refresh was
// launched; callers never wait for the outcome, subsequent requests observe
// it by re-reading the store. Lock contention and store hiccups both come back
// as "not launched": the next eligible request retries, gated by the cooldown.
func (c *RefreshCoordinator) Schedule(ctx context.Context, sid string) bool {
	ok, err := c.store.AcquireRefreshLock(ctx, sid, c.policy.RefreshLockTTL)
	if err != nil {
		c.logger.Warn("refresh lock unavailable", "error", err)
		return false
	}
	if !ok {
		return false
	}

	c.logger.Info("session refresh scheduled")
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("session refresh panicked", "panic", r)
			}
		}()
		// Detached from the request: the launching request may finish or
		// disconnect long before the exchange completes.
		runCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		defer func() {
			if err := c.store.ReleaseRefreshLock(runCtx, sid); err != nil {
				c.logger.Warn("refresh lock release failed", "error", err)
			}
		}()
		c.refresh(runCtx, sid)
	}()
	return true
}

func (c *RefreshCoordinator) refresh(ctx context.Context, sid string) {
	record, err := c.store.Get(ctx, sid)
	if err != nil || record == nil {
		return
	}

	refreshToken, err := c.cipher.Decrypt(record.RefreshToken)
	if err != nil {
		// The stored credential is unusable; the session cannot ever be
		// refreshed again, so drop it now instead of retrying forever.
		c.logger.Warn("stored credential undecryptable, deleting session")
		_ = c.store.Delete(ctx, sid)
		return
	}

	grant, err := c.provider.RefreshGrant(ctx, refreshToken)
	if err != nil {
		// Conservative: a failed or incomplete exchange is treated as a
		// revoked credential.
		c.logger.Info("refresh exchange failed, deleting session", "error", err)
		_ = c.store.Delete(ctx, sid)
		return
	}

	sealed, err := c.cipher.Encrypt(grant.RefreshToken)
	if err != nil {
		c.logger.Error("re-encrypt of refreshed credential failed, deleting session")
		_ = c.store.Delete(ctx, sid)
		return
	}

	now := c.now().Unix()
	updated := *record
	updated.UserID = grant.UserID
	updated.Email = grant.Email
	updated.AvatarURL = grant.AvatarURL
	updated.RefreshToken = sealed
	updated.ExpiresAt = grant.ExpiresAt
	updated.LastSeenAt = now
	updated.LastRefreshAt = now
	// CreatedAt is carried over untouched: the hard cap is absolute, the
	// session never outlives it no matter how often it refreshes.
	updated.CreatedAt = record.CreatedAt

	if err := c.store.Put(ctx, sid, &updated, c.policy.StoreTTL); err != nil {
		c.logger.Warn("refreshed session write failed", "error", err)
		return
	}
	c.logger.Info("session refresh completed", "expiresAt", grant.ExpiresAt)
}

// Wait blocks until all in-flight refreshes finish. Used on shutdown and by
// tests.
func (c *RefreshCoordinator) Wait() {
	c.wg.Wait()
}
