package service

import (
	"time"

	"github.com/AdriBarda/url-shortener/internal/domain"
)

// SessionPolicy holds the five timers that govern a session's life and the
// pure decisions derived from them. All methods take the caller's clock so the
// guard and the tests stay deterministic.
type SessionPolicy struct {
	StoreTTL        time.Duration
	HardCapAge      time.Duration
	RefreshWindow   time.Duration
	RefreshGrace    time.Duration
	RefreshCooldown time.Duration
	RefreshLockTTL  time.Duration
}

// IsHardCapped reports whether the session passed the absolute age ceiling.
// The cap is measured from the original createdAt and never slides, no matter
// how many refreshes the session has seen.
func (p SessionPolicy) IsHardCapped(record *domain.SessionRecord, now time.Time) bool {
	return now.Unix()-record.CreatedAt > int64(p.HardCapAge.Seconds())
}

// SecondsToExpiry may be negative once the upstream token has lapsed.
func (p SessionPolicy) SecondsToExpiry(record *domain.SessionRecord, now time.Time) int64 {
	return record.ExpiresAt - now.Unix()
}

// RefreshDue is the sliding early-refresh trigger: inside the window before
// expiry, rate-limited by the cooldown so a request stampede near expiry
// schedules at most one attempt per cooldown interval.
func (p SessionPolicy) RefreshDue(record *domain.SessionRecord, now time.Time) bool {
	if p.SecondsToExpiry(record, now) > int64(p.RefreshWindow.Seconds()) {
		return false
	}
	return now.Unix()-record.EffectiveLastRefresh() >= int64(p.RefreshCooldown.Seconds())
}

// WithinGrace keeps honoring a nominally expired session for the grace period,
// covering the latency of an in-flight background refresh.
func (p SessionPolicy) WithinGrace(record *domain.SessionRecord, now time.Time) bool {
	return p.SecondsToExpiry(record, now) >= -int64(p.RefreshGrace.Seconds())
}
