package domain

// SessionRecord is the server-side state behind one browser session. The JSON
// layout is the store wire format; RefreshToken always holds the encrypted
// envelope, never the plaintext credential.
type SessionRecord struct {
	UserID        string `json:"userId"`
	Email         string `json:"email,omitempty"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresAt     int64  `json:"expiresAt"`
	CreatedAt     int64  `json:"createdAt"`
	LastSeenAt    int64  `json:"lastSeenAt"`
	LastRefreshAt int64  `json:"lastRefreshAt,omitempty"`
}

// EffectiveLastRefresh falls back to the creation time for records written
// before lastRefreshAt existed.
func (r *SessionRecord) EffectiveLastRefresh() int64 {
	if r.LastRefreshAt != 0 {
		return r.LastRefreshAt
	}
	return r.CreatedAt
}
