package domain

import "time"

type URL struct {
	ShortCode      string     `json:"shortCode"`
	OriginalURL    string     `json:"originalUrl"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpirationTime *time.Time `json:"expirationTime,omitempty"`
	UserID         string     `json:"userId,omitempty"`
}

// Expired reports whether the link's optional expiration has passed.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpirationTime != nil && !now.Before(*u.ExpirationTime)
}

type ClickEvent struct {
	ShortCode string
	Referrer  string
	UserAgent string
}

type ClickSeriesPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type URLStats struct {
	TotalClicks    int64              `json:"totalClicks"`
	LastClickedAt  *time.Time         `json:"lastClickedAt,omitempty"`
	ClicksLast7Day []ClickSeriesPoint `json:"clicksLast7Days"`
}
