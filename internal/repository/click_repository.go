package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AdriBarda/url-shortener/internal/domain"
)

type ClickRepository struct {
	pool *pgxpool.Pool
}

func NewClickRepository(pool *pgxpool.Pool) *ClickRepository {
	return &ClickRepository{pool: pool}
}

func (r *ClickRepository) Record(ctx context.Context, event *domain.ClickEvent) error {
	const q = `
INSERT INTO url_clicks (short_code, referrer, user_agent)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''));
`
	if _, err := r.pool.Exec(ctx, q, event.ShortCode, event.Referrer, event.UserAgent); err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

// Stats aggregates total clicks, the latest click, and a zero-filled daily
// series for the trailing seven UTC days.
func (r *ClickRepository) Stats(ctx context.Context, shortCode string, now time.Time) (*domain.URLStats, error) {
	start := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -6)

	const q = `
SELECT
	COUNT(*),
	MAX(created_at),
	COALESCE(
		(SELECT json_object_agg(day, cnt)
		 FROM (
			SELECT date_trunc('day', created_at)::date AS day, COUNT(*) AS cnt
			FROM url_clicks
			WHERE short_code = $1 AND created_at >= $2
			GROUP BY 1
		 ) series),
		'{}'::json)
FROM url_clicks
WHERE short_code = $1;
`
	var (
		total  int64
		last   *time.Time
		series map[string]int
	)
	if err := r.pool.QueryRow(ctx, q, shortCode, start).Scan(&total, &last, &series); err != nil {
		return nil, fmt.Errorf("click stats: %w", err)
	}

	points := make([]domain.ClickSeriesPoint, 0, 7)
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		points = append(points, domain.ClickSeriesPoint{Date: day, Count: series[day]})
	}

	return &domain.URLStats{
		TotalClicks:    total,
		LastClickedAt:  last,
		ClicksLast7Day: points,
	}, nil
}
