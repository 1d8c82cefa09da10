package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AdriBarda/url-shortener/internal/domain"
)

// ErrCodeTaken is returned when a short code or alias collides with an
// existing row.
var ErrCodeTaken = errors.New("repository: short code already exists")

type URLRepository struct {
	pool *pgxpool.Pool
}

func NewURLRepository(pool *pgxpool.Pool) *URLRepository {
	return &URLRepository{pool: pool}
}

func (r *URLRepository) Create(ctx context.Context, url *domain.URL) (*domain.URL, error) {
	const q = `
INSERT INTO urls (short_code, original_url, expiration_time, user_id)
VALUES ($1, $2, $3, NULLIF($4, ''))
RETURNING short_code, original_url, created_at, expiration_time, COALESCE(user_id, '');
`
	var out domain.URL
	err := r.pool.QueryRow(ctx, q, url.ShortCode, url.OriginalURL, url.ExpirationTime, url.UserID).
		Scan(&out.ShortCode, &out.OriginalURL, &out.CreatedAt, &out.ExpirationTime, &out.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("insert url: %w", err)
	}
	return &out, nil
}

// FindByShortCode returns nil without error when the code is unknown.
func (r *URLRepository) FindByShortCode(ctx context.Context, shortCode string) (*domain.URL, error) {
	const q = `
SELECT short_code, original_url, created_at, expiration_time, COALESCE(user_id, '')
FROM urls
WHERE short_code = $1;
`
	var out domain.URL
	err := r.pool.QueryRow(ctx, q, shortCode).
		Scan(&out.ShortCode, &out.OriginalURL, &out.CreatedAt, &out.ExpirationTime, &out.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select url: %w", err)
	}
	return &out, nil
}

func (r *URLRepository) ListByUser(ctx context.Context, userID string) ([]domain.URL, error) {
	const q = `
SELECT short_code, original_url, created_at, expiration_time, COALESCE(user_id, '')
FROM urls
WHERE user_id = $1
ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}
	defer rows.Close()

	var out []domain.URL
	for rows.Next() {
		var u domain.URL
		if err := rows.Scan(&u.ShortCode, &u.OriginalURL, &u.CreatedAt, &u.ExpirationTime, &u.UserID); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
