package repository

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

func uniqueViolationForTest() error {
	return fmt.Errorf("insert url: %w", &pgconn.PgError{Code: "23505", Message: "duplicate key"})
}
