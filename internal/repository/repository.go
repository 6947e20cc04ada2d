package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert hits a uniqueness
	// constraint. For coordinate claims this signals contention, not
	// failure; the slot allocator advances to the next candidate.
	ErrDuplicate = errors.New("duplicate key")

	// ErrQuotaBound is returned when a guarded quota adjustment would
	// cross the plan limit or drop below zero.
	ErrQuotaBound = errors.New("quota adjustment out of bounds")
)

// uniqueViolation is the Postgres error code for unique_violation.
const uniqueViolation = "23505"

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
