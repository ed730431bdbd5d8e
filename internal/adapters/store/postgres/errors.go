package postgres

import (
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker/v2"

	"github.com/stackmesh/entitybus/internal/domain"
)

// pgUniqueViolation is the PostgreSQL error code for a violated unique
// constraint.
const pgUniqueViolation = "23505"

// filterExpression renders a Filter as a jsonb containment predicate.
// Returns nil for an empty filter (match everything).
func filterExpression(filter domain.Filter) (goqu.Expression, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}
	return goqu.L("doc @> ?::jsonb", string(raw)), nil
}

// translate maps backend failures into the domain taxonomy. Uniqueness
// violations become Conflict; an open breaker and every other transport or
// storage failure become an UnexpectedError carrying the cause for logs.
func (c *Collection[T]) translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s unique constraint violated: %w", c.table, domain.ErrConflict)
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Unexpectedf(err, "%s store unavailable", c.table)
	}

	return domain.Unexpectedf(err, "%s %s failed", c.table, op)
}
