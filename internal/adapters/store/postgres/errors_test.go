package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker/v2"

	"github.com/stackmesh/entitybus/internal/domain"
	"github.com/stackmesh/entitybus/internal/domain/user"
	"github.com/stackmesh/entitybus/internal/platform/config"
)

func testCollection(t *testing.T) *Collection[user.User] {
	t.Helper()
	return New[user.User](nil, "users", config.BreakerConfig{MaxFailures: 3}, nil, nil)
}

func TestFilterExpression_Empty(t *testing.T) {
	t.Parallel()

	expr, err := filterExpression(nil)
	if err != nil {
		t.Fatalf("filterExpression(nil) error: %v", err)
	}
	if expr != nil {
		t.Errorf("expression = %v, want nil for empty filter", expr)
	}
}

func TestFilterExpression_RendersContainment(t *testing.T) {
	t.Parallel()

	expr, err := filterExpression(domain.Filter{"email": "ada@example.com"})
	if err != nil {
		t.Fatalf("filterExpression error: %v", err)
	}
	if expr == nil {
		t.Fatal("expression = nil, want containment predicate")
	}

	query, args, err := dialect.From("users").Where(expr).Prepared(true).ToSQL()
	if err != nil {
		t.Fatalf("building query: %v", err)
	}
	if !strings.Contains(query, "doc @>") {
		t.Errorf("query = %q, want jsonb containment operator", query)
	}
	if len(args) != 1 {
		t.Fatalf("args = %v, want one bound jsonb document", args)
	}
	if arg, _ := args[0].(string); !strings.Contains(arg, `"email"`) {
		t.Errorf("bound arg = %v, want the filter document", args[0])
	}
}

func TestTranslate_UniqueViolation(t *testing.T) {
	t.Parallel()

	c := testCollection(t)
	err := c.translate("create", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("translate() = %v, want ErrConflict", err)
	}
}

func TestTranslate_BreakerOpen(t *testing.T) {
	t.Parallel()

	c := testCollection(t)
	err := c.translate("find", fmt.Errorf("guarded call: %w", gobreaker.ErrOpenState))

	if !errors.Is(err, domain.ErrUnexpected) {
		t.Fatalf("translate() = %v, want ErrUnexpected", err)
	}
	if !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("Error() = %q, want unavailable message", err.Error())
	}
}

func TestTranslate_GenericFailure(t *testing.T) {
	t.Parallel()

	c := testCollection(t)
	cause := errors.New("connection reset by peer")
	err := c.translate("update", cause)

	if !errors.Is(err, domain.ErrUnexpected) {
		t.Fatalf("translate() = %v, want ErrUnexpected", err)
	}
	// The cause stays in the chain for logs but out of the message.
	if !errors.Is(err, cause) {
		t.Error("cause missing from the error chain")
	}
	if strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Error() = %q leaks the cause", err.Error())
	}
}

func TestCollectionName(t *testing.T) {
	t.Parallel()

	c := testCollection(t)
	if got := c.Name(); got != "users-store" {
		t.Errorf("Name() = %q, want %q", got, "users-store")
	}
}

func TestHealthCheck_ClosedBreakerIsHealthy(t *testing.T) {
	t.Parallel()

	c := testCollection(t)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v, want nil for a fresh breaker", err)
	}
}

func TestExecute_LookupMissesDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	c := testCollection(t)
	for range 10 {
		err := c.execute(context.Background(), "find_one", func() error {
			return pgx.ErrNoRows
		})
		if !errors.Is(err, pgx.ErrNoRows) {
			t.Fatalf("execute() = %v, want pgx.ErrNoRows", err)
		}
	}

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() after misses = %v, want nil", err)
	}
	if err := c.execute(context.Background(), "find_one", func() error { return nil }); err != nil {
		t.Errorf("execute() after misses = %v, want nil", err)
	}
}

func TestExecute_ConsecutiveFailuresOpenBreaker(t *testing.T) {
	t.Parallel()

	c := testCollection(t)
	cause := errors.New("connection refused")
	for range 3 {
		if err := c.execute(context.Background(), "find", func() error { return cause }); !errors.Is(err, cause) {
			t.Fatalf("execute() = %v, want %v", err, cause)
		}
	}

	err := c.execute(context.Background(), "find", func() error { return nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("execute() with open breaker = %v, want gobreaker.ErrOpenState", err)
	}
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() with open breaker = nil, want error")
	}
}
