// Package postgres implements the entity store adapter on PostgreSQL.
// Each entity kind maps to one table holding the document as a jsonb
// column; filters become jsonb containment predicates, and partial updates
// use the || merge operator so UpdateOne stays a single atomic statement.
//
// All calls pass through a circuit breaker that protects the service from
// a failing database; the breaker state doubles as the store's health
// check. Query timeouts are the pool's responsibility and are configured
// at connection time.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/metric"

	"github.com/stackmesh/entitybus/internal/domain"
	"github.com/stackmesh/entitybus/internal/platform/config"
	"github.com/stackmesh/entitybus/internal/platform/telemetry"
	"github.com/stackmesh/entitybus/internal/ports"
)

var dialect = goqu.Dialect("postgres")

// Compile-time check that Collection implements ports.Collection.
var _ ports.Collection[struct{}] = (*Collection[struct{}])(nil)

// Collection provides document CRUD for one entity kind, backed by a
// single jsonb table. The zero value is not usable; construct with New.
type Collection[T any] struct {
	pool    *pgxpool.Pool
	table   string
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New creates a Collection for the given table. The breaker settings come
// from config; if metrics is nil, metric recording is skipped.
func New[T any](pool *pgxpool.Pool, table string, cfg config.BreakerConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Collection[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        table,
		MaxRequests: toUint32(cfg.HalfOpenLimit),
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= cfg.MaxFailures
		},
		// A lookup miss is a healthy answer from the store, not a
		// failure; only real errors may trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, pgx.ErrNoRows)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Collection[T]{
		pool:    pool,
		table:   table,
		breaker: cb,
		metrics: metrics,
		logger:  logger,
	}
}

// Find returns all documents matching the filter, oldest first. A filter
// matching nothing yields an empty slice.
func (c *Collection[T]) Find(ctx context.Context, filter domain.Filter) ([]T, error) {
	query, args, err := c.selectQuery(filter, 0)
	if err != nil {
		return nil, domain.Unexpectedf(err, "building find query for %s", c.table)
	}

	docs := []T{}
	execErr := c.execute(ctx, "find", func() error {
		rows, qErr := c.pool.Query(ctx, query, args...)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		for rows.Next() {
			var raw []byte
			if sErr := rows.Scan(&raw); sErr != nil {
				return sErr
			}
			var doc T
			if uErr := json.Unmarshal(raw, &doc); uErr != nil {
				return uErr
			}
			docs = append(docs, doc)
		}
		return rows.Err()
	})
	if execErr != nil {
		return nil, c.translate("find", execErr)
	}

	return docs, nil
}

// FindOne returns the first document matching the filter, or
// domain.ErrNotFound when nothing matches.
func (c *Collection[T]) FindOne(ctx context.Context, filter domain.Filter) (*T, error) {
	query, args, err := c.selectQuery(filter, 1)
	if err != nil {
		return nil, domain.Unexpectedf(err, "building find query for %s", c.table)
	}

	var doc T
	execErr := c.execute(ctx, "find_one", func() error {
		var raw []byte
		if sErr := c.pool.QueryRow(ctx, query, args...).Scan(&raw); sErr != nil {
			return sErr
		}
		return json.Unmarshal(raw, &doc)
	})
	if execErr != nil {
		if errors.Is(execErr, pgx.ErrNoRows) {
			return nil, c.notFound()
		}
		return nil, c.translate("find_one", execErr)
	}

	return &doc, nil
}

// Create persists a new document. The identifier and timestamps are
// assigned here, mirrored both into the jsonb document and into dedicated
// columns. Uniqueness constraints live on the table as expression indexes;
// their violation surfaces as domain.ErrConflict.
func (c *Collection[T]) Create(ctx context.Context, doc *T) (*T, error) {
	fields, err := toFields(doc)
	if err != nil {
		return nil, domain.Unexpectedf(err, "encoding %s document", c.table)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	fields["id"] = id
	fields["created_at"] = now
	fields["updated_at"] = now

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, domain.Unexpectedf(err, "encoding %s document", c.table)
	}

	query, args, err := dialect.Insert(c.table).Rows(goqu.Record{
		"id":         id,
		"doc":        goqu.L("?::jsonb", string(raw)),
		"created_at": now,
		"updated_at": now,
	}).Prepared(true).ToSQL()
	if err != nil {
		return nil, domain.Unexpectedf(err, "building insert query for %s", c.table)
	}

	execErr := c.execute(ctx, "create", func() error {
		_, eErr := c.pool.Exec(ctx, query, args...)
		return eErr
	})
	if execErr != nil {
		return nil, c.translate("create", execErr)
	}

	var created T
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, domain.Unexpectedf(err, "decoding %s document", c.table)
	}
	return &created, nil
}

// UpdateOne merges the patch into the document matching the filter and
// returns the post-update document in one atomic statement. Callers filter
// on identity fields, so at most one document matches.
func (c *Collection[T]) UpdateOne(ctx context.Context, filter domain.Filter, patch domain.Patch) (*T, error) {
	now := time.Now().UTC()

	merged := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		merged[k] = v
	}
	merged["updated_at"] = now

	patchJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, domain.Unexpectedf(err, "encoding %s patch", c.table)
	}

	ds := dialect.Update(c.table).Set(goqu.Record{
		"doc":        goqu.L("doc || ?::jsonb", string(patchJSON)),
		"updated_at": now,
	}).Returning("doc").Prepared(true)
	if where, wErr := filterExpression(filter); wErr != nil {
		return nil, domain.Unexpectedf(wErr, "building update query for %s", c.table)
	} else if where != nil {
		ds = ds.Where(where)
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, domain.Unexpectedf(err, "building update query for %s", c.table)
	}

	var doc T
	execErr := c.execute(ctx, "update_one", func() error {
		var raw []byte
		if sErr := c.pool.QueryRow(ctx, query, args...).Scan(&raw); sErr != nil {
			return sErr
		}
		return json.Unmarshal(raw, &doc)
	})
	if execErr != nil {
		if errors.Is(execErr, pgx.ErrNoRows) {
			return nil, c.notFound()
		}
		return nil, c.translate("update_one", execErr)
	}

	return &doc, nil
}

// DeleteOne removes the document matching the filter. Deleting an absent
// document reports domain.ErrNotFound rather than succeeding silently.
func (c *Collection[T]) DeleteOne(ctx context.Context, filter domain.Filter) error {
	ds := dialect.Delete(c.table).Prepared(true)
	if where, wErr := filterExpression(filter); wErr != nil {
		return domain.Unexpectedf(wErr, "building delete query for %s", c.table)
	} else if where != nil {
		ds = ds.Where(where)
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return domain.Unexpectedf(err, "building delete query for %s", c.table)
	}

	var affected int64
	execErr := c.execute(ctx, "delete_one", func() error {
		tag, eErr := c.pool.Exec(ctx, query, args...)
		if eErr != nil {
			return eErr
		}
		affected = tag.RowsAffected()
		return nil
	})
	if execErr != nil {
		return c.translate("delete_one", execErr)
	}
	if affected == 0 {
		return c.notFound()
	}

	return nil
}

// Name returns the store identifier used in health reports.
func (c *Collection[T]) Name() string {
	return c.table + "-store"
}

// HealthCheck reports the store's availability based on the circuit
// breaker state. No query is issued.
func (c *Collection[T]) HealthCheck(_ context.Context) error {
	switch state := c.breaker.State(); state {
	case gobreaker.StateClosed:
		return nil
	case gobreaker.StateHalfOpen:
		return fmt.Errorf("%s: degraded (circuit breaker half-open)", c.Name())
	case gobreaker.StateOpen:
		return fmt.Errorf("%s: failing (circuit breaker open)", c.Name())
	default:
		return fmt.Errorf("%s: unknown circuit breaker state %v", c.Name(), state)
	}
}

// execute runs op through the circuit breaker and records its duration.
func (c *Collection[T]) execute(ctx context.Context, op string, fn func() error) error {
	start := time.Now()

	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})

	if c.metrics != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		c.metrics.StoreOpDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			telemetry.AttrCollection.String(c.table),
			telemetry.AttrOperation.String(op),
			telemetry.AttrResult.String(result),
		))
	}

	return err
}

// selectQuery builds the SELECT for the filter. A limit of 0 means no
// limit.
func (c *Collection[T]) selectQuery(filter domain.Filter, limit uint) (string, []any, error) {
	ds := dialect.From(c.table).Select(goqu.C("doc")).Order(goqu.C("created_at").Asc())

	where, err := filterExpression(filter)
	if err != nil {
		return "", nil, err
	}
	if where != nil {
		ds = ds.Where(where)
	}
	if limit > 0 {
		ds = ds.Limit(limit)
	}

	return ds.Prepared(true).ToSQL()
}

func (c *Collection[T]) notFound() error {
	return fmt.Errorf("%s document: %w", c.table, domain.ErrNotFound)
}

// toFields round-trips the document through JSON to get its field map, so
// identifier and timestamps can be injected without reflection on T.
func toFields[T any](doc *T) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// toUint32 safely converts a non-negative int to uint32. Negative values
// are treated as zero.
func toUint32(v int) uint32 {
	if v <= 0 {
		return 0
	}
	return uint32(v)
}
