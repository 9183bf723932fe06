package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "example.com/userapi/internal/storage/sql"

// executor is satisfied by both *sqlx.DB and *sqlx.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type metrics struct {
	queries  metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// Session runs queries against the database or, within Transaction,
// against a single transaction.
type Session struct {
	db       *sqlx.DB
	executor executor
	dialect  Dialect
	log      zerolog.Logger
	tracer   trace.Tracer
	metrics  *metrics
	slow     time.Duration
}

type Option func(*Session)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithSlowQueryThreshold sets the duration above which queries are logged as warnings.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(s *Session) {
		s.slow = d
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Session) {
		s.tracer = tracer
	}
}

func WithMeter(meter metric.Meter) Option {
	return func(s *Session) {
		s.metrics = newMetrics(meter)
	}
}

func NewSession(db *sql.DB, driver string, dialect Dialect, opts ...Option) *Session {
	xdb := sqlx.NewDb(db, driver)
	s := &Session{
		db:       xdb,
		executor: xdb,
		dialect:  dialect,
		log:      zerolog.Nop(),
		tracer:   otel.Tracer(instrumentationName),
		metrics:  newMetrics(otel.Meter(instrumentationName)),
		slow:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newMetrics(meter metric.Meter) *metrics {
	queries, _ := meter.Int64Counter("userapi.db.query.count",
		metric.WithDescription("Number of SQL queries executed"),
		metric.WithUnit("{query}"),
	)
	duration, _ := meter.Float64Histogram("userapi.db.query.duration",
		metric.WithDescription("SQL query duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500),
	)
	errs, _ := meter.Int64Counter("userapi.db.query.errors",
		metric.WithDescription("Number of failed SQL queries"),
		metric.WithUnit("{error}"),
	)
	return &metrics{queries: queries, duration: duration, errors: errs}
}

func (s *Session) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(s.dialect.placeholder)
}

func (s *Session) Select(ctx context.Context, op string, dest any, q sq.Sqlizer) error {
	return s.run(ctx, op, q, func(ctx context.Context, query string, args []any) error {
		return s.executor.SelectContext(ctx, dest, query, args...)
	})
}

func (s *Session) Get(ctx context.Context, op string, dest any, q sq.Sqlizer) error {
	return s.run(ctx, op, q, func(ctx context.Context, query string, args []any) error {
		return s.executor.GetContext(ctx, dest, query, args...)
	})
}

func (s *Session) Exec(ctx context.Context, op string, q sq.Sqlizer) (sql.Result, error) {
	var res sql.Result
	err := s.run(ctx, op, q, func(ctx context.Context, query string, args []any) error {
		var err error
		res, err = s.executor.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// ExecRaw runs a statement that is not built with squirrel, such as DDL.
func (s *Session) ExecRaw(ctx context.Context, op, query string) error {
	return s.run(ctx, op, sq.Expr(query), func(ctx context.Context, query string, args []any) error {
		_, err := s.executor.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *Session) run(ctx context.Context, op string, q sq.Sqlizer, fn func(context.Context, string, []any) error) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "db."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", s.dialect.Name()),
		attribute.String("db.operation", op),
	)

	start := time.Now()
	err = fn(ctx, query, args)
	elapsed := time.Since(start)

	attrs := metric.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.system", s.dialect.Name()),
	)
	s.metrics.queries.Add(ctx, 1, attrs)
	s.metrics.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.metrics.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Debug().Err(err).Str("op", op).Dur("duration", elapsed).Msg("query failed")
		return err
	}
	if elapsed > s.slow {
		s.log.Warn().Str("op", op).Str("query", query).Dur("duration", elapsed).Msg("slow query")
	}
	return err
}

func (s *Session) inTx() bool {
	_, ok := s.executor.(*sqlx.Tx)
	return ok
}

// Transaction runs fn inside a transaction, committing when fn returns nil
// and rolling back on error or panic. A session already inside a
// transaction runs fn directly.
func (s *Session) Transaction(ctx context.Context, fn func(tx *Session) error) (err error) {
	if s.inTx() {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	txSession := *s
	txSession.executor = tx

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&txSession); err != nil {
		return err
	}
	return tx.Commit()
}
