package adapters

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/trace"
)

// DB wraps database/sql with a span per statement.
type DB struct {
	db     *sql.DB
	rec    *trace.Recorder
	logger *zap.Logger
}

// NewDB wraps an opened database handle. The caller keeps ownership of
// pool sizing; the adapter only instruments.
func NewDB(db *sql.DB, rec *trace.Recorder, logger *zap.Logger) *DB {
	return &DB{db: db, rec: rec, logger: logger}
}

// OpenDB opens a database handle for the named driver and wraps it.
func OpenDB(driver, dsn string, rec *trace.Recorder, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return NewDB(db, rec, logger), nil
}

// Unwrap returns the underlying handle for calls the adapter does not
// cover.
func (d *DB) Unwrap() *sql.DB {
	return d.db
}

// Ping verifies the connection under a span.
func (d *DB) Ping(ctx context.Context) error {
	parent, _ := trace.FromContext(ctx)
	span, sc := d.rec.Start("db.ping", parent)

	err := d.db.PingContext(trace.ContextWith(ctx, sc))
	if err != nil {
		d.rec.RecordError(span, err)
		endSpan(d.rec, span, trace.StatusError, nil, d.logger)
		return err
	}
	endSpan(d.rec, span, trace.StatusOK, nil, d.logger)
	return nil
}

// QueryRow runs a single-row query and scans it into dest. A span covers
// execution and scan; sql.ErrNoRows counts as zero rows, not a failure.
func (d *DB) QueryRow(ctx context.Context, query string, dest []any, args ...any) error {
	parent, _ := trace.FromContext(ctx)
	span, sc := d.rec.Start("db.query", parent)
	span.SetAttribute("db.statement", query)

	err := d.db.QueryRowContext(trace.ContextWith(ctx, sc), query, args...).Scan(dest...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		endSpan(d.rec, span, trace.StatusOK, map[string]any{"db.rows": 0}, d.logger)
		return err
	case err != nil:
		d.rec.RecordError(span, err)
		endSpan(d.rec, span, trace.StatusError, nil, d.logger)
		return err
	}

	endSpan(d.rec, span, trace.StatusOK, map[string]any{"db.rows": 1}, d.logger)
	return nil
}

// Query runs a multi-row query and hands the rows to fn. The span covers
// execution and consumption; fn's error fails the span and is returned
// unchanged.
func (d *DB) Query(ctx context.Context, query string, fn func(*sql.Rows) error, args ...any) error {
	parent, _ := trace.FromContext(ctx)
	span, sc := d.rec.Start("db.query", parent)
	span.SetAttribute("db.statement", query)

	rows, err := d.db.QueryContext(trace.ContextWith(ctx, sc), query, args...)
	if err != nil {
		d.rec.RecordError(span, err)
		endSpan(d.rec, span, trace.StatusError, nil, d.logger)
		return err
	}
	defer rows.Close()

	if err := fn(rows); err != nil {
		d.rec.RecordError(span, err)
		endSpan(d.rec, span, trace.StatusError, nil, d.logger)
		return err
	}
	if err := rows.Err(); err != nil {
		d.rec.RecordError(span, err)
		endSpan(d.rec, span, trace.StatusError, nil, d.logger)
		return err
	}

	endSpan(d.rec, span, trace.StatusOK, nil, d.logger)
	return nil
}

// Exec runs a statement and attaches the affected row count.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	parent, _ := trace.FromContext(ctx)
	span, sc := d.rec.Start("db.exec", parent)
	span.SetAttribute("db.statement", query)

	res, err := d.db.ExecContext(trace.ContextWith(ctx, sc), query, args...)
	if err != nil {
		d.rec.RecordError(span, err)
		endSpan(d.rec, span, trace.StatusError, nil, d.logger)
		return res, err
	}

	attrs := map[string]any{}
	if affected, err := res.RowsAffected(); err == nil {
		attrs["db.rows"] = affected
	}
	endSpan(d.rec, span, trace.StatusOK, attrs, d.logger)
	return res, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error {
	return d.db.Close()
}
