package adapters

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/trace"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock, *collectSink) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rec, sink := newTestRecorder()
	return NewDB(db, rec, zap.NewNop()), mock, sink
}

func TestDBQueryRow(t *testing.T) {
	db, mock, sink := newMockDB(t)
	mock.ExpectQuery("SELECT 1 as test").
		WillReturnRows(sqlmock.NewRows([]string{"test"}).AddRow(1))

	var result int
	err := db.QueryRow(context.Background(), "SELECT 1 as test", []any{&result})
	require.NoError(t, err)
	assert.Equal(t, 1, result)

	spans := sink.all()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "db.query", span.Name)
	assert.Equal(t, trace.StatusOK, span.Status)
	assert.Equal(t, "SELECT 1 as test", span.Attributes["db.statement"])
	assert.Equal(t, 1, span.Attributes["db.rows"])
}

func TestDBQueryRowNoRows(t *testing.T) {
	db, mock, sink := newMockDB(t)
	mock.ExpectQuery("SELECT name").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	var name string
	err := db.QueryRow(context.Background(), "SELECT name FROM users WHERE id = $1", []any{&name}, 7)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// An empty result is a successful lookup, not a failed span.
	spans := sink.all()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.StatusOK, spans[0].Status)
	assert.Equal(t, 0, spans[0].Attributes["db.rows"])
}

func TestDBQueryErrorPropagatesUnchanged(t *testing.T) {
	db, mock, sink := newMockDB(t)
	dbErr := errors.New("relation does not exist")
	mock.ExpectQuery("SELECT").WillReturnError(dbErr)

	err := db.Query(context.Background(), "SELECT * FROM missing", func(*sql.Rows) error {
		t.Fatal("fn must not run on query error")
		return nil
	})
	assert.ErrorIs(t, err, dbErr)

	spans := sink.all()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.StatusError, spans[0].Status)
	assert.Equal(t, "relation does not exist", spans[0].Attributes["error.message"])
}

func TestDBQueryConsumesRows(t *testing.T) {
	db, mock, sink := newMockDB(t)
	mock.ExpectQuery("SELECT id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))

	var ids []int
	err := db.Query(context.Background(), "SELECT id FROM items", func(rows *sql.Rows) error {
		for rows.Next() {
			var v int
			if err := rows.Scan(&v); err != nil {
				return err
			}
			ids = append(ids, v)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids)

	spans := sink.all()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.StatusOK, spans[0].Status)
}

func TestDBExecRowsAffected(t *testing.T) {
	db, mock, sink := newMockDB(t)
	mock.ExpectExec("UPDATE items").
		WillReturnResult(sqlmock.NewResult(0, 4))

	_, err := db.Exec(context.Background(), "UPDATE items SET done = true")
	require.NoError(t, err)

	spans := sink.all()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.exec", spans[0].Name)
	assert.Equal(t, int64(4), spans[0].Attributes["db.rows"])
}

func TestDBSpansLinkToCaller(t *testing.T) {
	db, mock, sink := newMockDB(t)
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(1))

	rec := db.rec
	parent, parentCtx := rec.Start("handler", trace.SpanContext{})
	ctx := trace.ContextWith(context.Background(), parentCtx)

	var v int
	require.NoError(t, db.QueryRow(ctx, "SELECT 1", []any{&v}))

	spans := sink.all()
	require.Len(t, spans, 1)
	assert.Equal(t, parent.TraceID, spans[0].TraceID)
	assert.Equal(t, parent.SpanID, spans[0].ParentSpanID)
}
