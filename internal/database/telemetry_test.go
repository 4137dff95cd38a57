package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var testCutoff = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	previous := otel.GetTracerProvider()
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestTracedPool_ExecAndQuery(t *testing.T) {
	sr := withSpanRecorder(t)
	mockPool, inner := newMockPool(t)
	pool := NewTracedPool(inner)

	mockPool.ExpectExec("DELETE FROM signal_reports").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mockPool.ExpectQuery("FROM candles").
		WillReturnRows(pgxmock.NewRows(candleColumns))

	_, err := NewSignalRepository(pool).DeleteReportsBefore(context.Background(), testCutoff)
	require.NoError(t, err)
	_, err = NewCandleRepository(pool).GetCandles(context.Background(), "BTC/USDT", "1h", 5)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "db.exec", spans[0].Name())
	assert.Equal(t, "DELETE", spanAttr(spans[0], "db.operation").AsString())
	assert.Equal(t, int64(3), spanAttr(spans[0], "db.rows_affected").AsInt64())

	assert.Equal(t, "db.query", spans[1].Name())
	assert.Equal(t, "SELECT", spanAttr(spans[1], "db.operation").AsString())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestTracedPool_RecordsErrors(t *testing.T) {
	sr := withSpanRecorder(t)
	mockPool, inner := newMockPool(t)
	pool := NewTracedPool(inner)

	mockPool.ExpectExec("INSERT INTO candles").
		WillReturnError(errors.New("read only"))

	_, err := pool.Exec(context.Background(), "INSERT INTO candles VALUES ($1)", 1)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "read only", spans[0].Status().Description)
}

func TestTracedPool_QueryRow(t *testing.T) {
	sr := withSpanRecorder(t)
	mockPool, inner := newMockPool(t)
	pool := NewTracedPool(inner)

	mockPool.ExpectQuery("SELECT payload").
		WithArgs("ETH/USDT").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow([]byte(`{"id":"r-9","symbol":"ETH/USDT"}`)))

	report, err := NewSignalRepository(pool).GetLatestReport(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, "r-9", report.ID)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.query_row", spans[0].Name())
}

func TestOperation(t *testing.T) {
	assert.Equal(t, "SELECT", operation("\n\t\tselect 1"))
	assert.Equal(t, "", operation("   "))
}
