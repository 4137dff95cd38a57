package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

var candleColumns = []string{"open_time", "open", "high", "low", "close", "volume"}

func TestCandleRepository_GetCandles_AscendingOrder(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewCandleRepository(pool)

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(candleColumns).
		AddRow(t0.Add(2*time.Hour), decimal.NewFromFloat(102), decimal.NewFromFloat(104), decimal.NewFromFloat(101), decimal.NewFromFloat(103.5), decimal.NewFromFloat(12)).
		AddRow(t0.Add(time.Hour), decimal.NewFromFloat(101), decimal.NewFromFloat(103), decimal.NewFromFloat(100), decimal.NewFromFloat(102), decimal.NewFromFloat(11)).
		AddRow(t0, decimal.NewFromFloat(100), decimal.NewFromFloat(102), decimal.NewFromFloat(99), decimal.NewFromFloat(101), decimal.NewFromFloat(10))

	mockPool.ExpectQuery("FROM candles").
		WithArgs("BTC/USDT", "1h", 3).
		WillReturnRows(rows)

	candles, err := repo.GetCandles(context.Background(), "BTC/USDT", "1h", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.Equal(t, t0, candles[0].Timestamp)
	assert.Equal(t, t0.Add(2*time.Hour), candles[2].Timestamp)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 99.0, candles[0].Low)
	assert.Equal(t, 103.5, candles[2].Close)
	assert.Equal(t, 12.0, candles[2].Volume)
	for i := 1; i < len(candles); i++ {
		assert.True(t, candles[i-1].Timestamp.Before(candles[i].Timestamp))
	}
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCandleRepository_GetCandles_Empty(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewCandleRepository(pool)

	mockPool.ExpectQuery("FROM candles").
		WithArgs("DOGE/USDT", "4h", 500).
		WillReturnRows(pgxmock.NewRows(candleColumns))

	candles, err := repo.GetCandles(context.Background(), "DOGE/USDT", "4h", 500)
	assert.Nil(t, candles)
	assert.True(t, errors.Is(err, utils.ErrNotFound))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCandleRepository_GetCandles_QueryError(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewCandleRepository(pool)

	mockPool.ExpectQuery("FROM candles").
		WithArgs("BTC/USDT", "1h", 10).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetCandles(context.Background(), "BTC/USDT", "1h", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.False(t, errors.Is(err, utils.ErrNotFound))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCandleRepository_SaveCandles(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewCandleRepository(pool)

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := []models.Candle{
		{Timestamp: t0, Open: 100, High: 102, Low: 99, Close: 101, Volume: 10},
		{Timestamp: t0.Add(time.Hour), Open: 101, High: 103, Low: 100, Close: 102, Volume: 11},
	}
	for _, c := range candles {
		mockPool.ExpectExec("INSERT INTO candles").
			WithArgs("BTC/USDT", "1h", c.Timestamp,
				decimal.NewFromFloat(c.Open), decimal.NewFromFloat(c.High), decimal.NewFromFloat(c.Low),
				decimal.NewFromFloat(c.Close), decimal.NewFromFloat(c.Volume)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	written, err := repo.SaveCandles(context.Background(), "BTC/USDT", "1h", candles)
	require.NoError(t, err)
	assert.Equal(t, int64(2), written)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCandleRepository_SaveCandles_StopsOnError(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewCandleRepository(pool)

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := []models.Candle{
		{Timestamp: t0, Open: 1, High: 1, Low: 1, Close: 1},
		{Timestamp: t0.Add(time.Hour), Open: 1, High: 1, Low: 1, Close: 1},
	}
	mockPool.ExpectExec("INSERT INTO candles").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	written, err := repo.SaveCandles(context.Background(), "BTC/USDT", "1h", candles)
	require.Error(t, err)
	assert.Equal(t, int64(0), written)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
