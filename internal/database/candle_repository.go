package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

// CandleRepository reads and stores OHLCV bars.
type CandleRepository struct {
	pool DatabasePool
}

func NewCandleRepository(pool DatabasePool) *CandleRepository {
	return &CandleRepository{pool: pool}
}

// GetCandles returns the latest limit candles of (symbol, timeframe) in ascending time order.
// It returns utils.ErrNotFound when there are none.
func (r *CandleRepository) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	query := `
		SELECT open_time, open, high, low, close, volume
		FROM candles
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY open_time DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles for %s %s: %w", symbol, timeframe, err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var (
			openTime                            time.Time
			open, high, low, closePrice, volume decimal.Decimal
		)
		if err := rows.Scan(&openTime, &open, &high, &low, &closePrice, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, models.Candle{
			Timestamp: openTime.UTC(),
			Open:      open.InexactFloat64(),
			High:      high.InexactFloat64(),
			Low:       low.InexactFloat64(),
			Close:     closePrice.InexactFloat64(),
			Volume:    volume.InexactFloat64(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("candles for %s %s: %w", symbol, timeframe, utils.ErrNotFound)
	}

	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// SaveCandles upserts candles keyed by (symbol, timeframe, open_time) and returns the number
// of rows written.
func (r *CandleRepository) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) (int64, error) {
	query := `
		INSERT INTO candles (symbol, timeframe, open_time, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timeframe, open_time)
		DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`

	var written int64
	for _, c := range candles {
		tag, err := r.pool.Exec(ctx, query,
			symbol, timeframe, c.Timestamp.UTC(),
			decimal.NewFromFloat(c.Open),
			decimal.NewFromFloat(c.High),
			decimal.NewFromFloat(c.Low),
			decimal.NewFromFloat(c.Close),
			decimal.NewFromFloat(c.Volume),
		)
		if err != nil {
			return written, fmt.Errorf("failed to upsert candle %s %s %s: %w",
				symbol, timeframe, c.Timestamp.Format(time.RFC3339), err)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}
