package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

func sampleReport() models.SignalReport {
	return models.SignalReport{
		Symbol:      "BTC/USDT",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Confluence: models.ConfluenceResult{
			Symbol:          "BTC/USDT",
			Signals:         map[string]models.Signal{"1h": models.SignalWeakBuy, "4h": models.SignalStrongBuy},
			Scores:          map[string]int{"1h": 60, "4h": 80},
			Direction:       models.FamilyBuy,
			AlignmentCount:  2,
			TotalTimeframes: 2,
			Confidence:      decimal.RequireFromString("0.8824"),
			VerdictScore:    60,
			Signal:          models.SignalWeakBuy,
		},
	}
}

func TestSignalRepository_SaveReport_AssignsID(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewSignalRepository(pool)

	report := sampleReport()
	mockPool.ExpectExec("INSERT INTO signal_reports").
		WithArgs(pgxmock.AnyArg(), "BTC/USDT", report.GeneratedAt, "WEAK_BUY", "buy", 60,
			report.Confluence.Confidence, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.SaveReport(context.Background(), &report))

	_, err := uuid.Parse(report.ID)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_SaveReport_KeepsIDAndStampsTime(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewSignalRepository(pool)

	report := sampleReport()
	report.ID = "5b0e1b9e-4b8b-4a59-8d47-9b8c7d3e2a10"
	report.GeneratedAt = time.Time{}

	mockPool.ExpectExec("INSERT INTO signal_reports").
		WithArgs(report.ID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	before := time.Now().UTC()
	require.NoError(t, repo.SaveReport(context.Background(), &report))

	assert.Equal(t, "5b0e1b9e-4b8b-4a59-8d47-9b8c7d3e2a10", report.ID)
	assert.False(t, report.GeneratedAt.Before(before))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_SaveReport_Error(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewSignalRepository(pool)

	report := sampleReport()
	mockPool.ExpectExec("INSERT INTO signal_reports").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("duplicate key"))

	err := repo.SaveReport(context.Background(), &report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BTC/USDT")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_GetLatestReport(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewSignalRepository(pool)

	stored := sampleReport()
	stored.ID = "r-1"
	payload, err := json.Marshal(stored)
	require.NoError(t, err)

	mockPool.ExpectQuery("SELECT payload").
		WithArgs("BTC/USDT").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	report, err := repo.GetLatestReport(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "r-1", report.ID)
	assert.Equal(t, models.SignalWeakBuy, report.Confluence.Signal)
	assert.Equal(t, "0.8824", report.Confluence.Confidence.String())
	assert.Equal(t, 80, report.Confluence.Scores["4h"])
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_GetLatestReport_NotFound(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewSignalRepository(pool)

	mockPool.ExpectQuery("SELECT payload").
		WithArgs("XRP/USDT").
		WillReturnError(pgx.ErrNoRows)

	report, err := repo.GetLatestReport(context.Background(), "XRP/USDT")
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, utils.ErrNotFound))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_GetLatestReport_BadPayload(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewSignalRepository(pool)

	mockPool.ExpectQuery("SELECT payload").
		WithArgs("BTC/USDT").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow([]byte("{not json")))

	_, err := repo.GetLatestReport(context.Background(), "BTC/USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode report")
	assert.False(t, errors.Is(err, utils.ErrNotFound))
}

func TestSignalRepository_ListReports(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewSignalRepository(pool)

	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "symbol", "generated_at", "signal", "direction", "verdict_score"}).
		AddRow("r-2", "BTC/USDT", t0.Add(time.Hour), "STRONG_SELL", "sell", -80).
		AddRow("r-1", "BTC/USDT", t0, "NEUTRAL", "none", 0)

	mockPool.ExpectQuery("SELECT id, symbol, generated_at").
		WithArgs("BTC/USDT", 2).
		WillReturnRows(rows)

	summaries, err := repo.ListReports(context.Background(), "BTC/USDT", 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "r-2", summaries[0].ID)
	assert.Equal(t, models.SignalStrongSell, summaries[0].Signal)
	assert.Equal(t, models.FamilySell, summaries[0].Direction)
	assert.Equal(t, -80, summaries[0].VerdictScore)
	assert.Equal(t, models.FamilyNone, summaries[1].Direction)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_DeleteReportsBefore(t *testing.T) {
	mockPool, pool := newMockPool(t)
	repo := NewSignalRepository(pool)

	cutoff := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mockPool.ExpectExec("DELETE FROM signal_reports").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := repo.DeleteReportsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
