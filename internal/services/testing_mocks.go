package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/irfndi/cipher-ai-go/internal/models"
)

// MockCandleSource implements CandleSource for tests
type MockCandleSource struct {
	mock.Mock
}

func (m *MockCandleSource) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	args := m.Called(ctx, symbol, timeframe, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Candle), args.Error(1)
}

// MockReportStore implements ReportStore for tests
type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) SaveReport(ctx context.Context, report *models.SignalReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// MockReportPublisher implements ReportPublisher for tests
type MockReportPublisher struct {
	mock.Mock
}

func (m *MockReportPublisher) Set(ctx context.Context, report models.SignalReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// MockReportPruner implements ReportPruner for tests
type MockReportPruner struct {
	mock.Mock
}

func (m *MockReportPruner) DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
