package indicators

import (
	"math"

	"github.com/irfndi/cipher-ai-go/internal/models"
)

// MoneyFlowArea is the smoothed candle body-to-range ratio, shifted by an offset.
// Positive values read as buying pressure.
type MoneyFlowArea struct {
	multiplier float64
	offset     float64
	avg        sma
}

// NewMoneyFlowArea builds a money flow area accumulator.
func NewMoneyFlowArea(cfg MoneyFlowConfig) *MoneyFlowArea {
	return &MoneyFlowArea{
		multiplier: cfg.Multiplier,
		offset:     cfg.Offset,
		avg:        newSMA(cfg.Period),
	}
}

// Push consumes the next candle and returns the area at its index.
func (m *MoneyFlowArea) Push(c models.Candle) float64 {
	flow := math.NaN()
	if rng := c.Range(); rng != 0 {
		flow = (c.Close - c.Open) / rng * m.multiplier
	}
	avg := m.avg.next(flow)
	if math.IsNaN(avg) {
		return math.NaN()
	}
	return avg - m.offset
}

// Clone returns an independent copy of the accumulator state.
func (m *MoneyFlowArea) Clone() *MoneyFlowArea {
	cp := *m
	cp.avg = m.avg.clone()
	return &cp
}

// MoneyFlowSeries computes the money flow area over candles.
func MoneyFlowSeries(candles []models.Candle, cfg MoneyFlowConfig) models.Series {
	mf := NewMoneyFlowArea(cfg)
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = mf.Push(c)
	}
	return models.NewSeries(out, cfg.Lookback())
}
