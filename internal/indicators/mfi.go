package indicators

import (
	"math"

	"github.com/irfndi/cipher-ai-go/internal/models"
)

// MFI is the volume-weighted RSI of the typical price. A window that carries neither
// positive nor negative flow is undefined.
type MFI struct {
	period int
	pos    []float64
	neg    []float64
	posSum float64
	negSum float64
	slot   int
	filled int
	prevTP float64
	seen   bool
}

// NewMFI builds a money flow index accumulator.
func NewMFI(period int) *MFI {
	return &MFI{
		period: period,
		pos:    make([]float64, period),
		neg:    make([]float64, period),
	}
}

// Push consumes the next candle and returns the index at its position.
func (m *MFI) Push(c models.Candle) float64 {
	tp := c.TypicalPrice()
	if !m.seen {
		m.seen = true
		m.prevTP = tp
		return math.NaN()
	}

	flow := tp * c.Volume
	m.posSum -= m.pos[m.slot]
	m.negSum -= m.neg[m.slot]
	m.pos[m.slot], m.neg[m.slot] = 0, 0
	switch {
	case tp > m.prevTP:
		m.pos[m.slot] = flow
	case tp < m.prevTP:
		m.neg[m.slot] = flow
	}
	m.posSum += m.pos[m.slot]
	m.negSum += m.neg[m.slot]
	m.slot = (m.slot + 1) % m.period
	if m.filled < m.period {
		m.filled++
	}
	m.prevTP = tp

	// Running sums can drift a few ulps below zero after a window empties.
	pos, neg := math.Max(m.posSum, 0), math.Max(m.negSum, 0)
	if m.filled < m.period || pos+neg <= 0 {
		return math.NaN()
	}
	return 100 * pos / (pos + neg)
}

// Clone returns an independent copy of the accumulator state.
func (m *MFI) Clone() *MFI {
	cp := *m
	cp.pos = append([]float64(nil), m.pos...)
	cp.neg = append([]float64(nil), m.neg...)
	return &cp
}

// MFISeries computes the money flow index over candles.
func MFISeries(candles []models.Candle, cfg MFIConfig) models.Series {
	mfi := NewMFI(cfg.Period)
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = mfi.Push(c)
	}
	return models.NewSeries(out, cfg.Lookback())
}
