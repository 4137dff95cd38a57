package indicators

import (
	"math"

	"github.com/irfndi/cipher-ai-go/internal/models"
)

// RSI is a Wilder relative strength index accumulator over a price input.
type RSI struct {
	gain    wilder
	loss    wilder
	prev    float64
	hasPrev bool
}

// NewRSI builds an RSI accumulator for period.
func NewRSI(period int) *RSI {
	return &RSI{gain: newWilder(period), loss: newWilder(period)}
}

// Push consumes the next price and returns the RSI at its index.
func (r *RSI) Push(price float64) float64 {
	if math.IsNaN(price) {
		return math.NaN()
	}
	if !r.hasPrev {
		r.prev = price
		r.hasPrev = true
		return math.NaN()
	}
	delta := price - r.prev
	r.prev = price

	avgGain := r.gain.next(math.Max(delta, 0))
	avgLoss := r.loss.next(math.Max(-delta, 0))
	if math.IsNaN(avgGain) || math.IsNaN(avgLoss) {
		return math.NaN()
	}
	return rsiValue(avgGain, avgLoss)
}

// Clone returns an independent copy of the accumulator state.
func (r *RSI) Clone() *RSI {
	cp := *r
	return &cp
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50
	case avgLoss == 0:
		return 100
	case avgGain == 0:
		return 0
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// RSISeries computes the RSI of close prices.
func RSISeries(candles []models.Candle, cfg RSIConfig) models.Series {
	rsi := NewRSI(cfg.Period)
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = rsi.Push(c.Close)
	}
	return models.NewSeries(out, cfg.Lookback())
}
