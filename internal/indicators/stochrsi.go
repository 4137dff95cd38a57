package indicators

import (
	"math"

	"github.com/irfndi/cipher-ai-go/internal/models"
)

// StochRSI applies a min-max stochastic transform to RSI, then smooths K and D.
type StochRSI struct {
	useLog bool
	rsi    *RSI
	window extremes
	k      sma
	d      sma
}

// NewStochRSI builds a Stochastic RSI accumulator.
func NewStochRSI(cfg StochRSIConfig) *StochRSI {
	return &StochRSI{
		useLog: cfg.UseLog,
		rsi:    NewRSI(cfg.RSILen),
		window: newExtremes(cfg.StochLen),
		k:      newSMA(cfg.KSmooth),
		d:      newSMA(cfg.DSmooth),
	}
}

// Push consumes the next close price and returns K and D.
func (s *StochRSI) Push(price float64) (float64, float64) {
	src := price
	if s.useLog {
		if price <= 0 {
			src = math.NaN()
		} else {
			src = math.Log(price)
		}
	}

	rsi := s.rsi.Push(src)
	raw := math.NaN()
	if lo, hi, ok := s.window.next(rsi); ok && hi != lo {
		raw = 100 * (rsi - lo) / (hi - lo)
	}

	k := s.k.next(raw)
	d := s.d.next(k)
	return k, d
}

// Clone returns an independent copy of the accumulator state.
func (s *StochRSI) Clone() *StochRSI {
	return &StochRSI{
		useLog: s.useLog,
		rsi:    s.rsi.Clone(),
		window: s.window.clone(),
		k:      s.k.clone(),
		d:      s.d.clone(),
	}
}

// StochRSISeries computes K and D over close prices.
func StochRSISeries(candles []models.Candle, cfg StochRSIConfig) (models.Series, models.Series) {
	st := NewStochRSI(cfg)
	k := make([]float64, len(candles))
	d := make([]float64, len(candles))
	for i, c := range candles {
		k[i], d[i] = st.Push(c.Close)
	}
	return models.NewSeries(k, cfg.KLookback()), models.NewSeries(d, cfg.DLookback())
}
