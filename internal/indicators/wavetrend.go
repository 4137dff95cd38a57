package indicators

import (
	"math"

	"github.com/irfndi/cipher-ai-go/internal/models"
)

// channelScale is the constant applied to the mean deviation of the typical price.
const channelScale = 0.015

// WaveTrend computes WT1/WT2 one candle at a time.
type WaveTrend struct {
	cfg WaveTrendConfig
	esa ema
	dev ema
	wt1 ema
	wt2 sma
}

// NewWaveTrend builds a WaveTrend accumulator from a validated config.
func NewWaveTrend(cfg WaveTrendConfig) *WaveTrend {
	return &WaveTrend{
		cfg: cfg,
		esa: newEMA(cfg.ChannelLen),
		dev: newEMA(cfg.ChannelLen),
		wt1: newEMA(cfg.AverageLen),
		wt2: newSMA(cfg.SignalLen),
	}
}

// Push consumes the next candle and returns wt1 and wt2 at its index.
func (w *WaveTrend) Push(c models.Candle) (float64, float64) {
	tp := c.TypicalPrice()
	esa := w.esa.next(tp)
	dev := w.dev.next(math.Abs(tp - esa))

	ci := math.NaN()
	if !math.IsNaN(dev) && dev != 0 {
		ci = (tp - esa) / (channelScale * dev)
	}

	wt1 := w.wt1.next(ci)
	wt2 := w.wt2.next(wt1)
	return wt1, wt2
}

// Clone returns an independent copy of the accumulator state.
func (w *WaveTrend) Clone() *WaveTrend {
	cp := *w
	cp.wt2 = w.wt2.clone()
	return &cp
}

// WaveTrendSeries computes WT1 and WT2 over candles.
func WaveTrendSeries(candles []models.Candle, cfg WaveTrendConfig) (models.Series, models.Series) {
	wt := NewWaveTrend(cfg)
	wt1 := make([]float64, len(candles))
	wt2 := make([]float64, len(candles))
	for i, c := range candles {
		wt1[i], wt2[i] = wt.Push(c)
	}
	return models.NewSeries(wt1, cfg.WT1Lookback()), models.NewSeries(wt2, cfg.WT2Lookback())
}
