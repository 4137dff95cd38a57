package indicators

import (
	"math"
	"sync"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/cinar/indicator/v2/volume"

	"github.com/irfndi/cipher-ai-go/internal/models"
)

// atrPeriod is the default period of volatility.NewAtr.
const atrPeriod = 14

// ComputeContext derives the unscored context indicators. cinar/indicator outputs are shorter
// than their input, so they are right-aligned onto the candle index.
func ComputeContext(candles []models.Candle, cfg ContextConfig) models.ContextSeries {
	n := len(candles)
	closes := models.Closes(candles)

	ctx := models.ContextSeries{
		MACD:          models.UndefinedSeries(n, cfg.MACDSlow),
		MACDSignal:    models.UndefinedSeries(n, cfg.MACDSlow+cfg.MACDSignal-1),
		MACDHistogram: models.UndefinedSeries(n, cfg.MACDSlow+cfg.MACDSignal-1),
		ATR:           models.UndefinedSeries(n, atrPeriod+1),
		OBV:           models.UndefinedSeries(n, 1),
		VWAP:          vwap(candles),
	}

	if n >= cfg.MACDSlow+cfg.MACDSignal {
		macd, signal := computeMACD(closes, cfg)
		ctx.MACD = rightAligned(macd, n)
		ctx.MACDSignal = rightAligned(signal, n)
		hist := make([]float64, n)
		for i := range hist {
			hist[i] = ctx.MACD.Values[i] - ctx.MACDSignal.Values[i]
		}
		ctx.MACDHistogram = models.NewSeries(hist, ctx.MACDSignal.Lookback)
	}

	if n > atrPeriod {
		atr := volatility.NewAtr[float64]()
		values := helper.ChanToSlice(atr.Compute(
			helper.SliceToChan(models.Highs(candles)),
			helper.SliceToChan(models.Lows(candles)),
			helper.SliceToChan(closes),
		))
		ctx.ATR = rightAligned(values, n)
	}

	if n > 1 {
		obv := volume.NewObv[float64]()
		values := helper.ChanToSlice(obv.Compute(
			helper.SliceToChan(closes),
			helper.SliceToChan(models.Volumes(candles)),
		))
		ctx.OBV = rightAligned(values, n)
	}

	return ctx
}

// computeMACD drains both MACD outputs concurrently since they share one upstream.
func computeMACD(closes []float64, cfg ContextConfig) ([]float64, []float64) {
	macd := trend.NewMacdWithPeriod[float64](cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	lineChan, signalChan := macd.Compute(helper.SliceToChan(closes))

	var line, signal []float64
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		line = helper.ChanToSlice(lineChan)
	}()
	go func() {
		defer wg.Done()
		signal = helper.ChanToSlice(signalChan)
	}()
	wg.Wait()
	return line, signal
}

func rightAligned(values []float64, n int) models.Series {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) > n {
		values = values[len(values)-n:]
	}
	offset := n - len(values)
	copy(out[offset:], values)
	return models.NewSeries(out, offset+1)
}

// vwap is the cumulative volume-weighted typical price.
func vwap(candles []models.Candle) models.Series {
	out := make([]float64, len(candles))
	var pv, vol float64
	for i, c := range candles {
		pv += c.TypicalPrice() * c.Volume
		vol += c.Volume
		if vol > 0 {
			out[i] = pv / vol
		} else {
			out[i] = math.NaN()
		}
	}
	return models.NewSeries(out, 1)
}
