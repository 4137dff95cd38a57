package engine

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/cipher-ai-go/internal/crosses"
	"github.com/irfndi/cipher-ai-go/internal/divergence"
	"github.com/irfndi/cipher-ai-go/internal/indicators"
	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	e, err := New(DefaultConfig(), logger)
	require.NoError(t, err)
	return e
}

func randomWalk(count int, seed int64) []models.Candle {
	rng := rand.New(rand.NewSource(seed))
	candles := make([]models.Candle, count)
	price := 100.0
	for i := range candles {
		open := price
		price = math.Max(1, price*(1+rng.NormFloat64()*0.02))
		candles[i] = models.Candle{
			Timestamp: baseTime.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      math.Max(open, price) * (1 + rng.Float64()*0.01),
			Low:       math.Min(open, price) * (1 - rng.Float64()*0.01),
			Close:     price,
			Volume:    1000 + rng.Float64()*500,
		}
	}
	return candles
}

// fromCloses builds candles with a fixed 1.0 half range so the typical price equals the close.
func fromCloses(closes []float64) []models.Candle {
	candles := make([]models.Candle, len(closes))
	prev := closes[0]
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: baseTime.Add(time.Duration(i) * time.Hour),
			Open:      prev,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		}
		prev = c
	}
	return candles
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Indicators.RSI.Period = 0
	_, err := New(cfg, nil)
	assert.True(t, utils.IsConfigurationError(err))

	cfg = DefaultConfig()
	cfg.Scoring.Points.MoneyFlow = 30
	_, err = New(cfg, nil)
	assert.True(t, utils.IsConfigurationError(err))

	cfg = DefaultConfig()
	cfg.Divergence.RSI.PriceSource = "open"
	_, err = New(cfg, nil)
	assert.True(t, utils.IsConfigurationError(err))

	cfg = DefaultConfig()
	cfg.Confluence.ScoreWeight = 2
	_, err = New(cfg, nil)
	assert.True(t, utils.IsConfigurationError(err))
}

func TestAnalyze_CrossScenario(t *testing.T) {
	closes := []float64{200}
	for i := 0; i < 39; i++ {
		closes = append(closes, closes[len(closes)-1]-1)
	}
	for i := 0; i < 3; i++ {
		closes = append(closes, closes[len(closes)-1]-3)
	}
	for i := 0; i < 8; i++ {
		closes = append(closes, closes[len(closes)-1]+2)
	}

	a, _, err := newTestEngine(t).Analyze(context.Background(), "TEST", "1h", fromCloses(closes))
	require.NoError(t, err)
	require.Len(t, a.States, len(closes))

	prev := a.States[43]
	assert.True(t, prev.Values.WT1.Decimal.LessThan(prev.Values.WT2.Decimal))

	st := a.States[44]
	assert.True(t, st.HasEvent("wavetrend_cross_up"))
	wt2, _ := st.Values.WT2.Decimal.Float64()
	assert.InDelta(t, -73.22, wt2, 0.05)
	assert.LessOrEqual(t, wt2, -53.0)
	assert.Contains(t, st.Contributions, models.Contribution{
		Indicator: models.IndicatorWaveTrend,
		Rule:      "cross_up_oversold",
		Points:    25,
	})
	assert.Greater(t, st.Score, 0)
}

func TestAnalyze_CrossAfterThirtyBarDecline(t *testing.T) {
	var closes []float64
	for i := 0; i < 10; i++ {
		closes = append(closes, 199.5+float64(i%2))
	}
	for i := 0; i < 27; i++ {
		closes = append(closes, closes[len(closes)-1]-1)
	}
	for i := 0; i < 3; i++ {
		closes = append(closes, closes[len(closes)-1]-4)
	}
	bottom := len(closes) - 1
	for i := 0; i < 5; i++ {
		closes = append(closes, closes[len(closes)-1]+2)
	}

	a, _, err := newTestEngine(t).Analyze(context.Background(), "TEST", "1h", fromCloses(closes))
	require.NoError(t, err)

	wt1 := func(i int) float64 {
		v, _ := a.States[i].Values.WT1.Decimal.Float64()
		return v
	}
	assert.InDelta(t, -85.16, wt1(bottom), 0.05)
	assert.InDelta(t, -40.14, wt1(len(closes)-1), 0.05)

	var crossed []int
	for i := bottom + 1; i < len(closes); i++ {
		if a.States[i].HasEvent("wavetrend_cross_up") {
			crossed = append(crossed, i)
		}
	}
	require.Equal(t, []int{bottom + 2}, crossed)

	st := a.States[bottom+2]
	wt2, _ := st.Values.WT2.Decimal.Float64()
	assert.InDelta(t, -81.23, wt2, 0.05)
	assert.Contains(t, st.Contributions, models.Contribution{
		Indicator: models.IndicatorWaveTrend,
		Rule:      "cross_up_oversold",
		Points:    25,
	})
}

func TestAnalyze_FlatMarket(t *testing.T) {
	candles := make([]models.Candle, 100)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
			Open:      100,
			High:      100,
			Low:       100,
			Close:     100,
			Volume:    5,
		}
	}

	a, _, err := newTestEngine(t).Analyze(context.Background(), "FLAT", "1m", candles)
	require.NoError(t, err)

	assert.Empty(t, a.Divergences)
	for _, st := range a.States {
		assert.Empty(t, st.Events, "index %d", st.Index)
		assert.Equal(t, 0, st.Score)
		assert.Equal(t, models.SignalNeutral, st.Signal)
		assert.False(t, st.Values.WT1.Valid)
		assert.False(t, st.Values.StochK.Valid)
		assert.False(t, st.Values.MoneyFlow.Valid)
		if st.Values.RSI.Valid {
			assert.Equal(t, "50", st.Values.RSI.Decimal.String())
		}
	}
	latest, ok := a.Latest()
	require.True(t, ok)
	assert.True(t, latest.Values.RSI.Valid)
	assert.Equal(t, models.ZoneUndefined, latest.Zones[models.IndicatorWaveTrend])
	assert.Equal(t, models.ZoneNeutral, latest.Zones[models.IndicatorRSI])
}

func TestAnalyze_StatesAreConsistent(t *testing.T) {
	e := newTestEngine(t)
	a, run, err := e.Analyze(context.Background(), "BTCUSDT", "1h", randomWalk(600, 5))
	require.NoError(t, err)
	assert.Equal(t, 600, run.Len())
	assert.Equal(t, 600, a.Candles)

	for i, st := range a.States {
		require.Equal(t, i, st.Index)
		require.LessOrEqual(t, st.Score, 85)
		require.GreaterOrEqual(t, st.Score, -85)
		require.Equal(t, e.Classify(st.Score), st.Signal)
		sum := 0
		for _, c := range st.Contributions {
			sum += c.Points
		}
		require.Equal(t, st.Score, sum)
		for _, d := range st.Divergences {
			require.Equal(t, i, d.ConfirmedAt)
			require.True(t, st.HasEvent(d.Indicator+"_"+string(d.Kind)))
		}
	}
	for i := 1; i < len(a.Divergences); i++ {
		assert.LessOrEqual(t, a.Divergences[i-1].ConfirmedAt, a.Divergences[i].ConfirmedAt)
	}
	for name, set := range a.Pivots {
		for i := 1; i < len(set.Tops); i++ {
			assert.Less(t, set.Tops[i-1].Index, set.Tops[i].Index, name)
		}
		for i := 1; i < len(set.Bottoms); i++ {
			assert.Less(t, set.Bottoms[i-1].Index, set.Bottoms[i].Index, name)
		}
	}
	assert.True(t, a.States[len(a.States)-1].Context.MACD.Valid)
}

func TestAnalyze_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	candles := randomWalk(400, 9)

	a1, _, err := e.Analyze(context.Background(), "S", "1h", candles)
	require.NoError(t, err)
	a2, _, err := e.Analyze(context.Background(), "S", "1h", candles)
	require.NoError(t, err)

	assert.Equal(t, a1.States, a2.States)
	assert.Equal(t, a1.Divergences, a2.Divergences)
	assertBitwiseEqual(t, a1.Oscillators.WT2.Values, a2.Oscillators.WT2.Values)
	assertBitwiseEqual(t, a1.Oscillators.StochD.Values, a2.Oscillators.StochD.Values)
}

func assertBitwiseEqual(t *testing.T, expected, actual []float64) {
	t.Helper()
	require.Equal(t, len(expected), len(actual))
	for i := range expected {
		require.Equal(t, math.Float64bits(expected[i]), math.Float64bits(actual[i]), "index %d", i)
	}
}

func TestExtend_MatchesFullPass(t *testing.T) {
	e := newTestEngine(t)
	candles := randomWalk(500, 21)

	partial, run, err := e.Analyze(context.Background(), "S", "4h", candles[:300])
	require.NoError(t, err)
	extended, next, err := e.Extend(context.Background(), run, candles)
	require.NoError(t, err)
	full, _, err := e.Analyze(context.Background(), "S", "4h", candles)
	require.NoError(t, err)

	assert.Equal(t, 300, run.Len())
	assert.Len(t, partial.States, 300)
	assert.Equal(t, 500, next.Len())
	assert.Equal(t, full.States, extended.States)
	assert.Equal(t, full.Divergences, extended.Divergences)
	assert.Equal(t, full.Pivots, extended.Pivots)
	assertBitwiseEqual(t, full.Oscillators.WT1.Values, extended.Oscillators.WT1.Values)
	assertBitwiseEqual(t, full.Oscillators.MoneyFlow.Values, extended.Oscillators.MoneyFlow.Values)

	// The original run is still usable and independent of the extension.
	again, _, err := e.Extend(context.Background(), run, candles[:400])
	require.NoError(t, err)
	assert.Equal(t, full.States[:400], fillContext(again.States, full.States[:400]))

	last, ok := next.LastCandle()
	require.True(t, ok)
	assert.Equal(t, candles[499].Timestamp, last.Timestamp)
}

// fillContext copies the context values of want into got so only the scored state is compared.
func fillContext(got, want []models.IndicatorState) []models.IndicatorState {
	out := make([]models.IndicatorState, len(got))
	copy(out, got)
	for i := range out {
		out[i].Context = want[i].Context
	}
	return out
}

func TestExtend_FallsBackOnRewrittenHistory(t *testing.T) {
	e := newTestEngine(t)
	candles := randomWalk(200, 2)
	_, run, err := e.Analyze(context.Background(), "S", "1h", candles[:150])
	require.NoError(t, err)

	shifted := randomWalk(200, 3)
	for i := range shifted {
		shifted[i].Timestamp = shifted[i].Timestamp.Add(time.Minute)
	}
	got, next, err := e.Extend(context.Background(), run, shifted)
	require.NoError(t, err)
	want, _, err := e.Analyze(context.Background(), "S", "1h", shifted)
	require.NoError(t, err)

	assert.Equal(t, want.States, got.States)
	assert.Equal(t, 200, next.Len())

	_, _, err = e.Extend(context.Background(), nil, candles)
	assert.ErrorIs(t, err, ErrNilRun)
}

func TestExtend_FallsBackOnRevisedCandle(t *testing.T) {
	e := newTestEngine(t)
	candles := randomWalk(300, 8)

	forming := append([]models.Candle(nil), candles[:200]...)
	forming[199].Close *= 1.2
	forming[199].High = math.Max(forming[199].High, forming[199].Close)
	_, run, err := e.Analyze(context.Background(), "S", "1h", forming)
	require.NoError(t, err)

	got, next, err := e.Extend(context.Background(), run, candles)
	require.NoError(t, err)
	want, _, err := e.Analyze(context.Background(), "S", "1h", candles)
	require.NoError(t, err)

	assert.Equal(t, want.States, got.States)
	assert.Equal(t, want.Divergences, got.Divergences)
	assertBitwiseEqual(t, want.Oscillators.WT1.Values, got.Oscillators.WT1.Values)
	assert.Equal(t, candles[199].Close, got.States[199].Close)
	assert.Equal(t, 300, next.Len())
	assert.Equal(t, forming[199].Close, run.candles[199].Close)
}

func TestAnalyze_MFISource(t *testing.T) {
	e := newTestEngine(t)
	candles := randomWalk(500, 13)

	a, _, err := e.Analyze(context.Background(), "S", "1h", candles)
	require.NoError(t, err)

	cfg := e.Config()
	mfi := indicators.MFISeries(candles, cfg.Indicators.MFI)
	assertBitwiseEqual(t, mfi.Values, a.Oscillators.MFI.Values)

	classifier, err := divergence.NewClassifier(cfg.Divergence.MFI)
	require.NoError(t, err)
	want := classifier.Classify(divergence.NewInput(models.IndicatorMFI, candles, mfi, cfg.Divergence.MFI.PriceSource))

	var got []models.Divergence
	for _, d := range a.Divergences {
		if d.Indicator == models.IndicatorMFI {
			got = append(got, d)
		}
	}
	assert.Equal(t, want, got)
	assert.Contains(t, a.Pivots, models.IndicatorMFI)

	crossed := 0
	for i, st := range a.States {
		switch crosses.DetectLevel(mfi, cfg.Scoring.Zones.MFIOversold, i) {
		case crosses.Up:
			crossed++
			assert.True(t, st.HasEvent("mfi_cross_up_oversold"), "index %d", i)
		default:
			assert.False(t, st.HasEvent("mfi_cross_up_oversold"), "index %d", i)
		}
		assert.Equal(t, crosses.DetectLevel(mfi, cfg.Scoring.Zones.MFIOverbought, i) == crosses.Down,
			st.HasEvent("mfi_cross_down_overbought"), "index %d", i)
		for _, c := range st.Contributions {
			assert.NotEqual(t, models.IndicatorMFI, c.Indicator)
			assert.NotEqual(t, "mfi_divergence", c.Indicator)
		}
		if v, ok := mfi.At(i); ok {
			require.True(t, st.Values.MFI.Valid)
			assert.InDelta(t, v, st.Values.MFI.Decimal.InexactFloat64(), 1e-4)
		}
	}
	t.Logf("mfi divergences=%d oversold crosses=%d", len(got), crossed)
}

func TestCancellation(t *testing.T) {
	e := newTestEngine(t)
	candles := randomWalk(300, 4)
	_, run, err := e.Analyze(context.Background(), "S", "1h", candles[:100])
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = e.Analyze(ctx, "S", "1h", candles)
	assert.ErrorIs(t, err, context.Canceled)

	_, next, err := e.Extend(ctx, run, candles)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, next)
	assert.Equal(t, 100, run.Len())

	extended, _, err := e.Extend(context.Background(), run, candles)
	require.NoError(t, err)
	full, _, err := e.Analyze(context.Background(), "S", "1h", candles)
	require.NoError(t, err)
	assert.Equal(t, full.States, extended.States)
}

func TestConfluence(t *testing.T) {
	e := newTestEngine(t)
	analyses := make(map[string]*models.TimeframeAnalysis)
	for i, tf := range []string{"1h", "4h", "1d"} {
		a, _, err := e.Analyze(context.Background(), "ETHUSDT", tf, randomWalk(300, int64(40+i)))
		require.NoError(t, err)
		analyses[tf] = a
	}
	analyses["1w"] = &models.TimeframeAnalysis{}

	res := e.Confluence("ETHUSDT", analyses)

	assert.Equal(t, "ETHUSDT", res.Symbol)
	assert.Equal(t, 3, res.TotalTimeframes)
	assert.Len(t, res.Signals, 3)
	for tf, a := range analyses {
		if latest, ok := a.Latest(); ok {
			assert.Equal(t, latest.Signal, res.Signals[tf])
		}
	}
	assert.LessOrEqual(t, res.AlignmentCount, 3)
}
