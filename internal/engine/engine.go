// Package engine runs the per-(symbol, timeframe) pipeline: oscillators, pivots,
// divergences, crosses and scoring, with resumable runs for append-only candle data.
package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/cipher-ai-go/internal/confluence"
	"github.com/irfndi/cipher-ai-go/internal/divergence"
	"github.com/irfndi/cipher-ai-go/internal/indicators"
	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/pivots"
	"github.com/irfndi/cipher-ai-go/internal/scoring"
)

var tracer = otel.Tracer("github.com/irfndi/cipher-ai-go/internal/engine")

// ErrNilRun is returned by Extend when no previous run is given.
var ErrNilRun = errors.New("engine: nil run")

// Engine owns the validated components. It holds no per-pipeline state and is safe for
// concurrent use.
type Engine struct {
	cfg        Config
	logger     *logrus.Logger
	scorer     *scoring.Engine
	aggregator *confluence.Aggregator
	sources    []source
}

// source is one indicator feeding the divergence classifier.
type source struct {
	name       string
	classifier *divergence.Classifier
	series     func(models.OscillatorSeries) models.Series
}

// New validates cfg and builds the components.
func New(cfg Config, logger *logrus.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	scorer, err := scoring.NewEngine(cfg.Scoring)
	if err != nil {
		return nil, err
	}
	aggregator, err := confluence.NewAggregator(cfg.Confluence, cfg.Scoring.Thresholds)
	if err != nil {
		return nil, err
	}
	wt, err := divergence.NewClassifier(cfg.Divergence.WaveTrend)
	if err != nil {
		return nil, err
	}
	rsi, err := divergence.NewClassifier(cfg.Divergence.RSI)
	if err != nil {
		return nil, err
	}
	mfi, err := divergence.NewClassifier(cfg.Divergence.MFI)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		scorer:     scorer,
		aggregator: aggregator,
		sources: []source{
			{name: models.IndicatorWaveTrend, classifier: wt, series: func(o models.OscillatorSeries) models.Series { return o.WT2 }},
			{name: models.IndicatorRSI, classifier: rsi, series: func(o models.OscillatorSeries) models.Series { return o.RSI }},
			{name: models.IndicatorMFI, classifier: mfi, series: func(o models.OscillatorSeries) models.Series { return o.MFI }},
		},
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Analyze runs a full pass over candles.
func (e *Engine) Analyze(ctx context.Context, symbol, timeframe string, candles []models.Candle) (*models.TimeframeAnalysis, *Run, error) {
	ctx, span := tracer.Start(ctx, "engine.Analyze", trace.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("timeframe", timeframe),
		attribute.Int("candles", len(candles)),
	))
	defer span.End()

	run, err := e.newRun(symbol, timeframe)
	if err != nil {
		return nil, nil, err
	}
	analysis, next, err := e.advance(ctx, run, candles)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	return analysis, next, nil
}

// Extend continues run over candles, which must start with the run's candles. Only the new
// candles are pushed; run itself is never modified. Input that does not extend run falls
// back to a full pass.
func (e *Engine) Extend(ctx context.Context, run *Run, candles []models.Candle) (*models.TimeframeAnalysis, *Run, error) {
	if run == nil {
		return nil, nil, ErrNilRun
	}
	if !models.SharesPrefix(run.candles, candles) {
		e.logger.WithFields(logrus.Fields{
			"symbol":    run.Symbol,
			"timeframe": run.Timeframe,
			"previous":  len(run.candles),
			"candles":   len(candles),
		}).Debug("Candles do not extend previous run, recomputing")
		return e.Analyze(ctx, run.Symbol, run.Timeframe, candles)
	}

	ctx, span := tracer.Start(ctx, "engine.Extend", trace.WithAttributes(
		attribute.String("symbol", run.Symbol),
		attribute.String("timeframe", run.Timeframe),
		attribute.Int("candles", len(candles)),
		attribute.Int("new_candles", len(candles)-len(run.candles)),
	))
	defer span.End()

	analysis, next, err := e.advance(ctx, run.clone(), candles)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	return analysis, next, nil
}

// advance pushes the candles run has not seen yet and rebuilds the analysis. run must be
// exclusively owned by the caller.
func (e *Engine) advance(ctx context.Context, run *Run, candles []models.Candle) (*models.TimeframeAnalysis, *Run, error) {
	from := len(run.candles)
	for i := from; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		run.push(candles[i])
	}

	osc := run.stream.Oscillators()
	ctxSeries := indicators.ComputeContext(run.candles, e.cfg.Indicators.Context)

	pivotSets := make(map[string]models.PivotSet, len(e.sources))
	var divs []models.Divergence
	for _, src := range e.sources {
		cfg := src.classifier.Config()
		set := run.trackers[src.name].set(cfg.PivotSource)
		pivotSets[src.name] = set
		in := divergence.NewInput(src.name, run.candles, src.series(osc), cfg.PriceSource)
		divs = append(divs, src.classifier.ClassifyPivots(in, set)...)
	}
	sort.SliceStable(divs, func(i, j int) bool {
		if divs[i].ConfirmedAt != divs[j].ConfirmedAt {
			return divs[i].ConfirmedAt < divs[j].ConfirmedAt
		}
		return divs[i].Indicator < divs[j].Indicator
	})

	// States before from depend only on data the previous run already saw; only their
	// context values are refreshed since cinar outputs start once enough data exists.
	states := make([]models.IndicatorState, len(run.candles))
	copy(states, run.states)
	for i := range states {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if i < from {
			states[i].Context = contextValues(ctxSeries, i)
			continue
		}
		states[i] = e.state(run.candles[i], osc, ctxSeries, divs, i)
	}
	run.states = states

	analysis := &models.TimeframeAnalysis{
		Symbol:      run.Symbol,
		Timeframe:   run.Timeframe,
		Candles:     len(run.candles),
		Oscillators: osc,
		Context:     ctxSeries,
		Pivots:      pivotSets,
		Divergences: divs,
		States:      states,
	}

	if latest, ok := analysis.Latest(); ok {
		e.logger.WithFields(logrus.Fields{
			"symbol":      run.Symbol,
			"timeframe":   run.Timeframe,
			"candles":     len(run.candles),
			"pushed":      len(run.candles) - from,
			"divergences": len(divs),
			"score":       latest.Score,
			"signal":      latest.Signal,
		}).Debug("Pipeline pass complete")
	}
	return analysis, run, nil
}

func (e *Engine) state(c models.Candle, osc models.OscillatorSeries, ctxSeries models.ContextSeries, divs []models.Divergence, i int) models.IndicatorState {
	snap := scoring.NewSnapshot(osc, divs, e.cfg.Scoring.Zones, i)
	res := e.scorer.Evaluate(snap)

	st := models.IndicatorState{
		Index:     i,
		Timestamp: c.Timestamp,
		Close:     c.Close,
		Values: models.OscillatorValues{
			WT1:       models.NullDecimal(snap.WT1),
			WT2:       models.NullDecimal(snap.WT2),
			RSI:       models.NullDecimal(snap.RSI),
			StochK:    models.NullDecimal(snap.StochK),
			StochD:    models.NullDecimal(snap.StochD),
			MoneyFlow: models.NullDecimal(snap.MoneyFlow),
			MFI:       models.NullDecimal(snap.MFI),
		},
		Context:       contextValues(ctxSeries, i),
		Zones:         res.Zones,
		Events:        append(res.Events, res.Composites...),
		Composites:    res.Composites,
		Contributions: res.Contributions,
		Score:         res.Score,
		Signal:        res.Signal,
	}
	if len(snap.Divergences) > 0 {
		st.Divergences = append([]models.Divergence(nil), snap.Divergences...)
	}
	return st
}

func contextValues(s models.ContextSeries, i int) models.ContextValues {
	at := func(series models.Series) float64 {
		v, _ := series.At(i)
		return v
	}
	return models.ContextValues{
		MACD:          models.NullDecimal(at(s.MACD)),
		MACDSignal:    models.NullDecimal(at(s.MACDSignal)),
		MACDHistogram: models.NullDecimal(at(s.MACDHistogram)),
		ATR:           models.NullDecimal(at(s.ATR)),
		OBV:           models.NullDecimal(at(s.OBV)),
		VWAP:          models.NullDecimal(at(s.VWAP)),
	}
}

// Confluence aggregates the latest state of each timeframe analysis. Analyses without any
// state are skipped.
func (e *Engine) Confluence(symbol string, analyses map[string]*models.TimeframeAnalysis) models.ConfluenceResult {
	scores := make(map[string]models.TimeframeScore, len(analyses))
	for tf, a := range analyses {
		latest, ok := a.Latest()
		if !ok {
			continue
		}
		scores[tf] = models.TimeframeScore{Signal: latest.Signal, Score: latest.Score}
	}
	return e.aggregator.Aggregate(symbol, scores)
}

// Classify maps a score onto a Signal with the configured thresholds.
func (e *Engine) Classify(score int) models.Signal {
	return e.scorer.Classify(score)
}

// Run is the resumable state of one pipeline. It is immutable once returned by the engine;
// Extend works on a copy.
type Run struct {
	Symbol    string
	Timeframe string

	candles  []models.Candle
	stream   *indicators.Stream
	trackers map[string]*tracker
	states   []models.IndicatorState
}

// Len returns the number of candles the run has consumed.
func (r *Run) Len() int {
	return len(r.candles)
}

// LastCandle returns the newest candle the run has consumed.
func (r *Run) LastCandle() (models.Candle, bool) {
	if len(r.candles) == 0 {
		return models.Candle{}, false
	}
	return r.candles[len(r.candles)-1], true
}

func (e *Engine) newRun(symbol, timeframe string) (*Run, error) {
	stream, err := indicators.NewStream(e.cfg.Indicators)
	if err != nil {
		return nil, err
	}
	run := &Run{
		Symbol:    symbol,
		Timeframe: timeframe,
		stream:    stream,
		trackers:  make(map[string]*tracker, len(e.sources)),
	}
	for _, src := range e.sources {
		run.trackers[src.name] = newTracker(src.series, src.classifier.Config().PriceSource)
	}
	return run, nil
}

func (r *Run) push(c models.Candle) {
	r.candles = append(r.candles, c)
	r.stream.Push(c)
	osc := r.stream.Oscillators()
	last := len(r.candles) - 1
	for _, t := range r.trackers {
		t.push(c, osc, last)
	}
}

func (r *Run) clone() *Run {
	out := &Run{
		Symbol:    r.Symbol,
		Timeframe: r.Timeframe,
		candles:   append([]models.Candle(nil), r.candles...),
		stream:    r.stream.Clone(),
		trackers:  make(map[string]*tracker, len(r.trackers)),
		states:    r.states,
	}
	for name, t := range r.trackers {
		out.trackers[name] = t.clone()
	}
	return out
}

// tracker keeps incremental pivot detectors on one indicator and on the price it is
// compared against.
type tracker struct {
	series      func(models.OscillatorSeries) models.Series
	priceSource string
	indicator   *pivots.Detector
	tops        *pivots.Detector
	bottoms     *pivots.Detector
}

func newTracker(series func(models.OscillatorSeries) models.Series, priceSource string) *tracker {
	return &tracker{
		series:      series,
		priceSource: priceSource,
		indicator:   pivots.NewDetector(),
		tops:        pivots.NewDetector(),
		bottoms:     pivots.NewDetector(),
	}
}

func (t *tracker) push(c models.Candle, osc models.OscillatorSeries, i int) {
	v, _ := t.series(osc).At(i)
	t.indicator.Push(v)
	if t.priceSource == divergence.PriceSourceClose {
		t.tops.Push(c.Close)
		t.bottoms.Push(c.Close)
		return
	}
	t.tops.Push(c.High)
	t.bottoms.Push(c.Low)
}

func (t *tracker) set(pivotSource string) models.PivotSet {
	if pivotSource == divergence.PivotSourcePrice {
		return models.PivotSet{Tops: t.tops.Tops(), Bottoms: t.bottoms.Bottoms()}
	}
	return t.indicator.Set()
}

func (t *tracker) clone() *tracker {
	return &tracker{
		series:      t.series,
		priceSource: t.priceSource,
		indicator:   t.indicator.Clone(),
		tops:        t.tops.Clone(),
		bottoms:     t.bottoms.Clone(),
	}
}
