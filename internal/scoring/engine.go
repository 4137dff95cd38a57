// Package scoring maps the oscillator state at one index onto signed points, a bounded
// score and a discrete Signal.
package scoring

import (
	"github.com/irfndi/cipher-ai-go/internal/crosses"
	"github.com/irfndi/cipher-ai-go/internal/divergence"
	"github.com/irfndi/cipher-ai-go/internal/models"
)

// Snapshot is everything the point table reads at one index. Undefined values are NaN and
// never satisfy a comparison.
type Snapshot struct {
	Index     int
	WT1       float64
	WT2       float64
	RSI       float64
	StochK    float64
	StochD    float64
	MoneyFlow float64
	MFI       float64

	WTCross            crosses.Direction
	StochCross         crosses.Direction
	RSIOversoldCross   crosses.Direction
	RSIOverboughtCross crosses.Direction
	MFIOversoldCross   crosses.Direction
	MFIOverboughtCross crosses.Direction

	Divergences []models.Divergence
}

// hasDivergence reports a divergence fired at this index for indicator (any when empty)
// matching the bullish flag and, when kind is set, that exact kind.
func (s *Snapshot) hasDivergence(indicator string, bullish bool, kind models.DivergenceKind) bool {
	for _, d := range s.Divergences {
		if indicator != "" && d.Indicator != indicator {
			continue
		}
		if kind != "" {
			if d.Kind == kind {
				return true
			}
			continue
		}
		if d.Kind.Bullish() == bullish {
			return true
		}
	}
	return false
}

// Result is the scored view of one index
type Result struct {
	Score         int
	Signal        models.Signal
	Contributions []models.Contribution
	Events        []string
	Composites    []string
	Zones         map[string]models.Zone
}

type rule struct {
	name   string
	points int
	match  func(s *Snapshot) bool
}

// ruleSet is evaluated top to bottom and contributes its first matching row only.
type ruleSet struct {
	indicator string
	rules     []rule
}

// Engine evaluates the point table and the composite table
type Engine struct {
	cfg        Config
	sets       []ruleSet
	composites []compiledComposite
}

// NewEngine validates cfg and compiles the rule tables.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, sets: buildRuleSets(cfg)}
	for _, row := range cfg.Composites {
		e.composites = append(e.composites, compile(row, cfg.Zones))
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

func buildRuleSets(cfg Config) []ruleSet {
	p, z := cfg.Points, cfg.Zones
	divergenceSet := func(indicator string, regular, hidden int) ruleSet {
		return ruleSet{
			indicator: indicator + "_divergence",
			rules: []rule{
				{"regular_bullish", regular, func(s *Snapshot) bool { return s.hasDivergence(indicator, true, models.RegularBullish) }},
				{"regular_bearish", -regular, func(s *Snapshot) bool { return s.hasDivergence(indicator, false, models.RegularBearish) }},
				{"hidden_bullish", hidden, func(s *Snapshot) bool { return s.hasDivergence(indicator, true, models.HiddenBullish) }},
				{"hidden_bearish", -hidden, func(s *Snapshot) bool { return s.hasDivergence(indicator, false, models.HiddenBearish) }},
			},
		}
	}

	return []ruleSet{
		{
			indicator: models.IndicatorWaveTrend,
			rules: []rule{
				{"cross_up_oversold", p.WaveTrendCross, func(s *Snapshot) bool {
					return s.WTCross == crosses.Up && s.WT2 <= z.WaveTrendCrossOversold
				}},
				{"cross_down_overbought", -p.WaveTrendCross, func(s *Snapshot) bool {
					return s.WTCross == crosses.Down && s.WT2 >= z.WaveTrendCrossOverbought
				}},
				{"oversold", p.WaveTrendZone, func(s *Snapshot) bool { return s.WT1 <= z.WaveTrendOversold }},
				{"overbought", -p.WaveTrendZone, func(s *Snapshot) bool { return s.WT1 >= z.WaveTrendOverbought }},
			},
		},
		{
			indicator: models.IndicatorRSI,
			rules: []rule{
				{"cross_up_oversold", p.RSICross, func(s *Snapshot) bool { return s.RSIOversoldCross == crosses.Up }},
				{"cross_down_overbought", -p.RSICross, func(s *Snapshot) bool { return s.RSIOverboughtCross == crosses.Down }},
				{"oversold", p.RSIZone, func(s *Snapshot) bool { return s.RSI < z.RSIOversold }},
				{"overbought", -p.RSIZone, func(s *Snapshot) bool { return s.RSI > z.RSIOverbought }},
			},
		},
		{
			indicator: models.IndicatorStochRSI,
			rules: []rule{
				{"cross_up_oversold", p.StochCross, func(s *Snapshot) bool {
					return s.StochCross == crosses.Up && s.StochK <= z.StochOversold
				}},
				{"cross_down_overbought", -p.StochCross, func(s *Snapshot) bool {
					return s.StochCross == crosses.Down && s.StochK >= z.StochOverbought
				}},
				{"oversold", p.StochZone, func(s *Snapshot) bool { return s.StochK < z.StochOversold }},
				{"overbought", -p.StochZone, func(s *Snapshot) bool { return s.StochK > z.StochOverbought }},
			},
		},
		{
			indicator: models.IndicatorMoneyFlow,
			rules: []rule{
				{"positive", p.MoneyFlow, func(s *Snapshot) bool { return s.MoneyFlow > 0 }},
				{"negative", -p.MoneyFlow, func(s *Snapshot) bool { return s.MoneyFlow < 0 }},
			},
		},
		{
			indicator: models.IndicatorMFI,
			rules: []rule{
				{"cross_up_oversold", p.MFICross, func(s *Snapshot) bool { return s.MFIOversoldCross == crosses.Up }},
				{"cross_down_overbought", -p.MFICross, func(s *Snapshot) bool { return s.MFIOverboughtCross == crosses.Down }},
			},
		},
		divergenceSet(models.IndicatorWaveTrend, p.DivergenceRegular, p.DivergenceHidden),
		divergenceSet(models.IndicatorRSI, p.DivergenceRegular, p.DivergenceHidden),
		divergenceSet(models.IndicatorMFI, p.MFIDivergence, p.MFIDivergence),
	}
}

// Evaluate scores one snapshot.
func (e *Engine) Evaluate(s Snapshot) Result {
	res := Result{Zones: e.zones(&s), Events: events(&s)}
	for _, set := range e.sets {
		for _, r := range set.rules {
			if !r.match(&s) {
				continue
			}
			if r.points != 0 {
				res.Score += r.points
				res.Contributions = append(res.Contributions, models.Contribution{
					Indicator: set.indicator,
					Rule:      r.name,
					Points:    r.points,
				})
			}
			break
		}
	}
	for _, c := range e.composites {
		if c.match(&s) {
			res.Composites = append(res.Composites, c.name)
		}
	}
	res.Signal = e.Classify(res.Score)
	return res
}

// Classify maps a score onto a Signal with the configured thresholds.
func (e *Engine) Classify(score int) models.Signal {
	return SignalFor(score, e.cfg.Thresholds)
}

// SignalFor maps score onto a Signal; ties resolve to the less extreme class.
func SignalFor(score int, t Thresholds) models.Signal {
	switch {
	case score > t.Strong:
		return models.SignalStrongBuy
	case score > t.Weak:
		return models.SignalWeakBuy
	case score < -t.Strong:
		return models.SignalStrongSell
	case score < -t.Weak:
		return models.SignalWeakSell
	default:
		return models.SignalNeutral
	}
}

func (e *Engine) zones(s *Snapshot) map[string]models.Zone {
	z := e.cfg.Zones
	return map[string]models.Zone{
		models.IndicatorWaveTrend: zoneOf(s.WT1, z.WaveTrendOversold, z.WaveTrendOverbought),
		models.IndicatorRSI:       zoneOf(s.RSI, z.RSIOversold, z.RSIOverbought),
		models.IndicatorStochRSI:  zoneOf(s.StochK, z.StochOversold, z.StochOverbought),
		models.IndicatorMFI:       zoneOf(s.MFI, z.MFIOversold, z.MFIOverbought),
	}
}

func zoneOf(v, oversold, overbought float64) models.Zone {
	switch {
	case !models.IsDefined(v):
		return models.ZoneUndefined
	case v <= oversold:
		return models.ZoneOversold
	case v >= overbought:
		return models.ZoneOverbought
	default:
		return models.ZoneNeutral
	}
}

func events(s *Snapshot) []string {
	var out []string
	switch s.WTCross {
	case crosses.Up:
		out = append(out, "wavetrend_cross_up")
	case crosses.Down:
		out = append(out, "wavetrend_cross_down")
	}
	switch s.StochCross {
	case crosses.Up:
		out = append(out, "stoch_rsi_cross_up")
	case crosses.Down:
		out = append(out, "stoch_rsi_cross_down")
	}
	if s.RSIOversoldCross == crosses.Up {
		out = append(out, "rsi_cross_up_oversold")
	}
	if s.RSIOverboughtCross == crosses.Down {
		out = append(out, "rsi_cross_down_overbought")
	}
	if s.MFIOversoldCross == crosses.Up {
		out = append(out, "mfi_cross_up_oversold")
	}
	if s.MFIOverboughtCross == crosses.Down {
		out = append(out, "mfi_cross_down_overbought")
	}
	for _, d := range s.Divergences {
		out = append(out, d.Indicator+"_"+string(d.Kind))
	}
	return out
}

// NewSnapshot reads the oscillators, crosses and divergences fired at index i.
// divs must be ordered by confirmation index.
func NewSnapshot(osc models.OscillatorSeries, divs []models.Divergence, z Zones, i int) Snapshot {
	at := func(s models.Series) float64 {
		v, _ := s.At(i)
		return v
	}
	return Snapshot{
		Index:              i,
		WT1:                at(osc.WT1),
		WT2:                at(osc.WT2),
		RSI:                at(osc.RSI),
		StochK:             at(osc.StochK),
		StochD:             at(osc.StochD),
		MoneyFlow:          at(osc.MoneyFlow),
		MFI:                at(osc.MFI),
		WTCross:            crosses.Detect(osc.WT1, osc.WT2, i),
		StochCross:         crosses.Detect(osc.StochK, osc.StochD, i),
		RSIOversoldCross:   crosses.DetectLevel(osc.RSI, z.RSIOversold, i),
		RSIOverboughtCross: crosses.DetectLevel(osc.RSI, z.RSIOverbought, i),
		MFIOversoldCross:   crosses.DetectLevel(osc.MFI, z.MFIOversold, i),
		MFIOverboughtCross: crosses.DetectLevel(osc.MFI, z.MFIOverbought, i),
		Divergences:        divergence.FiredAt(divs, i),
	}
}
