// Package confluence combines per-timeframe signals of one symbol into a single verdict.
package confluence

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/scoring"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

// Config weights the two confidence terms
type Config struct {
	AlignmentWeight float64 `mapstructure:"alignment_weight" json:"alignment_weight"`
	ScoreWeight     float64 `mapstructure:"score_weight" json:"score_weight"`
}

// DefaultConfig returns 0.6 alignment / 0.4 score.
func DefaultConfig() Config {
	return Config{AlignmentWeight: 0.6, ScoreWeight: 0.4}
}

// Validate requires non-negative finite weights summing to at most 1.
func (c Config) Validate() error {
	for field, w := range map[string]float64{
		"confluence.alignment_weight": c.AlignmentWeight,
		"confluence.score_weight":     c.ScoreWeight,
	} {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return utils.NewConfigurationErrorf(field, "must be a finite value >= 0, got %v", w)
		}
	}
	if c.AlignmentWeight+c.ScoreWeight > 1+1e-9 {
		return utils.NewConfigurationErrorf("confluence", "weights sum to %v, must be <= 1", c.AlignmentWeight+c.ScoreWeight)
	}
	return nil
}

// Aggregator builds ConfluenceResults
type Aggregator struct {
	alignment  decimal.Decimal
	score      decimal.Decimal
	thresholds scoring.Thresholds
}

// NewAggregator validates cfg; thresholds classify the verdict score.
func NewAggregator(cfg Config, thresholds scoring.Thresholds) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		alignment:  decimal.NewFromFloat(cfg.AlignmentWeight),
		score:      decimal.NewFromFloat(cfg.ScoreWeight),
		thresholds: thresholds,
	}, nil
}

// Aggregate computes the verdict for one symbol. The result does not depend on the
// iteration order of timeframes.
func (a *Aggregator) Aggregate(symbol string, timeframes map[string]models.TimeframeScore) models.ConfluenceResult {
	res := models.ConfluenceResult{
		Symbol:          symbol,
		Signals:         make(map[string]models.Signal, len(timeframes)),
		Scores:          make(map[string]int, len(timeframes)),
		Direction:       models.FamilyNone,
		TotalTimeframes: len(timeframes),
		Confidence:      decimal.Zero,
		Signal:          models.SignalNeutral,
	}

	buy, sell := 0, 0
	for tf, s := range timeframes {
		res.Signals[tf] = s.Signal
		res.Scores[tf] = s.Score
		switch s.Signal.Family() {
		case models.FamilyBuy:
			buy++
		case models.FamilySell:
			sell++
		}
	}
	switch {
	case buy > sell:
		res.Direction = models.FamilyBuy
	case sell > buy:
		res.Direction = models.FamilySell
	default:
		return res
	}

	minAbs := math.MaxInt
	for _, s := range timeframes {
		if s.Signal.Family() != res.Direction {
			continue
		}
		res.AlignmentCount++
		minAbs = min(minAbs, abs(s.Score))
	}

	ratio := decimal.NewFromInt(int64(res.AlignmentCount)).Div(decimal.NewFromInt(int64(res.TotalTimeframes)))
	strength := decimal.NewFromInt(int64(minAbs)).Div(decimal.NewFromInt(scoring.MaxScore))
	res.Confidence = a.alignment.Mul(ratio).Add(a.score.Mul(strength)).Round(4)

	res.VerdictScore = minAbs
	if res.Direction == models.FamilySell {
		res.VerdictScore = -minAbs
	}
	res.Signal = scoring.SignalFor(res.VerdictScore, a.thresholds)
	return res
}

// Timeframes returns the timeframes of a result in sorted order.
func Timeframes(res models.ConfluenceResult) []string {
	out := make([]string, 0, len(res.Signals))
	for tf := range res.Signals {
		out = append(out, tf)
	}
	sort.Strings(out)
	return out
}

// RankReports orders reports by absolute verdict score, then confidence, then symbol.
func RankReports(reports []models.SignalReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		ci, cj := reports[i].Confluence, reports[j].Confluence
		if ai, aj := abs(ci.VerdictScore), abs(cj.VerdictScore); ai != aj {
			return ai > aj
		}
		if !ci.Confidence.Equal(cj.Confidence) {
			return ci.Confidence.GreaterThan(cj.Confidence)
		}
		return reports[i].Symbol < reports[j].Symbol
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
