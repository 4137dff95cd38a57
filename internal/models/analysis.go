package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OscillatorSeries bundles the scored oscillator outputs of one pipeline
type OscillatorSeries struct {
	WT1       Series `json:"wt1"`
	WT2       Series `json:"wt2"`
	RSI       Series `json:"rsi"`
	StochK    Series `json:"stoch_k"`
	StochD    Series `json:"stoch_d"`
	MoneyFlow Series `json:"money_flow"`
	MFI       Series `json:"mfi"`
}

// ContextSeries bundles unscored context indicators
type ContextSeries struct {
	MACD          Series `json:"macd"`
	MACDSignal    Series `json:"macd_signal"`
	MACDHistogram Series `json:"macd_histogram"`
	ATR           Series `json:"atr"`
	OBV           Series `json:"obv"`
	VWAP          Series `json:"vwap"`
}

// PivotSet holds the tops and bottoms detected on one series
type PivotSet struct {
	Tops    []Pivot `json:"tops"`
	Bottoms []Pivot `json:"bottoms"`
}

// TimeframeAnalysis is the full output of one (symbol, timeframe) pass
type TimeframeAnalysis struct {
	Symbol      string              `json:"symbol"`
	Timeframe   string              `json:"timeframe"`
	Candles     int                 `json:"candles"`
	Oscillators OscillatorSeries    `json:"oscillators"`
	Context     ContextSeries       `json:"context"`
	Pivots      map[string]PivotSet `json:"pivots"`
	Divergences []Divergence        `json:"divergences"`
	States      []IndicatorState    `json:"states"`
}

// Latest returns the state at the last index, if any.
func (a *TimeframeAnalysis) Latest() (IndicatorState, bool) {
	if a == nil || len(a.States) == 0 {
		return IndicatorState{}, false
	}
	return a.States[len(a.States)-1], true
}

// TimeframeScore is the confluence input for one timeframe
type TimeframeScore struct {
	Signal Signal `json:"signal"`
	Score  int    `json:"score"`
}

// ConfluenceResult is the multi-timeframe verdict for one symbol
type ConfluenceResult struct {
	Symbol          string            `json:"symbol"`
	Signals         map[string]Signal `json:"signals"`
	Scores          map[string]int    `json:"scores"`
	Direction       Family            `json:"direction"`
	AlignmentCount  int               `json:"alignment_count"`
	TotalTimeframes int               `json:"total_timeframes"`
	Confidence      decimal.Decimal   `json:"confidence"`
	VerdictScore    int               `json:"verdict_score"`
	Signal          Signal            `json:"signal"`
}

// SignalReport wraps a confluence verdict with the latest per-timeframe states
type SignalReport struct {
	ID          string                    `json:"id"`
	Symbol      string                    `json:"symbol"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Confluence  ConfluenceResult          `json:"confluence"`
	Timeframes  map[string]IndicatorState `json:"timeframes"`
}
