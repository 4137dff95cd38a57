package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Indicator names used in events, zones and divergences
const (
	IndicatorWaveTrend = "wavetrend"
	IndicatorRSI       = "rsi"
	IndicatorStochRSI  = "stoch_rsi"
	IndicatorMoneyFlow = "money_flow"
	IndicatorMFI       = "mfi"
)

// Signal is the discrete trading decision derived from a score
type Signal string

const (
	SignalStrongSell Signal = "STRONG_SELL"
	SignalWeakSell   Signal = "WEAK_SELL"
	SignalNeutral    Signal = "NEUTRAL"
	SignalWeakBuy    Signal = "WEAK_BUY"
	SignalStrongBuy  Signal = "STRONG_BUY"
)

// Family is the directional family of a signal
type Family string

const (
	FamilyBuy  Family = "buy"
	FamilySell Family = "sell"
	FamilyNone Family = "none"
)

// Family returns the directional family of the signal.
func (s Signal) Family() Family {
	switch s {
	case SignalStrongBuy, SignalWeakBuy:
		return FamilyBuy
	case SignalStrongSell, SignalWeakSell:
		return FamilySell
	default:
		return FamilyNone
	}
}

// Zone is the membership of an oscillator value relative to its thresholds
type Zone string

const (
	ZoneOversold   Zone = "oversold"
	ZoneNeutral    Zone = "neutral"
	ZoneOverbought Zone = "overbought"
	ZoneUndefined  Zone = "undefined"
)

// PivotKind distinguishes local maxima from local minima
type PivotKind string

const (
	PivotTop    PivotKind = "top"
	PivotBottom PivotKind = "bottom"
)

// Pivot is a fractal extremum, confirmed two samples after Index
type Pivot struct {
	Index       int       `json:"index"`
	ConfirmedAt int       `json:"confirmed_at"`
	Kind        PivotKind `json:"kind"`
	Value       float64   `json:"value"`
}

// DivergenceKind enumerates the four divergence classes
type DivergenceKind string

const (
	RegularBullish DivergenceKind = "regular_bullish"
	RegularBearish DivergenceKind = "regular_bearish"
	HiddenBullish  DivergenceKind = "hidden_bullish"
	HiddenBearish  DivergenceKind = "hidden_bearish"
)

// Bullish reports whether the divergence points up.
func (k DivergenceKind) Bullish() bool {
	return k == RegularBullish || k == HiddenBullish
}

// Regular reports whether the divergence is a reversal (regular) divergence.
func (k DivergenceKind) Regular() bool {
	return k == RegularBullish || k == RegularBearish
}

// Divergence relates two pivots of the same kind where price and indicator disagree
type Divergence struct {
	Indicator      string         `json:"indicator"`
	Kind           DivergenceKind `json:"kind"`
	AnchorIndex    int            `json:"anchor_pivot_index"`
	ReferenceIndex int            `json:"reference_pivot_index"`
	ConfirmedAt    int            `json:"confirmed_at"`
	Strength       float64        `json:"strength"`
}

// Contribution is one matched row of the scoring point table
type Contribution struct {
	Indicator string `json:"indicator"`
	Rule      string `json:"rule"`
	Points    int    `json:"points"`
}

// OscillatorValues holds the oscillator readings at one index; invalid entries are undefined
type OscillatorValues struct {
	WT1       decimal.NullDecimal `json:"wt1"`
	WT2       decimal.NullDecimal `json:"wt2"`
	RSI       decimal.NullDecimal `json:"rsi"`
	StochK    decimal.NullDecimal `json:"stoch_k"`
	StochD    decimal.NullDecimal `json:"stoch_d"`
	MoneyFlow decimal.NullDecimal `json:"money_flow"`
	MFI       decimal.NullDecimal `json:"mfi"`
}

// ContextValues holds unscored context indicators at one index
type ContextValues struct {
	MACD          decimal.NullDecimal `json:"macd"`
	MACDSignal    decimal.NullDecimal `json:"macd_signal"`
	MACDHistogram decimal.NullDecimal `json:"macd_histogram"`
	ATR           decimal.NullDecimal `json:"atr"`
	OBV           decimal.NullDecimal `json:"obv"`
	VWAP          decimal.NullDecimal `json:"vwap"`
}

// IndicatorState is the per-index view of one timeframe: values, zones, events and score
type IndicatorState struct {
	Index         int              `json:"index"`
	Timestamp     time.Time        `json:"timestamp"`
	Close         float64          `json:"close"`
	Values        OscillatorValues `json:"values"`
	Context       ContextValues    `json:"context"`
	Zones         map[string]Zone  `json:"zones"`
	Events        []string         `json:"events"`
	Divergences   []Divergence     `json:"divergences,omitempty"`
	Composites    []string         `json:"composites,omitempty"`
	Contributions []Contribution   `json:"contributions,omitempty"`
	Score         int              `json:"score"`
	Signal        Signal           `json:"signal"`
}

// HasEvent reports whether the named event fired at this index.
func (s IndicatorState) HasEvent(name string) bool {
	for _, e := range s.Events {
		if e == name {
			return true
		}
	}
	return false
}

// NullDecimal converts a possibly undefined float into a 4-place NullDecimal.
func NullDecimal(v float64) decimal.NullDecimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v).Round(4), Valid: true}
}
