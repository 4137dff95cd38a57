package models

import (
	"time"
)

// Candle represents one OHLCV bar of a (symbol, timeframe) sequence
type Candle struct {
	Timestamp time.Time `json:"timestamp" db:"open_time" binding:"required"`
	Open      float64   `json:"open" db:"open" binding:"gt=0"`
	High      float64   `json:"high" db:"high" binding:"gt=0,gtefield=Low"`
	Low       float64   `json:"low" db:"low" binding:"gt=0"`
	Close     float64   `json:"close" db:"close" binding:"gt=0"`
	Volume    float64   `json:"volume" db:"volume" binding:"gte=0"`
}

// TypicalPrice returns (high+low+close)/3
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// Range returns high-low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// CandleRequest represents request parameters for candle reads
type CandleRequest struct {
	Symbol    string `json:"symbol" form:"symbol" binding:"required"`
	Timeframe string `json:"timeframe" form:"timeframe" binding:"required"`
	Limit     int    `json:"limit" form:"limit"`
}

// Equal reports whether both candles carry the same timestamp and OHLCV values.
func (c Candle) Equal(o Candle) bool {
	return c.Timestamp.Equal(o.Timestamp) &&
		c.Open == o.Open &&
		c.High == o.High &&
		c.Low == o.Low &&
		c.Close == o.Close &&
		c.Volume == o.Volume
}

// SharesPrefix reports whether next starts with every candle of prev. A bar revised in
// place (same timestamp, new values) breaks the prefix.
func SharesPrefix(prev, next []Candle) bool {
	if len(next) < len(prev) {
		return false
	}
	for i := range prev {
		if !prev[i].Equal(next[i]) {
			return false
		}
	}
	return true
}

// Closes extracts the close prices.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high prices.
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low prices.
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts the volumes.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
