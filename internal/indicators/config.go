package indicators

import (
	"math"

	"github.com/irfndi/cipher-ai-go/internal/utils"
)

// WaveTrendConfig holds the WaveTrend channel parameters
type WaveTrendConfig struct {
	ChannelLen int `mapstructure:"channel_len" json:"channel_len"`
	AverageLen int `mapstructure:"average_len" json:"average_len"`
	SignalLen  int `mapstructure:"signal_len" json:"signal_len"`
}

// RSIConfig holds the RSI period
type RSIConfig struct {
	Period int `mapstructure:"period" json:"period"`
}

// StochRSIConfig holds the Stochastic RSI parameters
type StochRSIConfig struct {
	RSILen   int  `mapstructure:"rsi_len" json:"rsi_len"`
	StochLen int  `mapstructure:"stoch_len" json:"stoch_len"`
	KSmooth  int  `mapstructure:"k_smooth" json:"k_smooth"`
	DSmooth  int  `mapstructure:"d_smooth" json:"d_smooth"`
	UseLog   bool `mapstructure:"use_log" json:"use_log"`
}

// MoneyFlowConfig holds the Money-Flow/RSI area parameters
type MoneyFlowConfig struct {
	Period     int     `mapstructure:"period" json:"period"`
	Multiplier float64 `mapstructure:"multiplier" json:"multiplier"`
	Offset     float64 `mapstructure:"offset" json:"offset"`
}

// ContextConfig holds the unscored context indicator periods
type ContextConfig struct {
	MACDFast   int `mapstructure:"macd_fast" json:"macd_fast"`
	MACDSlow   int `mapstructure:"macd_slow" json:"macd_slow"`
	MACDSignal int `mapstructure:"macd_signal" json:"macd_signal"`
}

// MFIConfig holds the volume Money Flow Index period
type MFIConfig struct {
	Period int `mapstructure:"period" json:"period"`
}

// Config is the immutable parameter set of the oscillator library
type Config struct {
	WaveTrend WaveTrendConfig `mapstructure:"wavetrend" json:"wavetrend"`
	RSI       RSIConfig       `mapstructure:"rsi" json:"rsi"`
	StochRSI  StochRSIConfig  `mapstructure:"stoch_rsi" json:"stoch_rsi"`
	MoneyFlow MoneyFlowConfig `mapstructure:"money_flow" json:"money_flow"`
	MFI       MFIConfig       `mapstructure:"mfi" json:"mfi"`
	Context   ContextConfig   `mapstructure:"context" json:"context"`
}

// DefaultConfig returns the default oscillator parameters.
func DefaultConfig() Config {
	return Config{
		WaveTrend: WaveTrendConfig{ChannelLen: 9, AverageLen: 12, SignalLen: 4},
		RSI:       RSIConfig{Period: 14},
		StochRSI:  StochRSIConfig{RSILen: 14, StochLen: 14, KSmooth: 3, DSmooth: 3, UseLog: true},
		MoneyFlow: MoneyFlowConfig{Period: 60, Multiplier: 150, Offset: 2.5},
		MFI:       MFIConfig{Period: 14},
		Context:   ContextConfig{MACDFast: 12, MACDSlow: 26, MACDSignal: 9},
	}
}

// Validate fails fast on non-positive periods and non-finite parameters.
func (c Config) Validate() error {
	checks := []struct {
		field string
		value int
	}{
		{"wavetrend.channel_len", c.WaveTrend.ChannelLen},
		{"wavetrend.average_len", c.WaveTrend.AverageLen},
		{"wavetrend.signal_len", c.WaveTrend.SignalLen},
		{"rsi.period", c.RSI.Period},
		{"stoch_rsi.rsi_len", c.StochRSI.RSILen},
		{"stoch_rsi.stoch_len", c.StochRSI.StochLen},
		{"stoch_rsi.k_smooth", c.StochRSI.KSmooth},
		{"stoch_rsi.d_smooth", c.StochRSI.DSmooth},
		{"money_flow.period", c.MoneyFlow.Period},
		{"mfi.period", c.MFI.Period},
		{"context.macd_fast", c.Context.MACDFast},
		{"context.macd_slow", c.Context.MACDSlow},
		{"context.macd_signal", c.Context.MACDSignal},
	}
	for _, check := range checks {
		if err := utils.RequirePositive(check.field, check.value); err != nil {
			return err
		}
	}
	if c.Context.MACDFast >= c.Context.MACDSlow {
		return utils.NewConfigurationErrorf("context.macd_fast", "must be < macd_slow (%d), got %d",
			c.Context.MACDSlow, c.Context.MACDFast)
	}
	if math.IsNaN(c.MoneyFlow.Multiplier) || math.IsInf(c.MoneyFlow.Multiplier, 0) || c.MoneyFlow.Multiplier <= 0 {
		return utils.NewConfigurationErrorf("money_flow.multiplier", "must be a finite value > 0, got %v", c.MoneyFlow.Multiplier)
	}
	if math.IsNaN(c.MoneyFlow.Offset) || math.IsInf(c.MoneyFlow.Offset, 0) {
		return utils.NewConfigurationErrorf("money_flow.offset", "must be finite, got %v", c.MoneyFlow.Offset)
	}
	return nil
}

// Lookback values are the number of candles needed for the first defined output.

func (c WaveTrendConfig) WT1Lookback() int {
	return 2*c.ChannelLen + c.AverageLen - 2
}

func (c WaveTrendConfig) WT2Lookback() int {
	return c.WT1Lookback() + c.SignalLen - 1
}

func (c RSIConfig) Lookback() int {
	return c.Period + 1
}

func (c StochRSIConfig) KLookback() int {
	return c.RSILen + c.StochLen + c.KSmooth - 1
}

func (c StochRSIConfig) DLookback() int {
	return c.KLookback() + c.DSmooth - 1
}

func (c MoneyFlowConfig) Lookback() int {
	return c.Period
}

func (c MFIConfig) Lookback() int {
	return c.Period + 1
}
