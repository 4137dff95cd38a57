package engine

import (
	"github.com/irfndi/cipher-ai-go/internal/confluence"
	"github.com/irfndi/cipher-ai-go/internal/divergence"
	"github.com/irfndi/cipher-ai-go/internal/indicators"
	"github.com/irfndi/cipher-ai-go/internal/scoring"
)

// DivergenceConfig holds the per-indicator divergence settings
type DivergenceConfig struct {
	WaveTrend divergence.Config `mapstructure:"wavetrend" json:"wavetrend"`
	RSI       divergence.Config `mapstructure:"rsi" json:"rsi"`
	MFI       divergence.Config `mapstructure:"mfi" json:"mfi"`
}

// Config is the complete, immutable pipeline configuration
type Config struct {
	Indicators indicators.Config `mapstructure:"indicators" json:"indicators"`
	Divergence DivergenceConfig  `mapstructure:"divergence" json:"divergence"`
	Scoring    scoring.Config    `mapstructure:"scoring" json:"scoring"`
	Confluence confluence.Config `mapstructure:"confluence" json:"confluence"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Indicators: indicators.DefaultConfig(),
		Divergence: DivergenceConfig{
			WaveTrend: divergence.Config{
				PivotSource: divergence.PivotSourceIndicator,
				PriceSource: divergence.PriceSourceHighLow,
				ZoneFilter:  true,
				Overbought:  45,
				Oversold:    -65,
			},
			RSI: divergence.Config{
				PivotSource: divergence.PivotSourceIndicator,
				PriceSource: divergence.PriceSourceHighLow,
				ZoneFilter:  true,
				Overbought:  60,
				Oversold:    30,
			},
			MFI: divergence.Config{
				PivotSource: divergence.PivotSourceIndicator,
				PriceSource: divergence.PriceSourceHighLow,
				ZoneFilter:  true,
				Overbought:  80,
				Oversold:    20,
			},
		},
		Scoring:    scoring.DefaultConfig(),
		Confluence: confluence.DefaultConfig(),
	}
}

// Validate runs every component check and returns the first ConfigurationError.
func (c Config) Validate() error {
	if err := c.Indicators.Validate(); err != nil {
		return err
	}
	if err := c.Divergence.WaveTrend.Validate("divergence.wavetrend"); err != nil {
		return err
	}
	if err := c.Divergence.RSI.Validate("divergence.rsi"); err != nil {
		return err
	}
	if err := c.Divergence.MFI.Validate("divergence.mfi"); err != nil {
		return err
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	return c.Confluence.Validate()
}
