package scoring

import (
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

// MaxScore bounds the absolute score of any index.
const MaxScore = 85

// Points is the signed point table; each weight is applied with the sign of the matched rule
type Points struct {
	WaveTrendCross    int `mapstructure:"wavetrend_cross" json:"wavetrend_cross"`
	WaveTrendZone     int `mapstructure:"wavetrend_zone" json:"wavetrend_zone"`
	RSICross          int `mapstructure:"rsi_cross" json:"rsi_cross"`
	RSIZone           int `mapstructure:"rsi_zone" json:"rsi_zone"`
	StochCross        int `mapstructure:"stoch_cross" json:"stoch_cross"`
	StochZone         int `mapstructure:"stoch_zone" json:"stoch_zone"`
	MoneyFlow         int `mapstructure:"money_flow" json:"money_flow"`
	DivergenceRegular int `mapstructure:"divergence_regular" json:"divergence_regular"`
	DivergenceHidden  int `mapstructure:"divergence_hidden" json:"divergence_hidden"`
	MFICross          int `mapstructure:"mfi_cross" json:"mfi_cross"`
	MFIDivergence     int `mapstructure:"mfi_divergence" json:"mfi_divergence"`
}

// MaxMagnitude is the largest absolute score the table can produce at one index.
// Each rule set contributes at most one row.
func (p Points) MaxMagnitude() int {
	return max(p.WaveTrendCross, p.WaveTrendZone) +
		max(p.RSICross, p.RSIZone) +
		max(p.StochCross, p.StochZone) +
		p.MoneyFlow +
		2*max(p.DivergenceRegular, p.DivergenceHidden) +
		p.MFICross +
		p.MFIDivergence
}

// Zones are the oscillator thresholds used by the point table and zone membership
type Zones struct {
	WaveTrendOverbought        float64 `mapstructure:"wavetrend_overbought" json:"wavetrend_overbought"`
	WaveTrendOversold          float64 `mapstructure:"wavetrend_oversold" json:"wavetrend_oversold"`
	WaveTrendCrossOverbought   float64 `mapstructure:"wavetrend_cross_overbought" json:"wavetrend_cross_overbought"`
	WaveTrendCrossOversold     float64 `mapstructure:"wavetrend_cross_oversold" json:"wavetrend_cross_oversold"`
	WaveTrendExtremeOverbought float64 `mapstructure:"wavetrend_extreme_overbought" json:"wavetrend_extreme_overbought"`
	WaveTrendExtremeOversold   float64 `mapstructure:"wavetrend_extreme_oversold" json:"wavetrend_extreme_oversold"`
	RSIOverbought              float64 `mapstructure:"rsi_overbought" json:"rsi_overbought"`
	RSIOversold                float64 `mapstructure:"rsi_oversold" json:"rsi_oversold"`
	StochOverbought            float64 `mapstructure:"stoch_overbought" json:"stoch_overbought"`
	StochOversold              float64 `mapstructure:"stoch_oversold" json:"stoch_oversold"`
	MFIOverbought              float64 `mapstructure:"mfi_overbought" json:"mfi_overbought"`
	MFIOversold                float64 `mapstructure:"mfi_oversold" json:"mfi_oversold"`
}

// Thresholds map a score onto a Signal; comparisons are strict
type Thresholds struct {
	Strong int `mapstructure:"strong" json:"strong"`
	Weak   int `mapstructure:"weak" json:"weak"`
}

// CompositeRule is one row of the composite table: every named condition must hold
type CompositeRule struct {
	Name       string   `mapstructure:"name" json:"name"`
	Conditions []string `mapstructure:"conditions" json:"conditions"`
}

// Config is the immutable scoring configuration
type Config struct {
	Points     Points          `mapstructure:"points" json:"points"`
	Zones      Zones           `mapstructure:"zones" json:"zones"`
	Thresholds Thresholds      `mapstructure:"thresholds" json:"thresholds"`
	Composites []CompositeRule `mapstructure:"composites" json:"composites"`
}

// DefaultConfig returns the default point table, zones and composites.
func DefaultConfig() Config {
	return Config{
		Points: Points{
			WaveTrendCross:    25,
			WaveTrendZone:     10,
			RSICross:          15,
			RSIZone:           8,
			StochCross:        15,
			StochZone:         7,
			MoneyFlow:         10,
			DivergenceRegular: 10,
			DivergenceHidden:  5,
			MFICross:          0,
			MFIDivergence:     0,
		},
		Zones: Zones{
			WaveTrendOverbought:        60,
			WaveTrendOversold:          -60,
			WaveTrendCrossOverbought:   53,
			WaveTrendCrossOversold:     -53,
			WaveTrendExtremeOverbought: 75,
			WaveTrendExtremeOversold:   -75,
			RSIOverbought:              70,
			RSIOversold:                30,
			StochOverbought:            80,
			StochOversold:              20,
			MFIOverbought:              80,
			MFIOversold:                20,
		},
		Thresholds: Thresholds{Strong: 75, Weak: 50},
		Composites: DefaultComposites(),
	}
}

// DefaultComposites returns the gold and Sommi rows.
func DefaultComposites() []CompositeRule {
	return []CompositeRule{
		{Name: "gold_buy", Conditions: []string{"wt_bullish_divergence", "wt2_extreme_oversold", "rsi_oversold"}},
		{Name: "sommi_bullish", Conditions: []string{"wt_cross_up", "wt2_oversold", "money_flow_positive", "bullish_divergence"}},
		{Name: "sommi_bearish", Conditions: []string{"wt_cross_down", "wt2_overbought", "money_flow_negative", "bearish_divergence"}},
	}
}

// Validate rejects negative weights, a table that can leave [-MaxScore, MaxScore],
// inverted zones, bad thresholds and composites naming unknown conditions.
func (c Config) Validate() error {
	weights := []struct {
		field string
		value int
	}{
		{"points.wavetrend_cross", c.Points.WaveTrendCross},
		{"points.wavetrend_zone", c.Points.WaveTrendZone},
		{"points.rsi_cross", c.Points.RSICross},
		{"points.rsi_zone", c.Points.RSIZone},
		{"points.stoch_cross", c.Points.StochCross},
		{"points.stoch_zone", c.Points.StochZone},
		{"points.money_flow", c.Points.MoneyFlow},
		{"points.divergence_regular", c.Points.DivergenceRegular},
		{"points.divergence_hidden", c.Points.DivergenceHidden},
		{"points.mfi_cross", c.Points.MFICross},
		{"points.mfi_divergence", c.Points.MFIDivergence},
	}
	for _, w := range weights {
		if w.value < 0 {
			return utils.NewConfigurationErrorf(w.field, "must be >= 0, got %d", w.value)
		}
	}
	if m := c.Points.MaxMagnitude(); m > MaxScore {
		return utils.NewConfigurationErrorf("points", "inconsistent weights: maximum attainable score %d exceeds %d", m, MaxScore)
	}

	pairs := []struct {
		field     string
		low, high float64
	}{
		{"zones.wavetrend", c.Zones.WaveTrendOversold, c.Zones.WaveTrendOverbought},
		{"zones.wavetrend_cross", c.Zones.WaveTrendCrossOversold, c.Zones.WaveTrendCrossOverbought},
		{"zones.wavetrend_extreme", c.Zones.WaveTrendExtremeOversold, c.Zones.WaveTrendExtremeOverbought},
		{"zones.rsi", c.Zones.RSIOversold, c.Zones.RSIOverbought},
		{"zones.stoch", c.Zones.StochOversold, c.Zones.StochOverbought},
		{"zones.mfi", c.Zones.MFIOversold, c.Zones.MFIOverbought},
	}
	for _, p := range pairs {
		if !(p.low < p.high) {
			return utils.NewConfigurationErrorf(p.field, "oversold %v must be below overbought %v", p.low, p.high)
		}
	}

	if c.Thresholds.Weak <= 0 || c.Thresholds.Weak >= c.Thresholds.Strong || c.Thresholds.Strong > MaxScore {
		return utils.NewConfigurationErrorf("thresholds", "need 0 < weak < strong <= %d, got weak=%d strong=%d",
			MaxScore, c.Thresholds.Weak, c.Thresholds.Strong)
	}

	seen := make(map[string]bool, len(c.Composites))
	for _, rule := range c.Composites {
		if rule.Name == "" {
			return utils.NewConfigurationError("composites", "rule without a name")
		}
		if seen[rule.Name] {
			return utils.NewConfigurationErrorf("composites."+rule.Name, "duplicate rule")
		}
		seen[rule.Name] = true
		if len(rule.Conditions) == 0 {
			return utils.NewConfigurationErrorf("composites."+rule.Name, "needs at least one condition")
		}
		for _, cond := range rule.Conditions {
			if _, ok := conditions[cond]; !ok {
				return utils.NewConfigurationErrorf("composites."+rule.Name, "unknown condition %q", cond)
			}
		}
	}
	return nil
}
