package scoring

import (
	"sort"

	"github.com/irfndi/cipher-ai-go/internal/crosses"
	"github.com/irfndi/cipher-ai-go/internal/models"
)

type condition func(s *Snapshot, z Zones) bool

// conditions is the registry of predicates composite rules may name.
var conditions = map[string]condition{
	"wt_cross_up":   func(s *Snapshot, _ Zones) bool { return s.WTCross == crosses.Up },
	"wt_cross_down": func(s *Snapshot, _ Zones) bool { return s.WTCross == crosses.Down },

	"wt2_oversold":           func(s *Snapshot, z Zones) bool { return s.WT2 <= z.WaveTrendCrossOversold },
	"wt2_overbought":         func(s *Snapshot, z Zones) bool { return s.WT2 >= z.WaveTrendCrossOverbought },
	"wt2_extreme_oversold":   func(s *Snapshot, z Zones) bool { return s.WT2 <= z.WaveTrendExtremeOversold },
	"wt2_extreme_overbought": func(s *Snapshot, z Zones) bool { return s.WT2 >= z.WaveTrendExtremeOverbought },

	"rsi_oversold":   func(s *Snapshot, z Zones) bool { return s.RSI < z.RSIOversold },
	"rsi_overbought": func(s *Snapshot, z Zones) bool { return s.RSI > z.RSIOverbought },

	"stoch_oversold":   func(s *Snapshot, z Zones) bool { return s.StochK < z.StochOversold },
	"stoch_overbought": func(s *Snapshot, z Zones) bool { return s.StochK > z.StochOverbought },
	"stoch_cross_up":   func(s *Snapshot, _ Zones) bool { return s.StochCross == crosses.Up },
	"stoch_cross_down": func(s *Snapshot, _ Zones) bool { return s.StochCross == crosses.Down },

	"money_flow_positive": func(s *Snapshot, _ Zones) bool { return s.MoneyFlow > 0 },
	"money_flow_negative": func(s *Snapshot, _ Zones) bool { return s.MoneyFlow < 0 },

	"mfi_oversold":   func(s *Snapshot, z Zones) bool { return s.MFI < z.MFIOversold },
	"mfi_overbought": func(s *Snapshot, z Zones) bool { return s.MFI > z.MFIOverbought },
	"mfi_cross_up":   func(s *Snapshot, _ Zones) bool { return s.MFIOversoldCross == crosses.Up },
	"mfi_cross_down": func(s *Snapshot, _ Zones) bool { return s.MFIOverboughtCross == crosses.Down },

	"wt_bullish_divergence":  func(s *Snapshot, _ Zones) bool { return s.hasDivergence(models.IndicatorWaveTrend, true, "") },
	"wt_bearish_divergence":  func(s *Snapshot, _ Zones) bool { return s.hasDivergence(models.IndicatorWaveTrend, false, "") },
	"rsi_bullish_divergence": func(s *Snapshot, _ Zones) bool { return s.hasDivergence(models.IndicatorRSI, true, "") },
	"rsi_bearish_divergence": func(s *Snapshot, _ Zones) bool { return s.hasDivergence(models.IndicatorRSI, false, "") },
	"mfi_bullish_divergence": func(s *Snapshot, _ Zones) bool { return s.hasDivergence(models.IndicatorMFI, true, "") },
	"mfi_bearish_divergence": func(s *Snapshot, _ Zones) bool { return s.hasDivergence(models.IndicatorMFI, false, "") },
	"bullish_divergence":     func(s *Snapshot, _ Zones) bool { return s.hasDivergence("", true, "") },
	"bearish_divergence":     func(s *Snapshot, _ Zones) bool { return s.hasDivergence("", false, "") },
}

// Conditions lists the registered predicate names.
func Conditions() []string {
	names := make([]string, 0, len(conditions))
	for name := range conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type compiledComposite struct {
	name  string
	preds []condition
	zones Zones
}

func compile(rule CompositeRule, z Zones) compiledComposite {
	c := compiledComposite{name: rule.Name, zones: z}
	for _, name := range rule.Conditions {
		c.preds = append(c.preds, conditions[name])
	}
	return c
}

// match requires every predicate to hold at the snapshot index.
func (c compiledComposite) match(s *Snapshot) bool {
	for _, p := range c.preds {
		if !p(s, c.zones) {
			return false
		}
	}
	return len(c.preds) > 0
}
