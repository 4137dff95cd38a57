// Package divergence classifies regular and hidden divergences between price and an
// indicator at consecutive pivots of the same kind.
package divergence

import (
	"math"
	"sort"

	"github.com/irfndi/cipher-ai-go/internal/models"
	"github.com/irfndi/cipher-ai-go/internal/pivots"
	"github.com/irfndi/cipher-ai-go/internal/utils"
)

// Pivot sources
const (
	PivotSourceIndicator = "indicator"
	PivotSourcePrice     = "price"
)

// Price sources
const (
	PriceSourceHighLow = "high_low"
	PriceSourceClose   = "close"
)

// Config controls pivot selection and the optional zone filter for one indicator
type Config struct {
	PivotSource      string  `mapstructure:"pivot_source" json:"pivot_source"`
	PriceSource      string  `mapstructure:"price_source" json:"price_source"`
	ZoneFilter       bool    `mapstructure:"zone_filter" json:"zone_filter"`
	ZoneFilterHidden bool    `mapstructure:"zone_filter_hidden" json:"zone_filter_hidden"`
	Overbought       float64 `mapstructure:"overbought" json:"overbought"`
	Oversold         float64 `mapstructure:"oversold" json:"oversold"`
	MaxLookback      int     `mapstructure:"max_lookback" json:"max_lookback"`
}

// Validate checks sources, thresholds and lookback. field prefixes error paths.
func (c Config) Validate(field string) error {
	switch c.PivotSource {
	case PivotSourceIndicator, PivotSourcePrice:
	default:
		return utils.NewConfigurationErrorf(field+".pivot_source", "unknown pivot source %q", c.PivotSource)
	}
	switch c.PriceSource {
	case PriceSourceHighLow, PriceSourceClose:
	default:
		return utils.NewConfigurationErrorf(field+".price_source", "unknown price source %q", c.PriceSource)
	}
	if c.MaxLookback < 0 {
		return utils.NewConfigurationErrorf(field+".max_lookback", "must be >= 0, got %d", c.MaxLookback)
	}
	if c.ZoneFilter && !(c.Oversold < c.Overbought) {
		return utils.NewConfigurationErrorf(field+".oversold", "must be below overbought (%v), got %v", c.Overbought, c.Oversold)
	}
	return nil
}

// Input is the data compared at pivots: Tops holds the price used at top pivots
// (highs or closes), Bottoms the price used at bottom pivots.
type Input struct {
	Name      string
	Tops      models.Series
	Bottoms   models.Series
	Indicator models.Series
}

// NewInput selects the price series for the configured price source.
func NewInput(name string, candles []models.Candle, indicator models.Series, priceSource string) Input {
	if priceSource == PriceSourceClose {
		closes := models.SeriesFrom(models.Closes(candles))
		return Input{Name: name, Tops: closes, Bottoms: closes, Indicator: indicator}
	}
	return Input{
		Name:      name,
		Tops:      models.SeriesFrom(models.Highs(candles)),
		Bottoms:   models.SeriesFrom(models.Lows(candles)),
		Indicator: indicator,
	}
}

// Classifier applies the divergence rules for one indicator
type Classifier struct {
	cfg Config
}

// NewClassifier validates cfg and returns a classifier.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate("divergence"); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

// Config returns the classifier configuration.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Pivots detects the pivots the classifier compares, per its pivot source.
func (c *Classifier) Pivots(in Input) models.PivotSet {
	if c.cfg.PivotSource == PivotSourcePrice {
		return models.PivotSet{
			Tops:    pivots.Detect(in.Tops).Tops,
			Bottoms: pivots.Detect(in.Bottoms).Bottoms,
		}
	}
	return pivots.Detect(in.Indicator)
}

// Classify detects pivots and returns every divergence ordered by confirmation index.
func (c *Classifier) Classify(in Input) []models.Divergence {
	return c.ClassifyPivots(in, c.Pivots(in))
}

// ClassifyPivots compares each pivot with the preceding pivot of the same kind.
func (c *Classifier) ClassifyPivots(in Input, set models.PivotSet) []models.Divergence {
	var out []models.Divergence
	for i := 1; i < len(set.Tops); i++ {
		if d, ok := c.pair(in, in.Tops, set.Tops[i-1], set.Tops[i], models.PivotTop); ok {
			out = append(out, d)
		}
	}
	for i := 1; i < len(set.Bottoms); i++ {
		if d, ok := c.pair(in, in.Bottoms, set.Bottoms[i-1], set.Bottoms[i], models.PivotBottom); ok {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ConfirmedAt != out[j].ConfirmedAt {
			return out[i].ConfirmedAt < out[j].ConfirmedAt
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func (c *Classifier) pair(in Input, price models.Series, ref, anchor models.Pivot, kind models.PivotKind) (models.Divergence, bool) {
	if c.cfg.MaxLookback > 0 && anchor.Index-ref.Index > c.cfg.MaxLookback {
		return models.Divergence{}, false
	}
	pr, ok1 := price.At(ref.Index)
	pa, ok2 := price.At(anchor.Index)
	ir, ok3 := in.Indicator.At(ref.Index)
	ia, ok4 := in.Indicator.At(anchor.Index)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return models.Divergence{}, false
	}

	var dk models.DivergenceKind
	switch kind {
	case models.PivotTop:
		switch {
		case pa > pr && ia < ir:
			dk = models.RegularBearish
		case pa < pr && ia > ir:
			dk = models.HiddenBearish
		default:
			return models.Divergence{}, false
		}
	default:
		switch {
		case pa < pr && ia > ir:
			dk = models.RegularBullish
		case pa > pr && ia < ir:
			dk = models.HiddenBullish
		default:
			return models.Divergence{}, false
		}
	}

	if !c.inZone(dk, ia) {
		return models.Divergence{}, false
	}

	return models.Divergence{
		Indicator:      in.Name,
		Kind:           dk,
		AnchorIndex:    anchor.Index,
		ReferenceIndex: ref.Index,
		ConfirmedAt:    anchor.Index + 2,
		Strength:       Strength(pr, pa, ir, ia),
	}, true
}

// inZone applies the zone filter to the anchor indicator value.
func (c *Classifier) inZone(kind models.DivergenceKind, anchor float64) bool {
	if !c.cfg.ZoneFilter || (!kind.Regular() && !c.cfg.ZoneFilterHidden) {
		return true
	}
	if kind.Bullish() {
		return anchor <= c.cfg.Oversold
	}
	return anchor >= c.cfg.Overbought
}

// Strength is the relative price move in percent times the indicator move. It is zero when
// either delta is zero and grows with both.
func Strength(priceRef, priceAnchor, indRef, indAnchor float64) float64 {
	priceDelta := math.Abs(priceAnchor - priceRef)
	if priceRef != 0 {
		priceDelta = priceDelta / math.Abs(priceRef) * 100
	}
	return priceDelta * math.Abs(indAnchor-indRef)
}

// FiredAt returns the divergences confirmed at index i.
func FiredAt(divs []models.Divergence, i int) []models.Divergence {
	lo := sort.Search(len(divs), func(j int) bool { return divs[j].ConfirmedAt >= i })
	hi := lo
	for hi < len(divs) && divs[hi].ConfirmedAt == i {
		hi++
	}
	return divs[lo:hi]
}
