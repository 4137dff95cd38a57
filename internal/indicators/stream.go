package indicators

import (
	"github.com/irfndi/cipher-ai-go/internal/models"
)

// Stream computes every scored oscillator incrementally and keeps the produced values.
// A Stream has a single owner; share it only through Clone.
type Stream struct {
	cfg   Config
	wt    *WaveTrend
	rsi   *RSI
	stoch *StochRSI
	flow  *MoneyFlowArea
	mfi   *MFI

	wt1, wt2, rsiValues, k, d, flowValues, mfiValues []float64
}

// NewStream validates cfg and builds an empty stream.
func NewStream(cfg Config) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Stream{
		cfg:   cfg,
		wt:    NewWaveTrend(cfg.WaveTrend),
		rsi:   NewRSI(cfg.RSI.Period),
		stoch: NewStochRSI(cfg.StochRSI),
		flow:  NewMoneyFlowArea(cfg.MoneyFlow),
		mfi:   NewMFI(cfg.MFI.Period),
	}, nil
}

// Push consumes the next candle.
func (s *Stream) Push(c models.Candle) {
	wt1, wt2 := s.wt.Push(c)
	k, d := s.stoch.Push(c.Close)
	s.wt1 = append(s.wt1, wt1)
	s.wt2 = append(s.wt2, wt2)
	s.rsiValues = append(s.rsiValues, s.rsi.Push(c.Close))
	s.k = append(s.k, k)
	s.d = append(s.d, d)
	s.flowValues = append(s.flowValues, s.flow.Push(c))
	s.mfiValues = append(s.mfiValues, s.mfi.Push(c))
}

// Len returns the number of candles consumed.
func (s *Stream) Len() int {
	return len(s.wt1)
}

// Clone deep-copies the accumulators and value buffers.
func (s *Stream) Clone() *Stream {
	return &Stream{
		cfg:        s.cfg,
		wt:         s.wt.Clone(),
		rsi:        s.rsi.Clone(),
		stoch:      s.stoch.Clone(),
		flow:       s.flow.Clone(),
		mfi:        s.mfi.Clone(),
		wt1:        cloneValues(s.wt1),
		wt2:        cloneValues(s.wt2),
		rsiValues:  cloneValues(s.rsiValues),
		k:          cloneValues(s.k),
		d:          cloneValues(s.d),
		flowValues: cloneValues(s.flowValues),
		mfiValues:  cloneValues(s.mfiValues),
	}
}

// Oscillators returns the series produced so far. The returned slices are capped so later
// pushes on this stream never write into them.
func (s *Stream) Oscillators() models.OscillatorSeries {
	n := len(s.wt1)
	return models.OscillatorSeries{
		WT1:       models.NewSeries(s.wt1[:n:n], s.cfg.WaveTrend.WT1Lookback()),
		WT2:       models.NewSeries(s.wt2[:n:n], s.cfg.WaveTrend.WT2Lookback()),
		RSI:       models.NewSeries(s.rsiValues[:n:n], s.cfg.RSI.Lookback()),
		StochK:    models.NewSeries(s.k[:n:n], s.cfg.StochRSI.KLookback()),
		StochD:    models.NewSeries(s.d[:n:n], s.cfg.StochRSI.DLookback()),
		MoneyFlow: models.NewSeries(s.flowValues[:n:n], s.cfg.MoneyFlow.Lookback()),
		MFI:       models.NewSeries(s.mfiValues[:n:n], s.cfg.MFI.Lookback()),
	}
}

// Compute runs a fresh stream over candles.
func Compute(candles []models.Candle, cfg Config) (models.OscillatorSeries, error) {
	stream, err := NewStream(cfg)
	if err != nil {
		return models.OscillatorSeries{}, err
	}
	for _, c := range candles {
		stream.Push(c)
	}
	return stream.Oscillators(), nil
}

func cloneValues(values []float64) []float64 {
	out := make([]float64, len(values), cap(values))
	copy(out, values)
	return out
}
