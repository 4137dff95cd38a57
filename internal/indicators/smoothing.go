package indicators

import "math"

// The accumulators below own their state and advance in O(1) per sample.
// An undefined input yields an undefined output and leaves the state untouched.

// ema is an exponential moving average seeded with the mean of the first period inputs.
type ema struct {
	period  int
	alpha   float64
	seedSum float64
	seen    int
	value   float64
}

func newEMA(period int) ema {
	return ema{period: period, alpha: 2 / float64(period+1)}
}

func (e *ema) next(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if e.seen < e.period {
		e.seedSum += x
		e.seen++
		if e.seen < e.period {
			return math.NaN()
		}
		e.value = e.seedSum / float64(e.period)
		return e.value
	}
	e.value += e.alpha * (x - e.value)
	return e.value
}

// sma is a simple moving average over the last period defined inputs.
type sma struct {
	period int
	window []float64
	pos    int
	filled int
	sum    float64
}

func newSMA(period int) sma {
	return sma{period: period, window: make([]float64, period)}
}

func (s *sma) next(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if s.filled == s.period {
		s.sum -= s.window[s.pos]
	} else {
		s.filled++
	}
	s.window[s.pos] = x
	s.sum += x
	s.pos = (s.pos + 1) % s.period
	if s.filled < s.period {
		return math.NaN()
	}
	return s.sum / float64(s.period)
}

func (s sma) clone() sma {
	window := make([]float64, len(s.window))
	copy(window, s.window)
	s.window = window
	return s
}

// wilder smooths with alpha 1/period after a first-window average seed.
type wilder struct {
	period  int
	seedSum float64
	seen    int
	value   float64
}

func newWilder(period int) wilder {
	return wilder{period: period}
}

func (w *wilder) next(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if w.seen < w.period {
		w.seedSum += x
		w.seen++
		if w.seen < w.period {
			return math.NaN()
		}
		w.value = w.seedSum / float64(w.period)
		return w.value
	}
	w.value = (w.value*float64(w.period-1) + x) / float64(w.period)
	return w.value
}

// extremes keeps the last period defined inputs and reports their min and max.
type extremes struct {
	period int
	window []float64
	pos    int
	filled int
}

func newExtremes(period int) extremes {
	return extremes{period: period, window: make([]float64, period)}
}

// next returns lowest, highest and whether the window is full.
func (e *extremes) next(x float64) (float64, float64, bool) {
	if math.IsNaN(x) {
		return math.NaN(), math.NaN(), false
	}
	e.window[e.pos] = x
	e.pos = (e.pos + 1) % e.period
	if e.filled < e.period {
		e.filled++
	}
	if e.filled < e.period {
		return math.NaN(), math.NaN(), false
	}
	lo, hi := e.window[0], e.window[0]
	for _, v := range e.window[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, true
}

func (e extremes) clone() extremes {
	window := make([]float64, len(e.window))
	copy(window, e.window)
	e.window = window
	return e
}

// smaValues applies a fresh SMA accumulator over values.
func smaValues(values []float64, period int) []float64 {
	acc := newSMA(period)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = acc.next(v)
	}
	return out
}

// emaValues applies a fresh EMA accumulator over values.
func emaValues(values []float64, period int) []float64 {
	acc := newEMA(period)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = acc.next(v)
	}
	return out
}
