package models

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/irfndi/cipher-ai-go/internal/utils"
)

// Series is an index-aligned sequence of values with NaN marking undefined entries.
// Lookback is the nominal number of samples needed for the first defined value.
type Series struct {
	Values   []float64 `json:"values"`
	Lookback int       `json:"lookback"`
}

// Undefined returns the value used for undefined entries.
func Undefined() float64 {
	return math.NaN()
}

// IsDefined reports whether v is a usable value.
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NewSeries wraps values with a nominal lookback.
func NewSeries(values []float64, lookback int) Series {
	return Series{Values: values, Lookback: lookback}
}

// SeriesFrom builds a fully defined series (lookback 1) from raw values.
func SeriesFrom(values []float64) Series {
	return Series{Values: values, Lookback: 1}
}

// UndefinedSeries returns n undefined values.
func UndefinedSeries(n, lookback int) Series {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return Series{Values: values, Lookback: lookback}
}

func (s Series) Len() int {
	return len(s.Values)
}

// At returns the value at i and whether it is defined. Out-of-range indices are undefined.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s.Values) {
		return math.NaN(), false
	}
	v := s.Values[i]
	return v, IsDefined(v)
}

// Defined reports whether the value at i is defined.
func (s Series) Defined(i int) bool {
	_, ok := s.At(i)
	return ok
}

// Value returns the value at i, or an error telling warm-up apart from degenerate input.
func (s Series) Value(i int) (float64, error) {
	if i < 0 || i >= len(s.Values) {
		return math.NaN(), fmt.Errorf("index %d out of range [0,%d)", i, len(s.Values))
	}
	v := s.Values[i]
	if IsDefined(v) {
		return v, nil
	}
	if i < s.Lookback-1 {
		return v, utils.ErrInsufficientData
	}
	return v, utils.ErrDegenerateInput
}

// Last returns the final value and whether it is defined.
func (s Series) Last() (float64, bool) {
	return s.At(len(s.Values) - 1)
}

// UndefinedPrefix counts the leading undefined values.
func (s Series) UndefinedPrefix() int {
	for i, v := range s.Values {
		if IsDefined(v) {
			return i
		}
	}
	return len(s.Values)
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	return Series{Values: values, Lookback: s.Lookback}
}

// MarshalJSON writes undefined entries as null.
func (s Series) MarshalJSON() ([]byte, error) {
	values := make([]*float64, len(s.Values))
	for i := range s.Values {
		if IsDefined(s.Values[i]) {
			v := s.Values[i]
			values[i] = &v
		}
	}
	return json.Marshal(struct {
		Values   []*float64 `json:"values"`
		Lookback int        `json:"lookback"`
	}{values, s.Lookback})
}

// UnmarshalJSON reads null entries as undefined.
func (s *Series) UnmarshalJSON(data []byte) error {
	var raw struct {
		Values   []*float64 `json:"values"`
		Lookback int        `json:"lookback"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Lookback = raw.Lookback
	s.Values = make([]float64, len(raw.Values))
	for i, v := range raw.Values {
		if v == nil {
			s.Values[i] = math.NaN()
		} else {
			s.Values[i] = *v
		}
	}
	return nil
}
