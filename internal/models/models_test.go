package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/cipher-ai-go/internal/utils"
)

func TestSeries_ValueDistinguishesUndefinedKinds(t *testing.T) {
	nan := math.NaN()
	s := NewSeries([]float64{nan, nan, 1.5, nan, 2.5}, 3)

	_, err := s.Value(0)
	assert.ErrorIs(t, err, utils.ErrInsufficientData)
	_, err = s.Value(1)
	assert.ErrorIs(t, err, utils.ErrInsufficientData)

	v, err := s.Value(2)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	_, err = s.Value(3)
	assert.ErrorIs(t, err, utils.ErrDegenerateInput)

	_, err = s.Value(9)
	assert.Error(t, err)
}

func TestSeries_AtAndPrefix(t *testing.T) {
	s := NewSeries([]float64{math.NaN(), math.NaN(), 3, 4}, 3)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 2, s.UndefinedPrefix())
	assert.False(t, s.Defined(-1))
	assert.False(t, s.Defined(1))
	assert.True(t, s.Defined(2))

	last, ok := s.Last()
	assert.True(t, ok)
	assert.Equal(t, 4.0, last)

	all := UndefinedSeries(5, 10)
	assert.Equal(t, 5, all.UndefinedPrefix())
}

func TestSeries_CloneIsIndependent(t *testing.T) {
	s := SeriesFrom([]float64{1, 2, 3})
	c := s.Clone()
	c.Values[0] = 99

	assert.Equal(t, 1.0, s.Values[0])
}

func TestSeries_JSONRoundTripKeepsUndefined(t *testing.T) {
	s := NewSeries([]float64{math.NaN(), 1.25}, 2)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"values":[null,1.25],"lookback":2}`, string(data))

	var back Series
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsNaN(back.Values[0]))
	assert.Equal(t, 1.25, back.Values[1])
}

func TestSignal_Family(t *testing.T) {
	assert.Equal(t, FamilyBuy, SignalStrongBuy.Family())
	assert.Equal(t, FamilyBuy, SignalWeakBuy.Family())
	assert.Equal(t, FamilySell, SignalWeakSell.Family())
	assert.Equal(t, FamilySell, SignalStrongSell.Family())
	assert.Equal(t, FamilyNone, SignalNeutral.Family())
}

func TestSharesPrefix(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(n int) []Candle {
		out := make([]Candle, n)
		for i := range out {
			out[i] = Candle{Timestamp: base.Add(time.Duration(i) * time.Hour)}
		}
		return out
	}

	assert.True(t, SharesPrefix(mk(3), mk(5)))
	assert.True(t, SharesPrefix(mk(3), mk(3)))
	assert.False(t, SharesPrefix(mk(5), mk(3)))

	shifted := mk(5)
	shifted[1].Timestamp = shifted[1].Timestamp.Add(time.Minute)
	assert.False(t, SharesPrefix(mk(3), shifted))

	revisions := []func(c *Candle){
		func(c *Candle) { c.Open = 1 },
		func(c *Candle) { c.High = 1 },
		func(c *Candle) { c.Low = -1 },
		func(c *Candle) { c.Close = 1 },
		func(c *Candle) { c.Volume = 1 },
	}
	for _, revise := range revisions {
		revised := mk(5)
		revise(&revised[2])
		assert.False(t, SharesPrefix(mk(3), revised))
		assert.True(t, SharesPrefix(mk(2), revised))
	}

	local := mk(3)
	for i := range local {
		local[i].Timestamp = local[i].Timestamp.In(time.FixedZone("UTC+7", 7*3600))
	}
	assert.True(t, SharesPrefix(local, mk(4)))
}

func TestNullDecimal(t *testing.T) {
	assert.False(t, NullDecimal(math.NaN()).Valid)
	assert.False(t, NullDecimal(math.Inf(1)).Valid)

	d := NullDecimal(-53.123456)
	assert.True(t, d.Valid)
	assert.Equal(t, "-53.1235", d.Decimal.String())
}

func TestCandle_TypicalPrice(t *testing.T) {
	c := Candle{High: 12, Low: 6, Close: 9}
	assert.Equal(t, 9.0, c.TypicalPrice())
	assert.Equal(t, 6.0, c.Range())
}
