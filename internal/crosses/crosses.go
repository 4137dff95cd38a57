// Package crosses detects directional crossings at a single index using only i-1 and i.
package crosses

import (
	"github.com/irfndi/cipher-ai-go/internal/models"
)

// Direction of a crossing
type Direction int

const (
	None Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "none"
	}
}

// Detect reports whether a crosses b at i. Both series need defined values at i-1 and i.
func Detect(a, b models.Series, i int) Direction {
	a0, ok1 := a.At(i - 1)
	a1, ok2 := a.At(i)
	b0, ok3 := b.At(i - 1)
	b1, ok4 := b.At(i)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return None
	}
	return compare(a0, a1, b0, b1)
}

// DetectLevel reports whether a crosses the constant level at i.
func DetectLevel(a models.Series, level float64, i int) Direction {
	a0, ok1 := a.At(i - 1)
	a1, ok2 := a.At(i)
	if !ok1 || !ok2 || !models.IsDefined(level) {
		return None
	}
	return compare(a0, a1, level, level)
}

func compare(a0, a1, b0, b1 float64) Direction {
	switch {
	case a0 <= b0 && a1 > b1:
		return Up
	case a0 >= b0 && a1 < b1:
		return Down
	default:
		return None
	}
}

// CrossUp reports a crossing of a above b at i.
func CrossUp(a, b models.Series, i int) bool {
	return Detect(a, b, i) == Up
}

// CrossDown reports a crossing of a below b at i.
func CrossDown(a, b models.Series, i int) bool {
	return Detect(a, b, i) == Down
}
