// Package pivots finds fractal tops and bottoms in a series using a five point window.
// A pivot centered at index c is only known once index c+2 has been seen.
package pivots

import (
	"github.com/irfndi/cipher-ai-go/internal/models"
)

// Window is the number of samples a fractal spans.
const Window = 5

// Detector is an incremental fractal detector. It keeps only the last Window samples.
type Detector struct {
	last    [Window]float64
	seen    int
	tops    []models.Pivot
	bottoms []models.Pivot
}

// NewDetector returns an empty detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Push consumes the next value and returns the pivot it confirms, if any.
func (d *Detector) Push(v float64) (models.Pivot, bool) {
	copy(d.last[:], d.last[1:])
	d.last[Window-1] = v
	i := d.seen
	d.seen++
	if d.seen < Window {
		return models.Pivot{}, false
	}

	kind, ok := classify(d.last)
	if !ok {
		return models.Pivot{}, false
	}
	p := models.Pivot{Index: i - 2, ConfirmedAt: i, Kind: kind, Value: d.last[2]}
	if kind == models.PivotTop {
		d.tops = append(d.tops, p)
	} else {
		d.bottoms = append(d.bottoms, p)
	}
	return p, true
}

// Len returns the number of values consumed.
func (d *Detector) Len() int {
	return d.seen
}

// Tops returns the confirmed tops in index order.
func (d *Detector) Tops() []models.Pivot {
	return d.tops[:len(d.tops):len(d.tops)]
}

// Bottoms returns the confirmed bottoms in index order.
func (d *Detector) Bottoms() []models.Pivot {
	return d.bottoms[:len(d.bottoms):len(d.bottoms)]
}

// Set returns both pivot lists.
func (d *Detector) Set() models.PivotSet {
	return models.PivotSet{Tops: d.Tops(), Bottoms: d.Bottoms()}
}

// Clone returns an independent copy.
func (d *Detector) Clone() *Detector {
	cp := &Detector{last: d.last, seen: d.seen}
	cp.tops = append([]models.Pivot(nil), d.tops...)
	cp.bottoms = append([]models.Pivot(nil), d.bottoms...)
	return cp
}

// classify applies the strict fractal inequalities. Comparisons involving NaN are false,
// so a window with an undefined value never yields a pivot.
func classify(w [Window]float64) (models.PivotKind, bool) {
	c := w[2]
	if w[0] < c && w[1] < c && c > w[3] && c > w[4] {
		return models.PivotTop, true
	}
	if w[0] > c && w[1] > c && c < w[3] && c < w[4] {
		return models.PivotBottom, true
	}
	return "", false
}

// Detect finds every pivot in s from scratch.
func Detect(s models.Series) models.PivotSet {
	d := NewDetector()
	for _, v := range s.Values {
		d.Push(v)
	}
	return d.Set()
}

// DetectValues finds every pivot in raw values.
func DetectValues(values []float64) models.PivotSet {
	return Detect(models.SeriesFrom(values))
}
