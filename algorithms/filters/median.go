package filters

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// MedianFilter applies a 2-D median filter with a rows x cols footprint.
//
// Boundaries are extended by reflection with the edge sample repeated
// (d c b a | a b c d | d c b a). For an even footprint the window for
// element i spans [i - size/2, i - size/2 + size) and the upper of the two
// middle values is returned, so the output matches a rank filter of rank
// size/2.
//
// References:
//   - Fitzgerald, "Harmonic/Percussive Separation using Median Filtering", DAFx 2010
type MedianFilter struct {
	rows int
	cols int
}

// NewMedianFilter creates a filter with the given footprint.
func NewMedianFilter(rows, cols int) (*MedianFilter, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: median footprint must be positive, got %dx%d",
			common.ErrInvalidParameter, rows, cols)
	}
	return &MedianFilter{rows: rows, cols: cols}, nil
}

// NewAxisMedianFilter creates a filter of the given size that slides along
// one axis only: axis 0 filters down each column, axis 1 along each row.
func NewAxisMedianFilter(size, axis int) (*MedianFilter, error) {
	switch axis {
	case 0:
		return NewMedianFilter(size, 1)
	case 1:
		return NewMedianFilter(1, size)
	}
	return nil, fmt.Errorf("%w: axis must be 0 or 1, got %d", common.ErrInvalidParameter, axis)
}

// Apply filters m into a new matrix.
func (f *MedianFilter) Apply(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	window := make([]float64, f.rows*f.cols)
	rank := len(window) / 2
	rowOff, colOff := f.rows/2, f.cols/2

	for i := range r {
		for j := range c {
			n := 0
			for di := range f.rows {
				ii := common.SymmetricIndex(i-rowOff+di, r)
				for dj := range f.cols {
					jj := common.SymmetricIndex(j-colOff+dj, c)
					window[n] = m.At(ii, jj)
					n++
				}
			}
			sort.Float64s(window)
			out.Set(i, j, window[rank])
		}
	}
	return out
}
