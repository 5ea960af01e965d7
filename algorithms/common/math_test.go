package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.True(t, math.IsNaN(Median(nil)))
}

func TestNumTwoFactors(t *testing.T) {
	assert.Equal(t, 9, NumTwoFactors(512))
	assert.Equal(t, 2, NumTwoFactors(100))
	assert.Equal(t, 0, NumTwoFactors(7))
	assert.Equal(t, 0, NumTwoFactors(0))
}

func TestReflectIndex(t *testing.T) {
	// signal a b c d: index -1 -> b, -3 -> d, 4 -> c, 6 -> a
	assert.Equal(t, 1, ReflectIndex(-1, 4))
	assert.Equal(t, 3, ReflectIndex(-3, 4))
	assert.Equal(t, 2, ReflectIndex(4, 4))
	assert.Equal(t, 0, ReflectIndex(6, 4))
	assert.Equal(t, 0, ReflectIndex(5, 1))
}

func TestSymmetricIndex(t *testing.T) {
	assert.Equal(t, 0, SymmetricIndex(-1, 3))
	assert.Equal(t, 2, SymmetricIndex(3, 3))
	assert.Equal(t, 1, SymmetricIndex(4, 3))
}

func TestRollAndFixLength(t *testing.T) {
	assert.Equal(t, []float64{3, 1, 2}, Roll([]float64{1, 2, 3}, 1))
	assert.Equal(t, []float64{2, 3, 1}, Roll([]float64{1, 2, 3}, -1))
	assert.Equal(t, []float64{1, 2, 0}, FixLength([]float64{1, 2}, 3))
	assert.Equal(t, []float64{1}, FixLength([]float64{1, 2}, 1))
}

func TestRollRowsAndCols(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	rows := RollRows(m, -1)
	assert.Equal(t, []float64{3, 4}, rows.RawRowView(0))
	assert.Equal(t, []float64{1, 2}, rows.RawRowView(2))

	cols := RollCols(m, 1)
	assert.Equal(t, []float64{2, 1}, cols.RawRowView(0))
}

func TestLinspace(t *testing.T) {
	assert.InDeltaSlice(t, []float64{-0.5, -0.25, 0, 0.25}, Linspace(-0.5, 0.5, 4, false), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3, true), 1e-12)
}

func TestConvolveSame(t *testing.T) {
	out := ConvolveSame([]float64{0, 0, 1, 0, 0}, []float64{1, 2, 3})
	assert.Equal(t, []float64{0, 1, 2, 3, 0}, out)
}

func TestParabolicPeak(t *testing.T) {
	shift, height := ParabolicPeak(1, 3, 2)
	assert.InDelta(t, 1.0/6, shift, 1e-12)
	assert.InDelta(t, 3+0.5*0.5/6, height, 1e-12)

	shift, height = ParabolicPeak(1, 2, 1)
	assert.Equal(t, 0.0, shift)
	assert.Equal(t, 2.0, height)

	shift, _ = ParabolicPeak(1, 1, 1)
	assert.Equal(t, 0.0, shift)
}
