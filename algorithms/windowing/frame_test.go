package windowing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

func TestFrameSevenSamples(t *testing.T) {
	signal := []float64{0, 1, 2, 3, 4, 5, 6}
	frames, err := Frame(signal, 3, 1)
	require.NoError(t, err)

	length, count := frames.Dims()
	assert.Equal(t, 3, length)
	require.Equal(t, 5, count)
	for j := range count {
		assert.Equal(t, []float64{float64(j), float64(j + 1), float64(j + 2)}, frames.Column(j))
	}
	assert.Equal(t, 5.0, frames.At(1, 4))
}

func TestFrameDropsTrailingSamples(t *testing.T) {
	frames, err := Frame(make([]float64, 10), 4, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, frames.Count())
}

func TestFrameIsAView(t *testing.T) {
	signal := []float64{1, 2, 3, 4}
	frames, err := Frame(signal, 2, 2)
	require.NoError(t, err)
	signal[2] = 42
	assert.Equal(t, 42.0, frames.At(0, 1))
}

func TestFrameErrors(t *testing.T) {
	_, err := Frame([]float64{1, 2}, 3, 1)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = Frame([]float64{1, 2, 3}, 2, 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = Frame([]float64{1, math.NaN(), 3}, 2, 1)
	assert.ErrorIs(t, err, common.ErrNotFinite)
}
