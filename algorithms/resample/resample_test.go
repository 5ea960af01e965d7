package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

func sine(freq, sr float64, n int) []float64 {
	y := make([]float64, n)
	for i := range y {
		y[i] = math.Sin(2 * math.Pi * freq * float64(i) / sr)
	}
	return y
}

func energy(y []float64) float64 {
	e := 0.0
	for _, v := range y {
		e += v * v
	}
	return e
}

func TestOutputLength(t *testing.T) {
	assert.Equal(t, 5, OutputLength(9, 22050, 11025))
	assert.Equal(t, 4, OutputLength(8, 22050, 11025))
	assert.Equal(t, 0, OutputLength(0, 44100, 48000))
}

func TestResampleHalvesLength(t *testing.T) {
	y := sine(440, 22050, 22050)
	out, err := NewPolyphase().Resample(y, 22050, 11025, QualityFast, false)
	require.NoError(t, err)
	assert.Len(t, out, 11025)
}

func TestResampleScalePreservesEnergy(t *testing.T) {
	y := sine(440, 22050, 22050)
	out, err := NewPolyphase().Resample(y, 22050, 11025, QualityBest, true)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, energy(out)/energy(y), 0.05)
}

func TestResampleSameRateCopies(t *testing.T) {
	y := []float64{1, 2, 3}
	out, err := NewPolyphase().Resample(y, 8000, 8000, QualityBest, true)
	require.NoError(t, err)
	assert.Equal(t, y, out)
	out[0] = 9
	assert.Equal(t, 1.0, y[0])
}

func TestResampleErrors(t *testing.T) {
	_, err := NewPolyphase().Resample([]float64{1}, 0, 8000, QualityBest, false)
	assert.ErrorIs(t, err, common.ErrInvalidParameter)

	_, err = NewPolyphase().Resample([]float64{math.NaN()}, 8000, 4000, QualityBest, false)
	assert.ErrorIs(t, err, common.ErrNotFinite)
}

func TestParseQuality(t *testing.T) {
	q, err := ParseQuality("kaiser_fast")
	require.NoError(t, err)
	assert.Equal(t, QualityFast, q)
	assert.Equal(t, BandwidthFast, q.Bandwidth())

	_, err = ParseQuality("sinc")
	assert.ErrorIs(t, err, common.ErrInvalidParameter)
}
