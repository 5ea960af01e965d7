package spectral

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
)

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	y := make([]float64, n)
	for i := range y {
		y[i] = rng.Float64()*2 - 1
	}
	return y
}

func TestSTFTShape(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NFFT = 512
	d, err := NewSTFT().Compute(make([]float64, 4096), cfg)
	require.NoError(t, err)

	rows, cols := d.Dims()
	assert.Equal(t, 257, rows)
	// centered: 1 + len / hop
	assert.Equal(t, 1+4096/128, cols)
}

func TestSTFTImpulseIsFlat(t *testing.T) {
	const nFFT = 256
	y := make([]float64, nFFT)
	y[0] = 1

	cfg := DefaultConfig()
	cfg.NFFT = nFFT
	d, err := NewSTFT().Compute(y, cfg)
	require.NoError(t, err)

	rows, _ := d.Dims()
	for k := range rows {
		assert.InDelta(t, 1.0, cmplx.Abs(d.At(k, 0)), 1e-9, "bin %d", k)
	}
}

func TestSTFTConjugateConvention(t *testing.T) {
	const nFFT = 64
	y := make([]float64, 4*nFFT)
	for i := range y {
		y[i] = math.Sin(2 * math.Pi * 4 * float64(i) / nFFT)
	}
	cfg := Config{NFFT: nFFT, HopLength: nFFT, Window: windowing.Ones, Center: false}
	d, err := NewSTFT().Compute(y, cfg)
	require.NoError(t, err)

	// The plain DFT of this sine is -i*n/2 at bin 4; the output is its conjugate.
	assert.InDelta(t, float64(nFFT)/2, imag(d.At(4, 0)), 1e-9)
	assert.InDelta(t, 0.0, real(d.At(4, 0)), 1e-9)
}

func TestSTFTRoundTripCentered(t *testing.T) {
	y := randomSignal(4096, 1)
	cfg := DefaultConfig()
	cfg.NFFT = 512

	s := NewSTFT()
	d, err := s.Compute(y, cfg)
	require.NoError(t, err)

	back, err := s.Inverse(d, cfg, 0)
	require.NoError(t, err)
	require.Len(t, back, len(y))
	assert.InDeltaSlice(t, y, back, 1e-9)
}

func TestSTFTRoundTripUncentered(t *testing.T) {
	const nFFT = 256
	y := randomSignal(2048, 2)
	cfg := Config{NFFT: nFFT, HopLength: 64, Window: windowing.Hann, Center: false}

	s := NewSTFT()
	d, err := s.Compute(y, cfg)
	require.NoError(t, err)
	back, err := s.Inverse(d, cfg, 0)
	require.NoError(t, err)

	interior := back[nFFT/2 : len(back)-nFFT/2]
	assert.InDeltaSlice(t, y[nFFT/2:len(back)-nFFT/2], interior, 1e-9)
}

func TestInverseReconstructsImpulse(t *testing.T) {
	const nFFT = 128
	y := make([]float64, nFFT)
	y[0] = 1
	cfg := DefaultConfig()
	cfg.NFFT = nFFT

	s := NewSTFT()
	d, err := s.Compute(y, cfg)
	require.NoError(t, err)
	back, err := s.Inverse(d, cfg, nFFT)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, back, 1e-9)
}

func TestSTFTBlocksMatchSingleWorker(t *testing.T) {
	y := randomSignal(1<<15, 3)
	cfg := DefaultConfig()
	cfg.NFFT = 4096

	parallel, err := NewSTFT().Compute(y, cfg)
	require.NoError(t, err)

	serial := NewSTFT()
	serial.workers = 1
	single, err := serial.Compute(y, cfg)
	require.NoError(t, err)

	assert.True(t, mat.CEqual(parallel, single))
}

func TestSTFTErrors(t *testing.T) {
	s := NewSTFT()
	cfg := DefaultConfig()

	_, err := s.Compute(nil, cfg)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = s.Compute([]float64{1, math.NaN()}, cfg)
	assert.ErrorIs(t, err, common.ErrNotFinite)

	cfg.Center = false
	_, err = s.Compute(make([]float64, 100), cfg)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	bad := DefaultConfig()
	bad.WinLength = 4096
	_, err = s.Compute(make([]float64, 100), bad)
	assert.ErrorIs(t, err, common.ErrInvalidParameter)

	bad = DefaultConfig()
	bad.Window = windowing.Vector{1, 2}
	_, err = s.Compute(make([]float64, 4096), bad)
	assert.ErrorIs(t, err, common.ErrInvalidWindowSpec)
}

func TestMagphase(t *testing.T) {
	d := mat.NewCDense(1, 3, []complex128{3 + 4i, 0, -2})
	mag, phase := Magphase(d)
	assert.Equal(t, []float64{5, 0, 2}, mag.RawRowView(0))
	for j := range 3 {
		recon := complex(mag.At(0, j), 0) * phase.At(0, j)
		assert.InDelta(t, real(d.At(0, j)), real(recon), 1e-12)
		assert.InDelta(t, imag(d.At(0, j)), imag(recon), 1e-12)
	}
	assert.Equal(t, complex(1, 0), phase.At(0, 1))
}

func TestFFTFrequencies(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0, 2000, 4000, 6000, 8000}, FFTFrequencies(16000, 8), 1e-9)
}

func TestFFTComplexZeroPads(t *testing.T) {
	f := NewFFT()
	out := f.Complex([]complex128{1, 1}, 4)
	require.Len(t, out, 4)
	assert.InDelta(t, 2.0, real(out[0]), 1e-12)
	assert.InDelta(t, 0.0, cmplx.Abs(out[2]), 1e-12)

	truncated := f.Complex([]complex128{1, 2, 3}, 2)
	require.Len(t, truncated, 2)
	assert.InDelta(t, 3.0, real(truncated[0]), 1e-12)
	assert.Empty(t, f.Complex([]complex128{1}, 0))
}

func TestUnits(t *testing.T) {
	assert.InDelta(t, 15.0, HzToMel(1000, false), 1e-12)
	assert.InDelta(t, 440.0, MelToHz(HzToMel(440, true), true), 1e-9)
	assert.InDelta(t, 3000.0, MelToHz(HzToMel(3000, false), false), 1e-9)
	assert.InDelta(t, 4.0, HzToOcts(440, 440), 1e-12)
	assert.InDelta(t, 440.0, OctsToHz(4, 440), 1e-12)
}
