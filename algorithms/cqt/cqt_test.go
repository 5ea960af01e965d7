package cqt

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/resample"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// decimator keeps every other sample; it stands in for a band-limited
// resampler where only lengths and rates matter.
type decimator struct {
	calls int
}

func (d *decimator) Resample(y []float64, srIn, srOut float64, _ resample.Quality, _ bool) ([]float64, error) {
	d.calls++
	step := int(math.Round(srIn / srOut))
	out := make([]float64, 0, resample.OutputLength(len(y), srIn, srOut))
	for i := 0; i < len(y); i += step {
		out = append(out, y[i])
	}
	return out, nil
}

func sine(freq, sr float64, n int) []float64 {
	y := make([]float64, n)
	for i := range y {
		y[i] = math.Sin(2 * math.Pi * freq * float64(i) / sr)
	}
	return y
}

func peakBin(m mat.Matrix, col int) int {
	rows, _ := m.Dims()
	column := make([]float64, rows)
	for i := range rows {
		column[i] = m.At(i, col)
	}
	return common.Argmax(column)
}

func TestLengthsDecrease(t *testing.T) {
	cfg := DefaultFilterConfig(22050)
	cfg.FMin = 32.7
	cfg.NBins = 12

	lengths, err := Lengths(cfg)
	require.NoError(t, err)
	require.Len(t, lengths, 12)
	for i := 1; i < len(lengths); i++ {
		assert.Less(t, lengths[i], lengths[i-1])
	}
	q := QualityFactor(1, 12)
	assert.InDelta(t, q*22050/32.7, lengths[0], 1e-9)
}

func TestLengthsErrors(t *testing.T) {
	cfg := DefaultFilterConfig(22050)
	cfg.FMin = 8000
	cfg.NBins = 24
	_, err := Lengths(cfg)
	assert.ErrorIs(t, err, common.ErrNyquistExceeded)

	cfg = DefaultFilterConfig(22050)
	cfg.FMin = 0
	_, err = Lengths(cfg)
	assert.ErrorIs(t, err, common.ErrInvalidParameter)

	cfg = DefaultFilterConfig(22050)
	cfg.BinsPerOctave = 0
	_, err = Lengths(cfg)
	assert.ErrorIs(t, err, common.ErrInvalidParameter)

	cfg = DefaultFilterConfig(22050)
	cfg.FilterScale = -1
	_, err = Lengths(cfg)
	assert.ErrorIs(t, err, common.ErrInvalidParameter)
}

func TestFrequenciesTuning(t *testing.T) {
	freqs := Frequencies(13, 440, 12, 0)
	assert.InDelta(t, 880, freqs[12], 1e-9)

	tuned := Frequencies(1, 440, 12, 0.5)
	assert.InDelta(t, 440*math.Pow(2, 0.5/12), tuned[0], 1e-9)
}

func TestConstantQFilters(t *testing.T) {
	cfg := DefaultFilterConfig(22050)
	cfg.NBins = 24

	filters, lengths, err := ConstantQ(cfg)
	require.NoError(t, err)
	require.Len(t, filters, 24)

	width := len(filters[0])
	assert.Equal(t, common.NextPowerOfTwo(width), width)
	assert.GreaterOrEqual(t, float64(width), lengths[0])
	for i, f := range filters {
		assert.Len(t, f, width)
		sum := 0.0
		for _, v := range f {
			sum += cmplx.Abs(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "filter %d", i)
	}

	cfg.PadFFT = false
	filters, lengths, err = ConstantQ(cfg)
	require.NoError(t, err)
	assert.Len(t, filters[0], int(math.Ceil(lengths[0])))
}

func TestFloatWindowSupport(t *testing.T) {
	win, err := floatWindow(DefaultFilterConfig(1).Window, 10.5)
	require.NoError(t, err)
	require.Len(t, win, 11)
	assert.Equal(t, 0.0, win[10])
	assert.Greater(t, win[5], 0.0)
}

func TestSparsifyRowsKeepRule(t *testing.T) {
	row := []complex128{1, 2, 3, 4}

	b, err := SparsifyRows([][]complex128{row}, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 3, b.RowNNZ(0))
	assert.Equal(t, complex128(0), b.Dense().At(0, 0))
	assert.Equal(t, complex128(2), b.Dense().At(0, 1))

	b, err = SparsifyRows([][]complex128{row}, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, b.NNZ())

	// the largest entry always survives
	b, err = SparsifyRows([][]complex128{row}, 0.99)
	require.NoError(t, err)
	assert.Equal(t, complex128(4), b.Dense().At(0, 3))

	_, err = SparsifyRows([][]complex128{row}, 1)
	assert.ErrorIs(t, err, common.ErrInvalidParameter)
}

func TestSparseBasisMul(t *testing.T) {
	b, err := SparsifyRows([][]complex128{{1, 0, 2i}, {0, 3, 0}}, 0)
	require.NoError(t, err)

	d := mat.NewCDense(3, 2, []complex128{
		1, 2,
		3, 4,
		5, 6,
	})
	out, err := b.Mul(d)
	require.NoError(t, err)
	assert.Equal(t, 1+10i, out.At(0, 0))
	assert.Equal(t, 2+12i, out.At(0, 1))
	assert.Equal(t, complex128(12), out.At(1, 1))

	abs, err := b.Abs().MulReal(mat.NewDense(3, 1, []float64{1, 1, 1}))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, abs.At(0, 0), 1e-12)

	_, err = b.Mul(mat.NewCDense(2, 2, nil))
	assert.ErrorIs(t, err, common.ErrShapeMismatch)
}

func TestFilterFFTHopInflation(t *testing.T) {
	cfg := DefaultFilterConfig(22050)
	cfg.FMin = 2000
	cfg.NBins = 12

	basis, nFFT, lengths, err := FilterFFT(cfg, 512, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 1024, nFFT)
	assert.Len(t, lengths, 12)
	rows, cols := basis.Dims()
	assert.Equal(t, 12, rows)
	assert.Equal(t, 513, cols)

	_, nFFT, _, err = FilterFFT(cfg, 0, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 256, nFFT)
}

func TestEarlyDownsampleCount(t *testing.T) {
	assert.Equal(t, 0, earlyDownsampleCount(11025, 4127, 512, 7))
	assert.Equal(t, 1, earlyDownsampleCount(22050, 4127, 512, 7))
	assert.Equal(t, 0, earlyDownsampleCount(22050, 4127, 64, 7))
}

func TestCQTOctaveRecursion(t *testing.T) {
	dec := &decimator{}
	rec := logging.NewRecorder()
	tr := NewTransformer(dec).WithLogger(rec)

	c, err := tr.CQT(sine(440, 22050, 4096), 22050, DefaultConfig())
	require.NoError(t, err)
	rows, cols := c.Dims()
	assert.Equal(t, 84, rows)
	assert.Equal(t, 1+4096/512, cols)
	assert.Equal(t, 6, dec.calls)

	octaves := 0
	for _, e := range rec.Entries() {
		if e.Message == "octave analyzed" {
			octaves++
		}
	}
	assert.Equal(t, 7, octaves)
}

func TestCQTTopOctaveAtFullRate(t *testing.T) {
	// The top filter's cutoff sits above the fast resampler's pass band, so
	// the highest octave is analyzed before any halving.
	cfg := DefaultConfig()
	cfg.FMin = 80

	dec := &decimator{}
	rec := logging.NewRecorder()
	c, err := NewTransformer(dec).WithLogger(rec).CQT(sine(440, 22050, 4096), 22050, cfg)
	require.NoError(t, err)
	rows, cols := c.Dims()
	assert.Equal(t, 84, rows)
	assert.Equal(t, 1+4096/512, cols)
	assert.Equal(t, 5, dec.calls)

	octaves := 0
	for _, e := range rec.Entries() {
		if e.Message == "octave analyzed" {
			octaves++
		}
	}
	assert.Equal(t, 6, octaves)

	tr := NewTransformer(nil)
	freqs := Frequencies(84, 80, 12, 0)
	for _, bin := range []int{30, 78, 83} {
		c, err := tr.CQT(sine(freqs[bin], 22050, 22050), 22050, cfg)
		require.NoError(t, err)
		_, cols := c.Dims()
		assert.Equal(t, bin, peakBin(cmplxAbs(c), cols/2), "sine at bin %d", bin)
	}
}

func TestCQTEarlyDownsampleGain(t *testing.T) {
	// At 44.1 kHz the default bank is analyzed after one early halving.
	// With a decimating resampler that run sees the same samples as a
	// 22.05 kHz run on y[::2] with half the hop, so only the energy
	// compensation of the unscaled transform separates the two.
	y := sine(440, 44100, 8192)
	half := make([]float64, 0, len(y)/2)
	for i := 0; i < len(y); i += 2 {
		half = append(half, y[i])
	}

	for _, scale := range []bool{true, false} {
		cfg := DefaultConfig()
		cfg.Scale = scale
		dec := &decimator{}
		full, err := NewTransformer(dec).CQT(y, 44100, cfg)
		require.NoError(t, err)
		assert.Equal(t, 7, dec.calls)

		cfg.HopLength = 256
		ref, err := NewTransformer(&decimator{}).CQT(half, 22050, cfg)
		require.NoError(t, err)

		gain := 1.0
		if !scale {
			gain = math.Sqrt2
		}
		rows, cols := full.Dims()
		refRows, refCols := ref.Dims()
		require.Equal(t, refRows, rows)
		require.Equal(t, refCols, cols)
		for i := range rows {
			for j := range cols {
				want := ref.At(i, j) * complex(gain, 0)
				got := full.At(i, j)
				assert.InDelta(t, real(want), real(got), 1e-9, "scale=%v bin %d frame %d", scale, i, j)
				assert.InDelta(t, imag(want), imag(got), 1e-9, "scale=%v bin %d frame %d", scale, i, j)
			}
		}
	}
}

func TestTransformerSharesBandwidthCache(t *testing.T) {
	cache := windowing.NewBandwidthCache()
	a := NewTransformer(&decimator{}).WithBandwidthCache(cache)
	b := NewTransformer(&decimator{}).WithBandwidthCache(cache)
	assert.Same(t, a.bandwidths, b.bandwidths)

	a.WithBandwidthCache(nil)
	assert.Same(t, cache, a.bandwidths)

	cfg := DefaultConfig()
	cfg.Window = windowing.KaiserBeta(6)
	_, err := a.CQT(sine(440, 22050, 4096), 22050, cfg)
	require.NoError(t, err)
	_, err = b.CQT(sine(440, 22050, 4096), 22050, cfg)
	require.NoError(t, err)
}

func TestCQTScaleDividesByLengths(t *testing.T) {
	// At 22050 Hz the default bank needs no early downsampling, so the
	// scaled and unscaled transforms differ only by the row gains.
	y := sine(440, 22050, 4096)
	cfg := DefaultConfig()

	scaled, err := NewTransformer(&decimator{}).CQT(y, 22050, cfg)
	require.NoError(t, err)
	cfg.Scale = false
	raw, err := NewTransformer(&decimator{}).CQT(y, 22050, cfg)
	require.NoError(t, err)

	lengths, err := Lengths(DefaultFilterConfig(22050))
	require.NoError(t, err)
	for i, l := range lengths {
		want := raw.At(i, 4) / complex(math.Sqrt(l), 0)
		assert.InDelta(t, real(want), real(scaled.At(i, 4)), 1e-12)
		assert.InDelta(t, imag(want), imag(scaled.At(i, 4)), 1e-12)
	}
}

func TestCQTErrors(t *testing.T) {
	tr := NewTransformer(&decimator{})
	y := sine(440, 22050, 4096)

	cfg := DefaultConfig()
	cfg.HopLength = 100
	_, err := tr.CQT(y, 22050, cfg)
	assert.ErrorIs(t, err, common.ErrIncompatibleHopLength)

	_, err = tr.CQT(make([]float64, 8), 22050, DefaultConfig())
	assert.ErrorIs(t, err, common.ErrInputTooShort)

	_, err = tr.CQT(nil, 22050, DefaultConfig())
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	cfg = DefaultConfig()
	cfg.Sparsity = 1
	_, err = tr.CQT(y, 22050, cfg)
	assert.ErrorIs(t, err, common.ErrInvalidParameter)

	cfg = DefaultConfig()
	cfg.NBins = 120
	_, err = tr.CQT(y, 22050, cfg)
	assert.ErrorIs(t, err, common.ErrNyquistExceeded)
}

func TestCQTSinePeak(t *testing.T) {
	y := sine(440, 22050, 22050)
	c, err := NewTransformer(nil).CQT(y, 22050, DefaultConfig())
	require.NoError(t, err)

	_, cols := c.Dims()
	assert.Equal(t, 45, peakBin(cmplxAbs(c), cols/2))
}

func TestPseudoAndHybridSinePeak(t *testing.T) {
	y := sine(440, 22050, 22050)
	tr := NewTransformer(nil)

	p, err := tr.PseudoCQT(y, 22050, DefaultConfig())
	require.NoError(t, err)
	rows, cols := p.Dims()
	assert.Equal(t, 84, rows)
	assert.Equal(t, 45, peakBin(p, cols/2))

	h, err := tr.HybridCQT(y, 22050, DefaultConfig())
	require.NoError(t, err)
	rows, cols = h.Dims()
	assert.Equal(t, 84, rows)
	assert.Equal(t, 45, peakBin(h, cols/2))
}

func TestHybridAllPseudo(t *testing.T) {
	// With a long hop every filter fits in two hops.
	cfg := DefaultConfig()
	cfg.FMin = 1000
	cfg.NBins = 24
	cfg.HopLength = 4096

	tr := NewTransformer(&decimator{})
	y := sine(1000, 22050, 22050)
	h, err := tr.HybridCQT(y, 22050, cfg)
	require.NoError(t, err)
	p, err := tr.PseudoCQT(y, 22050, cfg)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(h, p, 1e-9))
}

func cmplxAbs(c *mat.CDense) *mat.Dense {
	r, k := c.Dims()
	out := mat.NewDense(r, k, nil)
	for i := range r {
		for j := range k {
			out.Set(i, j, cmplx.Abs(c.At(i, j)))
		}
	}
	return out
}
