package spectral

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// Magnitude returns |d|^power elementwise.
func Magnitude(d *mat.CDense, power float64) *mat.Dense {
	r, c := d.Dims()
	out := mat.NewDense(r, c, nil)
	for i := range r {
		row := out.RawRowView(i)
		for j := range c {
			m := cmplx.Abs(d.At(i, j))
			if power != 1 {
				m = math.Pow(m, power)
			}
			row[j] = m
		}
	}
	return out
}

// Magphase splits d into its magnitude and unit-modulus phase, so that
// d = magnitude * phase elementwise.
func Magphase(d *mat.CDense) (*mat.Dense, *mat.CDense) {
	r, c := d.Dims()
	mag := mat.NewDense(r, c, nil)
	phase := mat.NewCDense(r, c, nil)
	for i := range r {
		for j := range c {
			v := d.At(i, j)
			mag.Set(i, j, cmplx.Abs(v))
			phase.Set(i, j, cmplx.Rect(1, cmplx.Phase(v)))
		}
	}
	return mag, phase
}

// FFTFrequencies returns the center frequency of each of the 1 + n_fft/2
// STFT bins.
func FFTFrequencies(sampleRate float64, nFFT int) []float64 {
	return common.Linspace(0, sampleRate/2, 1+nFFT/2, true)
}
