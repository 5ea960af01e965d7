package spectral

import (
	"github.com/mjibson/go-dsp/dsputils"
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps the go-dsp transforms used outside the STFT hot path, such as
// the spectra of constant-Q filters.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Complex computes the n-point spectrum of x, zero-padding or truncating x
// to n samples first.
func (f *FFT) Complex(x []complex128, n int) []complex128 {
	if n <= 0 {
		return []complex128{}
	}
	return fft.FFT(dsputils.ZeroPad(x, n))
}
