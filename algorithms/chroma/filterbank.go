// Package chroma folds spectrograms into pitch-class profiles.
//
// Two front ends are provided: a Gaussian filter bank over linear STFT bins
// and a bin-merging matrix over constant-Q bins. Both yield an n_chroma x
// frames matrix with C (or A) in the first row.
package chroma

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/spectral"
)

// FilterBankConfig describes the STFT-to-chroma projection.
type FilterBankConfig struct {
	SampleRate   float64     `json:"sample_rate" yaml:"sample_rate"`
	NFFT         int         `json:"n_fft" yaml:"n_fft"`
	NChroma      int         `json:"n_chroma" yaml:"n_chroma"`
	A440         float64     `json:"a440" yaml:"a440"`
	CenterOctave float64     `json:"center_octave" yaml:"center_octave"`
	OctaveWidth  float64     `json:"octave_width" yaml:"octave_width"` // 0 disables the octave weighting
	Norm         common.Norm `json:"-" yaml:"-"`
	BaseC        bool        `json:"base_c" yaml:"base_c"`
}

// DefaultFilterBankConfig returns a 12-bin bank centered on octave 5 with
// a two-octave Gaussian weighting.
func DefaultFilterBankConfig(sampleRate float64, nFFT int) FilterBankConfig {
	return FilterBankConfig{
		SampleRate:   sampleRate,
		NFFT:         nFFT,
		NChroma:      12,
		A440:         440,
		CenterOctave: 5,
		OctaveWidth:  2,
		Norm:         common.NormL2,
		BaseC:        true,
	}
}

// FilterBank returns the n_chroma x (1 + n_fft/2) projection matrix. Each
// FFT bin spreads over the chroma bins with a Gaussian whose width is the
// bin spacing in chroma units.
func FilterBank(cfg FilterBankConfig) (*mat.Dense, error) {
	switch {
	case !(cfg.SampleRate > 0):
		return nil, fmt.Errorf("%w: sample rate must be positive, got %v", common.ErrInvalidParameter, cfg.SampleRate)
	case cfg.NFFT < 2:
		return nil, fmt.Errorf("%w: n_fft must be at least 2, got %d", common.ErrInvalidParameter, cfg.NFFT)
	case cfg.NChroma < 1:
		return nil, fmt.Errorf("%w: n_chroma must be positive, got %d", common.ErrInvalidParameter, cfg.NChroma)
	case !(cfg.A440 > 0):
		return nil, fmt.Errorf("%w: A440 must be positive, got %v", common.ErrInvalidParameter, cfg.A440)
	case cfg.OctaveWidth < 0:
		return nil, fmt.Errorf("%w: octave width must be non-negative, got %v", common.ErrInvalidParameter, cfg.OctaveWidth)
	}

	n := float64(cfg.NChroma)
	nFFT := cfg.NFFT

	// Position of every FFT bin on the chroma axis. Bin 0 (DC) sits 1.5
	// octaves below bin 1.
	frqbins := make([]float64, nFFT)
	for k := 1; k < nFFT; k++ {
		f := float64(k) * cfg.SampleRate / float64(nFFT)
		frqbins[k] = n * spectral.HzToOcts(f, cfg.A440)
	}
	frqbins[0] = frqbins[1] - 1.5*n

	widths := make([]float64, nFFT)
	for k := range nFFT - 1 {
		widths[k] = math.Max(frqbins[k+1]-frqbins[k], 1)
	}
	widths[nFFT-1] = 1

	half := math.RoundToEven(n / 2)
	wts := mat.NewDense(cfg.NChroma, nFFT, nil)
	for c := range cfg.NChroma {
		for k := range nFFT {
			d := common.PositiveMod(frqbins[k]-float64(c)+half+10*n, n) - half
			z := 2 * d / widths[k]
			wts.Set(c, k, math.Exp(-0.5*z*z))
		}
	}

	wts, err := common.Normalize(wts, cfg.Norm, 0)
	if err != nil {
		return nil, err
	}

	if cfg.OctaveWidth > 0 {
		for k := range nFFT {
			z := (frqbins[k]/n - cfg.CenterOctave) / cfg.OctaveWidth
			gain := math.Exp(-0.5 * z * z)
			for c := range cfg.NChroma {
				wts.Set(c, k, wts.At(c, k)*gain)
			}
		}
	}

	if cfg.BaseC {
		wts = common.RollRows(wts, -3)
	}

	keep := 1 + nFFT/2
	return mat.DenseCopyOf(wts.Slice(0, cfg.NChroma, 0, keep)), nil
}
