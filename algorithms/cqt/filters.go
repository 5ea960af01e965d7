// Package cqt computes constant-Q transforms: a time-frequency analysis
// whose bins are spaced geometrically in frequency and whose filters keep a
// constant ratio of center frequency to bandwidth.
package cqt

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
)

// C1 is the default lowest center frequency.
const C1 = 32.70319566257483

// FilterConfig describes a constant-Q filter bank.
type FilterConfig struct {
	SampleRate    float64
	FMin          float64
	NBins         int
	BinsPerOctave int
	Tuning        float64 // offset from A440 in fractions of a bin
	Window        windowing.Spec
	FilterScale   float64
	PadFFT        bool // pad every filter to a power of two
	Norm          common.Norm

	// Bandwidths memoizes window bandwidths. A nil cache is replaced by a
	// fresh one seeded with the precomputed table.
	Bandwidths *windowing.BandwidthCache
}

// DefaultFilterConfig returns seven octaves of semitone filters from C1.
func DefaultFilterConfig(sampleRate float64) FilterConfig {
	return FilterConfig{
		SampleRate:    sampleRate,
		FMin:          C1,
		NBins:         84,
		BinsPerOctave: 12,
		Window:        windowing.Hann,
		FilterScale:   1,
		PadFFT:        true,
		Norm:          common.NormL1,
	}
}

func (c FilterConfig) validate() (FilterConfig, error) {
	switch {
	case !(c.SampleRate > 0):
		return c, fmt.Errorf("%w: sample rate must be positive, got %v", common.ErrInvalidParameter, c.SampleRate)
	case !(c.FMin > 0):
		return c, fmt.Errorf("%w: fmin must be positive, got %v", common.ErrInvalidParameter, c.FMin)
	case c.BinsPerOctave < 1:
		return c, fmt.Errorf("%w: bins_per_octave must be positive, got %d", common.ErrInvalidParameter, c.BinsPerOctave)
	case !(c.FilterScale > 0):
		return c, fmt.Errorf("%w: filter_scale must be positive, got %v", common.ErrInvalidParameter, c.FilterScale)
	case c.NBins < 1:
		return c, fmt.Errorf("%w: n_bins must be positive, got %d", common.ErrInvalidParameter, c.NBins)
	case math.IsNaN(c.Tuning) || math.IsInf(c.Tuning, 0):
		return c, fmt.Errorf("%w: tuning", common.ErrNotFinite)
	}
	if c.Window == nil {
		c.Window = windowing.Hann
	}
	if c.Bandwidths == nil {
		c.Bandwidths = windowing.NewBandwidthCache()
	}
	return c, nil
}

// Frequencies returns the center frequencies of nBins bins starting at
// fmin, shifted by tuning fractions of a bin.
func Frequencies(nBins int, fmin float64, binsPerOctave int, tuning float64) []float64 {
	if nBins < 1 || binsPerOctave < 1 {
		return nil
	}
	correction := math.Pow(2, tuning/float64(binsPerOctave))
	out := make([]float64, nBins)
	for i := range out {
		out[i] = correction * fmin * math.Pow(2, float64(i)/float64(binsPerOctave))
	}
	return out
}

// QualityFactor is the ratio of center frequency to bandwidth.
func QualityFactor(filterScale float64, binsPerOctave int) float64 {
	return filterScale / (math.Pow(2, 1/float64(binsPerOctave)) - 1)
}

// Lengths returns the fractional length in samples of each filter,
// Q*sr/freq. The top filter, widened by half the window bandwidth, must
// stay below Nyquist.
func Lengths(cfg FilterConfig) ([]float64, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	q := QualityFactor(cfg.FilterScale, cfg.BinsPerOctave)
	freqs := Frequencies(cfg.NBins, cfg.FMin, cfg.BinsPerOctave, cfg.Tuning)
	bw, err := cfg.Bandwidths.Bandwidth(cfg.Window)
	if err != nil {
		return nil, err
	}

	top := freqs[len(freqs)-1]
	if cutoff := top * (1 + 0.5*bw/q); cutoff > cfg.SampleRate/2 {
		return nil, fmt.Errorf("%w: filter cutoff %.2f Hz above Nyquist %.2f Hz",
			common.ErrNyquistExceeded, cutoff, cfg.SampleRate/2)
	}

	lengths := make([]float64, len(freqs))
	for i, f := range freqs {
		lengths[i] = q * cfg.SampleRate / f
	}
	return lengths, nil
}

// ConstantQ builds the time-domain filter bank. Filter i is a windowed
// complex exponential of ceil(lengths[i]) samples, normalized and centered
// in a buffer shared by all filters.
func ConstantQ(cfg FilterConfig) ([][]complex128, []float64, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, nil, err
	}
	lengths, err := Lengths(cfg)
	if err != nil {
		return nil, nil, err
	}
	freqs := Frequencies(cfg.NBins, cfg.FMin, cfg.BinsPerOctave, cfg.Tuning)

	filters := make([][]complex128, len(lengths))
	maxLen := 0.0
	for i, ilen := range lengths {
		win, err := floatWindow(cfg.Window, ilen)
		if err != nil {
			return nil, nil, err
		}
		step := 2 * math.Pi * freqs[i] / cfg.SampleRate
		sig := make([]complex128, len(win))
		for t, w := range win {
			sig[t] = cmplx.Rect(w, step*float64(t))
		}
		if filters[i], err = common.NormalizeComplexVector(sig, cfg.Norm); err != nil {
			return nil, nil, err
		}
		maxLen = math.Max(maxLen, ilen)
	}

	width := int(math.Ceil(maxLen))
	if cfg.PadFFT {
		width = common.NextPowerOfTwo(width)
	}
	for i := range filters {
		if filters[i], err = windowing.PadCenter(filters[i], width); err != nil {
			return nil, nil, err
		}
	}
	return filters, lengths, nil
}

// floatWindow realizes spec with support floor(length) inside a buffer of
// ceil(length) samples.
func floatWindow(spec windowing.Spec, length float64) ([]float64, error) {
	nMin := int(math.Floor(length))
	nMax := int(math.Ceil(length))
	win, err := windowing.Get(spec, nMin, true)
	if err != nil {
		return nil, err
	}
	if len(win) < nMax {
		win = append(win, make([]float64, nMax-len(win))...)
	}
	return win, nil
}
