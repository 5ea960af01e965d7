package cqt

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/spectral"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// PseudoCQT computes the constant-Q magnitude spectrogram with a single
// Hann STFT at the full sample rate, projecting its magnitudes onto the
// magnitude of the filter basis.
func (t *Transformer) PseudoCQT(y []float64, sampleRate float64, cfg Config) (*mat.Dense, error) {
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	if err := checkSignal(y, sampleRate); err != nil {
		return nil, err
	}
	tuning, err := t.resolveTuning(y, sampleRate, cfg)
	if err != nil {
		return nil, err
	}
	return t.pseudo(y, sampleRate, cfg, tuning)
}

func (t *Transformer) pseudo(y []float64, sampleRate float64, cfg Config, tuning float64) (*mat.Dense, error) {
	basis, nFFT, lengths, err := FilterFFT(
		t.filterConfig(cfg, sampleRate, cfg.FMin, cfg.NBins, tuning), cfg.HopLength, cfg.Sparsity)
	if err != nil {
		return nil, err
	}

	d, err := t.stft.Compute(y, spectral.Config{
		NFFT:      nFFT,
		HopLength: cfg.HopLength,
		Window:    windowing.Hann,
		Center:    true,
	})
	if err != nil {
		return nil, err
	}
	c, err := basis.Abs().MulReal(spectral.Magnitude(d, 1))
	if err != nil {
		return nil, err
	}

	if cfg.Scale {
		c.Scale(1/math.Sqrt(float64(nFFT)), c)
		return c, nil
	}
	for i, l := range lengths {
		row := c.RawRowView(i)
		gain := math.Sqrt(l / float64(nFFT))
		for j := range row {
			row[j] *= gain
		}
	}
	return c, nil
}

// HybridCQT computes the constant-Q magnitude spectrogram, using the
// pseudo transform for bins whose padded filter is shorter than two hops
// and the full recursive transform for the rest.
func (t *Transformer) HybridCQT(y []float64, sampleRate float64, cfg Config) (*mat.Dense, error) {
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	if err := checkSignal(y, sampleRate); err != nil {
		return nil, err
	}
	tuning, err := t.resolveTuning(y, sampleRate, cfg)
	if err != nil {
		return nil, err
	}

	lengths, err := Lengths(t.filterConfig(cfg, sampleRate, cfg.FMin, cfg.NBins, tuning))
	if err != nil {
		return nil, err
	}
	// Lengths decrease with frequency, so the pseudo bins form a suffix.
	freqs := Frequencies(cfg.NBins, cfg.FMin, cfg.BinsPerOctave, 0)
	nFull := cfg.NBins
	for i, l := range lengths {
		if common.NextPowerOfTwo(int(math.Ceil(l))) < 2*cfg.HopLength {
			nFull = i
			break
		}
	}
	nPseudo := cfg.NBins - nFull

	t.logger.Debug("hybrid partition", logging.Fields{
		"pseudo_bins": nPseudo,
		"full_bins":   nFull,
	})

	var responses []*mat.Dense
	if nPseudo > 0 {
		pseudoCfg := cfg
		pseudoCfg.FMin = freqs[nFull]
		pseudoCfg.NBins = nPseudo
		resp, err := t.pseudo(y, sampleRate, pseudoCfg, tuning)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	if nFull > 0 {
		fullCfg := cfg
		fullCfg.NBins = nFull
		resp, err := t.cqt(y, sampleRate, fullCfg, tuning)
		if err != nil {
			return nil, err
		}
		responses = append(responses, spectral.Magnitude(resp, 1))
	}
	return trimStackReal(responses, cfg.NBins), nil
}
