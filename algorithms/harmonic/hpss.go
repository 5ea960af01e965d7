// Package harmonic separates spectrograms into harmonic and percussive
// parts by median filtering.
//
// HPSS EXPLANATION:
// Sustained tones are smooth along time and peaky along frequency, while
// transients are the opposite. A median along time keeps tones and
// suppresses clicks; a median along frequency does the reverse. The two
// filtered spectrograms are turned into complementary soft masks.
package harmonic

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/filters"
	"github.com/RyanBlaney/sonido-spectra/algorithms/spectral"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// Config controls the separation.
type Config struct {
	KernelHarmonic   int     `json:"kernel_harmonic" yaml:"kernel_harmonic"`     // median length along time
	KernelPercussive int     `json:"kernel_percussive" yaml:"kernel_percussive"` // median length along frequency
	Power            float64 `json:"power" yaml:"power"`
	MarginHarmonic   float64 `json:"margin_harmonic" yaml:"margin_harmonic"`
	MarginPercussive float64 `json:"margin_percussive" yaml:"margin_percussive"`
}

// DefaultConfig returns 31-point kernels with power-2 masks and no margin.
func DefaultConfig() Config {
	return Config{
		KernelHarmonic:   31,
		KernelPercussive: 31,
		Power:            2,
		MarginHarmonic:   1,
		MarginPercussive: 1,
	}
}

func (c Config) validate() error {
	if c.MarginHarmonic < 1 || c.MarginPercussive < 1 {
		return fmt.Errorf("%w: margins must be >= 1, got %v and %v",
			common.ErrInvalidMargin, c.MarginHarmonic, c.MarginPercussive)
	}
	if c.KernelHarmonic < 1 || c.KernelPercussive < 1 {
		return fmt.Errorf("%w: kernel sizes must be positive, got %d and %d",
			common.ErrInvalidParameter, c.KernelHarmonic, c.KernelPercussive)
	}
	return nil
}

// Masks holds the harmonic and percussive masks.
type Masks struct {
	Harmonic   *mat.Dense
	Percussive *mat.Dense
}

// Result holds the two complex components. Their sum equals the input
// when both margins are 1.
type Result struct {
	Harmonic   *mat.CDense
	Percussive *mat.CDense
}

// Separator performs harmonic/percussive source separation.
type Separator struct {
	logger logging.Logger
	stft   *spectral.STFT
}

// NewSeparator creates a new separator.
func NewSeparator() *Separator {
	return &Separator{
		logger: logging.Component("hpss"),
		stft:   spectral.NewSTFT(),
	}
}

// WithLogger replaces the component logger.
func (s *Separator) WithLogger(logger logging.Logger) *Separator {
	s.logger = logger
	s.stft.WithLogger(logger)
	return s
}

// Masks computes the masks of a magnitude spectrogram.
func (s *Separator) Masks(S *mat.Dense, cfg Config) (Masks, error) {
	if err := cfg.validate(); err != nil {
		return Masks{}, err
	}
	if !common.DenseAllFinite(S) {
		return Masks{}, fmt.Errorf("%w: spectrogram", common.ErrNotFinite)
	}

	alongTime, err := filters.NewAxisMedianFilter(cfg.KernelHarmonic, 1)
	if err != nil {
		return Masks{}, err
	}
	alongFreq, err := filters.NewAxisMedianFilter(cfg.KernelPercussive, 0)
	if err != nil {
		return Masks{}, err
	}
	harm := alongTime.Apply(S)
	perc := alongFreq.Apply(S)

	splitZeros := cfg.MarginHarmonic == 1 && cfg.MarginPercussive == 1

	var percRef, harmRef mat.Dense
	percRef.Scale(cfg.MarginHarmonic, perc)
	harmRef.Scale(cfg.MarginPercussive, harm)

	maskH, err := Softmask(harm, &percRef, cfg.Power, splitZeros)
	if err != nil {
		return Masks{}, err
	}
	maskP, err := Softmask(perc, &harmRef, cfg.Power, splitZeros)
	if err != nil {
		return Masks{}, err
	}

	rows, cols := S.Dims()
	s.logger.Debug("hpss masks", logging.Fields{
		"rows":        rows,
		"frames":      cols,
		"split_zeros": splitZeros,
	})
	return Masks{Harmonic: maskH, Percussive: maskP}, nil
}

// Separate splits a complex spectrogram. The masks are computed on its
// magnitude and applied to the complex values, so phase is kept.
func (s *Separator) Separate(D *mat.CDense, cfg Config) (Result, error) {
	mag, _ := spectral.Magphase(D)
	masks, err := s.Masks(mag, cfg)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Harmonic:   applyMask(D, masks.Harmonic),
		Percussive: applyMask(D, masks.Percussive),
	}, nil
}

// Harmonic returns the harmonic part of y, resynthesized to len(y)
// samples.
func (s *Separator) Harmonic(y []float64, cfg Config) ([]float64, error) {
	res, err := s.separateSignal(y, cfg)
	if err != nil {
		return nil, err
	}
	return s.stft.Inverse(res.Harmonic, spectral.DefaultConfig(), len(y))
}

// Percussive returns the percussive part of y, resynthesized to len(y)
// samples.
func (s *Separator) Percussive(y []float64, cfg Config) ([]float64, error) {
	res, err := s.separateSignal(y, cfg)
	if err != nil {
		return nil, err
	}
	return s.stft.Inverse(res.Percussive, spectral.DefaultConfig(), len(y))
}

func (s *Separator) separateSignal(y []float64, cfg Config) (Result, error) {
	D, err := s.stft.Compute(y, spectral.DefaultConfig())
	if err != nil {
		return Result{}, err
	}
	return s.Separate(D, cfg)
}

func applyMask(D *mat.CDense, mask *mat.Dense) *mat.CDense {
	r, c := D.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := range r {
		m := mask.RawRowView(i)
		for j := range c {
			out.Set(i, j, D.At(i, j)*complex(m[j], 0))
		}
	}
	return out
}
