package chroma

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/cqt"
	"github.com/RyanBlaney/sonido-spectra/algorithms/spectral"
	"github.com/RyanBlaney/sonido-spectra/algorithms/tonal"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// STFTConfig controls chroma computed from a linear-frequency power
// spectrogram.
type STFTConfig struct {
	NFFT         int            `json:"n_fft" yaml:"n_fft"`
	HopLength    int            `json:"hop_length" yaml:"hop_length"`
	Window       windowing.Spec `json:"-" yaml:"-"`
	NChroma      int            `json:"n_chroma" yaml:"n_chroma"`
	Tuning       *float64       `json:"tuning,omitempty" yaml:"tuning,omitempty"` // nil: estimate from the spectrogram
	CenterOctave float64        `json:"center_octave" yaml:"center_octave"`
	OctaveWidth  float64        `json:"octave_width" yaml:"octave_width"`
	BaseC        bool           `json:"base_c" yaml:"base_c"`
	Norm         common.Norm    `json:"-" yaml:"-"` // per-frame normalization of the output
}

// DefaultSTFTConfig returns 12-bin chroma over a 2048-point STFT with
// max-normalized frames.
func DefaultSTFTConfig() STFTConfig {
	return STFTConfig{
		NFFT:         2048,
		HopLength:    512,
		Window:       windowing.Hann,
		NChroma:      12,
		CenterOctave: 5,
		OctaveWidth:  2,
		BaseC:        true,
		Norm:         common.NormInf,
	}
}

// Extractor computes chromagrams. It carries the STFT, the constant-Q
// transformer and the tuning estimator so that repeated calls share their
// caches.
type Extractor struct {
	logger      logging.Logger
	stft        *spectral.STFT
	transformer *cqt.Transformer
	tuner       *tonal.Tuner
}

// NewExtractor creates a chroma extractor. A nil transformer selects one
// with the default resampler.
func NewExtractor(transformer *cqt.Transformer) *Extractor {
	if transformer == nil {
		transformer = cqt.NewTransformer(nil)
	}
	return &Extractor{
		logger:      logging.Component("chroma"),
		stft:        spectral.NewSTFT(),
		transformer: transformer,
		tuner:       tonal.NewTuner(),
	}
}

// WithLogger replaces the component logger.
func (e *Extractor) WithLogger(logger logging.Logger) *Extractor {
	e.logger = logger
	e.stft.WithLogger(logger)
	e.tuner.WithLogger(logger)
	return e
}

// STFTChroma computes the power spectrogram of y and projects it onto the
// chroma filter bank.
func (e *Extractor) STFTChroma(y []float64, sampleRate float64, cfg STFTConfig) (*mat.Dense, error) {
	d, err := e.stft.Compute(y, spectral.Config{
		NFFT:      cfg.NFFT,
		HopLength: cfg.HopLength,
		Window:    cfg.Window,
		Center:    true,
	})
	if err != nil {
		return nil, err
	}
	return e.PowerChroma(spectral.Magnitude(d, 2), sampleRate, cfg)
}

// PowerChroma projects a power spectrogram of 1 + n_fft/2 rows onto the
// chroma filter bank. cfg.NFFT is ignored; it is implied by the row count.
func (e *Extractor) PowerChroma(S *mat.Dense, sampleRate float64, cfg STFTConfig) (*mat.Dense, error) {
	if cfg.NChroma < 1 {
		return nil, fmt.Errorf("%w: n_chroma must be positive, got %d", common.ErrInvalidParameter, cfg.NChroma)
	}
	rows, _ := S.Dims()
	nFFT := 2 * (rows - 1)

	tuning := 0.0
	if cfg.Tuning != nil {
		tuning = *cfg.Tuning
	} else {
		tcfg := tonal.DefaultTuningConfig()
		tcfg.BinsPerOctave = cfg.NChroma
		var err error
		if tuning, err = e.tuner.EstimateTuning(S, sampleRate, tcfg); err != nil {
			return nil, fmt.Errorf("failed to estimate tuning: %w", err)
		}
	}

	fbCfg := DefaultFilterBankConfig(sampleRate, nFFT)
	fbCfg.NChroma = cfg.NChroma
	fbCfg.A440 = tonal.A440 * math.Pow(2, tuning/float64(cfg.NChroma))
	fbCfg.CenterOctave = cfg.CenterOctave
	fbCfg.OctaveWidth = cfg.OctaveWidth
	fbCfg.BaseC = cfg.BaseC
	fb, err := FilterBank(fbCfg)
	if err != nil {
		return nil, err
	}

	var raw mat.Dense
	raw.Mul(fb, S)

	e.logger.Debug("stft chroma", logging.Fields{
		"n_fft":  nFFT,
		"tuning": tuning,
	})
	return common.Normalize(&raw, cfg.Norm, 0)
}
