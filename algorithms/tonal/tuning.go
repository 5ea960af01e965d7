package tonal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/spectral"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// TuningConfig controls tuning estimation.
type TuningConfig struct {
	Resolution    float64        `json:"resolution" yaml:"resolution"`           // histogram bin width, in fractions of a bin
	BinsPerOctave int            `json:"bins_per_octave" yaml:"bins_per_octave"` // pitch grid density
	NFFT          int            `json:"n_fft" yaml:"n_fft"`                     // analysis size when starting from a signal
	Piptrack      PiptrackConfig `json:"piptrack" yaml:"piptrack"`
}

// DefaultTuningConfig returns a 1/100-semitone histogram over a 12-tone
// grid.
func DefaultTuningConfig() TuningConfig {
	return TuningConfig{
		Resolution:    0.01,
		BinsPerOctave: 12,
		NFFT:          2048,
		Piptrack:      DefaultPiptrackConfig(),
	}
}

// Tuner estimates the deviation of a recording from the A440 grid.
type Tuner struct {
	logger logging.Logger
	stft   *spectral.STFT
}

// NewTuner creates a new tuning estimator.
func NewTuner() *Tuner {
	return &Tuner{
		logger: logging.Component("tuning"),
		stft:   spectral.NewSTFT(),
	}
}

// WithLogger replaces the component logger.
func (t *Tuner) WithLogger(logger logging.Logger) *Tuner {
	t.logger = logger
	t.stft.WithLogger(logger)
	return t
}

// PitchTuning returns the most common offset, in fractions of a bin in
// [-0.5, 0.5), of freqs from the A440-based grid of binsPerOctave bins per
// octave. Offsets are binned circularly into ceil(1/resolution) bins
// centered on -0.5 + k*resolution, and the center of the fullest bin is
// returned. With no positive frequencies the result is 0.
func (t *Tuner) PitchTuning(freqs []float64, resolution float64, binsPerOctave int) (float64, error) {
	if !(resolution > 0 && resolution < 1) {
		return 0, fmt.Errorf("%w: resolution must be in (0, 1), got %v", common.ErrInvalidParameter, resolution)
	}
	if binsPerOctave < 1 {
		return 0, fmt.Errorf("%w: bins_per_octave must be positive, got %d", common.ErrInvalidParameter, binsPerOctave)
	}

	nBins := int(math.Ceil(1 / resolution))
	counts := make([]float64, nBins)
	used := 0
	for _, f := range freqs {
		if !(f > 0) || math.IsInf(f, 0) {
			continue
		}
		residual := common.PositiveMod(float64(binsPerOctave)*spectral.HzToOcts(f, A440), 1)
		if residual >= 0.5 {
			residual--
		}
		idx := int(math.Round((residual+0.5)/resolution)) % nBins
		counts[idx]++
		used++
	}

	if used == 0 {
		t.logger.Warn("trying to estimate tuning from empty frequency set, assuming 0", logging.Fields{
			"input_frequencies": len(freqs),
		})
		return 0, nil
	}

	best := common.Argmax(counts)
	return -0.5 + float64(best)*resolution, nil
}

// EstimateTuning tracks pitches in the magnitude (or power) spectrogram S
// and returns the tuning of the pitches whose magnitude reaches the median
// of all tracked magnitudes.
func (t *Tuner) EstimateTuning(S *mat.Dense, sampleRate float64, cfg TuningConfig) (float64, error) {
	pitches, mags, err := Piptrack(S, sampleRate, cfg.Piptrack)
	if err != nil {
		return 0, fmt.Errorf("failed to track pitches: %w", err)
	}

	rows, cols := pitches.Dims()
	var tracked []float64
	for i := range rows {
		for j := range cols {
			if pitches.At(i, j) > 0 {
				tracked = append(tracked, mags.At(i, j))
			}
		}
	}
	threshold := 0.0
	if len(tracked) > 0 {
		threshold = common.Median(tracked)
	}

	var selected []float64
	for i := range rows {
		for j := range cols {
			p := pitches.At(i, j)
			if p > 0 && mags.At(i, j) >= threshold {
				selected = append(selected, p)
			}
		}
	}

	t.logger.Debug("estimating tuning", logging.Fields{
		"tracked":   len(tracked),
		"selected":  len(selected),
		"threshold": threshold,
	})
	return t.PitchTuning(selected, cfg.Resolution, cfg.BinsPerOctave)
}

// EstimateTuningSignal computes a magnitude spectrogram of y with cfg.NFFT
// and estimates its tuning.
func (t *Tuner) EstimateTuningSignal(y []float64, sampleRate float64, cfg TuningConfig) (float64, error) {
	stftCfg := spectral.DefaultConfig()
	if cfg.NFFT > 0 {
		stftCfg.NFFT = cfg.NFFT
	}
	d, err := t.stft.Compute(y, stftCfg)
	if err != nil {
		return 0, fmt.Errorf("failed to compute spectrogram: %w", err)
	}
	return t.EstimateTuning(spectral.Magnitude(d, 1), sampleRate, cfg)
}
