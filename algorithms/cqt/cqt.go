package cqt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/resample"
	"github.com/RyanBlaney/sonido-spectra/algorithms/spectral"
	"github.com/RyanBlaney/sonido-spectra/algorithms/tonal"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// Config holds the parameters shared by the three transforms.
type Config struct {
	HopLength     int            `json:"hop_length" yaml:"hop_length"`
	FMin          float64        `json:"fmin" yaml:"fmin"`
	NBins         int            `json:"n_bins" yaml:"n_bins"`
	BinsPerOctave int            `json:"bins_per_octave" yaml:"bins_per_octave"`
	Tuning        *float64       `json:"tuning,omitempty" yaml:"tuning,omitempty"` // nil: estimate from the signal
	FilterScale   float64        `json:"filter_scale" yaml:"filter_scale"`
	Norm          common.Norm    `json:"-" yaml:"-"`
	Sparsity      float64        `json:"sparsity" yaml:"sparsity"`
	Window        windowing.Spec `json:"-" yaml:"-"`
	Scale         bool           `json:"scale" yaml:"scale"`
}

// DefaultConfig returns 84 semitone bins from C1 at hop 512 with the
// tuning fixed at zero.
func DefaultConfig() Config {
	return Config{
		HopLength:     512,
		FMin:          C1,
		NBins:         84,
		BinsPerOctave: 12,
		Tuning:        common.Ptr(0.0),
		FilterScale:   1,
		Norm:          common.NormL1,
		Sparsity:      0.01,
		Window:        windowing.Hann,
		Scale:         true,
	}
}

func (c Config) resolve() (Config, error) {
	if c.HopLength < 1 {
		return c, fmt.Errorf("%w: hop_length must be positive, got %d", common.ErrInvalidParameter, c.HopLength)
	}
	if c.NBins < 1 {
		return c, fmt.Errorf("%w: n_bins must be positive, got %d", common.ErrInvalidParameter, c.NBins)
	}
	if c.BinsPerOctave < 1 {
		return c, fmt.Errorf("%w: bins_per_octave must be positive, got %d", common.ErrInvalidParameter, c.BinsPerOctave)
	}
	if !(c.FMin > 0) {
		return c, fmt.Errorf("%w: fmin must be positive, got %v", common.ErrInvalidParameter, c.FMin)
	}
	if !(c.FilterScale > 0) {
		return c, fmt.Errorf("%w: filter_scale must be positive, got %v", common.ErrInvalidParameter, c.FilterScale)
	}
	if !(c.Sparsity >= 0 && c.Sparsity < 1) {
		return c, fmt.Errorf("%w: sparsity must be in [0, 1), got %v", common.ErrInvalidParameter, c.Sparsity)
	}
	if c.Window == nil {
		c.Window = windowing.Hann
	}
	return c, nil
}

// filterConfig describes a bank of nBins filters from fmin at sampleRate.
func (t *Transformer) filterConfig(c Config, sampleRate, fmin float64, nBins int, tuning float64) FilterConfig {
	return FilterConfig{
		SampleRate:    sampleRate,
		FMin:          fmin,
		NBins:         nBins,
		BinsPerOctave: c.BinsPerOctave,
		Tuning:        tuning,
		Window:        c.Window,
		FilterScale:   c.FilterScale,
		PadFFT:        true,
		Norm:          c.Norm,
		Bandwidths:    t.bandwidths,
	}
}

// Transformer computes constant-Q spectrograms.
type Transformer struct {
	logger     logging.Logger
	resampler  resample.Resampler
	bandwidths *windowing.BandwidthCache
	stft       *spectral.STFT
	tuner      *tonal.Tuner
}

// NewTransformer creates a transformer that halves octaves with r. A nil
// r selects the polyphase resampler.
func NewTransformer(r resample.Resampler) *Transformer {
	if r == nil {
		r = resample.NewPolyphase()
	}
	return &Transformer{
		logger:     logging.Component("cqt"),
		resampler:  r,
		bandwidths: windowing.NewBandwidthCache(),
		stft:       spectral.NewSTFT(),
		tuner:      tonal.NewTuner(),
	}
}

// WithLogger replaces the component logger.
func (t *Transformer) WithLogger(logger logging.Logger) *Transformer {
	t.logger = logger
	t.stft.WithLogger(logger)
	t.tuner.WithLogger(logger)
	return t
}

// WithBandwidthCache shares a window bandwidth cache across transformers.
func (t *Transformer) WithBandwidthCache(cache *windowing.BandwidthCache) *Transformer {
	if cache != nil {
		t.bandwidths = cache
	}
	return t
}

// octaveState is the signal at the resolution of the octave being analyzed.
type octaveState struct {
	signal     []float64
	sampleRate float64
	hopLength  int
}

func checkSignal(y []float64, sampleRate float64) error {
	if !(sampleRate > 0) {
		return fmt.Errorf("%w: sample rate must be positive, got %v", common.ErrInvalidParameter, sampleRate)
	}
	if len(y) == 0 {
		return fmt.Errorf("%w: empty signal", common.ErrInvalidInput)
	}
	return common.CheckFinite(y)
}

func (t *Transformer) resolveTuning(y []float64, sampleRate float64, c Config) (float64, error) {
	if c.Tuning != nil {
		return *c.Tuning, nil
	}
	tuning, err := t.tuner.EstimateTuningSignal(y, sampleRate, tonal.DefaultTuningConfig())
	if err != nil {
		return 0, fmt.Errorf("failed to estimate tuning: %w", err)
	}
	return tuning, nil
}

// CQT computes the complex constant-Q transform of y, n_bins x frames,
// lowest frequency first. Octaves are analyzed from the top down, halving
// the sample rate between octaves so that each octave reuses one filter
// bank.
func (t *Transformer) CQT(y []float64, sampleRate float64, cfg Config) (*mat.CDense, error) {
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
	return t.cqt(y, sampleRate, cfg, tuning)
}

func (t *Transformer) cqt(y []float64, sampleRate float64, cfg Config, tuning float64) (*mat.CDense, error) {
	nOctaves := int(math.Ceil(float64(cfg.NBins) / float64(cfg.BinsPerOctave)))
	nFilters := min(cfg.BinsPerOctave, cfg.NBins)

	freqs := Frequencies(cfg.NBins, cfg.FMin, cfg.BinsPerOctave, 0)
	top := freqs[len(freqs)-nFilters:]
	fminT, fmaxT := top[0], top[len(top)-1]

	q := QualityFactor(cfg.FilterScale, cfg.BinsPerOctave)
	bw, err := t.bandwidths.Bandwidth(cfg.Window)
	if err != nil {
		return nil, err
	}
	cutoff := fmaxT * (1 + 0.5*bw/q)
	nyquist := sampleRate / 2

	quality := resample.QualityBest
	if cutoff < resample.BandwidthFast*nyquist {
		quality = resample.QualityFast
	}

	state := octaveState{signal: y, sampleRate: sampleRate, hopLength: cfg.HopLength}
	state, err = t.earlyDownsample(state, quality, nOctaves, nyquist, cutoff, cfg.Scale)
	if err != nil {
		return nil, err
	}
	workingRate := state.sampleRate

	var responses []*mat.CDense

	// The top octave is too close to Nyquist for the fast kernel, so it is
	// analyzed at the full rate before the recursion starts.
	if quality != resample.QualityFast {
		basis, nFFT, _, err := FilterFFT(t.filterConfig(cfg, state.sampleRate, fminT, nFilters, tuning), 0, cfg.Sparsity)
		if err != nil {
			return nil, err
		}
		resp, err := t.response(state, nFFT, basis)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
		fminT /= 2
		nOctaves--
	}

	if common.NumTwoFactors(state.hopLength) < nOctaves-1 {
		return nil, fmt.Errorf("%w: hop_length %d must be a multiple of 2^%d for a %d-octave transform",
			common.ErrIncompatibleHopLength, state.hopLength, nOctaves-1, nOctaves)
	}

	if nOctaves > 0 {
		basis, nFFT, _, err := FilterFFT(t.filterConfig(cfg, state.sampleRate, fminT, nFilters, tuning), 0, cfg.Sparsity)
		if err != nil {
			return nil, err
		}
		for i := range nOctaves {
			if i > 0 {
				if state, err = t.halve(state, len(y), nOctaves); err != nil {
					return nil, err
				}
			}
			resp, err := t.response(state, nFFT, basis)
			if err != nil {
				return nil, err
			}
			t.logger.Debug("octave analyzed", logging.Fields{
				"octave":      i,
				"sample_rate": state.sampleRate,
				"hop_length":  state.hopLength,
				"n_fft":       nFFT,
			})
			responses = append(responses, resp)
		}
	}

	c := trimStack(responses, cfg.NBins)
	if cfg.Scale {
		lengths, err := Lengths(t.filterConfig(cfg, workingRate, cfg.FMin, cfg.NBins, tuning))
		if err != nil {
			return nil, err
		}
		scaleRows(c, lengths)
	}
	return c, nil
}

// earlyDownsampleCount is the number of halvings that can be applied
// before the octave recursion without touching the top octave's pass band
// or running out of factors of two in the hop length.
func earlyDownsampleCount(nyquist, cutoff float64, hopLength, nOctaves int) int {
	byBand := max(0, int(math.Ceil(math.Log2(resample.BandwidthFast*nyquist/cutoff)))-2)
	byHop := max(0, common.NumTwoFactors(hopLength)-nOctaves+1)
	return min(byBand, byHop)
}

func (t *Transformer) earlyDownsample(s octaveState, quality resample.Quality, nOctaves int, nyquist, cutoff float64, scale bool) (octaveState, error) {
	count := earlyDownsampleCount(nyquist, cutoff, s.hopLength, nOctaves)
	if count == 0 || quality != resample.QualityFast {
		return s, nil
	}

	factor := 1 << count
	if len(s.signal) < factor {
		return s, fmt.Errorf("%w: signal length %d is too short for a %d-octave transform",
			common.ErrInputTooShort, len(s.signal), nOctaves)
	}
	rate := s.sampleRate / float64(factor)
	y, err := t.resampler.Resample(s.signal, s.sampleRate, rate, quality, true)
	if err != nil {
		return s, err
	}
	if !scale {
		gain := math.Sqrt(float64(factor))
		for i := range y {
			y[i] *= gain
		}
	}

	t.logger.Debug("early downsampling", logging.Fields{
		"factor":      factor,
		"sample_rate": rate,
	})
	return octaveState{signal: y, sampleRate: rate, hopLength: s.hopLength / factor}, nil
}

// halve moves the state one octave down.
func (t *Transformer) halve(s octaveState, inputLength, nOctaves int) (octaveState, error) {
	if len(s.signal) < 2 {
		return s, fmt.Errorf("%w: signal length %d is too short for a %d-octave transform",
			common.ErrInputTooShort, inputLength, nOctaves)
	}
	y, err := t.resampler.Resample(s.signal, s.sampleRate, s.sampleRate/2, resample.QualityFast, true)
	if err != nil {
		return s, err
	}
	for i := range y {
		y[i] *= math.Sqrt2
	}
	return octaveState{signal: y, sampleRate: s.sampleRate / 2, hopLength: s.hopLength / 2}, nil
}

// response convolves the state's signal with a frequency-domain basis.
func (t *Transformer) response(s octaveState, nFFT int, basis *SparseBasis) (*mat.CDense, error) {
	d, err := t.stft.Compute(s.signal, spectral.Config{
		NFFT:      nFFT,
		HopLength: s.hopLength,
		Window:    windowing.Ones,
		Center:    true,
	})
	if err != nil {
		return nil, err
	}
	return basis.Mul(d)
}

// trimStack stacks octave responses, highest first in the input, with the
// lowest octave on top, trims them to a common frame count and keeps the
// last nBins rows.
func trimStack(responses []*mat.CDense, nBins int) *mat.CDense {
	frames := math.MaxInt
	total := 0
	for _, r := range responses {
		rows, cols := r.Dims()
		frames = min(frames, cols)
		total += rows
	}
	skip := max(0, total-nBins)
	out := mat.NewCDense(total-skip, frames, nil)

	row := 0
	for i := len(responses) - 1; i >= 0; i-- {
		rows, _ := responses[i].Dims()
		for r := range rows {
			if row >= skip {
				for j := range frames {
					out.Set(row-skip, j, responses[i].At(r, j))
				}
			}
			row++
		}
	}
	return out
}

// trimStackReal is trimStack for magnitude spectrograms.
func trimStackReal(responses []*mat.Dense, nBins int) *mat.Dense {
	frames := math.MaxInt
	total := 0
	for _, r := range responses {
		rows, cols := r.Dims()
		frames = min(frames, cols)
		total += rows
	}
	skip := max(0, total-nBins)
	out := mat.NewDense(total-skip, frames, nil)

	row := 0
	for i := len(responses) - 1; i >= 0; i-- {
		rows, _ := responses[i].Dims()
		for r := range rows {
			if row >= skip {
				out.SetRow(row-skip, responses[i].RawRowView(r)[:frames])
			}
			row++
		}
	}
	return out
}

// scaleRows divides row i of c by sqrt(lengths[i]).
func scaleRows(c *mat.CDense, lengths []float64) {
	raw := c.RawCMatrix()
	for i, l := range lengths {
		gain := complex(1/math.Sqrt(l), 0)
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		for j := range row {
			row[j] *= gain
		}
	}
}
