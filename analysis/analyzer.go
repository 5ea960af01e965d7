// Package analysis runs the spectral, constant-Q, chroma, separation and
// pitch analyses over one signal and collects the results.
package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/chroma"
	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/cqt"
	"github.com/RyanBlaney/sonido-spectra/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-spectra/algorithms/resample"
	"github.com/RyanBlaney/sonido-spectra/algorithms/spectral"
	"github.com/RyanBlaney/sonido-spectra/algorithms/tonal"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
	"github.com/RyanBlaney/sonido-spectra/config"
	"github.com/RyanBlaney/sonido-spectra/logging"
	"github.com/RyanBlaney/sonido-spectra/transcode"
)

// Result holds every enabled analysis of one signal. Matrices have
// frequency, pitch class or tonal dimension along rows and frames along
// columns. Disabled stages leave their fields nil.
type Result struct {
	SampleRate float64       `json:"sample_rate"`
	Samples    int           `json:"samples"`
	Duration   time.Duration `json:"duration"`
	Tuning     float64       `json:"tuning"`

	Spectrogram *mat.Dense `json:"-"` // STFT magnitude
	CQT         *mat.Dense `json:"-"` // constant-Q magnitude
	Chroma      *mat.Dense `json:"-"`
	Tonnetz     *mat.Dense `json:"-"`

	HPSS       *harmonic.Result `json:"-"`
	Harmonic   []float64        `json:"-"`
	Percussive []float64        `json:"-"`

	Pitches    *mat.Dense `json:"-"`
	Magnitudes *mat.Dense `json:"-"`
	Key        *tonal.Key `json:"key,omitempty"`

	Metadata *transcode.StreamMetadata `json:"metadata,omitempty"`
}

// Analyzer wires a configuration to the decoder, the resampler and every
// algorithm. It is safe for concurrent use once built.
type Analyzer struct {
	config    *config.AnalysisConfig
	logger    logging.Logger
	resampler resample.Resampler

	decoder     *transcode.Decoder
	stft        *spectral.STFT
	transformer *cqt.Transformer
	chroma      *chroma.Extractor
	separator   *harmonic.Separator
	tuner       *tonal.Tuner

	stftConfig spectral.Config
}

// NewAnalyzer validates cfg and builds the components. A nil cfg selects
// the defaults and a nil resampler the polyphase one.
func NewAnalyzer(cfg *config.AnalysisConfig, r resample.Resampler) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.DefaultAnalysisConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	stftConfig, err := cfg.STFTParams()
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = resample.NewPolyphase()
	}

	bandwidths := windowing.NewBandwidthCache()
	transformer := cqt.NewTransformer(r).WithBandwidthCache(bandwidths)
	a := &Analyzer{
		config:      cfg,
		resampler:   r,
		decoder:     transcode.NewDecoder(cfg.DecoderParams(), r),
		stft:        spectral.NewSTFT(),
		transformer: transformer,
		chroma:      chroma.NewExtractor(transformer),
		separator:   harmonic.NewSeparator(),
		tuner:       tonal.NewTuner(),
		stftConfig:  stftConfig,
	}
	logger := logging.Component("analyzer")
	if level, err := logging.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.WithLevel(level)
	}
	a.WithLogger(logger)
	return a, nil
}

// WithLogger replaces the logger of the analyzer and of its components,
// tagging each with its component name.
func (a *Analyzer) WithLogger(logger logging.Logger) *Analyzer {
	a.logger = logger
	a.decoder.WithLogger(logger.WithFields(logging.Fields{"component": "audio_decoder"}))
	a.stft.WithLogger(logger.WithFields(logging.Fields{"component": "stft"}))
	a.transformer.WithLogger(logger.WithFields(logging.Fields{"component": "cqt"}))
	a.chroma.WithLogger(logger.WithFields(logging.Fields{"component": "chroma"}))
	a.separator.WithLogger(logger.WithFields(logging.Fields{"component": "hpss"}))
	a.tuner.WithLogger(logger.WithFields(logging.Fields{"component": "tuning"}))
	return a
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() config.AnalysisConfig {
	return *a.config
}

// AnalyzeFile decodes a WAV file and analyzes it. Multi-channel audio is
// averaged to mono.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*Result, error) {
	data, err := a.decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	y := data.PCM
	if data.Channels > 1 {
		a.logger.Debug("Downmixing to mono", logging.Fields{"channels": data.Channels})
		y = transcode.ToMono(y, data.Channels)
	}

	res, err := a.Analyze(ctx, y, float64(data.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}
	res.Metadata = data.Metadata
	return res, nil
}

// Analyze runs every enabled stage over the mono signal y. The signal is
// first resampled to the configured rate when it differs. The STFT and the
// tuning estimate are computed once and shared; the remaining stages run
// concurrently and the first failure cancels the rest.
func (a *Analyzer) Analyze(ctx context.Context, y []float64, sampleRate float64) (*Result, error) {
	if err := transcode.ValidAudio(y); err != nil {
		return nil, err
	}
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %v", common.ErrInvalidParameter, sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := a.logger.WithContext(ctx)

	if target := float64(a.config.Load.SampleRate); target > 0 && target != sampleRate {
		quality, err := resample.ParseQuality(a.config.Load.ResampleQuality)
		if err != nil {
			return nil, err
		}
		if y, err = a.resampler.Resample(y, sampleRate, target, quality, false); err != nil {
			return nil, fmt.Errorf("resample %v -> %v Hz: %w", sampleRate, target, err)
		}
		logger.Debug("Signal resampled", logging.Fields{"from": sampleRate, "to": target})
		sampleRate = target
	}

	res := &Result{
		SampleRate: sampleRate,
		Samples:    len(y),
		Duration:   time.Duration(float64(len(y)) / sampleRate * float64(time.Second)),
	}

	D, err := a.stft.Compute(y, a.stftConfig)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}
	res.Spectrogram = spectral.Magnitude(D, 1)

	if a.config.Pitch.Tuning != nil {
		res.Tuning = *a.config.Pitch.Tuning
	} else if res.Tuning, err = a.tuner.EstimateTuning(res.Spectrogram, sampleRate, a.config.TuningParams()); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	tuning := common.Ptr(res.Tuning)

	features := a.config.Features
	g, gctx := errgroup.WithContext(ctx)
	run := func(name string, enabled bool, fn func() error) {
		if !enabled {
			return
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			if err := fn(); err != nil {
				logger.Error(err, "Analysis stage failed", logging.Fields{"stage": name})
				return fmt.Errorf("%s: %w", name, err)
			}
			logger.Debug("Analysis stage completed", logging.Fields{
				"stage":   name,
				"elapsed": time.Since(start).Seconds(),
			})
			return nil
		})
	}

	run("cqt", features.EnableCQT, func() (err error) {
		res.CQT, err = a.constantQ(y, sampleRate, tuning)
		return err
	})
	run("chroma", features.EnableChroma, func() error {
		return a.chromaFeatures(res, y, sampleRate, D, tuning)
	})
	run("hpss", features.EnableHPSS, func() error {
		return a.separate(res, D, len(y))
	})
	run("pitch", features.EnablePitch, func() (err error) {
		res.Pitches, res.Magnitudes, err = tonal.Piptrack(res.Spectrogram, sampleRate, a.config.PiptrackParams())
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("Analysis completed", logging.Fields{
		"sample_rate": sampleRate,
		"duration":    res.Duration.Seconds(),
		"tuning":      res.Tuning,
	})
	return res, nil
}

func (a *Analyzer) constantQ(y []float64, sampleRate float64, tuning *float64) (*mat.Dense, error) {
	cfg, err := a.config.CQTParams()
	if err != nil {
		return nil, err
	}
	cfg.Tuning = tuning

	switch a.config.CQT.Mode {
	case config.CQTHybrid:
		return a.transformer.HybridCQT(y, sampleRate, cfg)
	case config.CQTPseudo:
		return a.transformer.PseudoCQT(y, sampleRate, cfg)
	}
	C, err := a.transformer.CQT(y, sampleRate, cfg)
	if err != nil {
		return nil, err
	}
	return spectral.Magnitude(C, 1), nil
}

// chromaFeatures computes chroma and the features derived from it.
func (a *Analyzer) chromaFeatures(res *Result, y []float64, sampleRate float64, D *mat.CDense, tuning *float64) error {
	var (
		chromagram *mat.Dense
		err        error
	)
	switch a.config.Chroma.Source {
	case config.ChromaSTFT:
		cfg, perr := a.config.ChromaSTFTParams()
		if perr != nil {
			return perr
		}
		cfg.Tuning = tuning
		chromagram, err = a.chroma.PowerChroma(spectral.Magnitude(D, 2), sampleRate, cfg)
	case config.ChromaCENS:
		cfg, perr := a.config.CENSParams()
		if perr != nil {
			return perr
		}
		cfg.CQT.Tuning = tuning
		chromagram, err = a.chroma.CENS(y, sampleRate, cfg)
	default:
		cfg, perr := a.config.ChromaCQTParams()
		if perr != nil {
			return perr
		}
		cfg.Tuning = tuning
		chromagram, err = a.chroma.CQTChroma(y, sampleRate, cfg)
	}
	if err != nil {
		return err
	}
	res.Chroma = chromagram

	if a.config.Features.EnableTonnetz {
		if res.Tonnetz, err = chroma.Tonnetz(chromagram); err != nil {
			return fmt.Errorf("tonnetz: %w", err)
		}
	}
	if a.config.Features.EnableKey {
		profile, err := tonal.ParseKeyProfile(a.config.Pitch.KeyProfile)
		if err != nil {
			return err
		}
		key, err := tonal.EstimateKey(chromagram, profile)
		if err != nil {
			// Silence and other flat profiles carry no key.
			a.logger.Warn("Key estimation skipped", logging.Fields{"reason": err.Error()})
			return nil
		}
		res.Key = &key
	}
	return nil
}

func (a *Analyzer) separate(res *Result, D *mat.CDense, length int) error {
	parts, err := a.separator.Separate(D, a.config.HPSSParams())
	if err != nil {
		return err
	}
	res.HPSS = &parts
	if !a.config.HPSS.Signals {
		return nil
	}
	if res.Harmonic, err = a.stft.Inverse(parts.Harmonic, a.stftConfig, length); err != nil {
		return fmt.Errorf("harmonic inverse: %w", err)
	}
	if res.Percussive, err = a.stft.Inverse(parts.Percussive, a.stftConfig, length); err != nil {
		return fmt.Errorf("percussive inverse: %w", err)
	}
	return nil
}
