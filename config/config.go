// Package config holds the analysis configuration: defaults, validation,
// file loading and the environment overlay. It converts into the plain
// configuration structs of the algorithm packages.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-spectra/algorithms/chroma"
	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/cqt"
	"github.com/RyanBlaney/sonido-spectra/algorithms/resample"
	"github.com/RyanBlaney/sonido-spectra/algorithms/tonal"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// CQTMode selects the constant-Q implementation.
type CQTMode string

const (
	CQTFull   CQTMode = "full"
	CQTHybrid CQTMode = "hybrid"
	CQTPseudo CQTMode = "pseudo"
)

// ChromaSource selects the representation chroma is folded from.
type ChromaSource string

const (
	ChromaSTFT ChromaSource = "stft"
	ChromaCQT  ChromaSource = "cqt"
	ChromaCENS ChromaSource = "cens"
)

// AnalysisConfig configures every stage of an analysis run.
type AnalysisConfig struct {
	LogLevel string `json:"log_level" yaml:"log_level"`

	Load     LoadConfig    `json:"load" yaml:"load"`
	STFT     STFTConfig    `json:"stft" yaml:"stft"`
	CQT      CQTConfig     `json:"cqt" yaml:"cqt"`
	Chroma   ChromaConfig  `json:"chroma" yaml:"chroma"`
	HPSS     HPSSConfig    `json:"hpss" yaml:"hpss"`
	Pitch    PitchConfig   `json:"pitch" yaml:"pitch"`
	Features FeatureConfig `json:"features" yaml:"features"`
}

// LoadConfig controls decoding and load-time resampling.
type LoadConfig struct {
	SampleRate      int     `json:"sample_rate" yaml:"sample_rate"` // 0 keeps the native rate
	Mono            bool    `json:"mono" yaml:"mono"`
	OffsetSeconds   float64 `json:"offset" yaml:"offset"`
	DurationSeconds float64 `json:"duration" yaml:"duration"` // 0 reads to the end
	ResampleQuality string  `json:"resample_quality" yaml:"resample_quality"`
}

// STFTConfig frames the short-time Fourier transform.
type STFTConfig struct {
	NFFT      int    `json:"n_fft" yaml:"n_fft"`
	HopLength int    `json:"hop_length" yaml:"hop_length"`
	WinLength int    `json:"win_length" yaml:"win_length"` // 0 means n_fft
	Window    string `json:"window" yaml:"window"`
	Center    bool   `json:"center" yaml:"center"`
}

// CQTConfig configures the constant-Q transform.
type CQTConfig struct {
	Mode          CQTMode `json:"mode" yaml:"mode"`
	HopLength     int     `json:"hop_length" yaml:"hop_length"`
	FMin          float64 `json:"fmin" yaml:"fmin"`
	NBins         int     `json:"n_bins" yaml:"n_bins"`
	BinsPerOctave int     `json:"bins_per_octave" yaml:"bins_per_octave"`
	FilterScale   float64 `json:"filter_scale" yaml:"filter_scale"`
	Sparsity      float64 `json:"sparsity" yaml:"sparsity"`
	Window        string  `json:"window" yaml:"window"`
	Norm          string  `json:"norm" yaml:"norm"`
	Scale         bool    `json:"scale" yaml:"scale"`
}

// ChromaConfig configures chroma extraction.
type ChromaConfig struct {
	Source        ChromaSource `json:"source" yaml:"source"`
	NChroma       int          `json:"n_chroma" yaml:"n_chroma"`
	NOctaves      int          `json:"n_octaves" yaml:"n_octaves"`
	BinsPerOctave int          `json:"bins_per_octave" yaml:"bins_per_octave"`
	CQTMode       CQTMode      `json:"cqt_mode" yaml:"cqt_mode"` // full or hybrid
	Threshold     float64      `json:"threshold" yaml:"threshold"`
	Norm          string       `json:"norm" yaml:"norm"`
	CenterOctave  float64      `json:"center_octave" yaml:"center_octave"`
	OctaveWidth   float64      `json:"octave_width" yaml:"octave_width"`
	BaseC         bool         `json:"base_c" yaml:"base_c"`
	WinLenSmooth  int          `json:"win_len_smooth" yaml:"win_len_smooth"`
	CENSNorm      string       `json:"cens_norm" yaml:"cens_norm"`
}

// HPSSConfig configures harmonic-percussive separation.
type HPSSConfig struct {
	KernelHarmonic   int     `json:"kernel_harmonic" yaml:"kernel_harmonic"`
	KernelPercussive int     `json:"kernel_percussive" yaml:"kernel_percussive"`
	Power            float64 `json:"power" yaml:"power"`
	MarginHarmonic   float64 `json:"margin_harmonic" yaml:"margin_harmonic"`
	MarginPercussive float64 `json:"margin_percussive" yaml:"margin_percussive"`
	Signals          bool    `json:"signals" yaml:"signals"` // also invert to time-domain signals
}

// PitchConfig configures pitch tracking, tuning and key estimation.
type PitchConfig struct {
	FMin       float64  `json:"fmin" yaml:"fmin"`
	FMax       float64  `json:"fmax" yaml:"fmax"`
	Threshold  float64  `json:"threshold" yaml:"threshold"`
	Resolution float64  `json:"resolution" yaml:"resolution"`
	Tuning     *float64 `json:"tuning,omitempty" yaml:"tuning,omitempty"` // nil: estimate
	KeyProfile string   `json:"key_profile" yaml:"key_profile"`
}

// FeatureConfig switches analysis stages on and off.
type FeatureConfig struct {
	EnableCQT     bool `json:"enable_cqt" yaml:"enable_cqt"`
	EnableChroma  bool `json:"enable_chroma" yaml:"enable_chroma"`
	EnableTonnetz bool `json:"enable_tonnetz" yaml:"enable_tonnetz"`
	EnableHPSS    bool `json:"enable_hpss" yaml:"enable_hpss"`
	EnablePitch   bool `json:"enable_pitch" yaml:"enable_pitch"`
	EnableKey     bool `json:"enable_key" yaml:"enable_key"`
}

// DefaultAnalysisConfig returns a full analysis of mono audio at 22050 Hz.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		LogLevel: "info",
		Load: LoadConfig{
			SampleRate:      22050,
			Mono:            true,
			ResampleQuality: "best",
		},
		STFT: STFTConfig{
			NFFT:      2048,
			HopLength: 512,
			Window:    "hann",
			Center:    true,
		},
		CQT: CQTConfig{
			Mode:          CQTFull,
			HopLength:     512,
			FMin:          cqt.C1,
			NBins:         84,
			BinsPerOctave: 12,
			FilterScale:   1,
			Sparsity:      0.01,
			Window:        "hann",
			Norm:          "l1",
			Scale:         true,
		},
		Chroma: ChromaConfig{
			Source:       ChromaCQT,
			NChroma:      12,
			NOctaves:     7,
			CQTMode:      CQTFull,
			Norm:         "inf",
			CenterOctave: 5,
			OctaveWidth:  2,
			BaseC:        true,
			WinLenSmooth: 41,
			CENSNorm:     "l2",
		},
		HPSS: HPSSConfig{
			KernelHarmonic:   31,
			KernelPercussive: 31,
			Power:            2,
			MarginHarmonic:   1,
			MarginPercussive: 1,
		},
		Pitch: PitchConfig{
			FMin:       150,
			FMax:       4000,
			Threshold:  0.1,
			Resolution: 0.01,
			KeyProfile: string(tonal.KeyProfileKrumhansl),
		},
		Features: FeatureConfig{
			EnableCQT:     true,
			EnableChroma:  true,
			EnableTonnetz: true,
			EnableHPSS:    true,
			EnablePitch:   true,
			EnableKey:     true,
		},
	}
}

// PresetConfig returns a configuration tuned for a workload: "fast" trades
// accuracy for speed, "precise" favors fidelity. Unknown names yield the
// defaults.
func PresetConfig(name string) *AnalysisConfig {
	cfg := DefaultAnalysisConfig()

	switch name {
	case "fast":
		cfg.Load.ResampleQuality = "fast"
		cfg.CQT.Mode = CQTHybrid
		cfg.Chroma.Source = ChromaSTFT
		cfg.HPSS.KernelHarmonic = 17
		cfg.HPSS.KernelPercussive = 17

	case "precise":
		cfg.CQT.Sparsity = 0
		cfg.CQT.BinsPerOctave = 36
		cfg.CQT.NBins = 252
		cfg.Chroma.BinsPerOctave = 36
		cfg.Pitch.Resolution = 0.005

	default:
		// Use defaults
	}

	return cfg
}

// Validate reports every invalid setting at once.
func (c *AnalysisConfig) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{common.ErrInvalidParameter}, args...)...))
		}
	}
	keep := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	_, err := logging.ParseLevel(c.LogLevel)
	keep(err)

	check(c.Load.SampleRate >= 0, "load.sample_rate must be >= 0, got %d", c.Load.SampleRate)
	check(c.Load.OffsetSeconds >= 0, "load.offset must be >= 0, got %v", c.Load.OffsetSeconds)
	check(c.Load.DurationSeconds >= 0, "load.duration must be >= 0, got %v", c.Load.DurationSeconds)
	_, err = resample.ParseQuality(c.Load.ResampleQuality)
	keep(err)

	check(c.STFT.NFFT > 0, "stft.n_fft must be positive, got %d", c.STFT.NFFT)
	check(c.STFT.HopLength > 0, "stft.hop_length must be positive, got %d", c.STFT.HopLength)
	check(c.STFT.WinLength >= 0 && c.STFT.WinLength <= c.STFT.NFFT,
		"stft.win_length must be in [0, n_fft], got %d", c.STFT.WinLength)
	_, err = windowing.ParseSpec(c.STFT.Window)
	keep(err)

	check(c.CQT.Mode == CQTFull || c.CQT.Mode == CQTHybrid || c.CQT.Mode == CQTPseudo,
		"cqt.mode must be full, hybrid or pseudo, got %q", c.CQT.Mode)
	check(c.CQT.HopLength > 0, "cqt.hop_length must be positive, got %d", c.CQT.HopLength)
	check(c.CQT.FMin > 0, "cqt.fmin must be positive, got %v", c.CQT.FMin)
	check(c.CQT.NBins > 0, "cqt.n_bins must be positive, got %d", c.CQT.NBins)
	check(c.CQT.BinsPerOctave > 0, "cqt.bins_per_octave must be positive, got %d", c.CQT.BinsPerOctave)
	check(c.CQT.FilterScale > 0, "cqt.filter_scale must be positive, got %v", c.CQT.FilterScale)
	check(c.CQT.Sparsity >= 0 && c.CQT.Sparsity < 1, "cqt.sparsity must be in [0, 1), got %v", c.CQT.Sparsity)
	_, err = windowing.ParseSpec(c.CQT.Window)
	keep(err)
	_, err = ParseNorm(c.CQT.Norm)
	keep(err)

	check(c.Chroma.Source == ChromaSTFT || c.Chroma.Source == ChromaCQT || c.Chroma.Source == ChromaCENS,
		"chroma.source must be stft, cqt or cens, got %q", c.Chroma.Source)
	check(c.Chroma.NChroma > 0, "chroma.n_chroma must be positive, got %d", c.Chroma.NChroma)
	check(c.Chroma.NOctaves > 0, "chroma.n_octaves must be positive, got %d", c.Chroma.NOctaves)
	check(c.Chroma.BinsPerOctave >= 0, "chroma.bins_per_octave must be >= 0, got %d", c.Chroma.BinsPerOctave)
	check(c.Chroma.Threshold >= 0, "chroma.threshold must be >= 0, got %v", c.Chroma.Threshold)
	check(c.Chroma.OctaveWidth >= 0, "chroma.octave_width must be >= 0, got %v", c.Chroma.OctaveWidth)
	check(c.Chroma.WinLenSmooth >= 1, "chroma.win_len_smooth must be >= 1, got %d", c.Chroma.WinLenSmooth)
	_, err = chroma.ParseCQTMode(string(c.Chroma.CQTMode))
	keep(err)
	_, err = ParseNorm(c.Chroma.Norm)
	keep(err)
	_, err = ParseNorm(c.Chroma.CENSNorm)
	keep(err)

	check(c.HPSS.KernelHarmonic > 0, "hpss.kernel_harmonic must be positive, got %d", c.HPSS.KernelHarmonic)
	check(c.HPSS.KernelPercussive > 0, "hpss.kernel_percussive must be positive, got %d", c.HPSS.KernelPercussive)
	check(c.HPSS.Power > 0, "hpss.power must be positive, got %v", c.HPSS.Power)
	if c.HPSS.MarginHarmonic < 1 || c.HPSS.MarginPercussive < 1 {
		errs = append(errs, fmt.Errorf("%w: hpss margins must be >= 1, got %v and %v",
			common.ErrInvalidMargin, c.HPSS.MarginHarmonic, c.HPSS.MarginPercussive))
	}

	check(c.Pitch.FMin >= 0 && c.Pitch.FMin < c.Pitch.FMax,
		"pitch.fmin must be in [0, fmax), got %v and %v", c.Pitch.FMin, c.Pitch.FMax)
	check(c.Pitch.Resolution > 0 && c.Pitch.Resolution < 1,
		"pitch.resolution must be in (0, 1), got %v", c.Pitch.Resolution)
	if c.Pitch.Threshold < 0 || c.Pitch.Threshold > 1 {
		errs = append(errs, fmt.Errorf("%w: pitch.threshold must be in [0, 1], got %v",
			common.ErrInvalidThreshold, c.Pitch.Threshold))
	}
	if c.Pitch.Tuning != nil {
		check(!math.IsNaN(*c.Pitch.Tuning) && math.Abs(*c.Pitch.Tuning) <= 0.5,
			"pitch.tuning must be in [-0.5, 0.5], got %v", *c.Pitch.Tuning)
	}
	_, err = tonal.ParseKeyProfile(c.Pitch.KeyProfile)
	keep(err)

	if c.Features.EnableKey && c.Features.EnableChroma && c.Chroma.NChroma != 12 {
		errs = append(errs, fmt.Errorf("%w: key estimation needs 12 chroma bins, got %d",
			common.ErrIncompatibleBinCount, c.Chroma.NChroma))
	}
	return errors.Join(errs...)
}

// ParseNorm reads a normalization order: "none", "inf", "-inf", "l0",
// "l1", "l2" or a positive number.
func ParseNorm(text string) (common.Norm, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "none":
		return common.NormNone, nil
	case "inf", "max":
		return common.NormInf, nil
	case "-inf", "min":
		return common.NormNegInf, nil
	case "l0":
		return common.NormL0, nil
	case "l1":
		return common.NormL1, nil
	case "l2":
		return common.NormL2, nil
	}
	order, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(order) {
		return common.NormNone, fmt.Errorf("%w: unknown norm %q", common.ErrInvalidParameter, text)
	}
	return common.ParseNorm(order)
}
