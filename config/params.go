package config

import (
	"time"

	"github.com/RyanBlaney/sonido-spectra/algorithms/chroma"
	"github.com/RyanBlaney/sonido-spectra/algorithms/cqt"
	"github.com/RyanBlaney/sonido-spectra/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-spectra/algorithms/spectral"
	"github.com/RyanBlaney/sonido-spectra/algorithms/tonal"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
	"github.com/RyanBlaney/sonido-spectra/transcode"
)

// DecoderParams converts the load section into a decoder configuration.
func (c *AnalysisConfig) DecoderParams() *transcode.DecoderConfig {
	return &transcode.DecoderConfig{
		TargetSampleRate: c.Load.SampleRate,
		Mono:             c.Load.Mono,
		Offset:           seconds(c.Load.OffsetSeconds),
		MaxDuration:      seconds(c.Load.DurationSeconds),
		ResampleQuality:  c.Load.ResampleQuality,
	}
}

// STFTParams converts the stft section.
func (c *AnalysisConfig) STFTParams() (spectral.Config, error) {
	window, err := windowing.ParseSpec(c.STFT.Window)
	if err != nil {
		return spectral.Config{}, err
	}
	return spectral.Config{
		NFFT:      c.STFT.NFFT,
		HopLength: c.STFT.HopLength,
		WinLength: c.STFT.WinLength,
		Window:    window,
		Center:    c.STFT.Center,
	}, nil
}

// CQTParams converts the cqt section. The tuning comes from the pitch
// section; nil asks the transform to estimate it.
func (c *AnalysisConfig) CQTParams() (cqt.Config, error) {
	window, err := windowing.ParseSpec(c.CQT.Window)
	if err != nil {
		return cqt.Config{}, err
	}
	norm, err := ParseNorm(c.CQT.Norm)
	if err != nil {
		return cqt.Config{}, err
	}
	return cqt.Config{
		HopLength:     c.CQT.HopLength,
		FMin:          c.CQT.FMin,
		NBins:         c.CQT.NBins,
		BinsPerOctave: c.CQT.BinsPerOctave,
		Tuning:        c.Pitch.Tuning,
		FilterScale:   c.CQT.FilterScale,
		Norm:          norm,
		Sparsity:      c.CQT.Sparsity,
		Window:        window,
		Scale:         c.CQT.Scale,
	}, nil
}

// ChromaSTFTParams converts the chroma section for STFT chroma, framed
// like the stft section.
func (c *AnalysisConfig) ChromaSTFTParams() (chroma.STFTConfig, error) {
	window, err := windowing.ParseSpec(c.STFT.Window)
	if err != nil {
		return chroma.STFTConfig{}, err
	}
	norm, err := ParseNorm(c.Chroma.Norm)
	if err != nil {
		return chroma.STFTConfig{}, err
	}
	return chroma.STFTConfig{
		NFFT:         c.STFT.NFFT,
		HopLength:    c.STFT.HopLength,
		Window:       window,
		NChroma:      c.Chroma.NChroma,
		Tuning:       c.Pitch.Tuning,
		CenterOctave: c.Chroma.CenterOctave,
		OctaveWidth:  c.Chroma.OctaveWidth,
		BaseC:        c.Chroma.BaseC,
		Norm:         norm,
	}, nil
}

// ChromaCQTParams converts the chroma section for constant-Q chroma,
// sharing hop and fmin with the cqt section.
func (c *AnalysisConfig) ChromaCQTParams() (chroma.CQTConfig, error) {
	norm, err := ParseNorm(c.Chroma.Norm)
	if err != nil {
		return chroma.CQTConfig{}, err
	}
	mode, err := chroma.ParseCQTMode(string(c.Chroma.CQTMode))
	if err != nil {
		return chroma.CQTConfig{}, err
	}
	return chroma.CQTConfig{
		HopLength:     c.CQT.HopLength,
		FMin:          c.CQT.FMin,
		NChroma:       c.Chroma.NChroma,
		NOctaves:      c.Chroma.NOctaves,
		BinsPerOctave: c.Chroma.BinsPerOctave,
		Tuning:        c.Pitch.Tuning,
		Threshold:     c.Chroma.Threshold,
		Mode:          mode,
		Norm:          norm,
	}, nil
}

// CENSParams converts the chroma section for CENS features.
func (c *AnalysisConfig) CENSParams() (chroma.CENSConfig, error) {
	base, err := c.ChromaCQTParams()
	if err != nil {
		return chroma.CENSConfig{}, err
	}
	norm, err := ParseNorm(c.Chroma.CENSNorm)
	if err != nil {
		return chroma.CENSConfig{}, err
	}
	return chroma.CENSConfig{
		CQT:          base,
		WinLenSmooth: c.Chroma.WinLenSmooth,
		Norm:         norm,
	}, nil
}

// HPSSParams converts the hpss section.
func (c *AnalysisConfig) HPSSParams() harmonic.Config {
	return harmonic.Config{
		KernelHarmonic:   c.HPSS.KernelHarmonic,
		KernelPercussive: c.HPSS.KernelPercussive,
		Power:            c.HPSS.Power,
		MarginHarmonic:   c.HPSS.MarginHarmonic,
		MarginPercussive: c.HPSS.MarginPercussive,
	}
}

// PiptrackParams converts the pitch section for pitch tracking.
func (c *AnalysisConfig) PiptrackParams() tonal.PiptrackConfig {
	return tonal.PiptrackConfig{
		FMin:      c.Pitch.FMin,
		FMax:      c.Pitch.FMax,
		Threshold: c.Pitch.Threshold,
	}
}

// TuningParams converts the pitch section for tuning estimation on a
// 12-tone grid.
func (c *AnalysisConfig) TuningParams() tonal.TuningConfig {
	return tonal.TuningConfig{
		Resolution:    c.Pitch.Resolution,
		BinsPerOctave: 12,
		NFFT:          c.STFT.NFFT,
		Piptrack:      c.PiptrackParams(),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
