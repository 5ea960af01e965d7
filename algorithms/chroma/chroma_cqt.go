package chroma

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/cqt"
	"github.com/RyanBlaney/sonido-spectra/algorithms/spectral"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// CQTMode selects the constant-Q front end.
type CQTMode string

const (
	CQTModeFull   CQTMode = "full"
	CQTModeHybrid CQTMode = "hybrid"
)

// ParseCQTMode validates a mode name.
func ParseCQTMode(name string) (CQTMode, error) {
	switch CQTMode(name) {
	case CQTModeFull, CQTModeHybrid:
		return CQTMode(name), nil
	case "":
		return CQTModeFull, nil
	}
	return CQTModeFull, fmt.Errorf("%w: unknown cqt mode %q", common.ErrInvalidParameter, name)
}

// CQTConfig controls chroma computed from a constant-Q spectrogram.
type CQTConfig struct {
	HopLength     int         `json:"hop_length" yaml:"hop_length"`
	FMin          float64     `json:"fmin" yaml:"fmin"`
	NChroma       int         `json:"n_chroma" yaml:"n_chroma"`
	NOctaves      int         `json:"n_octaves" yaml:"n_octaves"`
	BinsPerOctave int         `json:"bins_per_octave" yaml:"bins_per_octave"` // 0 means NChroma
	Tuning        *float64    `json:"tuning,omitempty" yaml:"tuning,omitempty"`
	Threshold     float64     `json:"threshold" yaml:"threshold"` // chroma energy below this is zeroed
	Window        []float64   `json:"window,omitempty" yaml:"window,omitempty"`
	Mode          CQTMode     `json:"mode" yaml:"mode"`
	Norm          common.Norm `json:"-" yaml:"-"`
}

// DefaultCQTConfig returns 12-bin chroma over seven octaves from C1.
func DefaultCQTConfig() CQTConfig {
	return CQTConfig{
		HopLength: 512,
		FMin:      cqt.C1,
		NChroma:   12,
		NOctaves:  7,
		Mode:      CQTModeFull,
		Norm:      common.NormInf,
	}
}

func (c CQTConfig) binsPerOctave() int {
	if c.BinsPerOctave > 0 {
		return c.BinsPerOctave
	}
	return c.NChroma
}

// CQTChroma computes the constant-Q magnitude spectrogram of y and folds it
// into pitch classes.
func (e *Extractor) CQTChroma(y []float64, sampleRate float64, cfg CQTConfig) (*mat.Dense, error) {
	if cfg.NChroma < 1 || cfg.NOctaves < 1 {
		return nil, fmt.Errorf("%w: n_chroma %d and n_octaves %d must be positive",
			common.ErrInvalidParameter, cfg.NChroma, cfg.NOctaves)
	}
	bpo := cfg.binsPerOctave()

	cqtCfg := cqt.DefaultConfig()
	cqtCfg.HopLength = cfg.HopLength
	cqtCfg.FMin = cfg.FMin
	cqtCfg.NBins = cfg.NOctaves * bpo
	cqtCfg.BinsPerOctave = bpo
	cqtCfg.Tuning = cfg.Tuning

	var (
		C   *mat.Dense
		err error
	)
	switch cfg.Mode {
	case CQTModeHybrid:
		C, err = e.transformer.HybridCQT(y, sampleRate, cqtCfg)
	case CQTModeFull, "":
		var full *mat.CDense
		if full, err = e.transformer.CQT(y, sampleRate, cqtCfg); err == nil {
			C = spectral.Magnitude(full, 1)
		}
	default:
		err = fmt.Errorf("%w: unknown cqt mode %q", common.ErrInvalidParameter, cfg.Mode)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("cqt chroma", logging.Fields{
		"mode":   string(cfg.Mode),
		"n_bins": cqtCfg.NBins,
	})
	return FoldCQT(C, cfg)
}

// FoldCQT folds a constant-Q magnitude spectrogram into pitch classes,
// zeroes values below cfg.Threshold and normalizes each frame.
func FoldCQT(C *mat.Dense, cfg CQTConfig) (*mat.Dense, error) {
	rows, _ := C.Dims()
	fmin := cfg.FMin
	if fmin == 0 {
		fmin = cqt.C1
	}
	merge, err := CQToChroma(rows, cfg.binsPerOctave(), cfg.NChroma, fmin, cfg.Window, true)
	if err != nil {
		return nil, err
	}

	var chroma mat.Dense
	chroma.Mul(merge, C)
	chroma.Apply(func(_, _ int, v float64) float64 {
		if v < cfg.Threshold {
			return 0
		}
		return v
	}, &chroma)
	return common.Normalize(&chroma, cfg.Norm, 0)
}
