package chroma

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
)

// CENS quantization: each threshold crossed adds its weight.
var (
	censSteps   = []float64{0.4, 0.2, 0.1, 0.05}
	censWeights = []float64{0.25, 0.25, 0.25, 0.25}
)

// CENSConfig controls Chroma Energy Normalized Statistics.
type CENSConfig struct {
	CQT          CQTConfig   `json:"cqt" yaml:"cqt"` // its Norm and Threshold are ignored
	WinLenSmooth int         `json:"win_len_smooth" yaml:"win_len_smooth"`
	Norm         common.Norm `json:"-" yaml:"-"`
}

// DefaultCENSConfig smooths over 41 frames and L2-normalizes.
func DefaultCENSConfig() CENSConfig {
	return CENSConfig{
		CQT:          DefaultCQTConfig(),
		WinLenSmooth: 41,
		Norm:         common.NormL2,
	}
}

// CENS computes unnormalized constant-Q chroma of y and post-processes it
// with CENSFromChroma.
func (e *Extractor) CENS(y []float64, sampleRate float64, cfg CENSConfig) (*mat.Dense, error) {
	cqtCfg := cfg.CQT
	cqtCfg.Norm = common.NormNone
	cqtCfg.Threshold = 0
	chroma, err := e.CQTChroma(y, sampleRate, cqtCfg)
	if err != nil {
		return nil, err
	}
	return CENSFromChroma(chroma, cfg.WinLenSmooth, cfg.Norm)
}

// CENSFromChroma L1-normalizes each frame, quantizes every value into
// four levels, smooths each pitch class over time with a Hann window of
// winLenSmooth frames and normalizes the frames with norm.
func CENSFromChroma(chroma *mat.Dense, winLenSmooth int, norm common.Norm) (*mat.Dense, error) {
	if winLenSmooth < 1 {
		return nil, fmt.Errorf("%w: win_len_smooth must be positive, got %d", common.ErrInvalidParameter, winLenSmooth)
	}
	c, err := common.Normalize(chroma, common.NormL1, 0)
	if err != nil {
		return nil, err
	}

	c.Apply(func(_, _ int, v float64) float64 {
		q := 0.0
		for i, step := range censSteps {
			if v > step {
				q += censWeights[i]
			}
		}
		return q
	}, c)

	// The periodic window of length n+2 has zeros only at its first
	// sample, leaving n+1 non-zero taps.
	win, err := windowing.Get(windowing.Hann, winLenSmooth+2, true)
	if err != nil {
		return nil, err
	}
	floats.Scale(1/floats.Sum(win), win)

	rows, _ := c.Dims()
	for i := range rows {
		c.SetRow(i, common.ConvolveSame(c.RawRowView(i), win))
	}
	return common.Normalize(c, norm, 0)
}
