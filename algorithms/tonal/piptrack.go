package tonal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// PiptrackConfig bounds the frequencies and magnitudes piptrack reports.
type PiptrackConfig struct {
	FMin      float64 `json:"fmin" yaml:"fmin"`           // lowest reported frequency (Hz)
	FMax      float64 `json:"fmax" yaml:"fmax"`           // reported frequencies stay below this (Hz)
	Threshold float64 `json:"threshold" yaml:"threshold"` // fraction of each frame's peak
}

// DefaultPiptrackConfig returns the 150 Hz - 4 kHz, 10% threshold setup.
func DefaultPiptrackConfig() PiptrackConfig {
	return PiptrackConfig{FMin: 150, FMax: 4000, Threshold: 0.1}
}

// LocalMax marks x[i] > x[i-1] && x[i] >= x[i+1], with the ends compared
// against themselves, so the first sample is never a maximum.
func LocalMax(x []float64) []bool {
	n := len(x)
	out := make([]bool, n)
	for i := range x {
		left := x[max(i-1, 0)]
		right := x[min(i+1, n-1)]
		out[i] = x[i] > left && x[i] >= right
	}
	return out
}

// Piptrack estimates instantaneous pitch in a magnitude spectrogram with
// 1 + n_fft/2 rows by parabolic interpolation around local maxima. Cells
// that are not above-threshold local maxima inside [FMin, FMax) are zero in
// both outputs.
func Piptrack(S *mat.Dense, sampleRate float64, cfg PiptrackConfig) (pitches, magnitudes *mat.Dense, err error) {
	if !(sampleRate > 0) {
		return nil, nil, fmt.Errorf("%w: sample rate must be positive, got %v", common.ErrInvalidParameter, sampleRate)
	}
	if cfg.Threshold < 0 || math.IsNaN(cfg.Threshold) {
		return nil, nil, fmt.Errorf("%w: threshold must be non-negative, got %v", common.ErrInvalidParameter, cfg.Threshold)
	}
	if !common.DenseAllFinite(S) {
		return nil, nil, fmt.Errorf("%w: spectrogram", common.ErrNotFinite)
	}
	rows, cols := S.Dims()
	if rows < 2 {
		return nil, nil, fmt.Errorf("%w: spectrogram needs at least 2 rows, got %d", common.ErrInvalidInput, rows)
	}

	nFFT := 2 * (rows - 1)
	fmin := math.Max(cfg.FMin, 0)
	fmax := math.Min(cfg.FMax, sampleRate/2)

	freqs := common.Linspace(0, sampleRate/2, rows, true)
	pitches = mat.NewDense(rows, cols, nil)
	magnitudes = mat.NewDense(rows, cols, nil)

	col := make([]float64, rows)
	masked := make([]float64, rows)
	for t := range cols {
		peak := 0.0
		for k := range rows {
			col[k] = math.Abs(S.At(k, t))
			peak = math.Max(peak, col[k])
		}
		for k, v := range col {
			masked[k] = 0
			if v > cfg.Threshold*peak {
				masked[k] = v
			}
		}

		// The end bins are skipped: bin 0 is never a local maximum and the
		// last bin sits at Nyquist, which is never below fmax.
		isMax := LocalMax(masked)
		for k := 1; k < rows-1; k++ {
			if !isMax[k] || freqs[k] < fmin || freqs[k] >= fmax {
				continue
			}
			shift, height := common.ParabolicPeak(col[k-1], col[k], col[k+1])
			pitches.Set(k, t, (float64(k)+shift)*sampleRate/float64(nFFT))
			magnitudes.Set(k, t, height)
		}
	}
	return pitches, magnitudes, nil
}
