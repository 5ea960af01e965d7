package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// MaxMemBlock bounds the bytes of spectrogram produced per column block.
const MaxMemBlock = 1 << 18

const complexBytes = 16

// Config holds the framing parameters shared by the forward and inverse
// transforms. Zero HopLength means WinLength/4, zero WinLength means NFFT.
type Config struct {
	NFFT      int            `json:"n_fft" yaml:"n_fft"`
	HopLength int            `json:"hop_length" yaml:"hop_length"`
	WinLength int            `json:"win_length" yaml:"win_length"`
	Window    windowing.Spec `json:"-" yaml:"-"`
	Center    bool           `json:"center" yaml:"center"`
}

// DefaultConfig returns a 2048-point centered Hann analysis.
func DefaultConfig() Config {
	return Config{
		NFFT:   2048,
		Window: windowing.Hann,
		Center: true,
	}
}

func (c Config) resolve() (Config, error) {
	if c.NFFT < 1 {
		return c, fmt.Errorf("%w: n_fft must be positive, got %d", common.ErrInvalidParameter, c.NFFT)
	}
	if c.WinLength == 0 {
		c.WinLength = c.NFFT
	}
	if c.WinLength < 1 || c.WinLength > c.NFFT {
		return c, fmt.Errorf("%w: win_length %d must be in [1, n_fft=%d]", common.ErrInvalidParameter, c.WinLength, c.NFFT)
	}
	if c.HopLength == 0 {
		c.HopLength = c.WinLength / 4
	}
	if c.HopLength < 1 {
		return c, fmt.Errorf("%w: hop_length must be >= 1, got %d", common.ErrInvalidParameter, c.HopLength)
	}
	if c.Window == nil {
		c.Window = windowing.Hann
	}
	return c, nil
}

// analysisWindow realizes the periodic window centered in n_fft samples.
func (c Config) analysisWindow() (*windowing.Window, error) {
	win, err := windowing.New(c.Window, c.WinLength, true)
	if err != nil {
		return nil, err
	}
	return win.PadCenter(c.NFFT)
}

// STFT computes short-time Fourier transforms and their inverse.
type STFT struct {
	logger  logging.Logger
	workers int
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		logger:  logging.Component("stft"),
		workers: runtime.NumCPU(),
	}
}

// WithLogger replaces the component logger.
func (s *STFT) WithLogger(logger logging.Logger) *STFT {
	s.logger = logger
	return s
}

// Compute returns the (1 + n_fft/2) x frames spectrogram of y. Bin k is
// frequency k*sr/n_fft; values are conjugated so that positive frequencies
// carry decreasing phase.
func (s *STFT) Compute(y []float64, cfg Config) (*mat.CDense, error) {
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	if len(y) == 0 {
		return nil, fmt.Errorf("%w: empty signal", common.ErrInvalidInput)
	}
	if err := common.CheckFinite(y); err != nil {
		return nil, err
	}

	win, err := cfg.analysisWindow()
	if err != nil {
		return nil, err
	}

	padded := y
	if cfg.Center {
		padded = ReflectPad(y, cfg.NFFT/2)
	}
	frames, err := windowing.Frame(padded, cfg.NFFT, cfg.HopLength)
	if err != nil {
		return nil, err
	}

	bins := 1 + cfg.NFFT/2
	nFrames := frames.Count()
	out := mat.NewCDense(bins, nFrames, nil)
	raw := out.RawCMatrix()

	blockCols := max(1, MaxMemBlock/(bins*complexBytes))
	s.logger.Debug("computing stft", logging.Fields{
		"n_fft":      cfg.NFFT,
		"hop_length": cfg.HopLength,
		"window":     win.Name(),
		"frames":     nFrames,
		"block_cols": blockCols,
	})

	var g errgroup.Group
	g.SetLimit(max(1, s.workers))
	for start := 0; start < nFrames; start += blockCols {
		end := min(start+blockCols, nFrames)
		g.Go(func() error {
			plan := fourier.NewFFT(cfg.NFFT)
			buf := make([]float64, cfg.NFFT)
			coeffs := make([]complex128, bins)
			for j := start; j < end; j++ {
				copy(buf, frames.Column(j))
				if err := win.ApplyInPlace(buf); err != nil {
					return err
				}
				plan.Coefficients(coeffs, buf)
				for k, c := range coeffs {
					raw.Data[k*raw.Stride+j] = cmplx.Conj(c)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Inverse reconstructs a signal from spectrogram d by windowed overlap-add.
// n_fft is inferred from the row count and cfg.NFFT is ignored. A positive
// length fixes the output to exactly that many samples.
func (s *STFT) Inverse(d *mat.CDense, cfg Config, length int) ([]float64, error) {
	rows, nFrames := d.Dims()
	nFFT := 2 * (rows - 1)
	if nFFT < 2 {
		return nil, fmt.Errorf("%w: spectrogram needs at least 2 rows, got %d", common.ErrInvalidInput, rows)
	}
	cfg.NFFT = nFFT
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	win, err := cfg.analysisWindow()
	if err != nil {
		return nil, err
	}
	coefficients := win.Coefficients()

	total := nFFT + cfg.HopLength*(nFrames-1)
	y := make([]float64, total)
	windowSum := make([]float64, total)

	plan := fourier.NewFFT(nFFT)
	coeffs := make([]complex128, rows)
	seq := make([]float64, nFFT)
	scale := 1 / float64(nFFT)
	for j := range nFrames {
		for k := range coeffs {
			coeffs[k] = cmplx.Conj(d.At(k, j))
		}
		plan.Sequence(seq, coeffs)

		offset := j * cfg.HopLength
		for i, w := range coefficients {
			y[offset+i] += seq[i] * scale * w
			windowSum[offset+i] += w * w
		}
	}

	for i, ws := range windowSum {
		if ws > common.Tiny {
			y[i] /= ws
		}
	}

	if cfg.Center {
		y = y[nFFT/2 : total-nFFT/2]
	}
	if length > 0 {
		y = common.FixLength(y, length)
	}

	s.logger.Debug("inverted stft", logging.Fields{"frames": nFrames, "samples": len(y)})
	return y, nil
}

// ReflectPad mirrors pad samples onto each side of y without repeating
// the edge samples.
func ReflectPad(y []float64, pad int) []float64 {
	n := len(y)
	out := make([]float64, n+2*pad)
	for i := range out {
		out[i] = y[common.ReflectIndex(i-pad, n)]
	}
	return out
}
