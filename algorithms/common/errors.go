package common

import "errors"

// Error kinds returned by the analysis packages. Callers match them with
// errors.Is; the wrapping error carries the offending values.
var (
	// Invalid configuration.
	ErrInvalidWindowSpec      = errors.New("invalid window specification")
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrInvalidThreshold       = errors.New("threshold must be strictly positive")
	ErrUnsupportedCombination = errors.New("unsupported parameter combination")
	ErrInvalidMargin          = errors.New("margins must be >= 1")
	ErrIncompatibleBinCount   = errors.New("bins_per_octave must be an integer multiple of n_chroma")

	// Geometric infeasibility.
	ErrSize                  = errors.New("target size is smaller than input")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInputTooShort         = errors.New("input signal is too short")
	ErrIncompatibleHopLength = errors.New("hop length is not divisible by 2 often enough")
	ErrNyquistExceeded       = errors.New("filter pass-band lies beyond Nyquist")

	// Shape and value errors.
	ErrNotFinite     = errors.New("input contains non-finite values")
	ErrShapeMismatch = errors.New("input shapes do not match")
	ErrNegativeInput = errors.New("input contains negative values")
)
