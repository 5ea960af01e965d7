// Package windowing builds analysis windows, centers them in FFT buffers
// and slices signals into overlapping frames.
package windowing

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// Window is a realized window of fixed size.
type Window struct {
	name         string
	coefficients []float64
}

// New realizes spec at the given size. Periodic windows suit FFT analysis,
// symmetric ones suit filter design.
func New(spec Spec, size int, periodic bool) (*Window, error) {
	coeffs, err := Get(spec, size, periodic)
	if err != nil {
		return nil, err
	}
	return &Window{name: spec.String(), coefficients: coeffs}, nil
}

// Get returns the coefficients of spec at length size. A periodic window
// is the symmetric window of length size+1 with the last sample dropped.
func Get(spec Spec, size int, periodic bool) ([]float64, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil window", common.ErrInvalidWindowSpec)
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: window length must be positive, got %d", common.ErrInvalidParameter, size)
	}

	switch s := spec.(type) {
	case Vector:
		if len(s) != size {
			return nil, fmt.Errorf("%w: window vector has length %d, want %d",
				common.ErrInvalidWindowSpec, len(s), size)
		}
		out := make([]float64, size)
		copy(out, s)
		return out, nil

	case Custom:
		if s.Fn == nil {
			return nil, fmt.Errorf("%w: custom window without a function", common.ErrInvalidWindowSpec)
		}
		out := s.Fn(size)
		if len(out) != size {
			return nil, fmt.Errorf("%w: custom window %q returned %d samples, want %d",
				common.ErrInvalidWindowSpec, s, len(out), size)
		}
		return out, nil

	case Named:
		sh, ok := lookupShape(string(s))
		if !ok {
			if _, needsParam := parameterized[canonicalName(string(s))]; needsParam {
				return nil, fmt.Errorf("%w: window %q needs a parameter", common.ErrInvalidWindowSpec, s)
			}
			return nil, fmt.Errorf("%w: unknown window %q", common.ErrInvalidWindowSpec, s)
		}
		return realize(sh, size, periodic), nil

	case Parameterized:
		build, ok := parameterized[canonicalName(s.Name)]
		if !ok {
			return nil, fmt.Errorf("%w: window %q takes no parameter", common.ErrInvalidWindowSpec, s.Name)
		}
		if math.IsNaN(s.Param) || math.IsInf(s.Param, 0) {
			return nil, fmt.Errorf("%w: non-finite parameter for %q", common.ErrInvalidWindowSpec, s.Name)
		}
		return realize(build(s.Param), size, periodic), nil

	case KaiserBeta:
		return realize(kaiser(float64(s)), size, periodic), nil
	}

	return nil, fmt.Errorf("%w: unsupported spec type %T", common.ErrInvalidWindowSpec, spec)
}

func realize(sh shape, size int, periodic bool) []float64 {
	if size == 1 {
		return []float64{1}
	}
	if !periodic {
		return sh(size)
	}
	return sh(size + 1)[:size]
}

// ApplyInPlace multiplies signal by the window.
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("%w: signal length (%d) doesn't match window size (%d)",
			common.ErrShapeMismatch, len(signal), len(w.coefficients))
	}
	for i, c := range w.coefficients {
		signal[i] *= c
	}
	return nil
}

// Coefficients returns a copy of the window values.
func (w *Window) Coefficients() []float64 {
	out := make([]float64, len(w.coefficients))
	copy(out, w.coefficients)
	return out
}

// PadCenter returns the window centered in size samples.
func (w *Window) PadCenter(size int) (*Window, error) {
	coeffs, err := PadCenter(w.coefficients, size)
	if err != nil {
		return nil, err
	}
	return &Window{name: w.name, coefficients: coeffs}, nil
}

// Name is the string form of the spec the window was built from.
func (w *Window) Name() string { return w.name }
