package common

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

type normKind int

const (
	normNone normKind = iota
	normInf
	normNegInf
	normL0
	normLp
)

// Norm selects how the length of a slice is measured.
type Norm struct {
	kind normKind
	p    float64
}

var (
	// NormNone disables normalization.
	NormNone = Norm{kind: normNone}
	// NormInf scales by the maximum absolute value.
	NormInf = Norm{kind: normInf}
	// NormNegInf scales by the minimum absolute value.
	NormNegInf = Norm{kind: normNegInf}
	// NormL0 scales by the number of non-zero entries.
	NormL0 = Norm{kind: normL0}
	// NormL1 and NormL2 are the common Lp norms.
	NormL1 = Norm{kind: normLp, p: 1}
	NormL2 = Norm{kind: normLp, p: 2}
)

// NormL returns the Lp norm for p > 0.
func NormL(p float64) Norm {
	return Norm{kind: normLp, p: p}
}

// ParseNorm maps a numeric norm order to a Norm: +Inf, -Inf, 0, p > 0.
// NaN stands for no normalization.
func ParseNorm(order float64) (Norm, error) {
	switch {
	case math.IsNaN(order):
		return NormNone, nil
	case math.IsInf(order, 1):
		return NormInf, nil
	case math.IsInf(order, -1):
		return NormNegInf, nil
	case order == 0:
		return NormL0, nil
	case order > 0:
		return NormL(order), nil
	}
	return NormNone, fmt.Errorf("%w: unsupported norm order %v", ErrInvalidParameter, order)
}

// IsNone reports whether the norm disables normalization.
func (n Norm) IsNone() bool { return n.kind == normNone }

func (n Norm) String() string {
	switch n.kind {
	case normInf:
		return "inf"
	case normNegInf:
		return "-inf"
	case normL0:
		return "l0"
	case normLp:
		return fmt.Sprintf("l%g", n.p)
	}
	return "none"
}

// length measures a slice of magnitudes.
func (n Norm) length(mag []float64) float64 {
	switch n.kind {
	case normInf:
		m := 0.0
		for _, v := range mag {
			m = math.Max(m, v)
		}
		return m
	case normNegInf:
		m := math.Inf(1)
		for _, v := range mag {
			m = math.Min(m, v)
		}
		return m
	case normL0:
		count := 0.0
		for _, v := range mag {
			if v > 0 {
				count++
			}
		}
		return count
	case normLp:
		sum := 0.0
		for _, v := range mag {
			sum += math.Pow(v, n.p)
		}
		return math.Pow(sum, 1/n.p)
	}
	return 1
}

// fillValue is the constant whose uniform vector of size count has norm 1.
func (n Norm) fillValue(count int) float64 {
	if n.kind == normLp {
		return math.Pow(float64(count), -1/n.p)
	}
	return 1
}

// Fill is the policy for slices whose norm falls below the threshold.
type Fill int

const (
	// FillNone leaves small slices unscaled.
	FillNone Fill = iota
	// FillZero sets small slices to zero.
	FillZero
	// FillUniform replaces small slices with a uniform vector of unit norm.
	FillUniform
)

type normalizeOptions struct {
	threshold    float64
	hasThreshold bool
	fill         Fill
}

// NormalizeOption tunes Normalize.
type NormalizeOption func(*normalizeOptions)

// WithThreshold overrides the Tiny default below which a slice counts as
// having zero length. The value must be strictly positive.
func WithThreshold(threshold float64) NormalizeOption {
	return func(o *normalizeOptions) {
		o.threshold = threshold
		o.hasThreshold = true
	}
}

// WithFill selects the policy for slices below the threshold.
func WithFill(fill Fill) NormalizeOption {
	return func(o *normalizeOptions) {
		o.fill = fill
	}
}

func resolveOptions(norm Norm, opts []NormalizeOption) (normalizeOptions, error) {
	o := normalizeOptions{threshold: Tiny}
	for _, opt := range opts {
		opt(&o)
	}
	if o.hasThreshold && !(o.threshold > 0) {
		return o, fmt.Errorf("%w: got %v", ErrInvalidThreshold, o.threshold)
	}
	if norm.kind == normL0 && o.fill == FillUniform {
		return o, fmt.Errorf("%w: L0 norm with uniform fill", ErrUnsupportedCombination)
	}
	if norm.kind == normLp && !(norm.p > 0) {
		return o, fmt.Errorf("%w: Lp norm needs p > 0, got %v", ErrInvalidParameter, norm.p)
	}
	return o, nil
}

// scaleSlice returns the divisor for a slice and whether it must be
// overwritten with fillValue instead.
func scaleSlice(norm Norm, o normalizeOptions, mag []float64) (divisor float64, fill bool, fillValue float64) {
	length := norm.length(mag)
	if length >= o.threshold {
		return length, false, 0
	}
	switch o.fill {
	case FillZero:
		return 1, true, 0
	case FillUniform:
		return 1, true, norm.fillValue(len(mag))
	}
	return 1, false, 0
}

// NormalizeVector scales x so that its norm is 1.
func NormalizeVector(x []float64, norm Norm, opts ...NormalizeOption) ([]float64, error) {
	o, err := resolveOptions(norm, opts)
	if err != nil {
		return nil, err
	}
	if err := CheckFinite(x); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	copy(out, x)
	if norm.IsNone() {
		return out, nil
	}

	mag := make([]float64, len(x))
	for i, v := range x {
		mag[i] = math.Abs(v)
	}
	div, fill, value := scaleSlice(norm, o, mag)
	for i := range out {
		if fill {
			out[i] = value
		} else {
			out[i] /= div
		}
	}
	return out, nil
}

// NormalizeComplexVector scales x by the norm of its magnitudes.
func NormalizeComplexVector(x []complex128, norm Norm, opts ...NormalizeOption) ([]complex128, error) {
	o, err := resolveOptions(norm, opts)
	if err != nil {
		return nil, err
	}
	out := make([]complex128, len(x))
	copy(out, x)
	mag := make([]float64, len(x))
	for i, v := range x {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return nil, fmt.Errorf("%w: complex vector", ErrNotFinite)
		}
		mag[i] = cmplx.Abs(v)
	}
	if norm.IsNone() {
		return out, nil
	}

	div, fill, value := scaleSlice(norm, o, mag)
	for i := range out {
		if fill {
			out[i] = complex(value, 0)
		} else {
			out[i] /= complex(div, 0)
		}
	}
	return out, nil
}

// Normalize scales each column (axis 0) or each row (axis 1) of m to unit
// norm and returns a new matrix.
func Normalize(m *mat.Dense, norm Norm, axis int, opts ...NormalizeOption) (*mat.Dense, error) {
	if axis != 0 && axis != 1 {
		return nil, fmt.Errorf("%w: axis must be 0 or 1, got %d", ErrInvalidParameter, axis)
	}
	o, err := resolveOptions(norm, opts)
	if err != nil {
		return nil, err
	}
	if !DenseAllFinite(m) {
		return nil, fmt.Errorf("%w: matrix", ErrNotFinite)
	}

	out := mat.DenseCopyOf(m)
	if norm.IsNone() {
		return out, nil
	}

	rows, cols := out.Dims()
	slices, size := cols, rows
	if axis == 1 {
		slices, size = rows, cols
	}
	mag := make([]float64, size)
	for s := range slices {
		for k := range size {
			mag[k] = math.Abs(at(out, axis, s, k))
		}
		div, fill, value := scaleSlice(norm, o, mag)
		for k := range size {
			v := value
			if !fill {
				v = at(out, axis, s, k) / div
			}
			set(out, axis, s, k, v)
		}
	}
	return out, nil
}

func at(m *mat.Dense, axis, slice, k int) float64 {
	if axis == 0 {
		return m.At(k, slice)
	}
	return m.At(slice, k)
}

func set(m *mat.Dense, axis, slice, k int, v float64) {
	if axis == 0 {
		m.Set(k, slice, v)
		return
	}
	m.Set(slice, k, v)
}
