package common

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tiny is the smallest positive normal float64. It is the default
// threshold below which a norm or an accumulated window energy is treated
// as zero.
const Tiny = 0x1p-1022

// Eps is the float64 machine epsilon.
const Eps = 0x1p-52

// Ptr returns a pointer to v. Used for optional settings such as tuning.
func Ptr[T any](v T) *T {
	return &v
}

// AllFinite reports whether every value is neither NaN nor infinite.
func AllFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CheckFinite returns ErrNotFinite when data holds NaN or Inf.
func CheckFinite(data []float64) error {
	if !AllFinite(data) {
		return fmt.Errorf("%w: signal", ErrNotFinite)
	}
	return nil
}

// Median returns the median of data, averaging the two middle values for
// even lengths. An empty slice yields NaN.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2.0
	}
	return sorted[mid]
}

// Linspace returns n evenly spaced values starting at start. With endpoint
// the last value is stop, otherwise stop is excluded.
func Linspace(start, stop float64, n int, endpoint bool) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	div := float64(n)
	if endpoint {
		div = float64(n - 1)
	}
	step := (stop - start) / div
	for i := range out {
		out[i] = start + float64(i)*step
	}
	if endpoint {
		out[n-1] = stop
	}
	return out
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}

// NumTwoFactors counts how many times n can be halved exactly.
func NumTwoFactors(n int) int {
	if n <= 0 {
		return 0
	}
	count := 0
	for n%2 == 0 {
		count++
		n /= 2
	}
	return count
}

// PositiveMod is the remainder with the sign of the divisor.
func PositiveMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// ReflectIndex maps an out-of-range index onto [0, n) by mirroring about
// the end samples without repeating them (d c b | a b c d | c b a).
func ReflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// SymmetricIndex maps an out-of-range index onto [0, n) by mirroring with
// the edge sample repeated (c b a | a b c | c b a).
func SymmetricIndex(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// FixLength truncates or zero-pads data to exactly size samples.
func FixLength(data []float64, size int) []float64 {
	out := make([]float64, size)
	copy(out, data)
	return out
}

// Roll shifts data circularly by shift positions (positive moves right).
func Roll(data []float64, shift int) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	shift %= n
	if shift < 0 {
		shift += n
	}
	for i, v := range data {
		out[(i+shift)%n] = v
	}
	return out
}

// RollRows shifts the rows of m circularly (positive moves down).
func RollRows(m *mat.Dense, shift int) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	if r == 0 {
		return out
	}
	shift %= r
	if shift < 0 {
		shift += r
	}
	for i := range r {
		out.SetRow((i+shift)%r, m.RawRowView(i))
	}
	return out
}

// RollCols shifts the columns of m circularly (positive moves right).
func RollCols(m *mat.Dense, shift int) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	if c == 0 {
		return out
	}
	shift %= c
	if shift < 0 {
		shift += c
	}
	for i := range r {
		src := m.RawRowView(i)
		dst := out.RawRowView(i)
		for j, v := range src {
			dst[(j+shift)%c] = v
		}
	}
	return out
}

// Argmax returns the index of the first maximum, or -1 for empty input.
func Argmax(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	return floats.MaxIdx(data)
}

// DenseAllFinite reports whether every element of m is finite.
func DenseAllFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := range r {
		for j := range c {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// ConvolveSame convolves x with kernel and keeps the centered part with
// the length of x.
func ConvolveSame(x, kernel []float64) []float64 {
	n, k := len(x), len(kernel)
	out := make([]float64, n)
	if n == 0 || k == 0 {
		return out
	}
	start := (k - 1) / 2
	for i := range n {
		full := i + start
		sum := 0.0
		for j := range k {
			xi := full - j
			if xi >= 0 && xi < n {
				sum += x[xi] * kernel[j]
			}
		}
		out[i] = sum
	}
	return out
}
