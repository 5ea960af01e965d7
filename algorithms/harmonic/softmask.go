package harmonic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// Softmask returns the Wiener-style mask X^p / (X^p + Xref^p), computed on
// values scaled by max(X, Xref) so that large inputs do not overflow.
// Cells where both inputs are below Tiny get 0.5 with splitZeros, else 0.
// An infinite power yields the hard mask X > Xref.
func Softmask(X, Xref *mat.Dense, power float64, splitZeros bool) (*mat.Dense, error) {
	r, c := X.Dims()
	if rr, rc := Xref.Dims(); rr != r || rc != c {
		return nil, fmt.Errorf("%w: %dx%d != %dx%d", common.ErrShapeMismatch, r, c, rr, rc)
	}
	if !(power > 0) {
		return nil, fmt.Errorf("%w: power must be strictly positive, got %v", common.ErrInvalidParameter, power)
	}
	if min(mat.Min(X), mat.Min(Xref)) < 0 {
		return nil, fmt.Errorf("%w: mask inputs must be non-negative", common.ErrNegativeInput)
	}

	mask := mat.NewDense(r, c, nil)
	if math.IsInf(power, 1) {
		mask.Apply(func(i, j int, _ float64) float64 {
			if X.At(i, j) > Xref.At(i, j) {
				return 1
			}
			return 0
		}, mask)
		return mask, nil
	}

	zero := 0.0
	if splitZeros {
		zero = 0.5
	}
	for i := range r {
		x, ref, out := X.RawRowView(i), Xref.RawRowView(i), mask.RawRowView(i)
		for j := range out {
			z := math.Max(x[j], ref[j])
			if z < common.Tiny {
				out[j] = zero
				continue
			}
			m := math.Pow(x[j]/z, power)
			mr := math.Pow(ref[j]/z, power)
			out[j] = m / (m + mr)
		}
	}
	return mask, nil
}
