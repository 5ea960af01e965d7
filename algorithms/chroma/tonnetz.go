package chroma

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// Tonnetz projects chroma onto the six-dimensional tonal centroid space of
// Harte et al.:
//
//	rows 0-1: circle of fifths (radius 1)
//	rows 2-3: circle of minor thirds (radius 1)
//	rows 4-5: circle of major thirds (radius 0.5)
//
// Each frame is L1-normalized before projection, so a frame is a weighted
// average of the pitch-class positions.
func Tonnetz(chroma *mat.Dense) (*mat.Dense, error) {
	nChroma, _ := chroma.Dims()
	if nChroma < 1 {
		return nil, fmt.Errorf("%w: empty chromagram", common.ErrInvalidInput)
	}

	phi := tonnetzBasis(nChroma)
	norm, err := common.Normalize(chroma, common.NormL1, 0)
	if err != nil {
		return nil, err
	}

	var out mat.Dense
	out.Mul(phi, norm)
	return &out, nil
}

// tonnetzBasis returns the 6 x nChroma matrix of pitch-class coordinates.
// Even rows are the sine components.
func tonnetzBasis(nChroma int) *mat.Dense {
	scale := [6]float64{7.0 / 6, 7.0 / 6, 3.0 / 2, 3.0 / 2, 2.0 / 3, 2.0 / 3}
	radius := [6]float64{1, 1, 1, 1, 0.5, 0.5}

	dims := common.Linspace(0, 12, nChroma, false)
	phi := mat.NewDense(6, nChroma, nil)
	for r := range 6 {
		for c, d := range dims {
			v := scale[r] * d
			if r%2 == 0 {
				v -= 0.5
			}
			phi.Set(r, c, radius[r]*math.Cos(math.Pi*v))
		}
	}
	return phi
}
