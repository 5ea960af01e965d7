package chroma

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/tonal"
)

// CQToChroma returns the nChroma x nInput matrix that merges constant-Q
// bins into pitch classes. Each pitch class collects bpo/nChroma adjacent
// bins centered on it, repeated in every octave. With baseC the first row
// is C, otherwise A. A non-nil window is convolved along the input bins.
func CQToChroma(nInput, binsPerOctave, nChroma int, fmin float64, window []float64, baseC bool) (*mat.Dense, error) {
	switch {
	case nInput < 1:
		return nil, fmt.Errorf("%w: n_input must be positive, got %d", common.ErrInvalidParameter, nInput)
	case nChroma < 1 || binsPerOctave < 1:
		return nil, fmt.Errorf("%w: bins_per_octave %d and n_chroma %d must be positive",
			common.ErrInvalidParameter, binsPerOctave, nChroma)
	case binsPerOctave%nChroma != 0:
		return nil, fmt.Errorf("%w: %d input bins per octave cannot merge into %d chroma bins",
			common.ErrIncompatibleBinCount, binsPerOctave, nChroma)
	case !(fmin > 0):
		return nil, fmt.Errorf("%w: fmin must be positive, got %v", common.ErrInvalidParameter, fmin)
	}

	merge := binsPerOctave / nChroma
	shift := merge / 2

	midi0 := common.PositiveMod(tonal.HzToMidi(fmin), 12)
	roll := midi0
	if !baseC {
		roll = midi0 - 9
	}
	rowShift := int(math.RoundToEven(roll * float64(nChroma) / 12))

	out := mat.NewDense(nChroma, nInput, nil)
	for j := range nInput {
		// Column j takes the pitch class of bin (j + shift) within its octave.
		class := ((j + shift) % binsPerOctave) / merge
		row := ((class+rowShift)%nChroma + nChroma) % nChroma
		out.Set(row, j, 1)
	}

	if window == nil {
		return out, nil
	}
	for i := range nChroma {
		out.SetRow(i, common.ConvolveSame(out.RawRowView(i), window))
	}
	return out, nil
}
