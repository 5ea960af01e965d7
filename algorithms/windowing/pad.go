package windowing

import (
	"fmt"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// PadCenter zero-pads data on both sides to size, with any odd sample of
// padding going to the right.
func PadCenter[T float64 | complex128](data []T, size int) ([]T, error) {
	n := len(data)
	if size < n {
		return nil, fmt.Errorf("%w: target size (%d) must be at least input size (%d)", common.ErrSize, size, n)
	}
	out := make([]T, size)
	copy(out[(size-n)/2:], data)
	return out, nil
}
