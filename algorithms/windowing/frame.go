package windowing

import (
	"fmt"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// Frames is a read-only view of a signal as overlapping frames. Frame j
// starts at sample j*hop; nothing is copied.
type Frames struct {
	signal []float64
	length int
	hop    int
	count  int
}

// Frame slices signal into frames of frameLength samples every hopLength
// samples. Trailing samples that do not fill a frame are dropped.
func Frame(signal []float64, frameLength, hopLength int) (*Frames, error) {
	if hopLength < 1 {
		return nil, fmt.Errorf("%w: hop length must be >= 1, got %d", common.ErrInvalidInput, hopLength)
	}
	if frameLength < 1 {
		return nil, fmt.Errorf("%w: frame length must be >= 1, got %d", common.ErrInvalidInput, frameLength)
	}
	if len(signal) < frameLength {
		return nil, fmt.Errorf("%w: signal length %d is shorter than frame length %d",
			common.ErrInvalidInput, len(signal), frameLength)
	}
	if err := common.CheckFinite(signal); err != nil {
		return nil, err
	}

	return &Frames{
		signal: signal,
		length: frameLength,
		hop:    hopLength,
		count:  1 + (len(signal)-frameLength)/hopLength,
	}, nil
}

// Dims returns (frame length, number of frames).
func (f *Frames) Dims() (int, int) { return f.length, f.count }

// Count is the number of frames.
func (f *Frames) Count() int { return f.count }

// At returns sample i of frame j.
func (f *Frames) At(i, j int) float64 {
	if i < 0 || i >= f.length || j < 0 || j >= f.count {
		panic(fmt.Sprintf("windowing: frame index (%d, %d) out of range", i, j))
	}
	return f.signal[j*f.hop+i]
}

// Column returns frame j as a subslice of the underlying signal. Callers
// must not modify it.
func (f *Frames) Column(j int) []float64 {
	if j < 0 || j >= f.count {
		panic(fmt.Sprintf("windowing: frame %d out of range", j))
	}
	start := j * f.hop
	return f.signal[start : start+f.length : start+f.length]
}
