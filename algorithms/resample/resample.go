// Package resample converts signals between sample rates.
package resample

import (
	"fmt"
	"math"

	resampler "github.com/tphakala/go-audio-resampler"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// Quality selects the anti-aliasing kernel.
type Quality int

const (
	// QualityFast uses a short filter with a wider transition band.
	QualityFast Quality = iota
	// QualityBest uses a long filter with a narrow transition band.
	QualityBest
)

func (q Quality) String() string {
	if q == QualityFast {
		return "fast"
	}
	return "best"
}

// ParseQuality maps "fast" / "best" (also kaiser_fast / kaiser_best) to a
// Quality.
func ParseQuality(name string) (Quality, error) {
	switch name {
	case "fast", "kaiser_fast":
		return QualityFast, nil
	case "best", "kaiser_best", "":
		return QualityBest, nil
	}
	return QualityBest, fmt.Errorf("%w: unknown resample quality %q", common.ErrInvalidParameter, name)
}

// Pass-band edges, as a fraction of the output Nyquist frequency, of the
// two kernels.
const (
	BandwidthFast = 0.85
	BandwidthBest = 0.9475937167399596
)

// Bandwidth returns the pass-band edge of the kernel.
func (q Quality) Bandwidth() float64 {
	if q == QualityFast {
		return BandwidthFast
	}
	return BandwidthBest
}

// Resampler converts y from srIn to srOut. The output has exactly
// ceil(len(y) * srOut / srIn) samples. With scale set the result is divided
// by sqrt(srOut/srIn) so that total energy is preserved.
type Resampler interface {
	Resample(y []float64, srIn, srOut float64, quality Quality, scale bool) ([]float64, error)
}

// Polyphase is the band-limited resampler backed by go-audio-resampler.
type Polyphase struct {
	logger logging.Logger
}

// NewPolyphase creates a new resampler.
func NewPolyphase() *Polyphase {
	return &Polyphase{logger: logging.Component("resample")}
}

// Resample implements Resampler.
func (p *Polyphase) Resample(y []float64, srIn, srOut float64, quality Quality, scale bool) ([]float64, error) {
	if !(srIn > 0) || !(srOut > 0) {
		return nil, fmt.Errorf("%w: sample rates must be positive, got %v -> %v",
			common.ErrInvalidParameter, srIn, srOut)
	}
	if err := common.CheckFinite(y); err != nil {
		return nil, err
	}

	ratio := srOut / srIn
	size := OutputLength(len(y), srIn, srOut)
	if srIn == srOut {
		return common.FixLength(y, size), nil
	}
	if len(y) == 0 {
		return []float64{}, nil
	}

	var (
		out []float64
		err error
	)
	switch quality {
	case QualityFast:
		out, err = resampler.ResampleMono(y, srIn, srOut, resampler.QualityLow)
	default:
		out, err = resampler.ResampleMono(y, srIn, srOut, resampler.QualityHigh)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resample %v Hz -> %v Hz: %w", srIn, srOut, err)
	}

	out = common.FixLength(out, size)
	if scale {
		gain := 1 / math.Sqrt(ratio)
		for i := range out {
			out[i] *= gain
		}
	}

	p.logger.Debug("resampled signal", logging.Fields{
		"sr_in":   srIn,
		"sr_out":  srOut,
		"quality": quality.String(),
		"samples": len(out),
	})
	return out, nil
}

// OutputLength is the number of samples produced for n input samples.
func OutputLength(n int, srIn, srOut float64) int {
	return int(math.Ceil(float64(n) * srOut / srIn))
}
