package windowing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// Spec describes how to build a window. It is one of Named, Parameterized,
// KaiserBeta, Custom or Vector.
type Spec interface {
	isSpec()
	String() string
}

// Named is a window identified by name, e.g. "hann" or "blackmanharris".
type Named string

// Parameterized is a window family that needs one shape parameter:
// kaiser (beta), gaussian (standard deviation in samples) or tukey (alpha).
type Parameterized struct {
	Name  string
	Param float64
}

// KaiserBeta is shorthand for a Kaiser window with the given beta.
type KaiserBeta float64

// Custom builds a window from a function of the window length. Name keys
// the bandwidth cache; leave it empty to skip caching.
type Custom struct {
	Name string
	Fn   func(n int) []float64
}

// Vector is a precomputed window. Its length must match the requested one.
type Vector []float64

func (Named) isSpec()         {}
func (Parameterized) isSpec() {}
func (KaiserBeta) isSpec()    {}
func (Custom) isSpec()        {}
func (Vector) isSpec()        {}

func (n Named) String() string { return string(n) }

func (p Parameterized) String() string {
	return fmt.Sprintf("%s:%g", strings.ToLower(p.Name), p.Param)
}

func (k KaiserBeta) String() string { return fmt.Sprintf("kaiser:%g", float64(k)) }

func (c Custom) String() string {
	if c.Name == "" {
		return "custom"
	}
	return c.Name
}

func (v Vector) String() string { return fmt.Sprintf("vector[%d]", len(v)) }

// Hann is the default analysis window.
var Hann Spec = Named("hann")

// Ones is the rectangular window.
var Ones Spec = Named("boxcar")

// ParseSpec reads a window from configuration text: "hann", "kaiser:14",
// "tukey:0.25", or a bare number for a Kaiser beta.
func ParseSpec(text string) (Spec, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty window name", common.ErrInvalidWindowSpec)
	}
	if beta, err := strconv.ParseFloat(text, 64); err == nil {
		return KaiserBeta(beta), nil
	}

	name, param, hasParam := strings.Cut(text, ":")
	name = strings.ToLower(strings.TrimSpace(name))
	if !hasParam {
		if _, ok := lookupShape(name); !ok {
			return nil, fmt.Errorf("%w: unknown window %q", common.ErrInvalidWindowSpec, name)
		}
		return Named(name), nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(param), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad parameter in %q", common.ErrInvalidWindowSpec, text)
	}
	if _, ok := parameterized[name]; !ok {
		return nil, fmt.Errorf("%w: window %q takes no parameter", common.ErrInvalidWindowSpec, name)
	}
	return Parameterized{Name: name, Param: value}, nil
}
