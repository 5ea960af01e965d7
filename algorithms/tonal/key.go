package tonal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
)

// KeyProfile names a pair of major and minor pitch-class templates.
type KeyProfile string

const (
	// KeyProfileKrumhansl holds the probe-tone ratings of Krumhansl and
	// Kessler.
	KeyProfileKrumhansl KeyProfile = "krumhansl"
	// KeyProfileTemperley holds corpus-derived weights.
	KeyProfileTemperley KeyProfile = "temperley"
)

type keyTemplate struct {
	major, minor []float64
}

var keyTemplates = map[KeyProfile]keyTemplate{
	KeyProfileKrumhansl: {
		major: []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88},
		minor: []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17},
	},
	KeyProfileTemperley: {
		major: []float64{5.0, 2.0, 3.5, 2.0, 4.5, 4.0, 2.0, 4.5, 2.0, 3.5, 1.5, 4.0},
		minor: []float64{5.0, 2.0, 3.5, 4.5, 2.0, 4.0, 2.0, 4.5, 3.5, 2.0, 1.5, 4.0},
	},
}

// ParseKeyProfile validates a profile name; empty selects Krumhansl.
func ParseKeyProfile(name string) (KeyProfile, error) {
	if name == "" {
		return KeyProfileKrumhansl, nil
	}
	if _, ok := keyTemplates[KeyProfile(name)]; ok {
		return KeyProfile(name), nil
	}
	return KeyProfileKrumhansl, fmt.Errorf("%w: unknown key profile %q", common.ErrInvalidParameter, name)
}

// Key is a tonic and mode with the correlation that selected it.
type Key struct {
	Tonic       int     `json:"tonic"` // pitch class, 0 = C
	Mode        string  `json:"mode"`  // "major" or "minor"
	Correlation float64 `json:"correlation"`
}

// Name renders the key as "C major", "F# minor" and so on.
func (k Key) Name() string {
	return fmt.Sprintf("%s %s", noteNames[k.Tonic], k.Mode)
}

// EstimateKey averages a C-based 12-bin chromagram over time and returns
// the rotation of the major or minor template it correlates with best.
func EstimateKey(chroma *mat.Dense, profile KeyProfile) (Key, error) {
	tmpl, ok := keyTemplates[profile]
	if !ok {
		return Key{}, fmt.Errorf("%w: unknown key profile %q", common.ErrInvalidParameter, profile)
	}
	rows, cols := chroma.Dims()
	if rows != 12 {
		return Key{}, fmt.Errorf("%w: key estimation needs 12 pitch classes, got %d",
			common.ErrIncompatibleBinCount, rows)
	}
	if cols == 0 {
		return Key{}, fmt.Errorf("%w: empty chromagram", common.ErrInvalidInput)
	}

	mean := make([]float64, 12)
	for i := range 12 {
		mean[i] = stat.Mean(chroma.RawRowView(i), nil)
	}

	best := Key{Correlation: math.Inf(-1)}
	rotated := make([]float64, 12)
	for tonic := range 12 {
		for _, m := range []struct {
			mode     string
			template []float64
		}{{"major", tmpl.major}, {"minor", tmpl.minor}} {
			for i := range 12 {
				rotated[i] = m.template[(i-tonic+12)%12]
			}
			r := stat.Correlation(mean, rotated, nil)
			if r > best.Correlation {
				best = Key{Tonic: tonic, Mode: m.mode, Correlation: r}
			}
		}
	}
	if math.IsInf(best.Correlation, -1) {
		return Key{}, fmt.Errorf("%w: flat chroma profile has no key", common.ErrInvalidInput)
	}
	return best, nil
}
