package windowing

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// shape builds the symmetric window of length n (n >= 2).
type shape func(n int) []float64

// fromGonum wraps a gonum in-place window transform.
func fromGonum(transform func([]float64) []float64) shape {
	return func(n int) []float64 {
		seq := make([]float64, n)
		for i := range seq {
			seq[i] = 1
		}
		return transform(seq)
	}
}

var shapes = map[string]shape{
	"hann":           fromGonum(window.Hann),
	"hamming":        fromGonum(window.Hamming),
	"blackman":       fromGonum(window.Blackman),
	"blackmanharris": fromGonum(window.BlackmanHarris),
	"nuttall":        fromGonum(window.Nuttall),
	"flattop":        fromGonum(window.FlatTop),
	"barthann":       fromGonum(window.BartlettHann),
	"bartlett":       fromGonum(window.Triangular),
	"boxcar":         fromGonum(window.Rectangular),
	"triang":         triang,
	"cosine":         cosine,
	"parzen":         parzen,
	"bohman":         bohman,
	"tukey":          tukey(0.5),
}

var aliases = map[string]string{
	"hanning":     "hann",
	"han":         "hann",
	"ham":         "hamming",
	"hamm":        "hamming",
	"black":       "blackman",
	"blk":         "blackman",
	"blackharr":   "blackmanharris",
	"bkh":         "blackmanharris",
	"nut":         "nuttall",
	"nutl":        "nuttall",
	"flat":        "flattop",
	"flt":         "flattop",
	"brthan":      "barthann",
	"bth":         "barthann",
	"bart":        "bartlett",
	"brt":         "bartlett",
	"box":         "boxcar",
	"ones":        "boxcar",
	"rect":        "boxcar",
	"rectangular": "boxcar",
	"triangle":    "triang",
	"tri":         "triang",
	"halfcosine":  "cosine",
	"parz":        "parzen",
	"par":         "parzen",
	"bman":        "bohman",
	"bmn":         "bohman",
	"tuk":         "tukey",
}

// parameterized maps families that take a shape parameter to a builder.
var parameterized = map[string]func(param float64) shape{
	"kaiser":   kaiser,
	"gaussian": gaussian,
	"tukey":    tukey,
}

// canonicalName resolves aliases; unknown names are returned lower-cased.
func canonicalName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

func lookupShape(name string) (shape, bool) {
	s, ok := shapes[canonicalName(name)]
	return s, ok
}

// tukey delegates to gonum's tapered cosine window.
func tukey(alpha float64) shape {
	return fromGonum(window.Tukey{Alpha: alpha}.Transform)
}

func gaussian(std float64) shape {
	return func(n int) []float64 {
		w := make([]float64, n)
		center := float64(n-1) / 2
		for i := range w {
			d := (float64(i) - center) / std
			w[i] = math.Exp(-0.5 * d * d)
		}
		return w
	}
}

func kaiser(beta float64) shape {
	return func(n int) []float64 {
		w := make([]float64, n)
		i0Beta := besselI0(beta)
		for i := range w {
			arg := 2.0*float64(i)/float64(n-1) - 1.0
			w[i] = besselI0(beta*math.Sqrt(math.Max(0, 1-arg*arg))) / i0Beta
		}
		return w
	}
}

// besselI0 computes the zero-order modified Bessel function of the first
// kind by its power series.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	for i := 1; i < 500; i++ {
		half := x / (2.0 * float64(i))
		term *= half * half
		sum += term
		if term < 1e-16*sum {
			break
		}
	}
	return sum
}

func triang(n int) []float64 {
	w := make([]float64, n)
	half := (n + 1) / 2
	for k := 1; k <= half; k++ {
		var v float64
		if n%2 == 0 {
			v = (2*float64(k) - 1) / float64(n)
		} else {
			v = 2 * float64(k) / float64(n+1)
		}
		w[k-1] = v
		w[n-k] = v
	}
	return w
}

func cosine(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = math.Sin(math.Pi / float64(n) * (float64(i) + 0.5))
	}
	return w
}

func parzen(n int) []float64 {
	w := make([]float64, n)
	half := float64(n) / 2
	quarter := float64(n-1) / 4
	for i := range w {
		x := math.Abs(float64(i) - float64(n-1)/2)
		r := x / half
		if x <= quarter {
			w[i] = 1 - 6*r*r + 6*r*r*r
		} else {
			w[i] = 2 * math.Pow(1-r, 3)
		}
	}
	return w
}

func bohman(n int) []float64 {
	w := make([]float64, n)
	for i := 1; i < n-1; i++ {
		fac := math.Abs(-1 + 2*float64(i)/float64(n-1))
		w[i] = (1-fac)*math.Cos(math.Pi*fac) + math.Sin(math.Pi*fac)/math.Pi
	}
	return w
}
