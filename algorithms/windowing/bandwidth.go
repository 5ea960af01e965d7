package windowing

import (
	"fmt"
	"math"
	"sync"
)

// DefaultProbeLength is the window length used to measure bandwidth.
const DefaultProbeLength = 1000

// precomputedBandwidths holds the equivalent noise bandwidths of the named
// windows at DefaultProbeLength. hann keeps the reference value
// 1.50018310546875 used by constant-Q filter tables rather than the exact
// periodic 1.5. Every lookup, cached or not, reads this table first.
var precomputedBandwidths = map[string]float64{
	"bartlett":       1.3334961334912805,
	"barthann":       1.4560255965133932,
	"blackmanharris": 2.0045975283585014,
	"blackman":       1.7269681554262326,
	"bohman":         1.7859588613860062,
	"boxcar":         1.0,
	"cosine":         1.2337005350199792,
	"flattop":        2.7762255046484143,
	"hamming":        1.3629455320350348,
	"hann":           1.50018310546875,
	"nuttall":        1.9763500280946082,
	"parzen":         1.9174603174603191,
	"triang":         1.3331706523555851,
}

type bandwidthKey struct {
	name  string
	probe int
}

// BandwidthCache memoizes window bandwidths keyed by window identity and
// probe length. It is safe for concurrent use; a nil cache computes every
// request without memoizing.
type BandwidthCache struct {
	mu     sync.RWMutex
	values map[bandwidthKey]float64
}

// NewBandwidthCache returns a cache seeded with the precomputed table.
func NewBandwidthCache() *BandwidthCache {
	c := &BandwidthCache{values: make(map[bandwidthKey]float64, len(precomputedBandwidths))}
	for name, bw := range precomputedBandwidths {
		c.values[bandwidthKey{name, DefaultProbeLength}] = bw
	}
	return c
}

// Bandwidth returns the bandwidth of spec at DefaultProbeLength.
func (c *BandwidthCache) Bandwidth(spec Spec) (float64, error) {
	return c.BandwidthAt(spec, DefaultProbeLength)
}

// BandwidthAt returns the bandwidth of spec measured at probe samples.
// Vector specs are measured at their own length and never cached.
func (c *BandwidthCache) BandwidthAt(spec Spec, probe int) (float64, error) {
	if v, ok := spec.(Vector); ok {
		return Bandwidth(v), nil
	}

	key, cacheable := cacheKey(spec, probe)
	if bw, ok := precomputedBandwidths[key.name]; ok && cacheable && probe == DefaultProbeLength {
		return bw, nil
	}
	if cacheable && c != nil {
		c.mu.RLock()
		bw, ok := c.values[key]
		c.mu.RUnlock()
		if ok {
			return bw, nil
		}
	}

	coeffs, err := Get(spec, probe, true)
	if err != nil {
		return 0, fmt.Errorf("window bandwidth: %w", err)
	}
	bw := Bandwidth(coeffs)

	if cacheable && c != nil {
		c.mu.Lock()
		c.values[key] = bw
		c.mu.Unlock()
	}
	return bw, nil
}

func cacheKey(spec Spec, probe int) (bandwidthKey, bool) {
	switch s := spec.(type) {
	case Named:
		return bandwidthKey{canonicalName(string(s)), probe}, true
	case Parameterized:
		return bandwidthKey{Parameterized{Name: canonicalName(s.Name), Param: s.Param}.String(), probe}, true
	case KaiserBeta:
		return bandwidthKey{s.String(), probe}, true
	case Custom:
		if s.Name != "" {
			return bandwidthKey{"custom:" + s.Name, probe}, true
		}
	}
	return bandwidthKey{}, false
}

// Bandwidth is the equivalent noise bandwidth of w in FFT bins:
// n * sum(w^2) / (sum |w|)^2.
func Bandwidth(w []float64) float64 {
	var sum, sumSq float64
	for _, v := range w {
		sum += math.Abs(v)
		sumSq += v * v
	}
	if sum == 0 {
		return math.Inf(1)
	}
	return float64(len(w)) * sumSq / (sum * sum)
}
