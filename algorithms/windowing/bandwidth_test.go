package windowing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandwidthFormula(t *testing.T) {
	assert.InDelta(t, 1.0, Bandwidth([]float64{1, 1, 1, 1}), 1e-12)
	// periodic Hann: n * (3n/8) / (n/2)^2 = 1.5
	w, err := Get(Hann, 1024, true)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, Bandwidth(w), 1e-9)
}

func TestBandwidthCacheSeededTable(t *testing.T) {
	cache := NewBandwidthCache()

	bw, err := cache.Bandwidth(Named("hanning"))
	require.NoError(t, err)
	assert.Equal(t, 1.50018310546875, bw)

	bw, err = cache.Bandwidth(Named("bkh"))
	require.NoError(t, err)
	assert.Equal(t, 2.0045975283585014, bw)
}

func TestBandwidthCacheMemoizesComputed(t *testing.T) {
	cache := NewBandwidthCache()
	spec := Parameterized{Name: "kaiser", Param: 5}

	first, err := cache.Bandwidth(spec)
	require.NoError(t, err)
	assert.Greater(t, first, 1.0)

	cache.mu.RLock()
	_, cached := cache.values[bandwidthKey{"kaiser:5", DefaultProbeLength}]
	cache.mu.RUnlock()
	assert.True(t, cached)

	second, err := cache.Bandwidth(KaiserBeta(5))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBandwidthVectorAndNilCache(t *testing.T) {
	var cache *BandwidthCache
	bw, err := cache.Bandwidth(Vector{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, bw, 1e-12)

	bw, err = cache.Bandwidth(Named("boxcar"))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, bw, 1e-12)
}

func TestBandwidthNilCacheMatchesSeededTable(t *testing.T) {
	var empty *BandwidthCache
	seeded := NewBandwidthCache()

	for _, spec := range []Spec{Hann, Named("hamming"), Named("blackmanharris")} {
		fromNil, err := empty.Bandwidth(spec)
		require.NoError(t, err)
		fromSeed, err := seeded.Bandwidth(spec)
		require.NoError(t, err)
		assert.Equal(t, fromSeed, fromNil, "%s", spec)
	}

	bw, err := empty.Bandwidth(Hann)
	require.NoError(t, err)
	assert.Equal(t, 1.50018310546875, bw)

	// other probe lengths are measured
	bw, err = empty.BandwidthAt(Hann, 1024)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, bw, 1e-9)
}

func TestBandwidthCacheConcurrent(t *testing.T) {
	cache := NewBandwidthCache()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(beta float64) {
			defer wg.Done()
			_, err := cache.Bandwidth(KaiserBeta(beta))
			assert.NoError(t, err)
		}(float64(i % 4))
	}
	wg.Wait()
}
