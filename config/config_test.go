package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-spectra/algorithms/chroma"
	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/windowing"
)

func TestDefaultAnalysisConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultAnalysisConfig().Validate())
	require.NoError(t, PresetConfig("fast").Validate())
	require.NoError(t, PresetConfig("precise").Validate())
	assert.Equal(t, DefaultAnalysisConfig(), PresetConfig("unknown"))
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultAnalysisConfig()
	cfg.STFT.NFFT = 0
	cfg.CQT.Mode = "wavelet"
	cfg.HPSS.MarginHarmonic = 0.5
	cfg.Pitch.Threshold = 2
	cfg.Chroma.NChroma = 24

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidParameter)
	assert.ErrorIs(t, err, common.ErrInvalidMargin)
	assert.ErrorIs(t, err, common.ErrInvalidThreshold)
	assert.ErrorIs(t, err, common.ErrIncompatibleBinCount)
	assert.Contains(t, err.Error(), "stft.n_fft")
	assert.Contains(t, err.Error(), "cqt.mode")

	cfg = DefaultAnalysisConfig()
	cfg.CQT.Window = "triangle-ish"
	assert.ErrorIs(t, cfg.Validate(), common.ErrInvalidWindowSpec)
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
cqt:
  mode: hybrid
  n_bins: 72
chroma:
  source: cens
pitch:
  tuning: 0.25
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, CQTHybrid, cfg.CQT.Mode)
	assert.Equal(t, 72, cfg.CQT.NBins)
	assert.Equal(t, 12, cfg.CQT.BinsPerOctave)
	assert.Equal(t, ChromaCENS, cfg.Chroma.Source)
	require.NotNil(t, cfg.Pitch.Tuning)
	assert.Equal(t, 0.25, *cfg.Pitch.Tuning)
	assert.Equal(t, 2048, cfg.STFT.NFFT)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"stft": {"n_fft": 1024, "hop_length": 256}, "load": {"sample_rate": 16000}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.STFT.NFFT)
	assert.Equal(t, 256, cfg.STFT.HopLength)
	assert.Equal(t, 16000, cfg.Load.SampleRate)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stft: {n_fft: -4}"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, common.ErrInvalidParameter)

	require.NoError(t, os.WriteFile(path, []byte("stft: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnvFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SONIDO_CQT_MODE=Pseudo\nSONIDO_N_FFT=4096\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("SONIDO_CQT_MODE")
		os.Unsetenv("SONIDO_N_FFT")
	})
	// The process environment wins over the file.
	t.Setenv("SONIDO_N_FFT", "512")
	t.Setenv("SONIDO_TUNING", "-0.1")
	t.Setenv("SONIDO_CHROMA_SOURCE", "stft")

	cfg := DefaultAnalysisConfig()
	require.NoError(t, ApplyEnv(cfg, path))
	assert.Equal(t, CQTPseudo, cfg.CQT.Mode)
	assert.Equal(t, 512, cfg.STFT.NFFT)
	assert.Equal(t, ChromaSTFT, cfg.Chroma.Source)
	require.NotNil(t, cfg.Pitch.Tuning)
	assert.InDelta(t, -0.1, *cfg.Pitch.Tuning, 1e-12)
	require.NoError(t, cfg.Validate())

	t.Setenv("SONIDO_TUNING", "auto")
	require.NoError(t, ApplyEnv(cfg, path))
	assert.Nil(t, cfg.Pitch.Tuning)
}

func TestApplyEnvErrors(t *testing.T) {
	t.Setenv("SONIDO_HOP_LENGTH", "lots")
	cfg := DefaultAnalysisConfig()
	err := ApplyEnv(cfg, filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = ApplyEnv(cfg, writeEmptyEnv(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SONIDO_HOP_LENGTH")
	assert.Equal(t, 512, cfg.STFT.HopLength)
}

func writeEmptyEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.env")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func TestParseNorm(t *testing.T) {
	for text, want := range map[string]common.Norm{
		"":     common.NormNone,
		"none": common.NormNone,
		"inf":  common.NormInf,
		"-inf": common.NormNegInf,
		"L1":   common.NormL1,
		"l2":   common.NormL2,
		"2":    common.NormL2,
	} {
		got, err := ParseNorm(text)
		require.NoError(t, err, text)
		assert.Equal(t, want, got, text)
	}
	_, err := ParseNorm("manhattan")
	assert.ErrorIs(t, err, common.ErrInvalidParameter)
}

func TestParamsConversion(t *testing.T) {
	cfg := DefaultAnalysisConfig()
	cfg.Load.OffsetSeconds = 1.5
	cfg.Pitch.Tuning = common.Ptr(0.1)

	dec := cfg.DecoderParams()
	assert.Equal(t, 1500*time.Millisecond, dec.Offset)
	assert.Equal(t, time.Duration(0), dec.MaxDuration)
	assert.True(t, dec.Mono)

	stft, err := cfg.STFTParams()
	require.NoError(t, err)
	assert.Equal(t, windowing.Hann, stft.Window)

	c, err := cfg.CQTParams()
	require.NoError(t, err)
	assert.Equal(t, common.NormL1, c.Norm)
	assert.Equal(t, 0.1, *c.Tuning)

	cens, err := cfg.CENSParams()
	require.NoError(t, err)
	assert.Equal(t, common.NormL2, cens.Norm)
	assert.Equal(t, common.NormInf, cens.CQT.Norm)
	assert.Equal(t, chroma.CQTModeFull, cens.CQT.Mode)

	tuning := cfg.TuningParams()
	assert.Equal(t, 12, tuning.BinsPerOctave)
	assert.Equal(t, 150.0, tuning.Piptrack.FMin)
	assert.Equal(t, 31, cfg.HPSSParams().KernelHarmonic)
}
