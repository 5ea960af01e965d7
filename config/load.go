package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable ApplyEnv reads.
const EnvPrefix = "SONIDO_"

// Load reads a YAML or JSON file over the defaults and validates the
// result. Fields absent from the file keep their default values.
func Load(path string) (*AnalysisConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultAnalysisConfig()
	// JSON is a subset of YAML, so one decoder serves both.
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads the given .env files (".env" when none are named, skipped
// if missing) into the process environment and overlays the SONIDO_*
// variables onto cfg. Variables already set in the environment win over
// the files. Empty values are ignored.
func ApplyEnv(cfg *AnalysisConfig, files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}

	var errs []error
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	setString("LOG_LEVEL", &cfg.LogLevel)
	setInt("SAMPLE_RATE", &cfg.Load.SampleRate)
	setString("RESAMPLE_QUALITY", &cfg.Load.ResampleQuality)
	setInt("N_FFT", &cfg.STFT.NFFT)
	setInt("HOP_LENGTH", &cfg.STFT.HopLength)
	setInt("CQT_HOP_LENGTH", &cfg.CQT.HopLength)
	setInt("CQT_BINS", &cfg.CQT.NBins)
	setInt("BINS_PER_OCTAVE", &cfg.CQT.BinsPerOctave)
	setFloat("FMIN", &cfg.CQT.FMin)

	var mode, source string
	setString("CQT_MODE", &mode)
	if mode != "" {
		cfg.CQT.Mode = CQTMode(strings.ToLower(mode))
	}
	setString("CHROMA_SOURCE", &source)
	if source != "" {
		cfg.Chroma.Source = ChromaSource(strings.ToLower(source))
	}

	if v, ok := lookup("TUNING"); ok {
		if strings.EqualFold(v, "auto") {
			cfg.Pitch.Tuning = nil
		} else if f, err := strconv.ParseFloat(v, 64); err != nil {
			errs = append(errs, fmt.Errorf("%sTUNING: %w", EnvPrefix, err))
		} else {
			cfg.Pitch.Tuning = &f
		}
	}
	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
