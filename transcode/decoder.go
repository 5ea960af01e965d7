// Package transcode loads audio files into floating-point sample buffers
// ready for analysis.
package transcode

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/resample"
	"github.com/RyanBlaney/sonido-spectra/logging"
)

// wavFormatPCM is the WAVE format tag for integer PCM.
const wavFormatPCM = 1

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64       `json:"-"` // interleaved when Channels > 1
	SampleRate int             `json:"sample_rate"`
	Channels   int             `json:"channels"`
	Duration   time.Duration   `json:"duration"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   *StreamMetadata `json:"metadata,omitempty"`
}

// Frames returns the number of samples per channel.
func (a *AudioData) Frames() int {
	if a.Channels < 1 {
		return 0
	}
	return len(a.PCM) / a.Channels
}

// StreamMetadata describes the source the audio was decoded from.
type StreamMetadata struct {
	Path       string            `json:"path,omitempty"`
	Format     string            `json:"format"`
	BitDepth   int               `json:"bit_depth,omitempty"`
	SampleRate int               `json:"sample_rate,omitempty"`
	Channels   int               `json:"channels,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate"` // 0 keeps the native rate
	Mono             bool          `json:"mono" yaml:"mono"`
	Offset           time.Duration `json:"offset" yaml:"offset"`
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration"` // 0 reads to the end
	ResampleQuality  string        `json:"resample_quality" yaml:"resample_quality"`
}

// DefaultDecoderConfig returns mono audio at 22050 Hz.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 22050,
		Mono:             true,
		ResampleQuality:  "best",
	}
}

// Decoder reads WAV audio into AudioData, applying the configured slice,
// downmix and sample-rate conversion.
type Decoder struct {
	config    *DecoderConfig
	resampler resample.Resampler
	logger    logging.Logger
}

// NewDecoder creates a new audio decoder. A nil config selects
// DefaultDecoderConfig and a nil resampler the polyphase one.
func NewDecoder(config *DecoderConfig, r resample.Resampler) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	if r == nil {
		r = resample.NewPolyphase()
	}
	return &Decoder{
		config:    config,
		resampler: r,
		logger:    logging.Component("audio_decoder"),
	}
}

// WithLogger replaces the decoder's logger.
func (d *Decoder) WithLogger(logger logging.Logger) *Decoder {
	d.logger = logger
	return d
}

// Config returns the decoder configuration.
func (d *Decoder) Config() DecoderConfig {
	return *d.config
}

// DecodeFile decodes an audio file and returns PCM data
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})
	logger.Debug("Starting audio file decode")

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	data, err := d.Decode(ctx, f)
	if err != nil {
		logger.Error(err, "Failed to decode audio file")
		return nil, err
	}
	data.Metadata.Path = filename
	data.Metadata.Format = strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return data, nil
}

// Decode reads a WAV stream.
func (d *Decoder) Decode(ctx context.Context, r io.ReadSeeker) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV stream", common.ErrInvalidInput)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: unsupported WAV format tag %d", common.ErrInvalidInput, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return nil, fmt.Errorf("%w: WAV header carries no usable format", common.ErrInvalidInput)
	}

	meta := &StreamMetadata{
		Format:     "wav",
		BitDepth:   int(dec.BitDepth),
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Timestamp:  time.Now(),
	}
	d.logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": meta.SampleRate,
		"input_channels":    meta.Channels,
		"input_bit_depth":   meta.BitDepth,
		"input_frames":      len(buf.Data) / meta.Channels,
	})

	channels := meta.Channels
	sr := meta.SampleRate
	pcm := sliceFrames(BufToFloat(buf), channels, sr, d.config.Offset, d.config.MaxDuration)

	if d.config.Mono && channels > 1 {
		pcm = ToMono(pcm, channels)
		channels = 1
	}

	if target := d.config.TargetSampleRate; target > 0 && target != sr {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pcm, err = d.resampleChannels(pcm, channels, sr, target); err != nil {
			return nil, err
		}
		sr = target
	}

	data := &AudioData{
		PCM:        pcm,
		SampleRate: sr,
		Channels:   channels,
		Timestamp:  time.Now(),
		Metadata:   meta,
	}
	data.Duration = time.Duration(data.Frames()) * time.Second / time.Duration(sr)

	d.logger.Debug("Audio decode completed", logging.Fields{
		"sample_rate": sr,
		"channels":    channels,
		"samples":     len(pcm),
		"duration":    data.Duration.Seconds(),
	})
	return data, nil
}

func (d *Decoder) resampleChannels(pcm []float64, channels, srIn, srOut int) ([]float64, error) {
	quality, err := resample.ParseQuality(d.config.ResampleQuality)
	if err != nil {
		return nil, err
	}
	if channels == 1 {
		out, err := d.resampler.Resample(pcm, float64(srIn), float64(srOut), quality, false)
		if err != nil {
			return nil, fmt.Errorf("resample %d -> %d Hz: %w", srIn, srOut, err)
		}
		return out, nil
	}

	planes := Deinterleave(pcm, channels)
	for c, plane := range planes {
		out, err := d.resampler.Resample(plane, float64(srIn), float64(srOut), quality, false)
		if err != nil {
			return nil, fmt.Errorf("resample channel %d %d -> %d Hz: %w", c, srIn, srOut, err)
		}
		planes[c] = out
	}
	return Interleave(planes), nil
}

// BufToFloat converts integer PCM to floating point in [-1, 1) by dividing
// by 2^(bitDepth-1).
func BufToFloat(buf *audio.IntBuffer) []float64 {
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = 16
	}
	scale := 1 / float64(int64(1)<<(depth-1))
	out := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float64(v) * scale
	}
	return out
}

// ToMono averages interleaved channels.
func ToMono(pcm []float64, channels int) []float64 {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / channels
	out := make([]float64, frames)
	for i := range out {
		sum := 0.0
		for c := range channels {
			sum += pcm[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// Deinterleave splits interleaved samples into one slice per channel.
func Deinterleave(pcm []float64, channels int) [][]float64 {
	frames := len(pcm) / channels
	planes := make([][]float64, channels)
	for c := range planes {
		planes[c] = make([]float64, frames)
		for i := range frames {
			planes[c][i] = pcm[i*channels+c]
		}
	}
	return planes
}

// Interleave merges per-channel slices, truncating to the shortest.
func Interleave(planes [][]float64) []float64 {
	if len(planes) == 0 {
		return nil
	}
	frames := len(planes[0])
	for _, p := range planes[1:] {
		frames = min(frames, len(p))
	}
	out := make([]float64, frames*len(planes))
	for i := range frames {
		for c, p := range planes {
			out[i*len(planes)+c] = p[i]
		}
	}
	return out
}

// ValidAudio reports whether y can be analyzed: it must hold at least one
// sample and every sample must be finite.
func ValidAudio(y []float64) error {
	if len(y) == 0 {
		return fmt.Errorf("%w: audio buffer is empty", common.ErrInvalidInput)
	}
	return common.CheckFinite(y)
}

// sliceFrames keeps the frames between offset and offset+duration.
func sliceFrames(pcm []float64, channels, sampleRate int, offset, duration time.Duration) []float64 {
	frames := len(pcm) / channels
	start := min(int(math.Round(offset.Seconds()*float64(sampleRate))), frames)
	start = max(start, 0)
	end := frames
	if duration > 0 {
		end = min(start+int(math.Round(duration.Seconds()*float64(sampleRate))), frames)
	}
	return pcm[start*channels : end*channels]
}
