package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-audio/wav"
	"github.com/voxlate/voxlate/internal/config"
)

// ErrUnsupportedAudio marks input that is not a decodable WAV container.
var ErrUnsupportedAudio = errors.New("unsupported audio format")

// Normalizer decodes input audio into mono float32 PCM at the pipeline
// sample rate and applies peak normalization. An all-silent input yields an
// empty sample slice, the pipeline's "no usable signal" state.
type Normalizer struct {
	cfg config.MediaConfig
	log *slog.Logger
}

func NewNormalizer(cfg config.MediaConfig, log *slog.Logger) *Normalizer {
	return &Normalizer{cfg: cfg, log: log.With(slog.String("component", "normalizer"))}
}

// SampleRate reports the fixed rate normalized audio is produced at.
func (n *Normalizer) SampleRate() int {
	return n.cfg.SampleRate
}

// Normalize decodes, downmixes, resamples and peak-normalizes the input.
func (n *Normalizer) Normalize(r io.ReadSeeker) ([]float32, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrUnsupportedAudio
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, ErrUnsupportedAudio
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / scale
		}
		samples[i] = sum / float32(channels)
	}

	if buf.Format.SampleRate != n.cfg.SampleRate {
		samples = resample(samples, buf.Format.SampleRate, n.cfg.SampleRate)
	}

	peak := peakAmplitude(samples)
	if peak == 0 {
		n.log.Debug("input audio contains no signal")
		return nil, nil
	}
	for i := range samples {
		samples[i] /= peak
	}

	if n.cfg.TrimSilence {
		trimmed, err := trimSilence(samples, n.cfg.SampleRate, n.cfg.VADMode)
		if err != nil {
			return nil, fmt.Errorf("trim silence: %w", err)
		}
		samples = trimmed
	}

	n.log.Debug("audio normalized",
		slog.Int("frames", len(samples)),
		slog.Int("sample_rate", n.cfg.SampleRate))
	return samples, nil
}

func peakAmplitude(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// resample performs linear interpolation between the source and target
// rates. Good enough for speech input; the recognizers do not need more.
func resample(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(in) == 0 {
		return in
	}
	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(in)) / ratio)
	if outLen == 0 {
		outLen = 1
	}
	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
