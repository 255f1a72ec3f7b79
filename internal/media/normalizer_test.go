package media

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/voxlate/voxlate/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() config.MediaConfig {
	return config.MediaConfig{SampleRate: 16000}
}

// encodeWAV writes int16 PCM samples to an in-memory WAV file via a temp
// file, since the encoder needs a WriteSeeker.
func encodeWAV(t *testing.T, data []int, channels, sampleRate int) *bytes.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp wav: %v", err)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           data,
	}
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read temp wav: %v", err)
	}
	return bytes.NewReader(raw)
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	n := NewNormalizer(testConfig(), newLogger())
	_, err := n.Normalize(bytes.NewReader([]byte("definitely not audio")))
	if !errors.Is(err, ErrUnsupportedAudio) {
		t.Fatalf("expected ErrUnsupportedAudio, got %v", err)
	}
}

func TestNormalizeSilentInputYieldsNoSignal(t *testing.T) {
	n := NewNormalizer(testConfig(), newLogger())
	samples, err := n.Normalize(encodeWAV(t, make([]int, 1600), 1, 16000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 0 {
		t.Fatalf("expected no usable signal, got %d samples", len(samples))
	}
}

func TestNormalizePeakNormalization(t *testing.T) {
	data := make([]int, 1600)
	for i := range data {
		data[i] = int(3000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	n := NewNormalizer(testConfig(), newLogger())
	samples, err := n.Normalize(encodeWAV(t, data, 1, 16000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak < 0.999 || peak > 1.001 {
		t.Fatalf("expected peak normalized to 1.0, got %f", peak)
	}
}

func TestNormalizeDownmixesStereo(t *testing.T) {
	// Left channel carries signal, right channel silence.
	frames := 1600
	data := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		data[i*2] = 8000
		data[i*2+1] = 0
	}
	n := NewNormalizer(testConfig(), newLogger())
	samples, err := n.Normalize(encodeWAV(t, data, 2, 16000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != frames {
		t.Fatalf("expected %d mono frames, got %d", frames, len(samples))
	}
}

func TestNormalizeResamples(t *testing.T) {
	// One second at 8kHz should come out as roughly one second at 16kHz.
	data := make([]int, 8000)
	for i := range data {
		data[i] = int(5000 * math.Sin(2*math.Pi*200*float64(i)/8000))
	}
	n := NewNormalizer(testConfig(), newLogger())
	samples, err := n.Normalize(encodeWAV(t, data, 1, 8000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) < 15900 || len(samples) > 16100 {
		t.Fatalf("expected ~16000 samples after resample, got %d", len(samples))
	}
}

func TestResampleDownLinear(t *testing.T) {
	in := make([]float32, 320)
	for i := range in {
		in[i] = float32(i) / 320
	}
	out := resample(in, 32000, 16000)
	if len(out) != 160 {
		t.Fatalf("expected 160 samples, got %d", len(out))
	}
	if out[0] != in[0] {
		t.Fatalf("expected first sample preserved, got %f", out[0])
	}
}

func TestWriteWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	samples := []float32{0, 0.5, -0.5, 1, -1}
	if err := WriteWAVFile(path, samples, 22050); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	decoder := wav.NewDecoder(bytes.NewReader(raw))
	if !decoder.IsValidFile() {
		t.Fatal("expected valid wav output")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Format.SampleRate != 22050 || buf.Format.NumChannels != 1 {
		t.Fatalf("unexpected format: %+v", buf.Format)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(buf.Data))
	}
}
