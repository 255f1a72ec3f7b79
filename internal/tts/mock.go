package tts

import (
	"context"
	"math"
)

// mockLoader serves a configured set of languages without model assets.
type mockLoader struct {
	available  map[string]bool
	sampleRate int
}

func NewMockLoader(languages []string, sampleRate int) Loader {
	available := make(map[string]bool, len(languages))
	for _, lang := range languages {
		available[lang] = true
	}
	return &mockLoader{available: available, sampleRate: sampleRate}
}

func (l *mockLoader) Load(_ context.Context, lang string) (Synthesizer, error) {
	if !l.available[lang] {
		return nil, &ModelUnavailableError{Language: lang}
	}
	return &mockSynth{sampleRate: l.sampleRate}, nil
}

// mockSynth produces a short tone scaled to the text length.
type mockSynth struct {
	sampleRate int
}

func (m *mockSynth) Synthesize(_ context.Context, text string) ([]float32, int, error) {
	frames := m.sampleRate / 5
	if n := len(text) * m.sampleRate / 100; n > frames {
		frames = n
	}
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*220*float64(i)/float64(m.sampleRate)))
	}
	return samples, m.sampleRate, nil
}
