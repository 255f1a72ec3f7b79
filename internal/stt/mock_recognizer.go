package stt

import (
	"context"
	"fmt"
)

type mockRecognizer struct{}

// NewMockRecognizer returns a recognizer for development without model
// assets. Output is deterministic for a given input length.
func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, samples []float32, sampleRate int, _ string) (TranscriptResult, error) {
	if len(samples) == 0 {
		return TranscriptResult{Text: ""}, nil
	}
	return TranscriptResult{
		Text:       fmt.Sprintf("[mock transcript duration=%.2fs]", float64(len(samples))/float64(sampleRate)),
		Confidence: 1,
	}, nil
}
