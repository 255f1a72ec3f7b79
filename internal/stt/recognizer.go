package stt

import (
	"context"
)

// TranscriptResult captures recognizer output.
type TranscriptResult struct {
	Text       string
	Confidence float64
}

// Recognizer abstracts STT backends. Input is mono float32 PCM at the
// pipeline sample rate. The language hint may be empty or "auto" for
// autodetection. Decoding must be deterministic.
type Recognizer interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (TranscriptResult, error)
}
