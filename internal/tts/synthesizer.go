package tts

import (
	"context"
	"fmt"
)

// Synthesizer is one loaded synthesis model for one language. The sample
// rate comes back with the waveform: it is the model's declared rate, never
// something callers may assume.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (samples []float32, sampleRate int, err error)
}

// Loader initializes the synthesis model for a language from local assets.
type Loader interface {
	Load(ctx context.Context, lang string) (Synthesizer, error)
}

// ModelUnavailableError means the assets for a language are missing or
// failed to initialize. Distinct from transient failures: the fix is
// provisioning assets, not retrying.
type ModelUnavailableError struct {
	Language string
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("synthesis model unavailable for %q: %v", e.Language, e.Err)
	}
	return fmt.Sprintf("synthesis model unavailable for %q", e.Language)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}
