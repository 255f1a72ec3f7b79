package pipeline

import "fmt"

// StageError tags a failure with the pipeline stage it happened in. Stage
// failures never crash the orchestrator; they surface as typed errors the
// caller can map to transport responses.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

const (
	StageNormalize  = "normalize"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
	StageSynthesize = "synthesize"
)
