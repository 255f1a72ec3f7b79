package protocol

// Subjects served by the bus gateway. All three are request/reply.
const (
	SubjectPipelineRun   = "voxlate.pipeline.run"
	SubjectTextTranslate = "voxlate.text.translate"
	SubjectTTSSpeak      = "voxlate.tts.speak"
)

// PipelineRequest asks for the full transcribe/translate sequence over a
// WAV payload. AudioWAV carries the complete file, not a frame stream.
type PipelineRequest struct {
	RequestID  string `json:"request_id,omitempty"`
	AudioWAV   []byte `json:"audio_wav"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// TextRequest asks for translation of already-transcribed text.
type TextRequest struct {
	RequestID  string `json:"request_id,omitempty"`
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// PipelineResult is the reply for both pipeline and text requests. An
// empty Transcript with no Error means the audio carried no speech.
type PipelineResult struct {
	RequestID   string `json:"request_id"`
	Transcript  string `json:"transcript,omitempty"`
	Translation string `json:"translation,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorStage  string `json:"error_stage,omitempty"`
}

// SpeakRequest asks for synthesis of text in the given language.
type SpeakRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// SpeakResult replies with the path of the rendered WAV artifact.
type SpeakResult struct {
	AudioPath  string `json:"audio_path,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorStage string `json:"error_stage,omitempty"`
}
