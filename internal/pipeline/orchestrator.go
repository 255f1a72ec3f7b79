package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/voxlate/voxlate/internal/history"
	"github.com/voxlate/voxlate/internal/media"
	"github.com/voxlate/voxlate/internal/stt"
	"github.com/voxlate/voxlate/internal/translate"
	"github.com/voxlate/voxlate/internal/tts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	ModeAudio = "audio"
	ModeText  = "text"
)

// Request is one pipeline invocation: either audio to transcribe and
// translate, or text to translate directly.
type Request struct {
	ID      string
	Mode    string
	Audio   []byte
	Text    string
	SrcLang string
	TgtLang string
}

// Result carries the pipeline output. Empty transcript and translation with
// a nil error is the graceful "no speech detected" outcome, distinct from a
// stage failure.
type Result struct {
	RequestID   string
	Transcript  string
	Translation string
}

// Recorder persists the request timeline. The orchestrator treats recording
// as best-effort diagnostics: a recorder failure never fails the request.
type Recorder interface {
	AppendRequest(ctx context.Context, req history.Request) error
	AppendStageEvent(ctx context.Context, evt history.StageEvent) error
}

// Orchestrator sequences the stages for one request at a time per model.
// The recognizer mutex serializes speech recognition; translation and each
// synthesis model guard themselves. Locking one domain never blocks the
// others.
type Orchestrator struct {
	normalizer *media.Normalizer
	recognizer stt.Recognizer
	translator *translate.Stage
	synth      *tts.Stage
	recorder   Recorder
	log        *slog.Logger
	tracer     trace.Tracer

	sttMu sync.Mutex

	requestCnt metric.Int64Counter
	failureCnt metric.Int64Counter
}

func NewOrchestrator(
	normalizer *media.Normalizer,
	recognizer stt.Recognizer,
	translator *translate.Stage,
	synth *tts.Stage,
	recorder Recorder,
	log *slog.Logger,
) *Orchestrator {
	meter := otel.Meter("voxlate/pipeline")
	requestCnt, _ := meter.Int64Counter("voxlate.pipeline.requests",
		metric.WithDescription("Pipeline invocations"))
	failureCnt, _ := meter.Int64Counter("voxlate.pipeline.stage_failures",
		metric.WithDescription("Stage failures by stage"))
	return &Orchestrator{
		normalizer: normalizer,
		recognizer: recognizer,
		translator: translator,
		synth:      synth,
		recorder:   recorder,
		log:        log.With(slog.String("component", "orchestrator")),
		tracer:     otel.Tracer("voxlate/pipeline"),
		requestCnt: requestCnt,
		failureCnt: failureCnt,
	}
}

// Run executes the transcribe/translate sequence. Synthesis is never
// chained automatically; callers request it separately via Speak.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	o.requestCnt.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", req.Mode)))
	o.record(ctx, history.Request{ID: req.ID, Mode: req.Mode, SourceLang: req.SrcLang, TargetLang: req.TgtLang})

	result := Result{RequestID: req.ID}

	text := req.Text
	if req.Mode == ModeAudio {
		transcript, ok, err := o.transcribe(ctx, req)
		if err != nil {
			return result, err
		}
		if !ok {
			// No usable signal or empty transcript: a legitimate outcome,
			// not an error. Translation is not invoked.
			o.event(ctx, req.ID, StageTranscribe, "short_circuit", "no speech detected")
			o.log.Info("no speech detected", slog.String("request_id", req.ID))
			return result, nil
		}
		result.Transcript = transcript
		text = transcript
	}

	if text == "" {
		o.event(ctx, req.ID, StageTranslate, "short_circuit", "empty input text")
		return result, nil
	}

	translation, err := o.runTranslate(ctx, req.ID, text, req.SrcLang, req.TgtLang)
	if err != nil {
		return result, err
	}
	result.Translation = translation
	return result, nil
}

// transcribe normalizes and recognizes audio. The bool result is false for
// the graceful no-speech outcome.
func (o *Orchestrator) transcribe(ctx context.Context, req Request) (string, bool, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.transcribe")
	defer span.End()

	samples, err := o.normalizer.Normalize(bytes.NewReader(req.Audio))
	if err != nil {
		return "", false, o.fail(ctx, req.ID, StageNormalize, err)
	}
	if len(samples) == 0 {
		return "", false, nil
	}

	o.sttMu.Lock()
	result, err := o.recognizer.Transcribe(ctx, samples, o.normalizer.SampleRate(), req.SrcLang)
	o.sttMu.Unlock()
	if err != nil {
		return "", false, o.fail(ctx, req.ID, StageTranscribe, err)
	}
	o.event(ctx, req.ID, StageTranscribe, "completed", "")
	if result.Text == "" {
		return "", false, nil
	}
	span.SetAttributes(attribute.Int("transcript_len", len(result.Text)))
	return result.Text, true, nil
}

func (o *Orchestrator) runTranslate(ctx context.Context, requestID, text, srcLang, tgtLang string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.translate",
		trace.WithAttributes(attribute.String("direction", srcLang+"-"+tgtLang)))
	defer span.End()

	translation, err := o.translator.Translate(ctx, text, srcLang, tgtLang)
	if err != nil {
		return "", o.fail(ctx, requestID, StageTranslate, err)
	}
	o.event(ctx, requestID, StageTranslate, "completed", "")
	return translation, nil
}

// Speak synthesizes text in the given language and returns the artifact
// path. Decoupled from Run: synthesis is expensive and only happens when a
// caller explicitly asks for it.
func (o *Orchestrator) Speak(ctx context.Context, text, lang string) (string, error) {
	requestID := uuid.New().String()
	o.requestCnt.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "speak")))
	o.record(ctx, history.Request{ID: requestID, Mode: "speak", TargetLang: lang})

	ctx, span := o.tracer.Start(ctx, "pipeline.synthesize",
		trace.WithAttributes(attribute.String("language", lang)))
	defer span.End()

	path, err := o.synth.Speak(ctx, text, lang)
	if err != nil {
		return "", o.fail(ctx, requestID, StageSynthesize, err)
	}
	o.event(ctx, requestID, StageSynthesize, "completed", path)
	return path, nil
}

func (o *Orchestrator) fail(ctx context.Context, requestID, stage string, err error) error {
	o.failureCnt.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	o.event(ctx, requestID, stage, "failed", err.Error())
	o.log.Error("stage failed",
		slog.String("request_id", requestID),
		slog.String("stage", stage),
		slog.String("error", err.Error()))
	return &StageError{Stage: stage, Err: err}
}

func (o *Orchestrator) record(ctx context.Context, req history.Request) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.AppendRequest(ctx, req); err != nil {
		o.log.Warn("failed to record request", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) event(ctx context.Context, requestID, stage, status, detail string) {
	if o.recorder == nil {
		return
	}
	evt := history.StageEvent{RequestID: requestID, Stage: stage, Status: status, Detail: detail}
	if err := o.recorder.AppendStageEvent(ctx, evt); err != nil {
		o.log.Warn("failed to record stage event", slog.String("error", err.Error()))
	}
}
