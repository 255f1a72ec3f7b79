package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/voxlate/voxlate/internal/history"
	"github.com/voxlate/voxlate/internal/media"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/internal/translate"
	"github.com/voxlate/voxlate/internal/tts"
)

// 25 MB is comfortably above a minute of 16 kHz mono WAV.
const maxUploadBytes = 25 << 20

// Timeline reads back the stage events recorded for one request.
type Timeline interface {
	ListRequestEvents(ctx context.Context, requestID string, limit int) ([]history.StageEvent, error)
}

// HTTP exposes the pipeline over plain HTTP. Audio artifacts rendered by
// the synthesizer are served back under /audio/.
type HTTP struct {
	orch        *pipeline.Orchestrator
	translator  *translate.Stage
	synth       *tts.Stage
	timeline    Timeline
	artifactDir string
	log         *slog.Logger
}

func NewHTTP(orch *pipeline.Orchestrator, translator *translate.Stage, synth *tts.Stage, timeline Timeline, artifactDir string, log *slog.Logger) *HTTP {
	return &HTTP{
		orch:        orch,
		translator:  translator,
		synth:       synth,
		timeline:    timeline,
		artifactDir: artifactDir,
		log:         log.With(slog.String("component", "http-gateway")),
	}
}

// Register mounts the gateway routes on the mux.
func (h *HTTP) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /", h.handleStatus)
	mux.HandleFunc("POST /translate", h.handleTranslate)
	mux.HandleFunc("POST /translate-text", h.handleTranslateText)
	mux.HandleFunc("POST /speak-text", h.handleSpeakText)
	mux.HandleFunc("GET /requests/{id}", h.handleRequestEvents)
	mux.Handle("GET /audio/", http.StripPrefix("/audio/", http.FileServer(http.Dir(h.artifactDir))))
}

type statusResponse struct {
	Service            string   `json:"service"`
	Languages          []string `json:"languages"`
	TTSDefaultLanguage string   `json:"tts_default_language"`
	TTSLoadedLanguages []string `json:"tts_loaded_languages"`
}

func (h *HTTP) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Service:            "voxlate",
		Languages:          h.translator.Languages(),
		TTSDefaultLanguage: h.synth.DefaultLanguage(),
		TTSLoadedLanguages: h.synth.CachedLanguages(),
	})
}

type translateResponse struct {
	RequestID   string `json:"request_id"`
	Transcript  string `json:"transcript,omitempty"`
	Translation string `json:"translation,omitempty"`
}

// handleTranslate accepts a multipart upload with an "audio" WAV file plus
// source_lang and target_lang fields and runs the full pipeline.
func (h *HTTP) handleTranslate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read audio: "+err.Error())
		return
	}

	srcLang := strings.TrimSpace(r.FormValue("source_lang"))
	tgtLang := strings.TrimSpace(r.FormValue("target_lang"))
	if srcLang == "" || tgtLang == "" {
		writeError(w, http.StatusBadRequest, "source_lang and target_lang are required")
		return
	}

	result, err := h.orch.Run(r.Context(), pipeline.Request{
		Mode:    pipeline.ModeAudio,
		Audio:   audio,
		SrcLang: srcLang,
		TgtLang: tgtLang,
	})
	if err != nil {
		h.writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{
		RequestID:   result.RequestID,
		Transcript:  result.Transcript,
		Translation: result.Translation,
	})
}

type translateTextRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

func (h *HTTP) handleTranslateText(w http.ResponseWriter, r *http.Request) {
	var req translateTextRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.SourceLang == "" || req.TargetLang == "" {
		writeError(w, http.StatusBadRequest, "source_lang and target_lang are required")
		return
	}

	result, err := h.orch.Run(r.Context(), pipeline.Request{
		Mode:    pipeline.ModeText,
		Text:    req.Text,
		SrcLang: req.SourceLang,
		TgtLang: req.TargetLang,
	})
	if err != nil {
		h.writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{
		RequestID:   result.RequestID,
		Translation: result.Translation,
	})
}

type speakResponse struct {
	AudioURL string `json:"audio_url"`
}

// handleSpeakText renders text to a WAV artifact and returns its URL.
// Accepts form fields "text" and "language".
func (h *HTTP) handleSpeakText(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	text := strings.TrimSpace(r.FormValue("text"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	lang := r.FormValue("language")
	if lang == "" {
		lang = h.synth.DefaultLanguage()
	}

	path, err := h.orch.Speak(r.Context(), text, lang)
	if err != nil {
		h.writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, speakResponse{AudioURL: "/audio/" + filepath.Base(path)})
}

type stageEventView struct {
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// handleRequestEvents returns the recorded stage timeline for a request,
// the diagnostic view of what each pipeline run actually did.
func (h *HTTP) handleRequestEvents(w http.ResponseWriter, r *http.Request) {
	if h.timeline == nil {
		writeError(w, http.StatusNotFound, "history disabled")
		return
	}
	requestID := r.PathValue("id")
	events, err := h.timeline.ListRequestEvents(r.Context(), requestID, 100)
	if err != nil {
		h.log.Error("timeline lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, "unknown request id")
		return
	}
	views := make([]stageEventView, 0, len(events))
	for _, evt := range events {
		views = append(views, stageEventView{
			Stage:     evt.Stage,
			Status:    evt.Status,
			Detail:    evt.Detail,
			CreatedAt: evt.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// writeStageError maps pipeline failures to HTTP status codes. Unusable
// input is the caller's fault; a missing model is a service condition.
func (h *HTTP) writeStageError(w http.ResponseWriter, err error) {
	var unavailable *tts.ModelUnavailableError
	var unsupported *translate.UnsupportedLanguageError
	switch {
	case errors.As(err, &unavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &unsupported), errors.Is(err, media.ErrUnsupportedAudio):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
