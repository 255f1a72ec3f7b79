package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/glossary"
	"github.com/voxlate/voxlate/internal/history"
	"github.com/voxlate/voxlate/internal/media"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/internal/stt"
	"github.com/voxlate/voxlate/internal/translate"
	"github.com/voxlate/voxlate/internal/tts"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	mux         *http.ServeMux
	artifactDir string
}

// stubTimeline serves canned stage events keyed by request id.
type stubTimeline map[string][]history.StageEvent

func (s stubTimeline) ListRequestEvents(_ context.Context, requestID string, _ int) ([]history.StageEvent, error) {
	return s[requestID], nil
}

func newFixture(t *testing.T, ttsLanguages []string) fixture {
	return newFixtureWithTimeline(t, ttsLanguages, nil)
}

func newFixtureWithTimeline(t *testing.T, ttsLanguages []string, timeline Timeline) fixture {
	t.Helper()
	log := newLogger()
	artifactDir := t.TempDir()

	store := glossary.NewStore(map[glossary.Direction][]glossary.Entry{
		{Src: "en", Tgt: "de"}: {{Term: "runway", Translation: "Startbahn"}},
	})
	translator := translate.NewStage(
		config.TranslateConfig{Mode: "mock", Languages: []string{"en", "de"}},
		translate.NewMockTranslator(), glossary.NewProtector(store), log)
	synth := tts.NewStage(
		config.TTSConfig{Mode: "mock", DefaultLanguage: "en"},
		artifactDir, tts.NewMockLoader(ttsLanguages, 22050), log)
	normalizer := media.NewNormalizer(config.MediaConfig{SampleRate: 16000}, log)
	orch := pipeline.NewOrchestrator(normalizer, stt.NewMockRecognizer(), translator, synth, nil, log)

	mux := http.NewServeMux()
	NewHTTP(orch, translator, synth, timeline, artifactDir, log).Register(mux)
	return fixture{mux: mux, artifactDir: artifactDir}
}

func (f fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t, []string{"en"})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var status statusResponse
	decodeBody(t, rec, &status)
	if status.Service != "voxlate" {
		t.Fatalf("unexpected service name: %q", status.Service)
	}
	if len(status.Languages) != 2 {
		t.Fatalf("unexpected languages: %v", status.Languages)
	}
	if status.TTSDefaultLanguage != "en" {
		t.Fatalf("unexpected default language: %q", status.TTSDefaultLanguage)
	}
}

func TestTranslateTextAppliesGlossary(t *testing.T) {
	f := newFixture(t, []string{"en"})

	body := `{"text":"clear the runway","source_lang":"en","target_lang":"de"}`
	req := httptest.NewRequest(http.MethodPost, "/translate-text", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp translateResponse
	decodeBody(t, rec, &resp)
	if resp.Translation != "clear the Startbahn" {
		t.Fatalf("unexpected translation: %q", resp.Translation)
	}
	if resp.RequestID == "" {
		t.Fatal("expected request id")
	}
}

func TestTranslateTextUnsupportedLanguageIs400(t *testing.T) {
	f := newFixture(t, []string{"en"})

	body := `{"text":"hello","source_lang":"en","target_lang":"xx"}`
	req := httptest.NewRequest(http.MethodPost, "/translate-text", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTranslateTextMissingTextIs400(t *testing.T) {
	f := newFixture(t, []string{"en"})

	req := httptest.NewRequest(http.MethodPost, "/translate-text", strings.NewReader(`{"source_lang":"en","target_lang":"de"}`))
	req.Header.Set("Content-Type", "application/json")

	if rec := f.do(t, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func multipartAudio(t *testing.T, audio []byte, srcLang, tgtLang string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "input.wav")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(audio); err != nil {
		t.Fatalf("write audio part: %v", err)
	}
	_ = w.WriteField("source_lang", srcLang)
	_ = w.WriteField("target_lang", tgtLang)
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func wavUpload(t *testing.T) []byte {
	t.Helper()
	samples := make([]float32, 1600)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.4
		} else {
			samples[i] = -0.4
		}
	}
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := media.WriteWAVFile(path, samples, 16000); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return data
}

func TestTranslateAudioPipeline(t *testing.T) {
	f := newFixture(t, []string{"en"})

	body, contentType := multipartAudio(t, wavUpload(t), "en", "de")
	req := httptest.NewRequest(http.MethodPost, "/translate", body)
	req.Header.Set("Content-Type", contentType)

	rec := f.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp translateResponse
	decodeBody(t, rec, &resp)
	if resp.Transcript == "" {
		t.Fatal("expected transcript from mock recognizer")
	}
}

func TestTranslateGarbageAudioIs400(t *testing.T) {
	f := newFixture(t, []string{"en"})

	body, contentType := multipartAudio(t, []byte("not a wav"), "en", "de")
	req := httptest.NewRequest(http.MethodPost, "/translate", body)
	req.Header.Set("Content-Type", contentType)

	if rec := f.do(t, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSpeakTextServesArtifact(t *testing.T) {
	f := newFixture(t, []string{"en"})

	form := url.Values{"text": {"hello there"}, "language": {"en"}}
	req := httptest.NewRequest(http.MethodPost, "/speak-text", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := f.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp speakResponse
	decodeBody(t, rec, &resp)
	if !strings.HasPrefix(resp.AudioURL, "/audio/") {
		t.Fatalf("unexpected audio url: %q", resp.AudioURL)
	}

	audio := f.do(t, httptest.NewRequest(http.MethodGet, resp.AudioURL, nil))
	if audio.Code != http.StatusOK {
		t.Fatalf("artifact not served: %d", audio.Code)
	}
	if audio.Body.Len() == 0 {
		t.Fatal("empty artifact body")
	}
}

func TestSpeakTextUnavailableModelIs503(t *testing.T) {
	f := newFixture(t, nil) // no TTS languages provisioned at all

	form := url.Values{"text": {"hello"}, "language": {"fr"}}
	req := httptest.NewRequest(http.MethodPost, "/speak-text", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if rec := f.do(t, req); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRequestTimelineEndpoint(t *testing.T) {
	timeline := stubTimeline{
		"req-1": {
			{RequestID: "req-1", Stage: "transcribe", Status: "completed"},
			{RequestID: "req-1", Stage: "translate", Status: "failed", Detail: "model gone"},
		},
	}
	f := newFixtureWithTimeline(t, []string{"en"}, timeline)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/requests/req-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var events []stageEventView
	decodeBody(t, rec, &events)
	if len(events) != 2 {
		t.Fatalf("expected two events, got %v", events)
	}
	if events[1].Status != "failed" || events[1].Detail != "model gone" {
		t.Fatalf("unexpected event: %+v", events[1])
	}
}

func TestRequestTimelineUnknownIDIs404(t *testing.T) {
	f := newFixtureWithTimeline(t, []string{"en"}, stubTimeline{})

	if rec := f.do(t, httptest.NewRequest(http.MethodGet, "/requests/nope", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRequestTimelineDisabledIs404(t *testing.T) {
	f := newFixture(t, []string{"en"})

	if rec := f.do(t, httptest.NewRequest(http.MethodGet, "/requests/req-1", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	f := newFixture(t, []string{"en"})

	if rec := f.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
