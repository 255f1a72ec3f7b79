package tts

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/media"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Stage owns the per-language synthesis model cache. Models are loaded
// lazily on first request and kept for the process lifetime. Concurrent
// first loads of the same language are deduplicated: one load proceeds,
// the rest wait for its outcome. A failed load leaves no cache entry, so a
// language whose assets appear later starts working without a restart.
type Stage struct {
	loader      Loader
	defaultLang string
	artifactDir string
	log         *slog.Logger

	mu     sync.Mutex
	models map[string]*modelEntry

	loadCnt     metric.Int64Counter
	fallbackCnt metric.Int64Counter
}

// modelEntry is one cached model. Its mutex serializes inference: each
// loaded language model is an independent serialization domain.
type modelEntry struct {
	ready chan struct{}
	synth Synthesizer
	err   error
	mu    sync.Mutex
}

func NewStage(cfg config.TTSConfig, artifactDir string, loader Loader, log *slog.Logger) *Stage {
	meter := otel.Meter("voxlate/tts")
	loadCnt, _ := meter.Int64Counter("voxlate.tts.model_loads",
		metric.WithDescription("Synthesis model load attempts"))
	fallbackCnt, _ := meter.Int64Counter("voxlate.tts.fallbacks",
		metric.WithDescription("Requests served by the default language model"))
	return &Stage{
		loader:      loader,
		defaultLang: cfg.DefaultLanguage,
		artifactDir: artifactDir,
		log:         log.With(slog.String("component", "tts-stage")),
		models:      make(map[string]*modelEntry),
		loadCnt:     loadCnt,
		fallbackCnt: fallbackCnt,
	}
}

// DefaultLanguage reports the fallback language.
func (s *Stage) DefaultLanguage() string {
	return s.defaultLang
}

// CachedLanguages lists the languages with a loaded model, mainly for
// observability and tests.
func (s *Stage) CachedLanguages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	langs := make([]string, 0, len(s.models))
	for lang, entry := range s.models {
		select {
		case <-entry.ready:
			if entry.err == nil {
				langs = append(langs, lang)
			}
		default:
		}
	}
	return langs
}

// lookupOrLoad returns the cached model for lang, loading it if needed.
func (s *Stage) lookupOrLoad(ctx context.Context, lang string) (*modelEntry, error) {
	s.mu.Lock()
	entry, ok := s.models[lang]
	if ok {
		s.mu.Unlock()
		<-entry.ready
		return entry, entry.err
	}
	entry = &modelEntry{ready: make(chan struct{})}
	s.models[lang] = entry
	s.mu.Unlock()

	s.loadCnt.Add(ctx, 1, metric.WithAttributes(attribute.String("language", lang)))
	synth, err := s.loader.Load(ctx, lang)
	entry.synth = synth
	entry.err = err
	close(entry.ready)

	if err != nil {
		// Never cache a failed language: later requests retry the load and
		// pick the assets up once provisioned.
		s.mu.Lock()
		delete(s.models, lang)
		s.mu.Unlock()
		return entry, err
	}
	s.log.Info("synthesis model loaded", slog.String("language", lang))
	return entry, nil
}

// Speak synthesizes text in the requested language and writes the waveform
// to a WAV artifact, returning its path. If the language's assets are
// missing the default language serves this call; if the default also fails
// the call fails with ModelUnavailableError.
func (s *Stage) Speak(ctx context.Context, text, lang string) (string, error) {
	entry, err := s.lookupOrLoad(ctx, lang)
	if err != nil {
		if lang == s.defaultLang {
			return "", err
		}
		s.log.Warn("synthesis model missing, falling back to default language",
			slog.String("language", lang),
			slog.String("default", s.defaultLang),
			slog.String("error", err.Error()))
		s.fallbackCnt.Add(ctx, 1, metric.WithAttributes(attribute.String("language", lang)))
		entry, err = s.lookupOrLoad(ctx, s.defaultLang)
		if err != nil {
			return "", err
		}
	}

	entry.mu.Lock()
	samples, sampleRate, err := entry.synth.Synthesize(ctx, text)
	entry.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}

	name := uuid.New().String() + "_tts.wav"
	path := filepath.Join(s.artifactDir, name)
	if err := media.WriteWAVFile(path, samples, sampleRate); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	s.log.Info("speech synthesized",
		slog.String("language", lang),
		slog.Int("sample_rate", sampleRate),
		slog.String("artifact", name))
	return path, nil
}
