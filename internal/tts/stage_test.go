package tts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxlate/voxlate/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStage(t *testing.T, loader Loader, defaultLang string) *Stage {
	t.Helper()
	cfg := config.TTSConfig{Mode: "mock", DefaultLanguage: defaultLang}
	return NewStage(cfg, t.TempDir(), loader, newLogger())
}

// countingLoader wraps a loader and counts Load calls per language.
type countingLoader struct {
	inner Loader
	delay time.Duration
	loads sync.Map // lang -> *int64
}

func (l *countingLoader) Load(ctx context.Context, lang string) (Synthesizer, error) {
	counter, _ := l.loads.LoadOrStore(lang, new(int64))
	atomic.AddInt64(counter.(*int64), 1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	return l.inner.Load(ctx, lang)
}

func (l *countingLoader) count(lang string) int64 {
	counter, ok := l.loads.Load(lang)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(counter.(*int64))
}

func TestSpeakWritesArtifact(t *testing.T) {
	stage := testStage(t, NewMockLoader([]string{"en"}, 22050), "en")
	path, err := stage.Speak(context.Background(), "hello", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, ".wav") {
		t.Fatalf("expected wav artifact, got %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
}

func TestSpeakFallsBackToDefaultLanguage(t *testing.T) {
	stage := testStage(t, NewMockLoader([]string{"en"}, 22050), "en")
	path, err := stage.Speak(context.Background(), "bonjour", "fr")
	if err != nil {
		t.Fatalf("fallback should succeed, got %v", err)
	}
	if path == "" {
		t.Fatal("expected artifact path")
	}
	// The failed language must not get a cache entry.
	for _, lang := range stage.CachedLanguages() {
		if lang == "fr" {
			t.Fatal("failed language was cached")
		}
	}
}

func TestSpeakFailedLanguageRetriesLoad(t *testing.T) {
	loader := &countingLoader{inner: NewMockLoader([]string{"en"}, 22050)}
	stage := testStage(t, loader, "en")

	for i := 0; i < 3; i++ {
		if _, err := stage.Speak(context.Background(), "text", "fr"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Every request for the missing language retries the load; the default
	// is loaded exactly once.
	if got := loader.count("fr"); got != 3 {
		t.Fatalf("expected 3 load attempts for fr, got %d", got)
	}
	if got := loader.count("en"); got != 1 {
		t.Fatalf("expected 1 load for en, got %d", got)
	}
}

func TestSpeakDefaultUnavailableIsFatal(t *testing.T) {
	stage := testStage(t, NewMockLoader(nil, 22050), "en")
	_, err := stage.Speak(context.Background(), "text", "fr")
	var unavailable *ModelUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ModelUnavailableError, got %v", err)
	}
	if unavailable.Language != "en" {
		t.Fatalf("expected failure on the default language, got %q", unavailable.Language)
	}
}

func TestConcurrentFirstLoadDeduplicated(t *testing.T) {
	loader := &countingLoader{inner: NewMockLoader([]string{"en"}, 22050), delay: 20 * time.Millisecond}
	stage := testStage(t, loader, "en")

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = stage.Speak(context.Background(), "hello", "en")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if got := loader.count("en"); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
}

func TestCachedLanguagesReflectsLoads(t *testing.T) {
	stage := testStage(t, NewMockLoader([]string{"en", "de"}, 22050), "en")
	if _, err := stage.Speak(context.Background(), "hallo", "de"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	langs := stage.CachedLanguages()
	if len(langs) != 1 || langs[0] != "de" {
		t.Fatalf("expected only de cached, got %v", langs)
	}
}
