package translate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/glossary"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Stage composes the term protector around the translation model: glossary
// terms are masked before the model sees the text and restored from the
// mask map afterward, so the model never decides their translation.
type Stage struct {
	translator Translator
	protector  *glossary.Protector
	languages  map[string]bool
	log        *slog.Logger
	maskedCnt  metric.Int64Counter
}

func NewStage(cfg config.TranslateConfig, translator Translator, protector *glossary.Protector, log *slog.Logger) *Stage {
	languages := make(map[string]bool, len(cfg.Languages))
	for _, lang := range cfg.Languages {
		languages[lang] = true
	}
	meter := otel.Meter("voxlate/translate")
	maskedCnt, _ := meter.Int64Counter("voxlate.translate.masked_terms",
		metric.WithDescription("Glossary terms masked before translation"))
	return &Stage{
		translator: translator,
		protector:  protector,
		languages:  languages,
		log:        log.With(slog.String("component", "translate-stage")),
		maskedCnt:  maskedCnt,
	}
}

// Languages returns the supported language codes, sorted.
func (s *Stage) Languages() []string {
	codes := make([]string, 0, len(s.languages))
	for code := range s.languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Translate runs a protected translation. Unsupported language codes fail
// before the model is invoked.
func (s *Stage) Translate(ctx context.Context, text, srcLang, tgtLang string) (string, error) {
	if !s.languages[srcLang] {
		return "", &UnsupportedLanguageError{Code: srcLang}
	}
	if !s.languages[tgtLang] {
		return "", &UnsupportedLanguageError{Code: tgtLang}
	}

	masked, masks := s.protector.Protect(text, srcLang, tgtLang)
	if len(masks) > 0 {
		s.maskedCnt.Add(ctx, int64(len(masks)), metric.WithAttributes(
			attribute.String("direction", srcLang+"-"+tgtLang)))
		s.log.Debug("glossary terms masked",
			slog.Int("terms", len(masks)),
			slog.String("direction", srcLang+"->"+tgtLang))
	}

	out, err := s.translator.Translate(ctx, masked, srcLang, tgtLang)
	if err != nil {
		return "", fmt.Errorf("translation model: %w", err)
	}

	restored, err := glossary.Restore(out, masks)
	if err != nil {
		// The model dropped a placeholder. This is a contract violation
		// worth surfacing, never a silent fallback.
		s.log.Error("placeholder restoration failed",
			slog.String("direction", srcLang+"->"+tgtLang),
			slog.String("error", err.Error()))
		return "", err
	}
	return restored, nil
}
