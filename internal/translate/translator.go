package translate

import (
	"context"
	"fmt"
)

// UnsupportedLanguageError reports a language code outside the configured
// translation model vocabulary.
type UnsupportedLanguageError struct {
	Code string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Code)
}

// Translator defines a pluggable machine translation backend. Language codes
// are short canonical codes (two-letter).
type Translator interface {
	Translate(ctx context.Context, text, srcLang, tgtLang string) (string, error)
}
