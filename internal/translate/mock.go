package translate

import "context"

type mockTranslator struct{}

// NewMockTranslator returns an identity translator for development and
// tests. Masked placeholders pass through untouched, so the full protect/
// restore path is exercised.
func NewMockTranslator() Translator {
	return &mockTranslator{}
}

func (m *mockTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}
