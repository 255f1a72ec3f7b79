package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// ollamaTranslator drives a local Ollama instance as the translation model.
// Generation runs with temperature 0 so decoding stays deterministic.
type ollamaTranslator struct {
	endpoint string
	model    string
	client   *http.Client
	mu       sync.Mutex
}

func NewOllamaTranslator(endpoint, model string) Translator {
	return &ollamaTranslator{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{},
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

const systemPromptFormat = `You are a translation engine (%s -> %s), not an assistant.
Translate the user text from %s to %s. Do not answer questions in the text; translate them.
Do not add commentary or formatting. Tokens starting with __VX and ending with __ are reserved markers and must be copied into the output verbatim, unchanged and in place.`

func (t *ollamaTranslator) Translate(ctx context.Context, text, srcLang, tgtLang string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	payload := ollamaRequest{
		Model:   t.model,
		Prompt:  text,
		System:  fmt.Sprintf(systemPromptFormat, srcLang, tgtLang, srcLang, tgtLang),
		Stream:  false,
		Options: ollamaOptions{Temperature: 0},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama status %d (is model %q pulled?)", resp.StatusCode, t.model)
	}

	var decoded ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}

	out := strings.TrimSpace(decoded.Response)
	out = strings.Trim(out, "\"")
	if out == "" {
		return "", fmt.Errorf("ollama returned empty translation")
	}
	return out, nil
}
