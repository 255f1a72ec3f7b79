package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mattn/go-shellwords"
)

// execLoader builds exec-backed synthesizers from a per-language asset
// directory layout: <asset_dir>/<lang>/ holds the model files the CLI
// expects.
type execLoader struct {
	cmd      []string
	assetDir string
}

func NewExecLoader(command, assetDir string) (Loader, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command is empty")
	}
	return &execLoader{cmd: args, assetDir: assetDir}, nil
}

func (l *execLoader) Load(_ context.Context, lang string) (Synthesizer, error) {
	modelDir := filepath.Join(l.assetDir, lang)
	info, err := os.Stat(modelDir)
	if err != nil || !info.IsDir() {
		return nil, &ModelUnavailableError{Language: lang, Err: fmt.Errorf("assets not found at %s", modelDir)}
	}
	return &execSynth{cmd: l.cmd, modelDir: modelDir}, nil
}

// execSynth shells out to a synthesis CLI. One request JSON on stdin, one
// response JSON on stdout carrying base64 int16 PCM and the model's rate.
type execSynth struct {
	cmd      []string
	modelDir string
}

type execSynthRequest struct {
	Text string `json:"text"`
}

type execSynthResponse struct {
	PCMBase64  string `json:"pcm_base64"`
	SampleRate int    `json:"sample_rate"`
}

func (e *execSynth) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	payload, err := json.Marshal(execSynthRequest{Text: text})
	if err != nil {
		return nil, 0, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	args = append(args, "--model", e.modelDir)
	command := exec.CommandContext(ctx, base, args...)
	command.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, 0, fmt.Errorf("tts command failed: %w: %s", err, stderr.String())
	}

	var resp execSynthResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, 0, fmt.Errorf("decode tts response: %w", err)
	}
	if resp.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("tts response missing sample rate")
	}
	pcm, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
	if err != nil {
		return nil, 0, fmt.Errorf("decode tts pcm: %w", err)
	}
	if len(pcm)%2 != 0 {
		return nil, 0, fmt.Errorf("tts pcm payload not aligned")
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return samples, resp.SampleRate, nil
}
