package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Media.SampleRate != 16000 {
		t.Fatalf("expected default sample rate 16000, got %d", cfg.Media.SampleRate)
	}
	if cfg.Media.TrimSilence {
		t.Fatal("expected silence trimming disabled by default")
	}
	if cfg.TTS.DefaultLanguage != "en" {
		t.Fatalf("expected default tts language en, got %q", cfg.TTS.DefaultLanguage)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOXLATE_HTTP_PORT", "9000")
	t.Setenv("VOXLATE_MEDIA_TRIM_SILENCE", "true")
	t.Setenv("VOXLATE_MEDIA_VAD_MODE", "3")
	t.Setenv("VOXLATE_GLOSSARY_PATH", "./terms.yaml")
	t.Setenv("VOXLATE_TTS_DEFAULT_LANGUAGE", "fr")
	t.Setenv("VOXLATE_TTS_LANGUAGES", "fr, de")
	t.Setenv("VOXLATE_TRANSLATE_MODE", "ollama")
	t.Setenv("VOXLATE_TRANSLATE_MODEL", "llama3.2:latest")
	t.Setenv("VOXLATE_HISTORY_RETENTION_MODE", "ephemeral")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 9000 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if !cfg.Media.TrimSilence {
		t.Fatal("expected trim_silence override true")
	}
	if cfg.Media.VADMode != 3 {
		t.Fatalf("expected vad mode 3, got %d", cfg.Media.VADMode)
	}
	if cfg.Glossary.Path != "./terms.yaml" {
		t.Fatalf("expected glossary path override, got %q", cfg.Glossary.Path)
	}
	if cfg.TTS.DefaultLanguage != "fr" {
		t.Fatalf("expected default language override, got %q", cfg.TTS.DefaultLanguage)
	}
	if len(cfg.TTS.Languages) != 2 || cfg.TTS.Languages[1] != "de" {
		t.Fatalf("expected two tts languages, got %v", cfg.TTS.Languages)
	}
	if cfg.Translate.Mode != "ollama" {
		t.Fatalf("expected translate mode override, got %q", cfg.Translate.Mode)
	}
	if cfg.History.RetentionMode != "ephemeral" {
		t.Fatalf("expected retention mode override, got %q", cfg.History.RetentionMode)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voxlate.yaml")
	data := []byte(`
service_name: voxlate-test
stt:
  mode: exec
  command: whisper-cli
tts:
  default_language: de
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "voxlate-test" {
		t.Fatalf("expected service name from file, got %q", cfg.ServiceName)
	}
	if cfg.STT.Mode != "exec" || cfg.STT.Command != "whisper-cli" {
		t.Fatalf("expected stt exec config, got %+v", cfg.STT)
	}
	if cfg.TTS.DefaultLanguage != "de" {
		t.Fatalf("expected default language de, got %q", cfg.TTS.DefaultLanguage)
	}
	// Fields the file omits keep their defaults.
	if cfg.HTTP.Port != 8080 {
		t.Fatalf("expected default port, got %d", cfg.HTTP.Port)
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	t.Setenv("VOXLATE_STT_MODE", "grpc")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown stt mode")
	}
}

func TestValidateExecNeedsCommand(t *testing.T) {
	t.Setenv("VOXLATE_TTS_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for exec mode without command")
	}
}
