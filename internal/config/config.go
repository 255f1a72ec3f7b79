package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Media       MediaConfig     `yaml:"media"`
	Glossary    GlossaryConfig  `yaml:"glossary"`
	STT         STTConfig       `yaml:"stt"`
	Translate   TranslateConfig `yaml:"translate"`
	TTS         TTSConfig       `yaml:"tts"`
	Artifacts   ArtifactsConfig `yaml:"artifacts"`
	History     HistoryConfig   `yaml:"history"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type MediaConfig struct {
	SampleRate  int  `yaml:"sample_rate"`
	TrimSilence bool `yaml:"trim_silence"`
	VADMode     int  `yaml:"vad_mode"`
}

type GlossaryConfig struct {
	Path string `yaml:"path"`
}

type STTConfig struct {
	Mode      string `yaml:"mode"`
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
}

type TranslateConfig struct {
	Mode      string   `yaml:"mode"` // mock, ollama, exec
	Command   string   `yaml:"command"`
	Endpoint  string   `yaml:"endpoint"`
	Model     string   `yaml:"model"`
	Languages []string `yaml:"languages"`
}

type TTSConfig struct {
	Mode            string   `yaml:"mode"`
	Command         string   `yaml:"command"`
	AssetDir        string   `yaml:"asset_dir"`
	DefaultLanguage string   `yaml:"default_language"`
	Languages       []string `yaml:"languages"`
}

type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRequests   int    `yaml:"max_requests"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		ServiceName: "voxlated",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Media: MediaConfig{
			SampleRate:  16000,
			TrimSilence: false,
			VADMode:     1,
		},
		Glossary: GlossaryConfig{
			Path: "./glossary.yaml",
		},
		STT: STTConfig{
			Mode: "mock",
		},
		Translate: TranslateConfig{
			Mode:      "mock",
			Endpoint:  "http://localhost:11434",
			Languages: []string{"en", "fr", "de", "es", "hi", "zh", "ar", "ru"},
		},
		TTS: TTSConfig{
			Mode:            "mock",
			AssetDir:        "./models/tts",
			DefaultLanguage: "en",
			Languages:       []string{"en", "fr", "de", "es", "hi", "zh", "ar", "ru"},
		},
		Artifacts: ArtifactsConfig{
			Dir: "./data/audio",
		},
		History: HistoryConfig{
			Path:          "./data/voxlate-history.db",
			RetentionMode: "persistent",
			RetentionDays: 30,
			MaxRequests:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "VOXLATE_SERVICE_NAME")
	overrideString(&cfg.Environment, "VOXLATE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOXLATE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOXLATE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOXLATE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOXLATE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOXLATE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VOXLATE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "VOXLATE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "VOXLATE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOXLATE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "VOXLATE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "VOXLATE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOXLATE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOXLATE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOXLATE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOXLATE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOXLATE_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Media.SampleRate, "VOXLATE_MEDIA_SAMPLE_RATE")
	overrideBool(&cfg.Media.TrimSilence, "VOXLATE_MEDIA_TRIM_SILENCE")
	overrideInt(&cfg.Media.VADMode, "VOXLATE_MEDIA_VAD_MODE")
	overrideString(&cfg.Glossary.Path, "VOXLATE_GLOSSARY_PATH")
	overrideString(&cfg.STT.Mode, "VOXLATE_STT_MODE")
	overrideString(&cfg.STT.Command, "VOXLATE_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "VOXLATE_STT_MODEL_PATH")
	overrideString(&cfg.Translate.Mode, "VOXLATE_TRANSLATE_MODE")
	overrideString(&cfg.Translate.Command, "VOXLATE_TRANSLATE_COMMAND")
	overrideString(&cfg.Translate.Endpoint, "VOXLATE_TRANSLATE_ENDPOINT")
	overrideString(&cfg.Translate.Model, "VOXLATE_TRANSLATE_MODEL")
	overrideStringSlice(&cfg.Translate.Languages, "VOXLATE_TRANSLATE_LANGUAGES")
	overrideString(&cfg.TTS.Mode, "VOXLATE_TTS_MODE")
	overrideString(&cfg.TTS.Command, "VOXLATE_TTS_COMMAND")
	overrideString(&cfg.TTS.AssetDir, "VOXLATE_TTS_ASSET_DIR")
	overrideString(&cfg.TTS.DefaultLanguage, "VOXLATE_TTS_DEFAULT_LANGUAGE")
	overrideStringSlice(&cfg.TTS.Languages, "VOXLATE_TTS_LANGUAGES")
	overrideString(&cfg.Artifacts.Dir, "VOXLATE_ARTIFACTS_DIR")
	overrideString(&cfg.History.Path, "VOXLATE_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "VOXLATE_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "VOXLATE_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxRequests, "VOXLATE_HISTORY_MAX_REQUESTS")
	overrideBool(&cfg.History.VacuumOnStart, "VOXLATE_HISTORY_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Media.SampleRate <= 0 {
		return errors.New("media.sample_rate must be positive")
	}
	if cfg.Media.VADMode < 0 || cfg.Media.VADMode > 3 {
		return errors.New("media.vad_mode must be between 0 and 3")
	}
	switch cfg.STT.Mode {
	case "mock", "exec":
	default:
		return errors.New("stt.mode must be one of mock|exec")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	switch cfg.Translate.Mode {
	case "mock", "ollama", "exec":
	default:
		return errors.New("translate.mode must be one of mock|ollama|exec")
	}
	if cfg.Translate.Mode == "exec" && cfg.Translate.Command == "" {
		return errors.New("translate.command must be set when mode=exec")
	}
	if cfg.Translate.Mode == "ollama" {
		if cfg.Translate.Endpoint == "" {
			return errors.New("translate.endpoint must be set when mode=ollama")
		}
		if cfg.Translate.Model == "" {
			return errors.New("translate.model must be set when mode=ollama")
		}
	}
	if len(cfg.Translate.Languages) == 0 {
		return errors.New("translate.languages must not be empty")
	}
	switch cfg.TTS.Mode {
	case "mock", "exec":
	default:
		return errors.New("tts.mode must be one of mock|exec")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.DefaultLanguage == "" {
		return errors.New("tts.default_language must not be empty")
	}
	if cfg.Artifacts.Dir == "" {
		return errors.New("artifacts.dir must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "persistent":
	default:
		return errors.New("history.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.History.RetentionMode == "persistent" && cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	return nil
}
