package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/voxlate/voxlate/internal/config"
)

// voxlate-assets reports which model assets a config actually has on disk.
// It exits non-zero when the default TTS language is missing, since the
// synthesizer cannot fall back past it at runtime.

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "voxlate.yaml", "Path to configuration file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ok := true

	fmt.Printf("stt: mode=%s\n", cfg.STT.Mode)
	if cfg.STT.Mode == "exec" {
		if cfg.STT.ModelPath == "" {
			fmt.Println("  model: (none configured)")
		} else if fileExists(cfg.STT.ModelPath) {
			fmt.Printf("  model: %s ok\n", cfg.STT.ModelPath)
		} else {
			fmt.Printf("  model: %s MISSING\n", cfg.STT.ModelPath)
			ok = false
		}
	}

	fmt.Printf("translate: mode=%s languages=%v\n", cfg.Translate.Mode, cfg.Translate.Languages)
	if cfg.Translate.Mode == "ollama" {
		fmt.Printf("  endpoint: %s model: %s\n", cfg.Translate.Endpoint, cfg.Translate.Model)
	}

	fmt.Printf("tts: mode=%s default=%s\n", cfg.TTS.Mode, cfg.TTS.DefaultLanguage)
	if cfg.TTS.Mode == "exec" {
		defaultPresent := false
		for _, lang := range cfg.TTS.Languages {
			dir := filepath.Join(cfg.TTS.AssetDir, lang)
			if dirExists(dir) {
				fmt.Printf("  %s: %s ok\n", lang, dir)
				if lang == cfg.TTS.DefaultLanguage {
					defaultPresent = true
				}
			} else {
				fmt.Printf("  %s: %s MISSING\n", lang, dir)
			}
		}
		if !defaultPresent {
			fmt.Printf("  default language %q has no assets\n", cfg.TTS.DefaultLanguage)
			ok = false
		}
	}

	if !ok {
		os.Exit(1)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
