package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/voxlate/voxlate/internal/bus"
	"github.com/voxlate/voxlate/internal/capability"
	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/gateway"
	"github.com/voxlate/voxlate/internal/glossary"
	"github.com/voxlate/voxlate/internal/history"
	"github.com/voxlate/voxlate/internal/media"
	"github.com/voxlate/voxlate/internal/natsserver"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/internal/stt"
	"github.com/voxlate/voxlate/internal/translate"
	"github.com/voxlate/voxlate/internal/tts"
)

const mockTTSSampleRate = 22050

// Runtime owns the lifecycle of everything a voxlated process runs: the
// pipeline stages, the HTTP gateway, the optional bus, and telemetry.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	metricsSrv  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the runtime up and blocks until ctx is cancelled, then
// shuts everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry
	r.serveMetrics(metricHandler)

	if err := os.MkdirAll(r.cfg.Artifacts.Dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	glossaryStore, err := glossary.LoadFile(r.cfg.Glossary.Path, r.logger)
	if err != nil {
		return fmt.Errorf("load glossary: %w", err)
	}

	historyStore, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer func() {
		if err := historyStore.Close(); err != nil {
			r.logger.Error("history close error", slog.String("error", err.Error()))
		}
	}()

	orch, translator, synth, err := r.buildPipeline(glossaryStore, historyStore)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	gateway.NewHTTP(orch, translator, synth, historyStore, r.cfg.Artifacts.Dir, r.logger).Register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	var busService *gateway.Service
	var registry *capability.Registry
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("start embedded bus: %w", err)
		}

		busClient, err = bus.Connect(r.cfg.Bus, r.logger)
		if err != nil {
			embedded.Shutdown()
			return fmt.Errorf("connect to bus: %w", err)
		}

		busService = gateway.NewService(ctx, busClient, orch, r.logger)
		if err := busService.Start(); err != nil {
			busClient.Close()
			embedded.Shutdown()
			return fmt.Errorf("start bus gateway: %w", err)
		}

		nodeID := r.cfg.ServiceName + "-" + uuid.New().String()[:8]
		registry, err = capability.NewRegistry(ctx, nodeID, capability.LocalCapabilities(r.cfg), busClient, r.logger)
		if err != nil {
			r.logger.Warn("capability registry unavailable", slog.String("error", err.Error()))
		}
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.Bool("bus", r.cfg.Bus.Enabled),
		slog.String("stt_mode", r.cfg.STT.Mode),
		slog.String("translate_mode", r.cfg.Translate.Mode),
		slog.String("tts_mode", r.cfg.TTS.Mode))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	if registry != nil {
		registry.Close()
	}
	if busService != nil {
		busService.Close()
	}
	busClient.Close()
	embedded.Shutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// buildPipeline constructs the stage engines selected by config and wires
// them into an orchestrator.
func (r *Runtime) buildPipeline(glossaryStore *glossary.Store, recorder pipeline.Recorder) (*pipeline.Orchestrator, *translate.Stage, *tts.Stage, error) {
	recognizer, err := r.buildRecognizer()
	if err != nil {
		return nil, nil, nil, err
	}
	translatorEngine, err := r.buildTranslator()
	if err != nil {
		return nil, nil, nil, err
	}
	loader, err := r.buildTTSLoader()
	if err != nil {
		return nil, nil, nil, err
	}

	normalizer := media.NewNormalizer(r.cfg.Media, r.logger)
	translator := translate.NewStage(r.cfg.Translate, translatorEngine, glossary.NewProtector(glossaryStore), r.logger)
	synth := tts.NewStage(r.cfg.TTS, r.cfg.Artifacts.Dir, loader, r.logger)
	orch := pipeline.NewOrchestrator(normalizer, recognizer, translator, synth, recorder, r.logger)
	return orch, translator, synth, nil
}

func (r *Runtime) buildRecognizer() (stt.Recognizer, error) {
	switch r.cfg.STT.Mode {
	case "mock":
		return stt.NewMockRecognizer(), nil
	case "exec":
		return stt.NewExecRecognizer(r.cfg.STT)
	default:
		return nil, fmt.Errorf("unknown stt mode %q", r.cfg.STT.Mode)
	}
}

func (r *Runtime) buildTranslator() (translate.Translator, error) {
	switch r.cfg.Translate.Mode {
	case "mock":
		return translate.NewMockTranslator(), nil
	case "ollama":
		return translate.NewOllamaTranslator(r.cfg.Translate.Endpoint, r.cfg.Translate.Model), nil
	case "exec":
		return translate.NewExecTranslator(r.cfg.Translate.Command)
	default:
		return nil, fmt.Errorf("unknown translate mode %q", r.cfg.Translate.Mode)
	}
}

func (r *Runtime) buildTTSLoader() (tts.Loader, error) {
	switch r.cfg.TTS.Mode {
	case "mock":
		return tts.NewMockLoader(r.cfg.TTS.Languages, mockTTSSampleRate), nil
	case "exec":
		return tts.NewExecLoader(r.cfg.TTS.Command, r.cfg.TTS.AssetDir)
	default:
		return nil, fmt.Errorf("unknown tts mode %q", r.cfg.TTS.Mode)
	}
}

// serveMetrics starts the Prometheus endpoint on its own listener so
// scrapes never contend with gateway traffic.
func (r *Runtime) serveMetrics(handler http.Handler) {
	if handler == nil || r.cfg.Telemetry.PrometheusBind == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	r.metricsSrv = &http.Server{
		Addr:              r.cfg.Telemetry.PrometheusBind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
