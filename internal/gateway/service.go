package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/voxlate/voxlate/internal/bus"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/internal/protocol"
)

const requestTimeout = 60 * time.Second

// Service exposes the pipeline over NATS request/reply so other nodes on
// the bus can use this node's models.
type Service struct {
	bus    *bus.Client
	orch   *pipeline.Orchestrator
	subs   []*nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  bool
	logger *slog.Logger
}

func NewService(parent context.Context, busClient *bus.Client, orch *pipeline.Orchestrator, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:    busClient,
		orch:   orch,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(slog.String("component", "bus-gateway")),
	}
}

func (s *Service) Start() error {
	subjects := map[string]nats.MsgHandler{
		protocol.SubjectPipelineRun:   s.handlePipeline,
		protocol.SubjectTextTranslate: s.handleText,
		protocol.SubjectTTSSpeak:      s.handleSpeak,
	}
	for subject, handler := range subjects {
		sub, err := s.bus.Conn().Subscribe(subject, handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.ready
}

func (s *Service) handlePipeline(msg *nats.Msg) {
	var req protocol.PipelineRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode pipeline request", slogError(err))
		s.respond(msg, protocol.PipelineResult{Error: "invalid request: " + err.Error()})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
		defer cancel()

		result, err := s.orch.Run(ctx, pipeline.Request{
			ID:      req.RequestID,
			Mode:    pipeline.ModeAudio,
			Audio:   req.AudioWAV,
			SrcLang: req.SourceLang,
			TgtLang: req.TargetLang,
		})
		s.respond(msg, pipelineReply(result, err))
	}()
}

func (s *Service) handleText(msg *nats.Msg) {
	var req protocol.TextRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode text request", slogError(err))
		s.respond(msg, protocol.PipelineResult{Error: "invalid request: " + err.Error()})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
		defer cancel()

		result, err := s.orch.Run(ctx, pipeline.Request{
			ID:      req.RequestID,
			Mode:    pipeline.ModeText,
			Text:    req.Text,
			SrcLang: req.SourceLang,
			TgtLang: req.TargetLang,
		})
		s.respond(msg, pipelineReply(result, err))
	}()
}

func (s *Service) handleSpeak(msg *nats.Msg) {
	var req protocol.SpeakRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode speak request", slogError(err))
		s.respond(msg, protocol.SpeakResult{Error: "invalid request: " + err.Error()})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
		defer cancel()

		path, err := s.orch.Speak(ctx, req.Text, req.Language)
		if err != nil {
			s.respond(msg, protocol.SpeakResult{Error: err.Error(), ErrorStage: stageOf(err)})
			return
		}
		s.respond(msg, protocol.SpeakResult{AudioPath: path})
	}()
}

func (s *Service) respond(msg *nats.Msg, reply any) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to encode reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to publish reply", slogError(err))
	}
}

func pipelineReply(result pipeline.Result, err error) protocol.PipelineResult {
	reply := protocol.PipelineResult{
		RequestID:   result.RequestID,
		Transcript:  result.Transcript,
		Translation: result.Translation,
	}
	if err != nil {
		reply.Error = err.Error()
		reply.ErrorStage = stageOf(err)
	}
	return reply
}

func stageOf(err error) string {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
