package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/voxlate/voxlate/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeralIsNoOp(t *testing.T) {
	cfg := config.HistoryConfig{RetentionMode: "ephemeral"}
	hs, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = hs.Close() })

	if err := hs.AppendRequest(context.Background(), Request{ID: "r1", Mode: "text"}); err != nil {
		t.Fatalf("append request: %v", err)
	}
	events, err := hs.ListRequestEvents(context.Background(), "r1", 10)
	if err != nil || events != nil {
		t.Fatalf("ephemeral store must record nothing, got %v / %v", events, err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	cfg := config.HistoryConfig{Path: filepath.Join(t.TempDir(), "history.db"), RetentionMode: "persistent"}
	hs, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = hs.Close() })

	requestID := "req-123"
	if err := hs.AppendRequest(context.Background(), Request{ID: requestID, Mode: "audio", SourceLang: "en", TargetLang: "de"}); err != nil {
		t.Fatalf("append request: %v", err)
	}
	if err := hs.AppendStageEvent(context.Background(), StageEvent{RequestID: requestID, Stage: "transcribe", Status: "completed"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := hs.AppendStageEvent(context.Background(), StageEvent{RequestID: requestID, Stage: "translate", Status: "failed", Detail: "model crashed"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	events, err := hs.ListRequestEvents(context.Background(), requestID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Stage != "transcribe" || events[1].Stage != "translate" {
		t.Fatalf("unexpected order: %+v", events)
	}
	if events[1].Detail != "model crashed" {
		t.Fatalf("unexpected detail: %q", events[1].Detail)
	}
}

func TestPruneByDaysAndMaxRequests(t *testing.T) {
	cfg := config.HistoryConfig{
		Path:          filepath.Join(t.TempDir(), "history.db"),
		RetentionMode: "persistent",
		RetentionDays: 1,
		MaxRequests:   1,
	}
	hs, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = hs.Close() })

	hs.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := hs.AppendRequest(context.Background(), Request{ID: "old-request", Mode: "text"}); err != nil {
		t.Fatalf("append request: %v", err)
	}
	if err := hs.AppendStageEvent(context.Background(), StageEvent{RequestID: "old-request", Stage: "translate", Status: "completed"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	hs.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := hs.AppendRequest(context.Background(), Request{ID: "new-request", Mode: "text"}); err != nil {
		t.Fatalf("append request: %v", err)
	}
	if err := hs.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := hs.ListRequestEvents(context.Background(), "old-request", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old events pruned, got %d", len(events))
	}
}
