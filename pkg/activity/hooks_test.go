package activity

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " cell.persisted ",
		ActorID:    " actor ",
		UserID:     " user ",
		TenantID:   " tenant ",
		ObjectType: " cell ",
		ObjectID:   " conversations ",
		Channel:    " chatstate ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "cell.persisted" || got.ObjectType != "cell" || got.ObjectID != "conversations" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.UserID != "user" || got.TenantID != "tenant" || got.Channel != "chatstate" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			if ctx != nil {
				ctxSeen = true
			}
			return nil
		}),
		capture,
		HookFunc(func(_ context.Context, _ Event) error { return boom1 }),
		nil,
		HookFunc(func(_ context.Context, _ Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, BuildCellEvent(VerbPersisted, CellEventInput{Key: "model"}))
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events))
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := BuildCellEvent(VerbHydrated, CellEventInput{Key: "api_key"})

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true, ActorID: "session-1"})
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(capture.Events))
	}
	if capture.Events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", capture.Events[0].Channel)
	}
	if capture.Events[0].ActorID != "session-1" {
		t.Fatalf("expected default actor applied, got %q", capture.Events[0].ActorID)
	}

	var nilEmitter *Emitter
	if nilEmitter.Enabled() || nilEmitter.Emit(context.Background(), event) != nil {
		t.Fatalf("nil emitter must be a no-op")
	}
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})

	event := BuildCellEvent(VerbPersisted, CellEventInput{
		Key:        "model",
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	event.Channel = "custom"
	if err := emitter.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if capture.Events[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", capture.Events[0].Channel)
	}
	if !capture.Events[0].OccurredAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected occurred_at preserved, got %v", capture.Events[0].OccurredAt)
	}
}

func TestBuildCellEventMetadata(t *testing.T) {
	event := BuildCellEvent(VerbPersistFailed, CellEventInput{
		Key:    " conversations ",
		Origin: "app",
		Bytes:  12,
		Err:    errors.New("storage: quota exceeded"),
	})

	if event.ObjectType != ObjectTypeCell || event.ObjectID != "conversations" {
		t.Fatalf("unexpected object: %s/%s", event.ObjectType, event.ObjectID)
	}
	if event.Metadata["origin"] != "app" || event.Metadata["bytes"] != 12 {
		t.Fatalf("unexpected metadata: %+v", event.Metadata)
	}
	if event.Metadata["error"] != "storage: quota exceeded" {
		t.Fatalf("expected error message in metadata, got %v", event.Metadata["error"])
	}
	if !IsFailure(event.Verb) || IsFailure(VerbPersisted) {
		t.Fatalf("unexpected IsFailure classification")
	}
}

func TestSlogHookLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	hook := SlogHook{Logger: logger}

	if err := hook.Notify(context.Background(), BuildCellEvent(VerbPersisted, CellEventInput{Key: "model"})); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected debug event filtered, got %q", buf.String())
	}

	if err := hook.Notify(context.Background(), BuildCellEvent(VerbCorrupt, CellEventInput{Key: "model", Err: errors.New("bad")})); err != nil {
		t.Fatalf("notify: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "object_id=model") || !strings.Contains(out, "error=bad") {
		t.Fatalf("unexpected log line: %q", out)
	}
}

func TestHooksNotifyRecoversPanics(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{
		HookFunc(func(context.Context, Event) error { panic("sink exploded") }),
		capture,
	}

	err := hooks.Notify(context.Background(), BuildCellEvent(VerbPersisted, CellEventInput{Key: "model"}))
	if err == nil || !strings.Contains(err.Error(), "sink exploded") {
		t.Fatalf("expected panic reported as error, got %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("later hooks must still run, got %d events", len(capture.Events))
	}
}

func TestOnlyAndFailuresOnly(t *testing.T) {
	persisted := &CaptureHook{}
	failures := &CaptureHook{}
	hooks := Hooks{Only(persisted, VerbPersisted), FailuresOnly(failures)}

	for _, verb := range []string{VerbHydrated, VerbPersisted, VerbCorrupt, VerbPersistFailed} {
		if err := hooks.Notify(context.Background(), BuildCellEvent(verb, CellEventInput{Key: "model"})); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}

	if got := persisted.Verbs(); len(got) != 1 || got[0] != VerbPersisted {
		t.Fatalf("unexpected filtered verbs %v", got)
	}
	if got := failures.Verbs(); len(got) != 2 || got[0] != VerbCorrupt || got[1] != VerbPersistFailed {
		t.Fatalf("unexpected failure verbs %v", got)
	}
}

func TestEmitterClockAndNilHooks(t *testing.T) {
	if NewEmitter(Hooks{nil}, Config{Enabled: true}) != nil {
		t.Fatalf("expected nil emitter when no usable hooks remain")
	}

	fixed := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Clock: func() time.Time { return fixed }})
	if err := emitter.Emit(context.Background(), BuildCellEvent(VerbHydrated, CellEventInput{Key: "model"})); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !capture.Events[0].OccurredAt.Equal(fixed) {
		t.Fatalf("expected clock timestamp, got %v", capture.Events[0].OccurredAt)
	}
}
