package activity

import (
	"context"
	"log/slog"
	"sort"
)

// SlogHook writes events to a structured logger. Degraded outcomes log at
// Warn, everything else at Debug.
type SlogHook struct {
	Logger *slog.Logger
}

// Notify implements ActivityHook.
func (h SlogHook) Notify(ctx context.Context, event Event) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	level := slog.LevelDebug
	if IsFailure(event.Verb) {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("verb", event.Verb),
		slog.String("object_type", event.ObjectType),
		slog.String("object_id", event.ObjectID),
	}
	if event.Channel != "" {
		attrs = append(attrs, slog.String("channel", event.Channel))
	}
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	keys := make([]string, 0, len(event.Metadata))
	for key := range event.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		attrs = append(attrs, slog.Any(key, event.Metadata[key]))
	}

	logger.LogAttrs(ctx, level, "chatstate activity", attrs...)
	return nil
}
