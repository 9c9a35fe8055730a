package activity

import (
	"context"
	"strings"
	"time"
)

const DefaultChannel = "chatstate"

// Config sets the defaults an Emitter stamps on outgoing events.
type Config struct {
	Enabled bool
	Channel string
	// ActorID identifies the registry session emitting events.
	ActorID string
	// Clock stamps OccurredAt; time.Now when nil.
	Clock func() time.Time
}

// Emitter stamps defaults onto events and hands them to hooks. A nil Emitter
// drops every event.
type Emitter struct {
	hooks   Hooks
	channel string
	actorID string
	clock   func() time.Time
}

// NewEmitter returns an emitter, or nil when cfg is disabled or no usable
// hooks remain.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	var usable Hooks
	for _, hook := range hooks {
		if hook != nil {
			usable = append(usable, hook)
		}
	}
	if !cfg.Enabled || len(usable) == 0 {
		return nil
	}

	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Emitter{
		hooks:   usable,
		channel: channel,
		actorID: strings.TrimSpace(cfg.ActorID),
		clock:   clock,
	}
}

func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit fills in channel, actor and timestamp when the event leaves them
// empty, then notifies every hook.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.actorID
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.clock()
	}
	return e.hooks.Notify(ctx, event)
}
