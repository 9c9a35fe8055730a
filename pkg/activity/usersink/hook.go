// Package usersink records cell activity in a go-users ActivitySink, so
// degraded persistence shows up next to the rest of a user's audit trail.
package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-chatstate/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// Failures restricts forwarding to corrupt, rejected and failed writes.
	Failures bool
}

// Notify converts event into an ActivityRecord. ActivityRecord has no origin
// field, so the origin is folded into ObjectID ("origin/key"). Actor ids that
// are not UUIDs are kept under Data["session_id"].
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if event.Verb == "" || event.ObjectID == "" {
		return nil
	}
	if h.Failures && !activity.IsFailure(event.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, toRecord(event))
}

func toRecord(event activity.Event) usertypes.ActivityRecord {
	data := map[string]any{}
	for key, value := range event.Metadata {
		data[key] = value
	}

	objectID := event.ObjectID
	if origin, _ := data["origin"].(string); origin != "" {
		objectID = origin + "/" + objectID
	}

	actor, ok := parseUUID(event.ActorID)
	if !ok && event.ActorID != "" {
		data["session_id"] = event.ActorID
	}
	user, _ := parseUUID(event.UserID)
	tenant, _ := parseUUID(event.TenantID)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	if len(data) == 0 {
		data = nil
	}

	return usertypes.ActivityRecord{
		ActorID:    actor,
		UserID:     user,
		TenantID:   tenant,
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   objectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: occurredAt,
	}
}

func parseUUID(input string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
