package activity

import (
	"strings"
	"time"
)

// Verbs emitted by persisted cells.
const (
	VerbHydrated      = "cell.hydrated"
	VerbDefaulted     = "cell.defaulted"
	VerbCorrupt       = "cell.corrupt"
	VerbRejected      = "cell.rejected"
	VerbPersisted     = "cell.persisted"
	VerbPersistFailed = "cell.persist_failed"
)

// ObjectTypeCell is the object type used for every cell event.
const ObjectTypeCell = "cell"

// CellEventInput describes the common fields for cell lifecycle events.
type CellEventInput struct {
	ActorID    string
	Key        string
	Origin     string
	Bytes      int
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildCellEvent constructs an activity event for the storage key in input.
func BuildCellEvent(verb string, input CellEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Origin != "" {
		metadata = ensureMetadata(metadata)
		metadata["origin"] = input.Origin
	}
	if input.Bytes > 0 {
		metadata = ensureMetadata(metadata)
		metadata["bytes"] = input.Bytes
	}
	if input.Err != nil {
		metadata = ensureMetadata(metadata)
		metadata["error"] = input.Err.Error()
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		ObjectType: ObjectTypeCell,
		ObjectID:   strings.TrimSpace(input.Key),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// IsFailure reports whether verb describes a degraded outcome.
func IsFailure(verb string) bool {
	switch verb {
	case VerbCorrupt, VerbRejected, VerbPersistFailed:
		return true
	default:
		return false
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
