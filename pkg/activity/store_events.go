package activity

import (
	"strings"
	"time"
)

const (
	VerbRehydrated      = "state.rehydrated"
	VerbRehydrateFailed = "state.rehydrate_failed"
	VerbPersistFailed   = "state.persist_failed"
	VerbSynced          = "state.synced"

	// ObjectTypeSlice marks events about one persisted top-level slice.
	ObjectTypeSlice = "state.slice"
)

// SliceEventInput describes the common fields of slice lifecycle events.
type SliceEventInput struct {
	StoreID    string
	Origin     string
	Key        string
	ActionType string
	Stage      string
	Source     string
	Version    int
	Err        error
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildRehydratedEvent reports a slice restored from durable storage.
func BuildRehydratedEvent(input SliceEventInput) Event {
	return buildSliceEvent(VerbRehydrated, input)
}

// BuildRehydrateFailedEvent reports a record that was unreadable at startup.
func BuildRehydrateFailedEvent(input SliceEventInput) Event {
	return buildSliceEvent(VerbRehydrateFailed, input)
}

// BuildPersistFailedEvent reports a slice that could not be written after a
// dispatch.
func BuildPersistFailedEvent(input SliceEventInput) Event {
	return buildSliceEvent(VerbPersistFailed, input)
}

// BuildSyncedEvent reports a slice replaced from an external change.
func BuildSyncedEvent(input SliceEventInput) Event {
	return buildSliceEvent(VerbSynced, input)
}

func buildSliceEvent(verb string, input SliceEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if input.StoreID != "" {
		set("store_id", input.StoreID)
	}
	if input.Origin != "" {
		set("origin", input.Origin)
	}
	if input.ActionType != "" {
		set("action_type", input.ActionType)
	}
	if input.Stage != "" {
		set("stage", input.Stage)
	}
	if input.Source != "" {
		set("source", input.Source)
	}
	if input.Version != 0 {
		set("version", input.Version)
	}
	if input.Err != nil {
		set("error", input.Err.Error())
	}

	objectID := strings.TrimSpace(input.Key)
	if objectID == "" {
		objectID = ObjectTypeSlice
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeSlice,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
