// Package usersink forwards store diagnostics to a go-users activity sink so
// persistence failures land in the same audit trail as user activity.
package usersink

import (
	"context"
	"strings"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/ssadedin/go-statestore/pkg/activity"
)

// Hook adapts slice events to a go-users ActivitySink. Verb filtering is the
// emitter's job; see store.WithActivityVerbs.
//
// Records are keyed by "<origin>/<slice>" so entries from different origins
// sharing a sink stay distinct. Actor, user and tenant identifiers that are
// not UUIDs are kept in Data under actor_ref, user_ref and tenant_ref.
type Hook struct {
	Sink usertypes.ActivitySink
}

func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if event.Verb == "" || event.ObjectType == "" || event.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := event.Metadata
	if data == nil {
		data = map[string]any{}
	}
	record := usertypes.ActivityRecord{
		ActorID:    identity(event.ActorID, "actor_ref", data),
		UserID:     identity(event.UserID, "user_ref", data),
		TenantID:   identity(event.TenantID, "tenant_ref", data),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   objectID(event),
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
	return h.Sink.Log(ctx, record)
}

func objectID(event activity.Event) string {
	origin, _ := event.Metadata["origin"].(string)
	if origin = strings.TrimSpace(origin); origin == "" || event.ObjectType != activity.ObjectTypeSlice {
		return event.ObjectID
	}
	return origin + "/" + event.ObjectID
}

func identity(raw, field string, data map[string]any) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		data[field] = raw
		return uuid.Nil
	}
	return id
}
