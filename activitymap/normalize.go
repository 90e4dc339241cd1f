package activitymap

import (
	"strings"
	"time"

	management "github.com/robertoporfiro/gravitee-management-rest-api"
)

const (
	MetadataKeyActorType  = "actor_type"
	MetadataKeyFromStatus = "from_status"
	MetadataKeyToStatus   = "to_status"
)

const (
	ObjectTypeUser       = "USER"
	ObjectTypeInvitation = "INVITATION"
	ObjectTypeMembership = "MEMBERSHIP"
)

const (
	defaultReferenceType = "ENVIRONMENT"
	defaultReferenceID   = "DEFAULT"
	defaultActorID       = "system"
)

// Record is the storage shape of an audit entry. Before and After hold
// password free snapshots of the identity.
type Record struct {
	ReferenceType string                   `json:"reference_type"`
	ReferenceID   string                   `json:"reference_id"`
	Actor         string                   `json:"actor"`
	Event         string                   `json:"event"`
	ObjectType    string                   `json:"object_type"`
	ObjectID      string                   `json:"object_id,omitempty"`
	Properties    map[string]any           `json:"properties,omitempty"`
	Before        *management.UserSnapshot `json:"before,omitempty"`
	After         *management.UserSnapshot `json:"after,omitempty"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

type Option func(*options)

type options struct {
	referenceType string
	referenceID   string
	actorFallback string
	now           func() time.Time
}

// WithReference scopes records to a reference, ENVIRONMENT/DEFAULT otherwise.
func WithReference(referenceType, referenceID string) Option {
	return func(o *options) {
		if v := strings.TrimSpace(referenceType); v != "" {
			o.referenceType = v
		}
		if v := strings.TrimSpace(referenceID); v != "" {
			o.referenceID = v
		}
	}
}

// WithActorFallback sets the actor used when the event has neither actor
// nor user id.
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Normalize converts an activity event into an audit record.
func Normalize(event management.ActivityEvent, opts ...Option) Record {
	o := options{
		referenceType: defaultReferenceType,
		referenceID:   defaultReferenceID,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	objectType, objectID := resolveObject(event)

	return Record{
		ReferenceType: o.referenceType,
		ReferenceID:   o.referenceID,
		Actor: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			o.actorFallback,
		),
		Event:      string(event.EventType),
		ObjectType: objectType,
		ObjectID:   objectID,
		Properties: properties(event),
		Before:     event.Before,
		After:      event.After,
		OccurredAt: occurredAt.UTC(),
	}
}

func resolveObject(event management.ActivityEvent) (string, string) {
	switch event.EventType {
	case management.ActivityEventInvitationCreated:
		return ObjectTypeInvitation, stringValue(event.Metadata, "invitation_id")
	case management.ActivityEventMembershipGranted:
		return ObjectTypeMembership, strings.TrimSpace(event.UserID)
	default:
		return ObjectTypeUser, strings.TrimSpace(event.UserID)
	}
}

func properties(event management.ActivityEvent) map[string]any {
	var props map[string]any
	set := func(key string, value any) {
		if props == nil {
			props = map[string]any{}
		}
		props[key] = value
	}

	for key, value := range event.Metadata {
		set(key, value)
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, exists := props[MetadataKeyActorType]; !exists {
			set(MetadataKeyActorType, actorType)
		}
	}
	if event.FromStatus != "" {
		set(MetadataKeyFromStatus, string(event.FromStatus))
	}
	if event.ToStatus != "" {
		set(MetadataKeyToStatus, string(event.ToStatus))
	}

	return props
}

func stringValue(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
