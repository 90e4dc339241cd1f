package management

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserCreated            ActivityEventType = "user.created"
	ActivityEventUserUpdated            ActivityEventType = "user.updated"
	ActivityEventUserConnected          ActivityEventType = "user.connected"
	ActivityEventUserFirstLogin         ActivityEventType = "user.first_login"
	ActivityEventUserDeleted            ActivityEventType = "user.deleted"
	ActivityEventUserStatusChanged      ActivityEventType = "user.status.changed"
	ActivityEventPasswordResetRequested ActivityEventType = "user.password.reset.requested"
	ActivityEventPasswordResetCompleted ActivityEventType = "user.password.reset.completed"
	ActivityEventMembershipGranted      ActivityEventType = "membership.granted"
	ActivityEventInvitationCreated      ActivityEventType = "invitation.created"
)

// ActorRef identifies who triggered an event
type ActorRef struct {
	ID   string
	Type string
}

// SystemActor is used when no caller identity is known
var SystemActor = ActorRef{ID: "system", Type: "system"}

// UserSnapshot is the audit view of a user. It never holds the password.
type UserSnapshot struct {
	ID               uuid.UUID  `json:"id"`
	Source           string     `json:"source"`
	SourceID         string     `json:"source_id"`
	Email            string     `json:"email,omitempty"`
	FirstName        string     `json:"first_name,omitempty"`
	LastName         string     `json:"last_name,omitempty"`
	Picture          string     `json:"picture,omitempty"`
	Status           UserStatus `json:"status"`
	HasPassword      bool       `json:"has_password"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastConnectionAt *time.Time `json:"last_connection_at,omitempty"`
}

// SnapshotUser copies the auditable fields of user. Nil in, nil out.
func SnapshotUser(user *User) *UserSnapshot {
	if user == nil {
		return nil
	}

	snapshot := &UserSnapshot{}
	if err := copier.Copy(snapshot, user); err != nil {
		snapshot.ID = user.ID
		snapshot.Email = user.Email
		snapshot.Status = user.Status
	}
	snapshot.HasPassword = user.HasPassword()
	return snapshot
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromStatus UserStatus
	ToStatus   UserStatus
	Before     *UserSnapshot
	After      *UserSnapshot
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// newUserEvent fills the identifiers and snapshots shared by user events.
func newUserEvent(eventType ActivityEventType, actor ActorRef, before, after *User, at time.Time) ActivityEvent {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		Before:     SnapshotUser(before),
		After:      SnapshotUser(after),
		OccurredAt: at,
	}
	switch {
	case after != nil:
		event.UserID = after.ID.String()
	case before != nil:
		event.UserID = before.ID.String()
	}
	return event
}
