package management

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidTransition = "INVALID_USER_STATE_TRANSITION"
	TextCodeTerminalState     = "TERMINAL_USER_STATE"
)

// NewInvalidTransitionError is returned when a requested status change is
// not allowed.
func NewInvalidTransitionError(metadata map[string]any) *goerrors.Error {
	return goerrors.New("invalid user state transition", goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidTransition).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(metadata)
}

// NewTerminalStateError is returned when moving away from ARCHIVED.
func NewTerminalStateError(metadata map[string]any) *goerrors.Error {
	return goerrors.New("user state is terminal", goerrors.CategoryConflict).
		WithTextCode(TextCodeTerminalState).
		WithCode(goerrors.CodeConflict).
		WithMetadata(metadata)
}

func IsInvalidTransition(err error) bool { return hasTextCode(err, TextCodeInvalidTransition) }

func IsTerminalState(err error) bool { return hasTextCode(err, TextCodeTerminalState) }

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// UserStateMachine defines lifecycle operations for users.
type UserStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error)
	CurrentStatus(user *User) UserStatus
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*userStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithStatusUpdates applies extra record mutations in the same write as the
// status change.
func WithStatusUpdates(updates ...StatusUpdateOption) TransitionOption {
	return func(opts *transitionOptions) {
		opts.updates = append(opts.updates, updates...)
	}
}

// userTransitions lists the allowed moves. ARCHIVED has no outgoing edge.
var userTransitions = map[UserStatus][]UserStatus{
	UserStatusActive: {UserStatusArchived},
}

// NewUserStateMachine returns the state machine persisting through users.
func NewUserStateMachine(users Users, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		users:        users,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

type userStateMachine struct {
	users        Users
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

type transitionOptions struct {
	metadata TransitionMetadata
	updates  []StatusUpdateOption
}

// Transition moves user to target and persists it with the extra updates
// of WithStatusUpdates in the same write. Moving to the current status is
// a no-op.
func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	if err := sm.check(user, target); err != nil {
		return nil, err
	}

	from := user.Status
	if from == target {
		return user, nil
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	before := *user
	at := sm.now()

	updated, err := sm.users.UpdateStatus(ctx, user.ID, target,
		append([]StatusUpdateOption{WithStatusUpdatedAt(at)}, options.updates...)...)
	if err != nil {
		return nil, err
	}

	event := newUserEvent(ActivityEventUserStatusChanged, actor, &before, updated, at)
	event.FromStatus, event.ToStatus = from, target
	event.Metadata = transitionMetadata(options.metadata)
	sm.recordActivity(ctx, event)

	return updated, nil
}

func (sm *userStateMachine) check(user *User, target UserStatus) error {
	switch {
	case user == nil:
		return NewInvalidTransitionError(map[string]any{"target": target, "reason": "user is nil"})
	case target == "":
		return NewInvalidTransitionError(map[string]any{"reason": "target status is empty"})
	}

	user.EnsureStatus()
	from := user.Status

	switch {
	case from == target:
		return nil
	case from == UserStatusArchived:
		return NewTerminalStateError(map[string]any{"from": from, "to": target})
	case !canTransition(from, target):
		return NewInvalidTransitionError(map[string]any{"from": from, "to": target})
	}
	return nil
}

func (sm *userStateMachine) CurrentStatus(user *User) UserStatus {
	if user == nil {
		return ""
	}
	user.EnsureStatus()
	return user.Status
}

func canTransition(from, to UserStatus) bool {
	for _, allowed := range userTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (sm *userStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = SystemActor
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
