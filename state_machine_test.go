package management_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	management "github.com/robertoporfiro/gravitee-management-rest-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUserStateMachineArchiveSetsTimestamp(t *testing.T) {
	repo := &MockUsers{}
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	user := &management.User{
		ID:       uuid.New(),
		SourceID: "a@b.com",
		Status:   management.UserStatusActive,
	}

	repo.On("UpdateStatus", mock.Anything, user.ID, management.UserStatusArchived, mock.Anything).
		Return(&management.User{ID: user.ID, SourceID: "a@b.com", Status: management.UserStatusArchived}, nil).
		Once()

	sm := management.NewUserStateMachine(repo, management.WithStateMachineClock(func() time.Time { return now }))

	result, err := sm.Transition(context.Background(), management.ActorRef{ID: "admin"}, user,
		management.UserStatusArchived,
		management.WithStatusUpdates(management.WithSourceID("deleted-a@b.com")),
	)
	require.NoError(t, err)
	assert.True(t, result.IsArchived())
	assert.Equal(t, now, result.UpdatedAt)
	assert.Equal(t, "deleted-a@b.com", result.SourceID)
	repo.AssertExpectations(t)
}

func TestUserStateMachineArchivedIsTerminal(t *testing.T) {
	repo := &MockUsers{}
	user := &management.User{ID: uuid.New(), Status: management.UserStatusArchived}

	sm := management.NewUserStateMachine(repo)

	_, err := sm.Transition(context.Background(), management.ActorRef{}, user, management.UserStatusActive)
	require.Error(t, err)
	assert.True(t, management.IsTerminalState(err))
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserStateMachineRejectsInvalidInput(t *testing.T) {
	repo := &MockUsers{}
	sm := management.NewUserStateMachine(repo)

	_, err := sm.Transition(context.Background(), management.ActorRef{}, nil, management.UserStatusArchived)
	assert.True(t, management.IsInvalidTransition(err))

	user := &management.User{ID: uuid.New(), Status: management.UserStatusActive}
	_, err = sm.Transition(context.Background(), management.ActorRef{}, user, "")
	assert.True(t, management.IsInvalidTransition(err))

	_, err = sm.Transition(context.Background(), management.ActorRef{}, user, management.UserStatus("SUSPENDED"))
	assert.True(t, management.IsInvalidTransition(err))

	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserStateMachineSameStatusIsNoop(t *testing.T) {
	repo := &MockUsers{}
	user := &management.User{ID: uuid.New()}

	sm := management.NewUserStateMachine(repo)

	result, err := sm.Transition(context.Background(), management.ActorRef{}, user, management.UserStatusActive)
	require.NoError(t, err)
	assert.Same(t, user, result)
	assert.Equal(t, management.UserStatusActive, sm.CurrentStatus(user))
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserStateMachineRecordsActivity(t *testing.T) {
	repo := &MockUsers{}
	sink := &MockActivitySink{}
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	user := &management.User{ID: uuid.New(), Status: management.UserStatusActive}

	repo.On("UpdateStatus", mock.Anything, user.ID, management.UserStatusArchived, mock.Anything).
		Return(&management.User{ID: user.ID, Status: management.UserStatusArchived}, nil).
		Once()

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt management.ActivityEvent) bool {
		return evt.EventType == management.ActivityEventUserStatusChanged &&
			evt.Actor == management.SystemActor &&
			evt.UserID == user.ID.String() &&
			evt.FromStatus == management.UserStatusActive &&
			evt.ToStatus == management.UserStatusArchived &&
			evt.Metadata["reason"] == "cleanup" &&
			evt.OccurredAt.Equal(now)
	})).Return(errors.New("sink offline")).Once()

	sm := management.NewUserStateMachine(repo,
		management.WithStateMachineClock(func() time.Time { return now }),
		management.WithStateMachineActivitySink(sink),
	)

	_, err := sm.Transition(context.Background(), management.ActorRef{}, user,
		management.UserStatusArchived, management.WithTransitionReason("cleanup"))
	require.NoError(t, err)

	repo.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestUserStateMachinePropagatesRepositoryError(t *testing.T) {
	repo := &MockUsers{}
	user := &management.User{ID: uuid.New(), Status: management.UserStatusActive}
	boom := errors.New("db down")

	repo.On("UpdateStatus", mock.Anything, user.ID, management.UserStatusArchived, mock.Anything).
		Return(nil, boom).Once()

	sm := management.NewUserStateMachine(repo)

	_, err := sm.Transition(context.Background(), management.ActorRef{}, user, management.UserStatusArchived)
	require.ErrorIs(t, err, boom)
}
