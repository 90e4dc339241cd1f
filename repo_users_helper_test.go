package management

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubStateMachine struct {
	lastTarget UserStatus
	err        error
}

func (s *stubStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	s.lastTarget = target
	return user, s.err
}

func (s *stubStateMachine) CurrentStatus(user *User) UserStatus {
	if user == nil {
		return ""
	}
	return user.Status
}

func TestUsersArchiveUsesStateMachine(t *testing.T) {
	t.Parallel()

	stub := &stubStateMachine{}
	repo := &users{stateMachine: stub}

	u := &User{Status: UserStatusActive}

	_, err := repo.Archive(context.Background(), ActorRef{ID: "admin"}, u)
	assert.NoError(t, err)
	assert.Equal(t, UserStatusArchived, stub.lastTarget)

	stub.err = errors.New("boom")
	_, err = repo.Archive(context.Background(), ActorRef{ID: "admin"}, u)
	assert.Error(t, err)
}

func TestStatusUpdateOptions(t *testing.T) {
	u := &User{
		SourceID:  "a@b.com",
		Email:     "a@b.com",
		FirstName: "Ada",
		LastName:  "Byron",
		Picture:   "https://img/ada.png",
	}

	WithSourceID("deleted-a@b.com")(u)
	WithAnonymizedProfile()(u)

	assert.Equal(t, "deleted-a@b.com", u.SourceID)
	assert.Equal(t, "Unknown", u.FirstName)
	assert.Empty(t, u.LastName)
	assert.Empty(t, u.Email)
	assert.Empty(t, u.Picture)
}

func TestPrepareUserDefaults(t *testing.T) {
	u := &User{}
	prepareUserDefaults(u)

	assert.Equal(t, UserStatusActive, u.Status)
	assert.NotEqual(t, [16]byte{}, [16]byte(u.ID))
	assert.Equal(t, int64(1), u.Version)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)

	assert.NotPanics(t, func() { prepareUserDefaults(nil) })
}
