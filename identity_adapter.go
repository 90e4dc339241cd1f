package management

import "github.com/google/uuid"

// userIdentity exposes the public fields of a User as claims material.
type userIdentity struct {
	id, email, firstName, lastName string
}

// NewIdentityFromUser snapshots user for token minting. A user that was not
// persisted yet has an empty ID, so its tokens carry no subject.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}

	identity := userIdentity{
		email:     user.Email,
		firstName: user.FirstName,
		lastName:  user.LastName,
	}
	if user.ID != uuid.Nil {
		identity.id = user.ID.String()
	}
	return identity
}

func (u userIdentity) ID() string        { return u.id }
func (u userIdentity) Email() string     { return u.email }
func (u userIdentity) FirstName() string { return u.firstName }
func (u userIdentity) LastName() string  { return u.lastName }
