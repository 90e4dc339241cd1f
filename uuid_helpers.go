package management

import (
	"strings"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// ParseIdentityID parses an identity id, surrounding spaces are ignored.
// Anything that is not a UUID is reported as a missing identity.
func ParseIdentityID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil || parsed == uuid.Nil {
		return uuid.Nil, NewIdentityNotFoundError(id)
	}
	return parsed, nil
}

// assignIdentityID derives a stable id from the email when hashids are
// enabled. A random id is assigned on insert otherwise.
func assignIdentityID(config Config, user *User) {
	if user == nil || user.ID != uuid.Nil || config == nil || !config.GetUseHashid() {
		return
	}

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" {
		return
	}

	if id, err := hashid.NewUUID(email); err == nil {
		user.ID = id
	}
}
