package management

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the bcrypt input limit, longer secrets are rejected
// instead of being silently truncated.
const maxPasswordBytes = 72

// HashPassword returns the bcrypt hash stored on finalized identities.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash reports ErrMismatchedHashAndPassword when password
// does not produce hash.
func ComparePasswordAndHash(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatchedHashAndPassword
	default:
		return err
	}
}

// isPasswordInputError separates rejected input from hashing failures.
func isPasswordInputError(err error) bool {
	return errors.Is(err, ErrNoEmptyString) || errors.Is(err, ErrPasswordTooLong)
}
