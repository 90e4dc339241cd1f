package management

import (
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeInvalidToken              = "INVALID_TOKEN"
	TextCodeRegistrationDisabled      = "REGISTRATION_DISABLED"
	TextCodeInvitationCanceled        = "INVITATION_CANCELED"
	TextCodeIdentityNotFound          = "IDENTITY_NOT_FOUND"
	TextCodeIdentityAlreadyFinalized  = "IDENTITY_ALREADY_FINALIZED"
	TextCodeIdentityAlreadyExists     = "IDENTITY_ALREADY_EXISTS"
	TextCodeExternallyManagedIdentity = "EXTERNALLY_MANAGED_IDENTITY"
	TextCodeDefaultRoleNotFound       = "DEFAULT_ROLE_NOT_FOUND"
	TextCodeConfiguration             = "CONFIGURATION_ERROR"
	TextCodeTechnical                 = "TECHNICAL_ERROR"
	TextCodeConcurrentModification    = "CONCURRENT_MODIFICATION"
)

// ErrInvalidToken is returned for every token that fails verification:
// bad signature, malformed payload or expired. The cause is never exposed.
var ErrInvalidToken = goerrors.New("invalid or expired action token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrRegistrationDisabled is returned when a registration is attempted while
// the registration gate is closed.
var ErrRegistrationDisabled = goerrors.New("user registration is disabled", goerrors.CategoryAuthz).
	WithTextCode(TextCodeRegistrationDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrConcurrentModification is returned by versioned updates when the stored
// record changed since it was read.
var ErrConcurrentModification = goerrors.New("record was modified concurrently", goerrors.CategoryConflict).
	WithTextCode(TextCodeConcurrentModification).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrPasswordTooLong is returned for passwords over the bcrypt input limit
var ErrPasswordTooLong = errors.New("password must not exceed 72 bytes")

// ErrMismatchedHashAndPassword password does not match the stored hash
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

// NewInvitationCanceledError is returned when a GROUP_INVITATION token is
// redeemed after every matching invitation was withdrawn.
func NewInvitationCanceledError(email string) *goerrors.Error {
	return goerrors.New("invitation has been canceled", goerrors.CategoryConflict).
		WithTextCode(TextCodeInvitationCanceled).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"email": email})
}

func NewIdentityNotFoundError(id string) *goerrors.Error {
	return goerrors.New("identity not found", goerrors.CategoryNotFound).
		WithTextCode(TextCodeIdentityNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"id": id})
}

// NewIdentityAlreadyFinalizedError is returned when a token is redeemed for
// an identity that already holds a password.
func NewIdentityAlreadyFinalizedError(id string) *goerrors.Error {
	return goerrors.New("identity has already been finalized", goerrors.CategoryConflict).
		WithTextCode(TextCodeIdentityAlreadyFinalized).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"id": id})
}

func NewIdentityAlreadyExistsError(source, sourceID string) *goerrors.Error {
	return goerrors.New("identity already exists", goerrors.CategoryConflict).
		WithTextCode(TextCodeIdentityAlreadyExists).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{
			"source":    source,
			"source_id": sourceID,
		})
}

// NewExternallyManagedIdentityError is returned when a password operation
// targets an identity whose credentials live in an external provider.
func NewExternallyManagedIdentityError(id, source string) *goerrors.Error {
	return goerrors.New("identity is not internally managed", goerrors.CategoryBadInput).
		WithTextCode(TextCodeExternallyManagedIdentity).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"id":     id,
			"source": source,
		})
}

func NewDefaultRoleNotFoundError(scopes ...RoleScope) *goerrors.Error {
	return goerrors.New("default role not found", goerrors.CategoryInternal).
		WithTextCode(TextCodeDefaultRoleNotFound).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"scopes": scopes})
}

// NewConfigurationError flags a deployment problem (missing secret, bad
// portal url). It is never retried.
func NewConfigurationError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithTextCode(TextCodeConfiguration).
		WithCode(goerrors.CodeInternal)
}

// WrapTechnicalError wraps storage or indexing failures. Errors that are
// already typed pass through untouched.
func WrapTechnicalError(err error, message string, metadata ...map[string]any) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr
	}

	wrapped := goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeTechnical).
		WithCode(goerrors.CodeInternal)

	for _, m := range metadata {
		if len(m) > 0 {
			wrapped = wrapped.WithMetadata(m)
		}
	}

	return wrapped
}

func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken) || hasTextCode(err, TextCodeInvalidToken)
}

func IsRegistrationDisabled(err error) bool {
	return errors.Is(err, ErrRegistrationDisabled) || hasTextCode(err, TextCodeRegistrationDisabled)
}

func IsInvitationCanceled(err error) bool { return hasTextCode(err, TextCodeInvitationCanceled) }

func IsIdentityNotFound(err error) bool { return hasTextCode(err, TextCodeIdentityNotFound) }

func IsIdentityAlreadyFinalized(err error) bool {
	return hasTextCode(err, TextCodeIdentityAlreadyFinalized)
}

func IsIdentityAlreadyExists(err error) bool { return hasTextCode(err, TextCodeIdentityAlreadyExists) }

func IsExternallyManagedIdentity(err error) bool {
	return hasTextCode(err, TextCodeExternallyManagedIdentity)
}

func IsDefaultRoleNotFound(err error) bool { return hasTextCode(err, TextCodeDefaultRoleNotFound) }

func IsConfigurationError(err error) bool { return hasTextCode(err, TextCodeConfiguration) }

func IsTechnicalError(err error) bool { return hasTextCode(err, TextCodeTechnical) }

func IsConcurrentModification(err error) bool {
	return hasTextCode(err, TextCodeConcurrentModification)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

func isRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}
