package management

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// NewExternalUser describes an identity to pre-create. Source defaults to
// the internal source and SourceID to the email.
type NewExternalUser struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Picture   string `json:"picture,omitempty"`
	Source    string `json:"source,omitempty"`
	SourceID  string `json:"sourceId,omitempty"`
}

// Validate will validate the payload
func (r NewExternalUser) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 320), is.Email),
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Picture, validation.Length(0, 2048)),
	)
}

func (r NewExternalUser) normalize() NewExternalUser {
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Source = strings.TrimSpace(r.Source)
	r.SourceID = strings.TrimSpace(r.SourceID)
	if r.Source == "" {
		r.Source = SourceInternal
	}
	if r.SourceID == "" {
		r.SourceID = r.Email
	}
	return r
}

// UpdateUser is a partial update, nil fields are left untouched.
type UpdateUser struct {
	Email     *string     `json:"email,omitempty"`
	FirstName *string     `json:"firstname,omitempty"`
	LastName  *string     `json:"lastname,omitempty"`
	Picture   *string     `json:"picture,omitempty"`
	Status    *UserStatus `json:"status,omitempty"`
}

// Validate will validate the payload
func (r UpdateUser) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Status, validation.NilOrNotEmpty, validation.In(UserStatusActive, UserStatusArchived)),
	)
}

// apply copies the set fields onto user and reports whether anything changed.
func (r UpdateUser) apply(user *User) bool {
	changed := false
	set := func(dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if *dst != v {
			*dst = v
			changed = true
		}
	}

	set(&user.Email, r.Email)
	set(&user.FirstName, r.FirstName)
	set(&user.LastName, r.LastName)
	set(&user.Picture, r.Picture)

	return changed
}

// InvitationPayload describes a group invitation to send.
type InvitationPayload struct {
	Email           string                  `json:"email"`
	ReferenceType   MembershipReferenceType `json:"referenceType"`
	ReferenceID     string                  `json:"referenceId"`
	APIRole         string                  `json:"apiRole,omitempty"`
	ApplicationRole string                  `json:"applicationRole,omitempty"`
}

// Validate will validate the payload
func (r InvitationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.ReferenceType, validation.Required,
			validation.In(ReferenceAPI, ReferenceApplication, ReferenceGroup)),
		validation.Field(&r.ReferenceID, validation.Required),
		validation.Field(&r.APIRole, validation.By(func(any) error {
			if strings.TrimSpace(r.APIRole) == "" && strings.TrimSpace(r.ApplicationRole) == "" {
				return errors.New("an api or application role is required")
			}
			return nil
		})),
	)
}

func newValidationError(err error, message string) error {
	if err == nil {
		return nil
	}

	validationErr := goerrors.New(message, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode("VALIDATION_ERROR")

	if fields, ok := err.(validation.Errors); ok {
		details := make(map[string]any, len(fields))
		for field, fieldErr := range fields {
			details[field] = fieldErr.Error()
		}
		validationErr = validationErr.WithMetadata(map[string]any{"fields": details})
	} else {
		validationErr = validationErr.WithMetadata(map[string]any{"reason": err.Error()})
	}

	return validationErr
}
