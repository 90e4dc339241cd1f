package management

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SourceInternal is the identity source used for users whose credentials
// are managed by this service.
const SourceInternal = "gravitee"

// UserStatus is the lifecycle status of a user
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusArchived UserStatus = "ARCHIVED"
)

// ParseUserStatus returns the matching status, case insensitive.
func ParseUserStatus(s string) (UserStatus, bool) {
	switch UserStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case UserStatusActive:
		return UserStatusActive, true
	case UserStatusArchived:
		return UserStatusArchived, true
	default:
		return "", false
	}
}

// User is the identity model
type User struct {
	bun.BaseModel    `bun:"table:users,alias:usr"`
	ID               uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Source           string     `bun:"source,notnull" json:"source"`
	SourceID         string     `bun:"source_id,notnull" json:"source_id"`
	Email            string     `bun:"email" json:"email,omitempty"`
	FirstName        string     `bun:"first_name" json:"first_name,omitempty"`
	LastName         string     `bun:"last_name" json:"last_name,omitempty"`
	Picture          string     `bun:"picture" json:"picture,omitempty"`
	Password         string     `bun:"password" json:"-"`
	Status           UserStatus `bun:"status,notnull" json:"status"`
	Version          int64      `bun:"version,notnull" json:"version"`
	CreatedAt        time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	LastConnectionAt *time.Time `bun:"last_connection_at,nullzero" json:"last_connection_at,omitempty"`
	PasswordResetAt  *time.Time `bun:"password_reset_at,nullzero" json:"password_reset_at,omitempty"`
}

// EnsureStatus defaults an empty status to active.
func (u *User) EnsureStatus() {
	if u == nil {
		return
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

func (u *User) IsArchived() bool {
	return u != nil && u.Status == UserStatusArchived
}

// HasPassword reports whether the identity has been finalized.
func (u *User) HasPassword() bool {
	return u != nil && strings.TrimSpace(u.Password) != ""
}

// ResetAfter reports whether a password reset was requested after issued.
// Token timestamps have second precision.
func (u *User) ResetAfter(issued time.Time) bool {
	if u == nil || u.PasswordResetAt == nil {
		return false
	}
	return issued.Before(u.PasswordResetAt.Truncate(time.Second))
}

// IsInternal reports whether credentials are managed by this service.
func (u *User) IsInternal() bool {
	return u != nil && u.Source == SourceInternal
}

// DisplayName is "first last" or the email when no name is known.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	return u.Email
}

// MembershipReferenceType is the kind of object a membership points to
type MembershipReferenceType string

const (
	ReferenceAPI         MembershipReferenceType = "API"
	ReferenceApplication MembershipReferenceType = "APPLICATION"
	ReferenceGroup       MembershipReferenceType = "GROUP"
	ReferenceManagement  MembershipReferenceType = "MANAGEMENT"
	ReferencePortal      MembershipReferenceType = "PORTAL"
)

// DefaultReferenceID is the reference of the environment wide
// MANAGEMENT and PORTAL memberships.
const DefaultReferenceID = "DEFAULT"

// RoleScope is the scope a role name applies to
type RoleScope string

const (
	RoleScopeAPI         RoleScope = "API"
	RoleScopeApplication RoleScope = "APPLICATION"
	RoleScopeManagement  RoleScope = "MANAGEMENT"
	RoleScopePortal      RoleScope = "PORTAL"
)

// Invitation is a pending offer of group membership addressed to an email
type Invitation struct {
	bun.BaseModel   `bun:"table:invitations,alias:inv"`
	ID              uuid.UUID               `bun:"id,pk,type:uuid" json:"id"`
	Email           string                  `bun:"email,notnull" json:"email"`
	ReferenceType   MembershipReferenceType `bun:"reference_type,notnull" json:"reference_type"`
	ReferenceID     string                  `bun:"reference_id,notnull" json:"reference_id"`
	APIRole         string                  `bun:"api_role" json:"api_role,omitempty"`
	ApplicationRole string                  `bun:"application_role" json:"application_role,omitempty"`
	CreatedAt       time.Time               `bun:"created_at,notnull" json:"created_at"`
}

// Grants expands the invitation into the memberships it confers.
func (i *Invitation) Grants(userID uuid.UUID) []*Membership {
	if i == nil {
		return nil
	}

	grants := make([]*Membership, 0, 2)
	if i.APIRole != "" {
		grants = append(grants, &Membership{
			UserID:        userID,
			ReferenceType: i.ReferenceType,
			ReferenceID:   i.ReferenceID,
			RoleScope:     RoleScopeAPI,
			RoleName:      i.APIRole,
		})
	}
	if i.ApplicationRole != "" {
		grants = append(grants, &Membership{
			UserID:        userID,
			ReferenceType: i.ReferenceType,
			ReferenceID:   i.ReferenceID,
			RoleScope:     RoleScopeApplication,
			RoleName:      i.ApplicationRole,
		})
	}
	return grants
}

// Membership binds a user to a referenced object with a scoped role
type Membership struct {
	bun.BaseModel `bun:"table:memberships,alias:mbr"`
	ID            uuid.UUID               `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID               `bun:"user_id,notnull,type:uuid" json:"user_id"`
	ReferenceType MembershipReferenceType `bun:"reference_type,notnull" json:"reference_type"`
	ReferenceID   string                  `bun:"reference_id,notnull" json:"reference_id"`
	RoleScope     RoleScope               `bun:"role_scope,notnull" json:"role_scope"`
	RoleName      string                  `bun:"role_name,notnull" json:"role_name"`
	CreatedAt     time.Time               `bun:"created_at,notnull" json:"created_at"`
}
