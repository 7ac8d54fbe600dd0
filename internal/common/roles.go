package common

import "github.com/google/uuid"

// Role is the single enumeration of user roles.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Policy names a role-based access rule evaluated by the access gate.
type Policy string

const (
	PolicyAdminOnly    Policy = "admin_only"
	PolicyStaffOrAdmin Policy = "staff_or_admin"
)

// Allows reports whether a caller with role r satisfies the policy.
func (p Policy) Allows(r Role) bool {
	switch p {
	case PolicyAdminOnly:
		return r == RoleAdmin
	case PolicyStaffOrAdmin:
		return r == RoleStaff || r == RoleAdmin
	}
	return false
}

// Identity is the caller resolved from a bearer credential.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
	Name  string    `json:"name"`
}

// IsStaff reports whether the caller may triage issues.
func (i Identity) IsStaff() bool {
	return PolicyStaffOrAdmin.Allows(i.Role)
}

// SelfOrAdmin reports whether the caller may act on the account identified by target.
func SelfOrAdmin(caller Identity, target uuid.UUID) bool {
	return caller.Role == RoleAdmin || caller.ID == target
}
