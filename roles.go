package auth

// UserRole is the account's role inside a store
type UserRole = string

const (
	// RoleGuest is the fail-closed default for unauthenticated requests
	RoleGuest UserRole = "guest"
	// RoleEmployee can view and edit catalog/sales data
	RoleEmployee UserRole = "employee"
	// RoleAdmin can additionally create records and manage staff
	RoleAdmin UserRole = "admin"
	// RoleOwner holds every permission, including destructive ones
	RoleOwner UserRole = "owner"
)

// RoleValidator defines the interface for role-based access checks.
type RoleValidator interface {
	CanRead(resource string) bool
	CanEdit(resource string) bool
	CanCreate(resource string) bool
	CanDelete(resource string) bool
	HasRole(role string) bool
	IsAtLeast(minRole UserRole) bool
}

// roleLevel is the hierarchy used by IsAtLeast. Unknown roles rank below
// guest so they never pass a check.
func roleLevel(r UserRole) (int, bool) {
	switch r {
	case RoleGuest:
		return 0, true
	case RoleEmployee:
		return 1, true
	case RoleAdmin:
		return 2, true
	case RoleOwner:
		return 3, true
	default:
		return -1, false
	}
}

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	_, ok := roleLevel(r)
	return ok
}

// CanReadRole checks if the role can view resources
func CanReadRole(r UserRole) bool {
	return IsValidRole(r)
}

// CanEditRole checks if the role can edit resources
func CanEditRole(r UserRole) bool {
	return IsAtLeastRole(r, RoleEmployee)
}

// CanCreateRole checks if the role can create resources
func CanCreateRole(r UserRole) bool {
	return IsAtLeastRole(r, RoleAdmin)
}

// CanDeleteRole checks if the role can delete resources
func CanDeleteRole(r UserRole) bool {
	return IsAtLeastRole(r, RoleOwner)
}

// IsAtLeastRole checks if role meets the minimum required level
func IsAtLeastRole(r, minRole UserRole) bool {
	level, ok := roleLevel(r)
	if !ok {
		return false
	}
	minLevel, ok := roleLevel(minRole)
	if !ok {
		return false
	}
	return level >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleGuest,
		RoleEmployee,
		RoleAdmin,
		RoleOwner,
	}
}

// ParseRole safely parses a string into a UserRole, falling back to guest
// for unknown values so authorization fails closed.
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	if IsValidRole(role) {
		return role, true
	}
	return RoleGuest, false
}
