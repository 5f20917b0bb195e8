package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents structured token claims with store-scoped
// authorization checks. Claims are the sole source of authorization for
// request handling; the AccountRecord.StoreIDs column is legacy.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	StoreID() string
	HasStore() bool
	CanRead(resource string) bool
	CanEdit(resource string) bool
	CanCreate(resource string) bool
	CanDelete(resource string) bool
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// StoreClaims is the concrete implementation of AuthClaims carried by both
// the provider bearer token and the trusted-session cookie token.
type StoreClaims struct {
	jwt.RegisteredClaims
	UID      string         `json:"uid,omitempty"`
	UserRole string         `json:"role,omitempty"`
	Store    string         `json:"store_id,omitempty"`
	Scopes   []string       `json:"scopes,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

var _ AuthClaims = (*StoreClaims)(nil)

// Subject returns the subject claim
func (c *StoreClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID, preferring the uid claim over the subject
func (c *StoreClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the account role, defaulting to guest so a token without a
// role claim never gains permissions.
func (c *StoreClaims) Role() string {
	if c.UserRole == "" {
		return RoleGuest
	}
	return c.UserRole
}

// StoreID returns the store claim, empty until provisioning completed.
func (c *StoreClaims) StoreID() string {
	return c.Store
}

// HasStore reports whether registration completed the provision step.
func (c *StoreClaims) HasStore() bool {
	return c.Store != ""
}

// CanRead checks if the account can view a resource
func (c *StoreClaims) CanRead(resource string) bool {
	return CanReadRole(c.Role())
}

// CanEdit checks if the account can edit a resource
func (c *StoreClaims) CanEdit(resource string) bool {
	return CanEditRole(c.Role())
}

// CanCreate checks if the account can create a resource
func (c *StoreClaims) CanCreate(resource string) bool {
	return CanCreateRole(c.Role())
}

// CanDelete checks if the account can delete a resource
func (c *StoreClaims) CanDelete(resource string) bool {
	return CanDeleteRole(c.Role())
}

// HasRole checks for an exact role match
func (c *StoreClaims) HasRole(role string) bool {
	return c.Role() == role
}

// IsAtLeast checks if the role meets the minimum required level
func (c *StoreClaims) IsAtLeast(minRole string) bool {
	return IsAtLeastRole(c.Role(), UserRole(minRole))
}

// Expires returns the expiration time
func (c *StoreClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *StoreClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ClaimsMetadata exposes metadata extensions for context enrichment.
func (c *StoreClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}
