package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TrustedSession is the server-verified proof of identity recovered from
// the httpOnly session cookie. It is derived, never authored by the
// client, and is recomputed whenever the bearer token is re-synced.
//
// StoreID is empty until registration completed the provision step.
type TrustedSession struct {
	UserID    string         `json:"user_id,omitempty"`
	Role      UserRole       `json:"role,omitempty"`
	StoreID   string         `json:"store_id,omitempty"`
	Issuer    string         `json:"issuer,omitempty"`
	Audience  []string       `json:"audience,omitempty"`
	IssuedAt  *time.Time     `json:"issued_at,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// GetUserID returns the authenticated account id.
func (s *TrustedSession) GetUserID() string {
	return s.UserID
}

// GetUserUUID parses the account id as a UUID.
func (s *TrustedSession) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

// GetStoreID returns the linked store id, empty for storeless accounts.
func (s *TrustedSession) GetStoreID() string {
	return s.StoreID
}

// HasStore reports whether the session is scoped to a provisioned store.
func (s *TrustedSession) HasStore() bool {
	return s.StoreID != ""
}

// GetRole returns the session role, guest when absent.
func (s *TrustedSession) GetRole() UserRole {
	if s.Role == "" {
		return RoleGuest
	}
	return s.Role
}

// GetIssuedAt returns the issuance time of the artifact.
func (s *TrustedSession) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

// GetData returns extension data carried by the artifact.
func (s *TrustedSession) GetData() map[string]any {
	return s.Data
}

// CanRead checks if the session role can view a resource
func (s *TrustedSession) CanRead(resource string) bool {
	return CanReadRole(s.GetRole())
}

// CanEdit checks if the session role can edit a resource
func (s *TrustedSession) CanEdit(resource string) bool {
	return CanEditRole(s.GetRole())
}

// CanCreate checks if the session role can create a resource
func (s *TrustedSession) CanCreate(resource string) bool {
	return CanCreateRole(s.GetRole())
}

// CanDelete checks if the session role can delete a resource
func (s *TrustedSession) CanDelete(resource string) bool {
	return CanDeleteRole(s.GetRole())
}

// HasRole checks for an exact role match
func (s *TrustedSession) HasRole(role string) bool {
	return s.GetRole() == role
}

// IsAtLeast checks if the session role meets the minimum required level
func (s *TrustedSession) IsAtLeast(minRole UserRole) bool {
	return IsAtLeastRole(s.GetRole(), minRole)
}

// TODO: enable only in development!
func (s TrustedSession) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s role=%s store=%s iss=%s iat=%s",
		s.UserID,
		s.Role,
		s.StoreID,
		s.Issuer,
		issuedAt,
	)
}

// sessionFromClaims builds a TrustedSession from verified claims.
func sessionFromClaims(claims AuthClaims) (*TrustedSession, error) {
	if claims == nil {
		return nil, ErrUnableToMapClaims
	}

	session := &TrustedSession{
		UserID:  claims.UserID(),
		Role:    claims.Role(),
		StoreID: claims.StoreID(),
	}

	if sc, ok := claims.(*StoreClaims); ok {
		session.Issuer = sc.RegisteredClaims.Issuer
		if sc.RegisteredClaims.Audience != nil {
			session.Audience = append([]string(nil), sc.RegisteredClaims.Audience...)
		}
		if len(sc.Metadata) > 0 {
			session.Data = sc.Metadata
		}
	}

	if issuedAt := claims.IssuedAt(); !issuedAt.IsZero() {
		session.IssuedAt = &issuedAt
	}
	if expiresAt := claims.Expires(); !expiresAt.IsZero() {
		session.ExpiresAt = &expiresAt
	}

	return session, nil
}
