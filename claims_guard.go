package auth

import (
	"fmt"
	"time"
)

type immutableSessionSnapshot struct {
	userID    string
	role      UserRole
	storeID   string
	issuer    string
	audience  []string
	issuedAt  time.Time
	hasIssued bool
	expiresAt time.Time
	hasExpiry bool
}

func captureImmutableSession(session *TrustedSession) immutableSessionSnapshot {
	var audienceCopy []string
	if len(session.Audience) > 0 {
		audienceCopy = append(audienceCopy, session.Audience...)
	}

	snap := immutableSessionSnapshot{
		userID:   session.UserID,
		role:     session.Role,
		storeID:  session.StoreID,
		issuer:   session.Issuer,
		audience: audienceCopy,
	}

	if session.IssuedAt != nil {
		snap.issuedAt = *session.IssuedAt
		snap.hasIssued = true
	}

	if session.ExpiresAt != nil {
		snap.expiresAt = *session.ExpiresAt
		snap.hasExpiry = true
	}

	return snap
}

func (snap immutableSessionSnapshot) validate(session *TrustedSession) error {
	if session.UserID != snap.userID {
		return immutableClaimViolation("user_id")
	}

	if session.Role != snap.role {
		return immutableClaimViolation("role")
	}

	if session.StoreID != snap.storeID {
		return immutableClaimViolation("store_id")
	}

	if session.Issuer != snap.issuer {
		return immutableClaimViolation("issuer")
	}

	if !audienceEqual(session.Audience, snap.audience) {
		return immutableClaimViolation("audience")
	}

	if err := compareSessionTime(session.IssuedAt, snap.issuedAt, snap.hasIssued, "issued_at"); err != nil {
		return err
	}

	return compareSessionTime(session.ExpiresAt, snap.expiresAt, snap.hasExpiry, "expires_at")
}

func compareSessionTime(actual *time.Time, expected time.Time, expectedSet bool, field string) error {
	if !expectedSet {
		if actual != nil {
			return immutableClaimViolation(field)
		}
		return nil
	}

	if actual == nil || !actual.Equal(expected) {
		return immutableClaimViolation(field)
	}

	return nil
}

func audienceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func immutableClaimViolation(field string) error {
	clone := ErrImmutableClaimMutation.Clone()
	if clone == nil {
		return ErrImmutableClaimMutation
	}
	clone.Message = fmt.Sprintf("immutable claim mutated: %s", field)
	clone.Source = ErrImmutableClaimMutation
	return clone.WithMetadata(map[string]any{"claim": field})
}
