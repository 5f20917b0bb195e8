package auth

import (
	"context"
)

var sessionCtxKey = &contextKey{"session"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithSessionContext sets the TrustedSession in the given context
func WithSessionContext(ctx context.Context, session *TrustedSession) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context. Absence means
// "treat as anonymous", never an error.
func SessionFromContext(ctx context.Context) (*TrustedSession, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*TrustedSession)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// Can is a convenience function to check permissions directly from the
// context. Requests without a session are treated as guest.
func Can(ctx context.Context, resource, permission string) bool {
	session, ok := SessionFromContext(ctx)
	if !ok || session == nil {
		return false
	}

	switch permission {
	case "read":
		return session.CanRead(resource)
	case "edit":
		return session.CanEdit(resource)
	case "create":
		return session.CanCreate(resource)
	case "delete":
		return session.CanDelete(resource)
	default:
		return false
	}
}

// StoreScope returns the store id the request is authorized for. Empty
// means the caller has no provisioned store.
func StoreScope(ctx context.Context) string {
	session, ok := SessionFromContext(ctx)
	if !ok || session == nil {
		return ""
	}
	return session.StoreID
}
