package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// WSTokenValidator adapts TokenService to go-router's WebSocket token
// validation hook so live-preview and editor channels can authenticate
// with the same session tokens the HTTP surface issues.
type WSTokenValidator struct {
	tokenService TokenService
}

// NewWSTokenValidator creates a WebSocket token validator backed by the
// given TokenService.
func NewWSTokenValidator(tokenService TokenService) *WSTokenValidator {
	return &WSTokenValidator{
		tokenService: tokenService,
	}
}

// Validate validates a token string and returns WebSocket-compatible auth claims.
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	claims, err := w.tokenService.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &WSAuthClaimsAdapter{claims: claims}, nil
}

// WSAuthClaimsAdapter adapts AuthClaims to go-router's WSAuthClaims interface.
type WSAuthClaimsAdapter struct {
	claims AuthClaims
}

// Subject returns the subject claim.
func (w *WSAuthClaimsAdapter) Subject() string {
	return w.claims.Subject()
}

// UserID returns the user ID.
func (w *WSAuthClaimsAdapter) UserID() string {
	return w.claims.UserID()
}

// Role returns the user's role.
func (w *WSAuthClaimsAdapter) Role() string {
	return w.claims.Role()
}

// StoreID returns the store the claims are scoped to, if any.
func (w *WSAuthClaimsAdapter) StoreID() string {
	return w.claims.StoreID()
}

// CanRead checks if the user can read a specific resource.
func (w *WSAuthClaimsAdapter) CanRead(resource string) bool {
	return w.claims.CanRead(resource)
}

// CanEdit checks if the user can edit a specific resource.
func (w *WSAuthClaimsAdapter) CanEdit(resource string) bool {
	return w.claims.CanEdit(resource)
}

// CanCreate checks if the user can create a specific resource.
func (w *WSAuthClaimsAdapter) CanCreate(resource string) bool {
	return w.claims.CanCreate(resource)
}

// CanDelete checks if the user can delete a specific resource.
func (w *WSAuthClaimsAdapter) CanDelete(resource string) bool {
	return w.claims.CanDelete(resource)
}

// HasRole checks if the user has a specific role.
func (w *WSAuthClaimsAdapter) HasRole(role string) bool {
	return w.claims.HasRole(role)
}

// IsAtLeast checks if the user's role is at least the minimum required role.
func (w *WSAuthClaimsAdapter) IsAtLeast(minRole string) bool {
	return w.claims.IsAtLeast(minRole)
}

// NewWSAuthMiddleware creates a configured WebSocket authentication middleware
// that validates tokens with the given TokenService. The optional config lets
// callers tune channel-level settings while the token validator is always ours.
func NewWSAuthMiddleware(tokens TokenService, config ...router.WSAuthConfig) router.WebSocketMiddleware {
	validator := NewWSTokenValidator(tokens)

	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	cfg.TokenValidator = validator

	return router.NewWSAuth(cfg)
}

// WSAuthClaimsFromContext retrieves the AuthClaims stashed by the WebSocket
// middleware. It returns false when the connection was authenticated by a
// different validator.
func WSAuthClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	wsAuthClaims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}

	if adapter, ok := wsAuthClaims.(*WSAuthClaimsAdapter); ok {
		return adapter.claims, true
	}

	return nil, false
}
