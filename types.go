package auth

import (
	"context"
	"fmt"
	"time"
)

// Logger is the minimal logging surface used across the package.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// LoggerProvider hands out named loggers so hosts can scope output per
// component (e.g. "auth.session_broker", "auth.registration").
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// ResolveLogger picks the effective provider and logger for a component.
// An explicit logger wins over the provider; with neither we fall back to
// the stdout defLogger.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if logger != nil {
		return provider, logger
	}

	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return provider, l
		}
	}

	return provider, defLogger{}
}

// Identity holds the attributes of a principal authenticated by the
// identity provider.
type Identity interface {
	ID() string
	Email() string
	DisplayName() string
	EmailVerified() bool
}

// ProviderClient is the boundary to the identity-provider SDK. It performs
// no writes against application storage; its only side effects live in the
// provider's own session state.
//
// Errors returned by implementations should be *ProviderError values
// carrying the provider's raw string code; Client normalizes them into the
// closed taxonomy in errors.go so nothing downstream branches on provider
// strings.
type ProviderClient interface {
	SignIn(ctx context.Context, email, password string) (*ProviderIdentity, error)
	SignInExternal(ctx context.Context, promptAccountChooser bool) (*ExternalSignIn, error)
	SignUp(ctx context.Context, email, password, displayName string) (*ProviderIdentity, error)
	SignOut(ctx context.Context) error

	// BearerToken mints a short-lived token for the active identity.
	// Returns "" with no error when nobody is signed in.
	BearerToken(ctx context.Context, forceRefresh bool) (string, error)

	// Subscribe registers a listener for raw identity transitions. The
	// returned function cancels the subscription. Implementations must
	// deliver transitions in chronological order.
	Subscribe(listener func(identity *ProviderIdentity)) (cancel func())
}

// ExternalSignIn is the outcome of an external-provider sign-in.
type ExternalSignIn struct {
	Identity *ProviderIdentity
	// NewIdentity is true when the provider created the identity as part
	// of this sign-in.
	NewIdentity bool
	// StoreID carries the store claim when the identity already completed
	// provisioning on another device or session.
	StoreID string
}

// TokenService mints and validates locally signed session tokens.
type TokenService interface {
	Generate(session *TrustedSession) (string, error)
	SignClaims(claims *StoreClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidator validates tokens and extracts claims without tying
// callers to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// SessionSyncer pushes a bearer token to the trusted-session transport.
// SessionBroker satisfies this through a transport adapter; tests and the
// registration orchestrator depend only on this interface.
type SessionSyncer interface {
	SyncSession(ctx context.Context, bearerToken string) error
}

// SessionSyncerFunc adapts a function into a SessionSyncer.
type SessionSyncerFunc func(ctx context.Context, bearerToken string) error

// SyncSession satisfies the SessionSyncer interface.
func (f SessionSyncerFunc) SyncSession(ctx context.Context, bearerToken string) error {
	if f == nil {
		return nil
	}
	return f(ctx, bearerToken)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSessionCookieName() string
	GetSessionDuration() int // hours
	GetIssuer() string
	GetAudience() []string
	GetCookieSecure() bool
	GetCookieSameSite() string
}

// SlugFinder is the narrow read surface the availability checker needs.
type SlugFinder interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// CacheInvalidator is the callback external subsystems register with the
// IdentityChangeWatcher. It must be safe to call when the subsystem holds
// no cached state.
type CacheInvalidator func()

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// nowFunc lets tests inject a clock.
type nowFunc func() time.Time
