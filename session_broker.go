package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// SessionBroker exchanges a provider bearer token for the trusted-session
// cookie, and recovers the TrustedSession from it on the way back in. The
// cookie artifact is owned exclusively by the broker; nothing else reads
// or writes it.
type SessionBroker struct {
	bearerValidator TokenValidator
	tokens          TokenService
	cookieName      string
	cookieDuration  time.Duration
	cookieSecure    bool
	cookieSameSite  string
	logger          Logger
	provider        LoggerProvider
	activitySink    ActivitySink
	decorator       ClaimsDecorator
	now             nowFunc
}

// SessionBrokerOption customizes broker construction.
type SessionBrokerOption func(*SessionBroker)

// NewSessionBroker builds a broker from a bearer validator (usually a
// JWKSValidator or MultiTokenValidator) and the local token service that
// signs the cookie artifact.
func NewSessionBroker(bearerValidator TokenValidator, tokens TokenService, cfg Config, opts ...SessionBrokerOption) *SessionBroker {
	cookieDuration := 72 * time.Hour
	if cfg != nil && cfg.GetSessionDuration() > 0 {
		cookieDuration = time.Duration(cfg.GetSessionDuration()) * time.Hour
	}

	cookieName := "session"
	sameSite := "Lax"
	secure := true
	if cfg != nil {
		if name := cfg.GetSessionCookieName(); name != "" {
			cookieName = name
		}
		if ss := cfg.GetCookieSameSite(); ss != "" {
			sameSite = ss
		}
		secure = cfg.GetCookieSecure()
	}

	provider, logger := ResolveLogger("auth.session_broker", nil, nil)

	b := &SessionBroker{
		bearerValidator: bearerValidator,
		tokens:          tokens,
		cookieName:      cookieName,
		cookieDuration:  cookieDuration,
		cookieSecure:    secure,
		cookieSameSite:  sameSite,
		logger:          logger,
		provider:        provider,
		activitySink:    noopActivitySink{},
		decorator:       noopClaimsDecorator{},
		now:             time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

// WithSessionBrokerLogger overrides the broker logger.
func WithSessionBrokerLogger(logger Logger) SessionBrokerOption {
	return func(b *SessionBroker) {
		b.provider, b.logger = ResolveLogger("auth.session_broker", b.provider, logger)
	}
}

// WithSessionBrokerLoggerProvider overrides the logger provider.
func WithSessionBrokerLoggerProvider(provider LoggerProvider) SessionBrokerOption {
	return func(b *SessionBroker) {
		b.provider, b.logger = ResolveLogger("auth.session_broker", provider, nil)
	}
}

// WithSessionBrokerActivitySink configures an audit sink.
func WithSessionBrokerActivitySink(sink ActivitySink) SessionBrokerOption {
	return func(b *SessionBroker) {
		b.activitySink = normalizeActivitySink(sink)
	}
}

// WithSessionBrokerClaimsDecorator lets the host enrich session Data
// before the artifact is signed. Identity claims are guarded; a
// decorator that touches them fails the session create.
func WithSessionBrokerClaimsDecorator(d ClaimsDecorator) SessionBrokerOption {
	return func(b *SessionBroker) {
		b.decorator = normalizeClaimsDecorator(d)
	}
}

// WithSessionBrokerClock injects a custom clock (useful for tests).
func WithSessionBrokerClock(clock nowFunc) SessionBrokerOption {
	return func(b *SessionBroker) {
		if clock != nil {
			b.now = clock
		}
	}
}

// CookieName returns the name of the session cookie.
func (b *SessionBroker) CookieName() string {
	return b.cookieName
}

// CreateSession verifies the bearer token, derives a TrustedSession from
// its claims, and replaces the session cookie. The write is last-write-
// wins; an existing cookie for the same transport is overwritten, never
// merged. Calling it twice with the same unexpired token produces the
// same session content (only IssuedAt differs).
func (b *SessionBroker) CreateSession(c router.Context, bearerToken string) (*TrustedSession, error) {
	if bearerToken == "" {
		return nil, ErrTokenMalformed
	}

	claims, err := b.bearerValidator.Validate(bearerToken)
	if err != nil {
		b.logger.Error("session create bearer validation failed", "error", err)
		b.emitEvent(c.Context(), ActivityEventSessionSyncFailure, "", map[string]any{
			"error": err.Error(),
		})
		return nil, b.normalizeVerificationError(err)
	}

	session, err := sessionFromClaims(claims)
	if err != nil {
		b.logger.Error("session create claims mapping failed", "error", err)
		return nil, ErrTokenVerification
	}

	snapshot := captureImmutableSession(session)
	if err := b.decorator.Decorate(c.Context(), session); err != nil {
		b.logger.Error("session create decorator failed", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "session decoration failed")
	}
	if err := snapshot.validate(session); err != nil {
		b.logger.Error("session create decorator mutated identity claims", "error", err)
		return nil, err
	}

	artifact, err := b.tokens.Generate(session)
	if err != nil {
		b.logger.Error("session create failed to sign artifact", "error", err)
		return nil, err
	}

	b.setCookie(c, artifact, b.cookieDuration)
	b.emitEvent(c.Context(), ActivityEventSessionCreated, session.UserID, map[string]any{
		"store_id": session.StoreID,
		"role":     session.Role,
	})

	return session, nil
}

// DestroySession removes the session cookie. Idempotent; safe to call
// when no session exists.
func (b *SessionBroker) DestroySession(c router.Context) {
	b.setCookie(c, "", -time.Hour*24*365)
}

// CurrentSession recovers the TrustedSession from the cookie, performing
// no network calls. Any verification failure fails closed to nil, never
// to an error: a broken artifact means "logged out", not "broken request".
func (b *SessionBroker) CurrentSession(c router.Context) *TrustedSession {
	raw := c.Cookies(b.cookieName)
	if raw == "" {
		return nil
	}

	session, err := b.SessionFromArtifact(raw)
	if err != nil {
		b.logger.Warn("session read failed closed", "error", err)
		return nil
	}

	return session
}

// SessionFromArtifact validates a raw cookie value and maps it to a
// TrustedSession. Exposed for callers that carry the artifact outside an
// HTTP request (tests, background jobs).
func (b *SessionBroker) SessionFromArtifact(raw string) (*TrustedSession, error) {
	claims, err := b.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}
	return sessionFromClaims(claims)
}

func (b *SessionBroker) normalizeVerificationError(err error) error {
	if IsTokenExpiredError(err) {
		return ErrTokenExpired
	}
	if IsMalformedError(err) {
		return ErrTokenMalformed
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, ErrTokenVerification.Category, ErrTokenVerification.Message).
		WithTextCode(ErrTokenVerification.TextCode)
}

func (b *SessionBroker) setCookie(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     b.cookieName,
		Value:    val,
		Path:     "/",
		Expires:  b.now().Add(duration),
		HTTPOnly: true,
		Secure:   b.cookieSecure,
		SameSite: b.cookieSameSite,
	})
}

func (b *SessionBroker) emitEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(b.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     ActorRef{Type: "user", ID: userID},
		UserID:    userID,
		Metadata:  metadata,
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		b.logger.Warn("activity sink record error: %v", err)
	}
}

// BrokerSyncer adapts the broker+transport pair into a SessionSyncer for
// the registration orchestrator and the identity watcher.
func (b *SessionBroker) BrokerSyncer(c router.Context) SessionSyncer {
	return SessionSyncerFunc(func(ctx context.Context, bearerToken string) error {
		_, err := b.CreateSession(c, bearerToken)
		return err
	})
}
