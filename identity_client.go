package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ProviderIdentity is the concrete identity handed back by the provider
// SDK boundary.
type ProviderIdentity struct {
	ExternalID string
	EmailAddr  string
	Name       string
	Verified   bool
}

var _ Identity = (*ProviderIdentity)(nil)

// ID returns the provider-assigned external id.
func (p *ProviderIdentity) ID() string { return p.ExternalID }

// Email returns the identity's email address.
func (p *ProviderIdentity) Email() string { return p.EmailAddr }

// DisplayName returns the profile display name.
func (p *ProviderIdentity) DisplayName() string { return p.Name }

// EmailVerified reports whether the provider verified the email.
func (p *ProviderIdentity) EmailVerified() bool { return p.Verified }

// IdentityListener receives identity transitions. A nil identity means
// "signed out".
type IdentityListener func(identity *ProviderIdentity)

// Client wraps the identity-provider SDK. It normalizes provider errors
// into the closed taxonomy and guarantees that identity-change listeners
// fire exactly once per transition, in transition order. Token refreshes
// that keep the same identity never produce an event.
type Client struct {
	sdk          ProviderClient
	logger       Logger
	provider     LoggerProvider
	activitySink ActivitySink
	now          nowFunc

	mu          sync.Mutex
	listeners   map[int]IdentityListener
	nextID      int
	lastID      string
	unsubscribe func()
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// NewClient wires the provider SDK and starts observing its identity
// stream.
func NewClient(sdk ProviderClient, opts ...ClientOption) *Client {
	provider, logger := ResolveLogger("auth.identity_client", nil, nil)

	c := &Client{
		sdk:          sdk,
		logger:       logger,
		provider:     provider,
		activitySink: noopActivitySink{},
		now:          time.Now,
		listeners:    map[int]IdentityListener{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.unsubscribe = sdk.Subscribe(c.handleTransition)

	return c
}

// WithClientLogger overrides the client logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		c.provider, c.logger = ResolveLogger("auth.identity_client", c.provider, logger)
	}
}

// WithClientLoggerProvider overrides the logger provider.
func WithClientLoggerProvider(provider LoggerProvider) ClientOption {
	return func(c *Client) {
		c.provider, c.logger = ResolveLogger("auth.identity_client", provider, nil)
	}
}

// WithClientActivitySink configures an audit sink for auth events.
func WithClientActivitySink(sink ActivitySink) ClientOption {
	return func(c *Client) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (*ProviderIdentity, error) {
	identity, err := c.sdk.SignIn(ctx, email, password)
	if err != nil {
		mapped := mapProviderError(err)
		c.logger.Error("sign-in failed", "error", mapped)
		c.emitEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
			"identifier": email,
			"error":      mapped.Error(),
		})
		return nil, mapped
	}

	c.emitEvent(ctx, ActivityEventLoginSuccess, identity.ExternalID, map[string]any{
		"identifier": email,
	})

	return identity, nil
}

// SignInWithProvider runs the external-provider sign-in flow.
// promptAccountChooser forces the provider to show its account picker
// even when a single account is active.
func (c *Client) SignInWithProvider(ctx context.Context, promptAccountChooser bool) (*ExternalSignIn, error) {
	result, err := c.sdk.SignInExternal(ctx, promptAccountChooser)
	if err != nil {
		mapped := mapProviderError(err)
		c.logger.Error("external sign-in failed", "error", mapped)
		c.emitEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
			"external": true,
			"error":    mapped.Error(),
		})
		return nil, mapped
	}

	c.emitEvent(ctx, ActivityEventLoginSuccess, result.Identity.ExternalID, map[string]any{
		"external":     true,
		"new_identity": result.NewIdentity,
	})

	return result, nil
}

// SignUp creates a new email+password identity. This is the irreversible
// registration step: once it succeeds an identity exists even if later
// provisioning fails.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*ProviderIdentity, error) {
	identity, err := c.sdk.SignUp(ctx, email, password, displayName)
	if err != nil {
		mapped := mapProviderError(err)
		c.logger.Error("sign-up failed", "error", mapped)
		return nil, mapped
	}

	c.emitEvent(ctx, ActivityEventSignUp, identity.ExternalID, map[string]any{
		"identifier": email,
	})

	return identity, nil
}

// SignOut terminates the provider session.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.sdk.SignOut(ctx); err != nil {
		mapped := mapProviderError(err)
		c.logger.Error("sign-out failed", "error", mapped)
		return mapped
	}

	c.emitEvent(ctx, ActivityEventSignOut, "", nil)
	return nil
}

// BearerToken mints a short-lived token for the active identity. Returns
// "" with no error when nobody is signed in.
func (c *Client) BearerToken(ctx context.Context, forceRefresh bool) (string, error) {
	token, err := c.sdk.BearerToken(ctx, forceRefresh)
	if err != nil {
		return "", mapProviderError(err)
	}
	return token, nil
}

// OnIdentityChange registers a listener invoked once per identity
// transition (login, logout, or swap), in transition order. The returned
// function cancels the registration.
func (c *Client) OnIdentityChange(fn IdentityListener) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Close detaches the client from the provider's identity stream.
func (c *Client) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// handleTransition receives raw provider transitions. Transitions that
// keep the same identity id (token refreshes) are dropped; everything
// else is forwarded to listeners in registration order, under the lock so
// transition order is preserved end to end.
func (c *Client) handleTransition(identity *ProviderIdentity) {
	id := ""
	if identity != nil {
		id = identity.ExternalID
	}

	c.mu.Lock()
	if id == c.lastID {
		c.mu.Unlock()
		return
	}
	c.lastID = id

	ids := make([]int, 0, len(c.listeners))
	for lid := range c.listeners {
		ids = append(ids, lid)
	}
	sort.Ints(ids)

	ordered := make([]IdentityListener, 0, len(ids))
	for _, lid := range ids {
		ordered = append(ordered, c.listeners[lid])
	}

	for _, fn := range ordered {
		fn(identity)
	}
	c.mu.Unlock()

	c.emitEvent(context.Background(), ActivityEventIdentityChanged, id, nil)
}

func (c *Client) emitEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(c.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     ActorRef{Type: "user", ID: userID},
		UserID:    userID,
		Metadata:  metadata,
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	event.OccurredAt = c.now()

	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}
