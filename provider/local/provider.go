package local

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/hashid/pkg/hashid"
	auth "github.com/tiendly/go-auth"
)

type record struct {
	id           string
	email        string
	passwordHash string
	displayName  string
	verified     bool
	external     bool

	// storeID and role are the custom claims stamped onto bearer
	// tokens once provisioning linked a store to this identity.
	storeID string
	role    auth.UserRole
}

// Provider is the in-process identity provider. All state is guarded by
// one mutex; the provider is safe for concurrent use.
type Provider struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	records   map[string]*record
	active    *record
	listeners map[int]func(*auth.ProviderIdentity)
	nextID    int
	attempts  map[string][]time.Time

	// chooser state drives SignInExternal: chosenEmail selects the
	// identity the simulated account chooser returns, promptFailure
	// makes the prompt fail with the given provider code.
	chosenEmail   string
	promptFailure string
}

// Option customizes provider construction.
type Option func(*Provider)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// New creates a local provider. The config signing key is required; an
// empty key makes every token mint fail.
func New(cfg Config, opts ...Option) *Provider {
	p := &Provider{
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		records:   map[string]*record{},
		listeners: map[int]func(*auth.ProviderIdentity){},
		attempts:  map[string][]time.Time{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// externalID derives a stable opaque id for an email, so re-seeding the
// same account in tests yields the same identity.
func externalID(email string) string {
	id, err := hashid.NewUUID("local:" + email)
	if err != nil {
		return "local:" + email
	}
	return id.String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Seed registers an account without going through SignUp. External
// accounts get a throwaway password hash; they can only authenticate
// through the account chooser.
func (p *Provider) Seed(email, password, displayName string, external bool) (*auth.ProviderIdentity, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, auth.ErrNoEmptyString
	}

	hash := ""
	if external {
		hash = auth.RandomPasswordHash()
	} else {
		var err error
		if hash, err = auth.HashPassword(password); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rec := &record{
		id:           externalID(email),
		email:        email,
		passwordHash: hash,
		displayName:  displayName,
		verified:     external,
		external:     external,
	}
	p.records[email] = rec

	return identityOf(rec), nil
}

// SetStoreClaim stamps the store custom claims onto an existing account,
// simulating a backend that already completed provisioning.
func (p *Provider) SetStoreClaim(email, storeID string, role auth.UserRole) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[normalizeEmail(email)]
	if !ok {
		return auth.ErrAccountNotFound
	}

	rec.storeID = storeID
	rec.role = role
	return nil
}

// ChooseExternal selects which identity the simulated account chooser
// returns on the next SignInExternal.
func (p *Provider) ChooseExternal(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chosenEmail = normalizeEmail(email)
	p.promptFailure = ""
}

// FailPrompt makes the next SignInExternal fail with the given provider
// code, e.g. "auth/popup-closed-by-user".
func (p *Provider) FailPrompt(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.promptFailure = code
}

// SignIn implements auth.ProviderClient.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*auth.ProviderIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, &auth.ProviderError{Code: "auth/network-request-failed", Err: err}
	}

	email = normalizeEmail(email)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rateLimited(email) {
		return nil, &auth.ProviderError{Code: "auth/too-many-requests"}
	}

	rec, ok := p.records[email]
	if !ok {
		p.recordAttempt(email)
		return nil, &auth.ProviderError{Code: "auth/user-not-found"}
	}

	if err := auth.ComparePasswordAndHash(password, rec.passwordHash); err != nil {
		if errors.Is(err, auth.ErrMismatchedHashAndPassword) {
			p.recordAttempt(email)
			return nil, &auth.ProviderError{Code: "auth/wrong-password"}
		}
		return nil, &auth.ProviderError{Code: "auth/internal-error", Err: err}
	}

	delete(p.attempts, email)
	p.activate(rec)

	return identityOf(rec), nil
}

// SignInExternal implements auth.ProviderClient by simulating the
// provider's account chooser.
func (p *Provider) SignInExternal(ctx context.Context, promptAccountChooser bool) (*auth.ExternalSignIn, error) {
	if err := ctx.Err(); err != nil {
		return nil, &auth.ProviderError{Code: "auth/network-request-failed", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.promptFailure != "" {
		code := p.promptFailure
		p.promptFailure = ""
		return nil, &auth.ProviderError{Code: code}
	}

	// Without a forced chooser the flow reuses the active identity,
	// mirroring the silent path of the hosted SDK.
	rec := p.active
	if promptAccountChooser || rec == nil {
		if p.chosenEmail == "" {
			return nil, &auth.ProviderError{Code: "auth/popup-closed-by-user"}
		}
		rec = p.records[p.chosenEmail]
		if rec == nil {
			return nil, &auth.ProviderError{Code: "auth/user-not-found"}
		}
	}

	created := false
	if !rec.external {
		// First external sign-in upgrades the record in place; the
		// hosted provider links accounts by verified email the same way.
		rec.external = true
		rec.verified = true
		created = true
	}

	p.activate(rec)

	return &auth.ExternalSignIn{
		Identity:    identityOf(rec),
		NewIdentity: created,
		StoreID:     rec.storeID,
	}, nil
}

// SignUp implements auth.ProviderClient.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*auth.ProviderIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, &auth.ProviderError{Code: "auth/network-request-failed", Err: err}
	}

	email = normalizeEmail(email)

	if len(password) < p.cfg.MinPasswordLength {
		return nil, &auth.ProviderError{Code: "auth/weak-password"}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, &auth.ProviderError{Code: "auth/internal-error", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.records[email]; exists {
		return nil, &auth.ProviderError{Code: "auth/email-already-in-use"}
	}

	rec := &record{
		id:           externalID(email),
		email:        email,
		passwordHash: hash,
		displayName:  displayName,
	}
	p.records[email] = rec
	p.activate(rec)

	return identityOf(rec), nil
}

// SignOut implements auth.ProviderClient. Idempotent.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return nil
	}

	p.active = nil
	p.notify(nil)
	return nil
}

// BearerToken implements auth.ProviderClient. Returns "" with no error
// when nobody is signed in.
func (p *Provider) BearerToken(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	rec := p.active
	p.mu.Unlock()

	if rec == nil {
		return "", nil
	}

	if len(p.cfg.SigningKey) == 0 {
		return "", &auth.ProviderError{Code: "auth/internal-error", Err: errors.New("no signing key configured")}
	}

	now := p.now()
	claims := &auth.StoreClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.Issuer,
			Subject:   rec.id,
			Audience:  jwt.ClaimStrings(p.cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.TokenTTL)),
		},
		UID:      rec.id,
		UserRole: rec.role,
		Store:    rec.storeID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.cfg.SigningKey)
	if err != nil {
		return "", &auth.ProviderError{Code: "auth/internal-error", Err: err}
	}

	return signed, nil
}

// Subscribe implements auth.ProviderClient. Listeners fire in
// registration order for every identity transition.
func (p *Provider) Subscribe(listener func(identity *auth.ProviderIdentity)) func() {
	if listener == nil {
		return func() {}
	}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// activate swaps the active identity and notifies listeners. Callers
// hold p.mu.
func (p *Provider) activate(rec *record) {
	p.active = rec
	p.notify(identityOf(rec))
}

// notify dispatches to listeners in registration order. Callers hold
// p.mu.
func (p *Provider) notify(identity *auth.ProviderIdentity) {
	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		p.listeners[id](identity)
	}
}

// rateLimited prunes stale attempts and checks the threshold. Callers
// hold p.mu.
func (p *Provider) rateLimited(email string) bool {
	cutoff := p.now().Add(-p.cfg.AttemptWindow)
	kept := p.attempts[email][:0]
	for _, at := range p.attempts[email] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	p.attempts[email] = kept
	return len(kept) >= p.cfg.MaxAttempts
}

func (p *Provider) recordAttempt(email string) {
	p.attempts[email] = append(p.attempts[email], p.now())
}

func identityOf(rec *record) *auth.ProviderIdentity {
	if rec == nil {
		return nil
	}
	return &auth.ProviderIdentity{
		ExternalID: rec.id,
		EmailAddr:  rec.email,
		Name:       rec.displayName,
		Verified:   rec.verified,
	}
}
