package auth

import (
	"context"
	"sync"
)

// IdentityObserver is the surface of Client the watcher depends on.
type IdentityObserver interface {
	OnIdentityChange(fn IdentityListener) (cancel func())
	BearerToken(ctx context.Context, forceRefresh bool) (string, error)
}

// IdentityChangeWatcher observes identity transitions and invalidates
// identity-scoped caches held by external subsystems (sales, profile)
// exactly once per transition. Invalidation happens only after the new
// identity is fully known, never speculatively. After invalidation it
// optionally re-syncs the trusted session through a SessionSyncer.
//
// The watcher holds no data itself; it only emits signals.
type IdentityChangeWatcher struct {
	client IdentityObserver
	syncer SessionSyncer
	logger Logger

	mu           sync.Mutex
	invalidators map[int]CacheInvalidator
	nextID       int
	lastID       string
	cancel       func()
}

// WatcherOption customizes watcher construction.
type WatcherOption func(*IdentityChangeWatcher)

// NewIdentityChangeWatcher builds a watcher over the client's identity
// stream. Call Watch to start observing.
func NewIdentityChangeWatcher(client IdentityObserver, opts ...WatcherOption) *IdentityChangeWatcher {
	_, logger := ResolveLogger("auth.identity_watcher", nil, nil)

	w := &IdentityChangeWatcher{
		client:       client,
		logger:       logger,
		invalidators: map[int]CacheInvalidator{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	return w
}

// WithWatcherSessionSyncer re-syncs the trusted session after each
// sign-in or identity swap.
func WithWatcherSessionSyncer(syncer SessionSyncer) WatcherOption {
	return func(w *IdentityChangeWatcher) {
		w.syncer = syncer
	}
}

// WithWatcherLogger overrides the watcher logger.
func WithWatcherLogger(logger Logger) WatcherOption {
	return func(w *IdentityChangeWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Register adds a cache-invalidation callback. Callbacks must tolerate
// being called when the subsystem has no cached state. The returned
// function removes the registration.
func (w *IdentityChangeWatcher) Register(fn CacheInvalidator) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.invalidators[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.invalidators, id)
		w.mu.Unlock()
	}
}

// Watch subscribes to the identity stream. Calling it twice is a no-op
// until Close is called.
func (w *IdentityChangeWatcher) Watch() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return
	}
	w.cancel = w.client.OnIdentityChange(w.observe)
}

// Close stops observing. Registered invalidators stay registered.
func (w *IdentityChangeWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

// observe handles one identity transition. The client already filtered
// same-id refreshes, but the watcher re-checks against its own last
// observed id so direct calls in tests and replays stay exactly-once.
func (w *IdentityChangeWatcher) observe(identity *ProviderIdentity) {
	id := ""
	if identity != nil {
		id = identity.ExternalID
	}

	w.mu.Lock()
	if id == w.lastID {
		w.mu.Unlock()
		return
	}
	w.lastID = id

	callbacks := make([]CacheInvalidator, 0, len(w.invalidators))
	for _, fn := range w.invalidators {
		callbacks = append(callbacks, fn)
	}
	w.mu.Unlock()

	// The new identity is fully known at this point; stale caches from
	// the previous identity must be gone before any consumer queries
	// under the new one.
	for _, fn := range callbacks {
		fn()
	}

	if id != "" && w.syncer != nil {
		ctx := context.Background()
		token, err := w.client.BearerToken(ctx, false)
		if err != nil || token == "" {
			w.logger.Warn("identity watcher could not mint bearer token", "error", err)
			return
		}
		if err := w.syncer.SyncSession(ctx, token); err != nil {
			w.logger.Warn("identity watcher session sync failed", "error", err)
		}
	}
}
