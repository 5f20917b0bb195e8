package auth

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// RegistrationStep names a state of the signup workflow.
type RegistrationStep string

const (
	// StepCollectingIdentity gathers credentials or an external sign-in.
	StepCollectingIdentity RegistrationStep = "collecting-identity"
	// StepCollectingStore gathers the store details and slug.
	StepCollectingStore RegistrationStep = "collecting-store"
	// StepProvisioning performs the account/store/session side effects.
	StepProvisioning RegistrationStep = "provisioning"
	// StepComplete is terminal; the draft may be discarded.
	StepComplete RegistrationStep = "complete"
	// StepAbandoned is absorbing, reachable from any non-complete state.
	StepAbandoned RegistrationStep = "abandoned"
)

// IdentityPayload is the email+password identity submission.
type IdentityPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Validate will run validation rules
func (p IdentityPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&p.DisplayName, validation.Required, validation.Length(1, 200)),
	)
}

// StoreDetails is the store submission collected in the second step.
// WhatsApp numbers are expected in E.164 form ("+5215512345678").
type StoreDetails struct {
	Name     string    `json:"name"`
	Type     StoreType `json:"store_type"`
	WhatsApp string    `json:"whatsapp_number"`
	Slug     string    `json:"slug"`
}

// Validate will run validation rules
func (d StoreDetails) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&d.Type, validation.Required, validation.In(
			StoreTypeRetail,
			StoreTypeFood,
			StoreTypeServices,
			StoreTypeOther,
		)),
		validation.Field(&d.WhatsApp, validation.Required, validation.By(validateWhatsApp)),
	)
}

func validateWhatsApp(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "contact number must be in international format")
	}

	if !phonenumbers.IsValidNumber(num) {
		return goerrors.New("contact number is not valid", goerrors.CategoryValidation)
	}

	return nil
}

// RegistrationDraft is the ephemeral multi-step state. It lives only in
// memory: losing it on reload discards progress by design, it never
// silently corrupts persisted state.
type RegistrationDraft struct {
	Step            RegistrationStep
	Identity        *ProviderIdentity
	DisplayName     string
	ExternalUser    bool
	IdentityCreated bool
	Store           StoreDetails

	// password is held only between identity collection and the
	// irreversible provider sign-up, then cleared.
	password string
}

// IdentityService is the surface of Client the orchestrator uses.
type IdentityService interface {
	SignUp(ctx context.Context, email, password, displayName string) (*ProviderIdentity, error)
	SignInWithProvider(ctx context.Context, promptAccountChooser bool) (*ExternalSignIn, error)
	BearerToken(ctx context.Context, forceRefresh bool) (string, error)
}

// StoreProvisioner commits the account and store records transactionally.
// RepositoryManager satisfies it.
type StoreProvisioner interface {
	ProvisionStore(ctx context.Context, account *Account, store *Store) (*Account, *Store, error)
}

// RegistrationResult reports the outcome of a completed provisioning run.
type RegistrationResult struct {
	Account       *Account
	Store         *Store
	SessionSynced bool
	// Warning is set for degraded success: the authoritative records
	// exist but session creation failed and the user must sign in.
	Warning string
}

// Registration drives one signup attempt through the workflow. One
// instance serves one draft; concurrent submissions against the same
// draft are rejected, not queued.
type Registration struct {
	identity     IdentityService
	repo         StoreProvisioner
	checker      *SlugChecker
	syncer       SessionSyncer
	transitions  map[RegistrationStep]map[RegistrationStep]struct{}
	logger       Logger
	provider     LoggerProvider
	activitySink ActivitySink
	now          nowFunc

	mu       sync.Mutex
	inFlight bool
	draft    RegistrationDraft
}

// RegistrationOption customizes orchestrator construction.
type RegistrationOption func(*Registration)

// NewRegistration starts a draft in the collecting-identity state.
func NewRegistration(identity IdentityService, repo StoreProvisioner, opts ...RegistrationOption) *Registration {
	provider, logger := ResolveLogger("auth.registration", nil, nil)

	r := &Registration{
		identity: identity,
		repo:     repo,
		transitions: map[RegistrationStep]map[RegistrationStep]struct{}{
			StepCollectingIdentity: {
				StepCollectingStore: {},
				StepComplete:        {},
				StepAbandoned:       {},
			},
			StepCollectingStore: {
				StepProvisioning: {},
				StepAbandoned:    {},
			},
			StepProvisioning: {
				StepComplete:           {},
				StepCollectingStore:    {},
				StepCollectingIdentity: {},
				StepAbandoned:          {},
			},
		},
		logger:       logger,
		provider:     provider,
		activitySink: noopActivitySink{},
		now:          time.Now,
		draft:        RegistrationDraft{Step: StepCollectingIdentity},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// WithRegistrationSlugChecker gates store submission on the checker's
// confirmed availability.
func WithRegistrationSlugChecker(checker *SlugChecker) RegistrationOption {
	return func(r *Registration) {
		r.checker = checker
	}
}

// WithRegistrationSessionSyncer wires the trusted-session sync performed
// at the end of provisioning.
func WithRegistrationSessionSyncer(syncer SessionSyncer) RegistrationOption {
	return func(r *Registration) {
		r.syncer = syncer
	}
}

// WithRegistrationActivitySink configures an audit sink.
func WithRegistrationActivitySink(sink ActivitySink) RegistrationOption {
	return func(r *Registration) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// WithRegistrationLogger overrides the orchestrator logger.
func WithRegistrationLogger(logger Logger) RegistrationOption {
	return func(r *Registration) {
		r.provider, r.logger = ResolveLogger("auth.registration", r.provider, logger)
	}
}

// WithRegistrationClock injects a custom clock (useful for tests).
func WithRegistrationClock(clock nowFunc) RegistrationOption {
	return func(r *Registration) {
		if clock != nil {
			r.now = clock
		}
	}
}

// Step returns the draft's current state.
func (r *Registration) Step() RegistrationStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft.Step
}

// Draft returns a snapshot of the draft without the held password.
func (r *Registration) Draft() RegistrationDraft {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.draft
	snapshot.password = ""
	return snapshot
}

// SubmitIdentity collects the email+password identity and advances to
// store collection. No provider side effect happens yet; the irreversible
// sign-up runs during provisioning.
func (r *Registration) SubmitIdentity(ctx context.Context, payload IdentityPayload) error {
	release, err := r.begin(StepCollectingIdentity)
	if err != nil {
		return err
	}
	defer release()

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid identity payload")
	}

	r.mu.Lock()
	r.draft.Identity = &ProviderIdentity{
		EmailAddr: payload.Email,
		Name:      payload.DisplayName,
	}
	r.draft.DisplayName = payload.DisplayName
	r.draft.password = payload.Password
	r.draft.ExternalUser = false
	r.mu.Unlock()

	return r.transition(ctx, StepCollectingStore, map[string]any{
		"identifier": payload.Email,
	})
}

// SubmitExternalIdentity runs the external-provider sign-in. When the
// identity already carries a store claim the workflow skips straight to
// complete: the account was provisioned elsewhere and only the session
// needs syncing.
func (r *Registration) SubmitExternalIdentity(ctx context.Context, promptAccountChooser bool) error {
	release, err := r.begin(StepCollectingIdentity)
	if err != nil {
		return err
	}
	defer release()

	result, err := r.identity.SignInWithProvider(ctx, promptAccountChooser)
	if err != nil {
		// No side effect occurred; the draft stays in collecting-identity.
		return err
	}

	r.mu.Lock()
	r.draft.Identity = result.Identity
	r.draft.DisplayName = result.Identity.Name
	r.draft.ExternalUser = true
	r.draft.IdentityCreated = true
	r.mu.Unlock()

	if result.StoreID != "" {
		r.syncSessionBestEffort(ctx)
		return r.transition(ctx, StepComplete, map[string]any{
			"external": true,
			"store_id": result.StoreID,
		})
	}

	return r.transition(ctx, StepCollectingStore, map[string]any{
		"external":     true,
		"new_identity": result.NewIdentity,
	})
}

// ResumeIdentity resumes an interrupted registration after a normal
// sign-in: the identity already exists at the provider but has no store
// yet, so the workflow re-enters store collection.
func (r *Registration) ResumeIdentity(ctx context.Context, identity *ProviderIdentity) error {
	release, err := r.begin(StepCollectingIdentity)
	if err != nil {
		return err
	}
	defer release()

	if identity == nil || identity.ExternalID == "" {
		return ErrInvalidTransition
	}

	r.mu.Lock()
	r.draft.Identity = identity
	r.draft.DisplayName = identity.Name
	r.draft.IdentityCreated = true
	r.mu.Unlock()

	return r.transition(ctx, StepCollectingStore, map[string]any{
		"resumed": true,
	})
}

// SubmitStore validates the store details and runs provisioning. On a
// slug conflict the workflow returns to collecting-store with the slug
// marked taken; the identity created in sub-step (a) is never rolled
// back.
func (r *Registration) SubmitStore(ctx context.Context, details StoreDetails) (*RegistrationResult, error) {
	release, err := r.begin(StepCollectingStore)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := details.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid store payload")
	}

	details.Slug = NormalizeSlug(details.Slug)
	if err := ValidateSlug(details.Slug); err != nil {
		return nil, err
	}

	if err := r.requireConfirmedSlug(details.Slug); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.draft.Store = details
	r.mu.Unlock()

	if err := r.transition(ctx, StepProvisioning, map[string]any{
		"slug": details.Slug,
	}); err != nil {
		return nil, err
	}

	return r.provision(ctx, details)
}

// Abandon moves the draft into the absorbing abandoned state and clears
// collected data.
func (r *Registration) Abandon(ctx context.Context) error {
	r.mu.Lock()
	step := r.draft.Step
	r.mu.Unlock()

	if step == StepComplete || step == StepAbandoned {
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": step,
			"to":   StepAbandoned,
		})
	}

	if err := r.transition(ctx, StepAbandoned, nil); err != nil {
		return err
	}

	r.mu.Lock()
	r.draft = RegistrationDraft{Step: StepAbandoned}
	r.mu.Unlock()

	return nil
}

// provision runs the four side-effect sub-steps. Sub-step (a), provider
// sign-up, is irreversible: a failure after it leaves an identity with no
// store, which is a valid state recoverable through ResumeIdentity.
func (r *Registration) provision(ctx context.Context, details StoreDetails) (*RegistrationResult, error) {
	r.mu.Lock()
	draft := r.draft
	r.mu.Unlock()

	// (a) create the provider identity for the email+password path.
	if !draft.ExternalUser && !draft.IdentityCreated {
		identity, err := r.identity.SignUp(ctx, draft.Identity.EmailAddr, draft.password, draft.DisplayName)
		if err != nil {
			// Nothing was created; fall back to identity collection.
			if terr := r.transition(ctx, StepCollectingIdentity, map[string]any{
				"error": err.Error(),
			}); terr != nil {
				r.logger.Error("provisioning rollback transition failed", "error", terr)
			}
			return nil, err
		}

		r.mu.Lock()
		r.draft.Identity = identity
		r.draft.IdentityCreated = true
		r.draft.password = ""
		draft = r.draft
		r.mu.Unlock()
	}

	// (b)(c)(d) account, conditional store create, and link run in one
	// transaction; the conditional create is the authoritative slug
	// uniqueness decision.
	account, store, err := r.repo.ProvisionStore(ctx, &Account{
		ExternalID:    draft.Identity.ExternalID,
		Email:         draft.Identity.EmailAddr,
		DisplayName:   draft.DisplayName,
		Role:          RoleOwner,
		EmailVerified: draft.Identity.Verified,
	}, &Store{
		Slug:     details.Slug,
		Name:     details.Name,
		Type:     details.Type,
		WhatsApp: details.WhatsApp,
		Active:   true,
	})

	if err != nil {
		if IsSlugConflict(err) {
			if r.checker != nil {
				r.checker.MarkTaken(details.Slug)
			}
			if terr := r.transition(ctx, StepCollectingStore, map[string]any{
				"slug":     details.Slug,
				"conflict": true,
			}); terr != nil {
				r.logger.Error("slug conflict transition failed", "error", terr)
			}
			return nil, err
		}

		// Backend failure: re-submission of the same step is safe, the
		// conditional create prevents duplicate stores.
		if terr := r.transition(ctx, StepCollectingStore, map[string]any{
			"error": err.Error(),
		}); terr != nil {
			r.logger.Error("provisioning backoff transition failed", "error", terr)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "store provisioning failed")
	}

	r.emitEvent(ctx, ActivityEventStoreCreated, account.ExternalID, map[string]any{
		"store_id": store.ID.String(),
		"slug":     store.Slug,
	})

	// (e) session sync is retryable through a normal sign-in, so a
	// failure here degrades the result instead of failing it.
	result := &RegistrationResult{Account: account, Store: store}
	if synced := r.syncSessionBestEffort(ctx); synced {
		result.SessionSynced = true
	} else {
		result.Warning = "account created, please sign in"
	}

	if err := r.transition(ctx, StepComplete, map[string]any{
		"store_id": store.ID.String(),
	}); err != nil {
		return nil, err
	}

	r.emitEvent(ctx, ActivityEventRegistrationDone, account.ExternalID, map[string]any{
		"store_id":       store.ID.String(),
		"session_synced": result.SessionSynced,
	})

	return result, nil
}

func (r *Registration) requireConfirmedSlug(slug string) error {
	if r.checker == nil {
		return nil
	}

	candidate := r.checker.Candidate()
	if candidate.Normalized != slug || candidate.Availability != SlugAvailable {
		return ErrSlugNotConfirmed.Clone().WithMetadata(map[string]any{
			"slug":         slug,
			"availability": candidate.Availability,
		})
	}

	return nil
}

func (r *Registration) syncSessionBestEffort(ctx context.Context) bool {
	if r.syncer == nil {
		return false
	}

	token, err := r.identity.BearerToken(ctx, true)
	if err != nil || token == "" {
		r.logger.Warn("registration could not mint bearer token", "error", err)
		return false
	}

	if err := r.syncer.SyncSession(ctx, token); err != nil {
		r.logger.Warn("registration session sync failed", "error", err)
		r.emitEvent(ctx, ActivityEventSessionSyncFailure, "", map[string]any{
			"error": err.Error(),
		})
		return false
	}

	return true
}

// begin acquires the single-submission slot and verifies the draft is in
// the expected state. The returned release function must be deferred.
func (r *Registration) begin(expected RegistrationStep) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight {
		return nil, ErrSubmitInFlight
	}

	if r.draft.Step != expected {
		return nil, ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"step":     r.draft.Step,
			"expected": expected,
		})
	}

	r.inFlight = true
	return func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}, nil
}

// transition moves the draft to the target state, enforcing the
// transition graph, and records the step for auditing.
func (r *Registration) transition(ctx context.Context, target RegistrationStep, metadata map[string]any) error {
	r.mu.Lock()
	from := r.draft.Step

	if !r.canTransition(from, target) {
		r.mu.Unlock()
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	r.draft.Step = target
	userID := ""
	if r.draft.Identity != nil {
		userID = r.draft.Identity.ExternalID
	}
	r.mu.Unlock()

	event := ActivityEvent{
		EventType: ActivityEventRegistrationStep,
		Actor:     ActorRef{Type: "user", ID: userID},
		UserID:    userID,
		FromStep:  from,
		ToStep:    target,
		Metadata:  metadata,
	}
	r.recordActivity(ctx, event)

	return nil
}

func (r *Registration) canTransition(from, to RegistrationStep) bool {
	if allowed, ok := r.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (r *Registration) emitEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	r.recordActivity(ctx, ActivityEvent{
		EventType: eventType,
		Actor:     ActorRef{Type: "user", ID: userID},
		UserID:    userID,
		Metadata:  metadata,
	})
}

func (r *Registration) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}

	sink := normalizeActivitySink(r.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		r.logger.Warn("registration activity sink error: %v", err)
	}
}
