package auth

import (
	"context"
	"sync"
	"time"
)

// SlugAvailability is the advisory state of a candidate slug.
type SlugAvailability string

const (
	// SlugUnknown means no check has completed for the candidate.
	SlugUnknown SlugAvailability = "unknown"
	// SlugAvailable means the last check found no committed store.
	SlugAvailable SlugAvailability = "available"
	// SlugTaken means the last check found a committed store.
	SlugTaken SlugAvailability = "taken"
)

// SlugCandidate is the ephemeral value tracked while the user types. It
// is never persisted; the conditional create at provisioning time is the
// authoritative uniqueness decision.
type SlugCandidate struct {
	Raw          string
	Normalized   string
	Availability SlugAvailability
	Suggestions  []string
	Err          error
}

// SlugChecker debounces availability lookups for a human-chosen slug.
// Each SetCandidate call restarts the debounce window; only the latest
// candidate's result is ever applied. One checker instance serves one
// input field.
type SlugChecker struct {
	finder         SlugFinder
	debounce       time.Duration
	checkTimeout   time.Duration
	maxSuggestions int
	onResult       func(SlugCandidate)
	logger         Logger

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	candidate  SlugCandidate
}

// SlugCheckerOption customizes checker construction.
type SlugCheckerOption func(*SlugChecker)

// NewSlugChecker builds a checker over the stores read surface.
func NewSlugChecker(finder SlugFinder, opts ...SlugCheckerOption) *SlugChecker {
	_, logger := ResolveLogger("auth.slug_checker", nil, nil)

	c := &SlugChecker{
		finder:         finder,
		debounce:       500 * time.Millisecond,
		checkTimeout:   5 * time.Second,
		maxSuggestions: DefaultSlugSuggestions,
		logger:         logger,
		candidate:      SlugCandidate{Availability: SlugUnknown},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) SlugCheckerOption {
	return func(c *SlugChecker) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithMaxSuggestions overrides how many fallbacks a taken slug produces.
func WithMaxSuggestions(n int) SlugCheckerOption {
	return func(c *SlugChecker) {
		if n > 0 {
			c.maxSuggestions = n
		}
	}
}

// WithResultHandler registers a callback fired whenever a check resolves.
// The callback receives a snapshot and must not call back into the
// checker synchronously.
func WithResultHandler(fn func(SlugCandidate)) SlugCheckerOption {
	return func(c *SlugChecker) {
		c.onResult = fn
	}
}

// WithSlugCheckerLogger overrides the checker logger.
func WithSlugCheckerLogger(logger Logger) SlugCheckerOption {
	return func(c *SlugChecker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// SetCandidate normalizes raw input and, when it passes the synchronous
// format gate, schedules an availability check after the debounce window.
// Every call cancels the pending check for the previous value; a check
// already in flight keeps running but its result is discarded.
func (c *SlugChecker) SetCandidate(raw string) {
	normalized := NormalizeSlug(raw)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	gen := c.generation

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	c.candidate = SlugCandidate{
		Raw:          raw,
		Normalized:   normalized,
		Availability: SlugUnknown,
	}

	if err := ValidateSlug(normalized); err != nil {
		// Format failures short-circuit; the backend never sees them.
		c.candidate.Err = err
		c.notifyLocked()
		return
	}

	c.timer = time.AfterFunc(c.debounce, func() {
		c.runCheck(gen, normalized)
	})
}

// Candidate returns a snapshot of the current candidate state.
func (c *SlugChecker) Candidate() SlugCandidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// CheckAvailability performs a direct, non-debounced availability check.
// It does not touch the candidate state.
func (c *SlugChecker) CheckAvailability(ctx context.Context, candidate string) (bool, error) {
	normalized := NormalizeSlug(candidate)
	if err := ValidateSlug(normalized); err != nil {
		return false, err
	}

	exists, err := c.finder.SlugExists(ctx, normalized)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// MarkTaken flags the current candidate as taken, with suggestions. The
// registration orchestrator calls this when the authoritative conditional
// create loses the race the advisory check could not see.
func (c *SlugChecker) MarkTaken(slug string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.candidate.Normalized != slug {
		c.candidate = SlugCandidate{Raw: slug, Normalized: slug}
	}
	c.candidate.Availability = SlugTaken
	c.candidate.Suggestions = SuggestSlugs(slug, c.maxSuggestions)
	c.candidate.Err = nil
	c.notifyLocked()
}

// Stop cancels any pending debounce timer.
func (c *SlugChecker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// runCheck performs the backend lookup for one debounced candidate. The
// generation guard drops results that were superseded while the lookup
// was in flight: last-submitted candidate wins.
func (c *SlugChecker) runCheck(gen uint64, slug string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.checkTimeout)
	defer cancel()

	exists, err := c.finder.SlugExists(ctx, slug)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	if err != nil {
		c.logger.Warn("slug availability check failed", "slug", slug, "error", err)
		c.candidate.Err = err
		c.candidate.Availability = SlugUnknown
		c.notifyLocked()
		return
	}

	c.candidate.Err = nil
	if exists {
		c.candidate.Availability = SlugTaken
		c.candidate.Suggestions = SuggestSlugs(slug, c.maxSuggestions)
	} else {
		c.candidate.Availability = SlugAvailable
		c.candidate.Suggestions = nil
	}
	c.notifyLocked()
}

func (c *SlugChecker) snapshotLocked() SlugCandidate {
	snapshot := c.candidate
	snapshot.Suggestions = append([]string(nil), c.candidate.Suggestions...)
	return snapshot
}

func (c *SlugChecker) notifyLocked() {
	if c.onResult == nil {
		return
	}
	c.onResult(c.snapshotLocked())
}
