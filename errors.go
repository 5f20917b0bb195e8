package auth

import (
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Identity errors: user facing, recoverable by re-submission.
var (
	// ErrInvalidCredentials is returned when the identifier/password pair
	// does not match an identity.
	ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
				WithTextCode("INVALID_CREDENTIALS").
				WithCode(goerrors.CodeUnauthorized)

	// ErrEmailInUse is returned by sign-up when the email already has an
	// identity.
	ErrEmailInUse = goerrors.New("email already in use", goerrors.CategoryConflict).
			WithTextCode("EMAIL_IN_USE").
			WithCode(goerrors.CodeConflict)

	// ErrWeakCredentials is returned when the password fails provider policy.
	ErrWeakCredentials = goerrors.New("password does not meet policy", goerrors.CategoryValidation).
				WithTextCode("WEAK_CREDENTIALS").
				WithCode(goerrors.CodeBadRequest)

	// ErrRateLimited is returned after too many failed attempts.
	ErrRateLimited = goerrors.New("too many attempts, try again later", goerrors.CategoryRateLimit).
			WithTextCode("RATE_LIMITED")

	// ErrPromptClosed is returned when the user dismissed the external
	// provider's account prompt.
	ErrPromptClosed = goerrors.New("sign-in prompt closed", goerrors.CategoryAuth).
			WithTextCode("PROMPT_CLOSED").
			WithCode(goerrors.CodeUnauthorized)

	// ErrPromptBlocked is returned when the environment blocked the
	// external provider's prompt.
	ErrPromptBlocked = goerrors.New("sign-in prompt blocked", goerrors.CategoryAuth).
			WithTextCode("PROMPT_BLOCKED").
			WithCode(goerrors.CodeUnauthorized)

	// ErrProviderUnavailable covers provider network/backend failures.
	ErrProviderUnavailable = goerrors.New("identity provider unavailable", goerrors.CategoryOperation).
				WithTextCode("PROVIDER_UNAVAILABLE")
)

// Session errors: logged and collapsed to "no session" on read paths.
var (
	// ErrTokenExpired is our token expired error
	ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
			WithTextCode("TOKEN_EXPIRED").
			WithCode(goerrors.CodeUnauthorized)

	// ErrTokenMalformed covers undecodable or tampered tokens.
	ErrTokenMalformed = goerrors.New("token malformed", goerrors.CategoryAuth).
				WithTextCode("TOKEN_MALFORMED").
				WithCode(goerrors.CodeUnauthorized)

	// ErrTokenVerification covers signature or claim verification failures.
	ErrTokenVerification = goerrors.New("token verification failed", goerrors.CategoryAuth).
				WithTextCode("TOKEN_VERIFICATION").
				WithCode(goerrors.CodeUnauthorized)

	// ErrImmutableClaimMutation rejects claims decorators that touch
	// identity claims instead of extension data.
	ErrImmutableClaimMutation = goerrors.New("immutable claim mutated", goerrors.CategoryInternal).
					WithTextCode("IMMUTABLE_CLAIM_MUTATION").
					WithCode(goerrors.CodeInternal)
)

// Slug and registration errors.
var (
	// ErrSlugTooShort is returned for normalized slugs under 3 characters.
	ErrSlugTooShort = goerrors.New("slug too short", goerrors.CategoryValidation).
			WithTextCode("SLUG_TOO_SHORT").
			WithCode(goerrors.CodeBadRequest)

	// ErrSlugInvalid is returned for slugs outside [a-z0-9-].
	ErrSlugInvalid = goerrors.New("slug has invalid characters", goerrors.CategoryValidation).
			WithTextCode("SLUG_INVALID").
			WithCode(goerrors.CodeBadRequest)

	// ErrSlugTaken is returned when a slug is already committed to a store.
	// It is raised both by the advisory availability check and by the
	// authoritative conditional create at provisioning time.
	ErrSlugTaken = goerrors.New("slug already taken", goerrors.CategoryConflict).
			WithTextCode("SLUG_TAKEN").
			WithCode(goerrors.CodeConflict)

	// ErrInvalidTransition is returned when a registration step is
	// submitted out of order.
	ErrInvalidTransition = goerrors.New("invalid registration transition", goerrors.CategoryValidation).
				WithTextCode("INVALID_REGISTRATION_TRANSITION").
				WithCode(goerrors.CodeBadRequest)

	// ErrSubmitInFlight rejects concurrent submissions of the same draft.
	ErrSubmitInFlight = goerrors.New("registration step already in flight", goerrors.CategoryConflict).
				WithTextCode("SUBMIT_IN_FLIGHT").
				WithCode(goerrors.CodeConflict)

	// ErrSlugNotConfirmed rejects store submissions whose slug was not
	// confirmed available by the checker.
	ErrSlugNotConfirmed = goerrors.New("slug availability not confirmed", goerrors.CategoryValidation).
				WithTextCode("SLUG_NOT_CONFIRMED").
				WithCode(goerrors.CodeBadRequest)
)

var (
	// ErrNoEmptyString guards hashing helpers against empty input.
	ErrNoEmptyString = errors.New("string must not be empty")

	// ErrMismatchedHashAndPassword is the normalized bcrypt mismatch error.
	ErrMismatchedHashAndPassword = errors.New("mismatched password")

	// ErrAccountNotFound is the error we return for missing accounts.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUnableToFindSession is the error when the request has no cookie.
	ErrUnableToFindSession = errors.New("unable to find session")

	// ErrUnableToDecodeSession unable to decode the session artifact.
	ErrUnableToDecodeSession = errors.New("unable to decode session")

	// ErrUnableToMapClaims unable to get claims from token.
	ErrUnableToMapClaims = errors.New("unable to map claims")
)

// ProviderError carries the identity provider's raw failure detail. It
// only exists at the ProviderClient boundary; mapProviderError converts
// it before anything downstream sees it.
type ProviderError struct {
	Code        string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Description != "" {
		return fmt.Sprintf("provider %s: %s", e.Code, e.Description)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("provider %s", e.Code)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// providerErrorCodes maps the provider SDK's string codes to the closed
// taxonomy. Unknown codes fall back to ErrProviderUnavailable so callers
// get a generic retry message instead of leaked provider detail.
var providerErrorCodes = map[string]*goerrors.Error{
	"auth/invalid-credential":      ErrInvalidCredentials,
	"auth/wrong-password":          ErrInvalidCredentials,
	"auth/user-not-found":          ErrInvalidCredentials,
	"auth/email-already-in-use":    ErrEmailInUse,
	"auth/weak-password":           ErrWeakCredentials,
	"auth/too-many-requests":       ErrRateLimited,
	"auth/popup-closed-by-user":    ErrPromptClosed,
	"auth/cancelled-popup-request": ErrPromptClosed,
	"auth/popup-blocked":           ErrPromptBlocked,
	"auth/network-request-failed":  ErrProviderUnavailable,
	"auth/internal-error":          ErrProviderUnavailable,
}

func mapProviderError(err error) error {
	if err == nil {
		return nil
	}

	var perr *ProviderError
	if !errors.As(err, &perr) || perr == nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity provider call failed")
	}

	mapped, ok := providerErrorCodes[perr.Code]
	if !ok {
		mapped = ErrProviderUnavailable
	}

	clone := mapped.Clone()
	clone.Source = perr
	clone.WithMetadata(map[string]any{
		"provider_code": perr.Code,
	})

	return clone
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == ErrTokenExpired.TextCode {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == ErrTokenMalformed.TextCode {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsSlugConflict reports whether err represents a committed-slug conflict.
func IsSlugConflict(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.TextCode == ErrSlugTaken.TextCode
}

// userMessages maps text codes to human-readable copy. Unmapped codes get
// a generic retry message.
var userMessages = map[string]string{
	"INVALID_CREDENTIALS":  "Email or password is incorrect.",
	"EMAIL_IN_USE":         "That email already has an account. Try signing in instead.",
	"WEAK_CREDENTIALS":     "Choose a longer password.",
	"RATE_LIMITED":         "Too many attempts. Wait a moment and try again.",
	"PROMPT_CLOSED":        "The sign-in window was closed before finishing.",
	"PROMPT_BLOCKED":       "Your browser blocked the sign-in window.",
	"PROVIDER_UNAVAILABLE": "We could not reach the sign-in service. Try again.",
	"SLUG_TOO_SHORT":       "Your store address needs at least 3 characters.",
	"SLUG_INVALID":         "Store addresses can only use letters, numbers, and dashes.",
	"SLUG_TAKEN":           "That store address is taken. Pick another one.",
	"SLUG_NOT_CONFIRMED":   "Wait for the address check to finish before continuing.",
}

// UserMessage resolves a human-readable message for err without leaking
// internal detail.
func UserMessage(err error) string {
	const fallback = "Something went wrong. Please try again."
	if err == nil {
		return fallback
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return fallback
	}

	if msg, ok := userMessages[richErr.TextCode]; ok {
		return msg
	}
	return fallback
}
