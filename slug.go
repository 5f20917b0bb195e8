package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinSlugLength is the shortest normalized slug we accept.
const MinSlugLength = 3

// DefaultSlugSuggestions is the number of fallback suggestions generated
// when a slug is taken.
const DefaultSlugSuggestions = 5

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

var (
	hyphenRuns     = regexp.MustCompile(`-+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	invalidRunes   = regexp.MustCompile(`[^a-z0-9-]`)
)

// diacriticStripper decomposes characters and drops combining marks, so
// "Café Sol" normalizes through "Cafe Sol".
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeSlug converts raw user input into slug form: lower-case,
// diacritics stripped, whitespace runs hyphenated, characters outside
// [a-z0-9-] removed, repeated hyphens collapsed, edges trimmed.
func NormalizeSlug(raw string) string {
	s, _, err := transform.String(diacriticStripper, raw)
	if err != nil {
		s = raw
	}

	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRuns.ReplaceAllString(s, "-")
	s = invalidRunes.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	return s
}

// ValidateSlug runs the synchronous format checks that gate the debounce
// timer: length and character set. Format failures never reach the
// backend.
func ValidateSlug(slug string) error {
	if len(slug) < MinSlugLength {
		return ErrSlugTooShort
	}

	if err := validation.Validate(slug, validation.Match(slugPattern)); err != nil {
		return ErrSlugInvalid
	}

	return nil
}

// SuggestSlugs produces up to n numbered fallbacks for a taken slug.
// Suggestions are hints only; their own availability is not re-checked.
func SuggestSlugs(slug string, n int) []string {
	if n <= 0 {
		n = DefaultSlugSuggestions
	}

	suggestions := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		suggestions = append(suggestions, fmt.Sprintf("%s-%d", slug, i))
	}
	return suggestions
}
