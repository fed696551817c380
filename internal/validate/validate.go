// Package validate holds the input predicates and the sanitizer applied at
// the API boundary. Every function is pure and safe on any input.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Length bounds, in runes.
const (
	PasswordMin = 8
	PasswordMax = 128

	ContentMin = 10
	ContentMax = 50000

	QuestionMin = 3
	QuestionMax = 1000

	SearchMin = 2
	SearchMax = 100

	TitleMin = 3
	TitleMax = 200

	CategoryMin = 2
	CategoryMax = 50

	CommentMin = 1
	CommentMax = 2000

	// ShortTextMax bounds single-line identifiers before they are validated.
	ShortTextMax = 254
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// SanitizeText trims surrounding whitespace, removes angle brackets and
// truncates the result to max runes. A max of zero or less disables
// truncation. The output is normalized, not escaped.
func SanitizeText(s string, max int) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	if max > 0 && utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max])
	}
	return s
}

// Username reports whether s is 3-30 letters, digits or underscores.
func Username(s string) bool { return usernameRe.MatchString(s) }

// Email reports whether s looks like local@domain.tld.
func Email(s string) bool { return emailRe.MatchString(s) }

// Password reports whether s has an acceptable length.
func Password(s string) bool { return between(s, PasswordMin, PasswordMax) }

// ResearchContent reports whether s is an acceptable research body.
func ResearchContent(s string) bool { return between(s, ContentMin, ContentMax) }

// Question reports whether s is an acceptable question about a post.
func Question(s string) bool { return between(s, QuestionMin, QuestionMax) }

// SearchQuery reports whether s is an acceptable search term.
func SearchQuery(s string) bool { return between(s, SearchMin, SearchMax) }

// Title reports whether s is an acceptable post title.
func Title(s string) bool { return between(s, TitleMin, TitleMax) }

// Category reports whether s is an acceptable category tag.
func Category(s string) bool { return between(s, CategoryMin, CategoryMax) }

// Comment reports whether s is an acceptable comment body.
func Comment(s string) bool { return between(s, CommentMin, CommentMax) }

func between(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}
