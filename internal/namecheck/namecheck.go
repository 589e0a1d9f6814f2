// Package namecheck sanitizes customer display names and derives the key
// used for duplicate detection in the queue.
package namecheck

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinLength = 2
	MaxLength = 24
)

var defaultBlocked = []string{
	"admin",
	"test",
	"unknown",
	"anonymous",
	"null",
	"undefined",
	"fuck",
	"shit",
	"bitch",
	"asshole",
	"sex",
	"xxx",
	"aaa",
	"zzz",
}

type Result struct {
	CleanedName string
	NameKey     string
}

type Validator struct {
	blocked []string
}

// New returns a Validator using the built-in denylist plus any extra parts.
// Extra parts are normalized the same way names are.
func New(extra ...string) *Validator {
	blocked := make([]string, 0, len(defaultBlocked)+len(extra))
	blocked = append(blocked, defaultBlocked...)
	for _, part := range extra {
		if k := Key(part); k != "" {
			blocked = append(blocked, k)
		}
	}
	return &Validator{blocked: blocked}
}

var std = New()

// Validate runs the default Validator.
func Validate(raw string) (Result, error) {
	return std.Validate(raw)
}

func (v *Validator) Validate(raw string) (Result, error) {
	cleaned := Clean(raw)
	if cleaned == "" {
		return Result{}, ErrEmptyName
	}

	n := utf8.RuneCountInString(cleaned)
	if n < MinLength {
		return Result{}, ErrTooShort
	}
	if n > MaxLength {
		return Result{}, ErrTooLong
	}

	key := Key(cleaned)
	if key == "" || isDigits(key) {
		return Result{}, ErrInvalidName
	}

	for _, part := range v.blocked {
		if strings.Contains(key, part) {
			return Result{}, ErrBlockedName
		}
	}

	return Result{CleanedName: cleaned, NameKey: key}, nil
}

// Clean trims the name and collapses internal whitespace runs to one space.
func Clean(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Key lowercases the name, strips diacritics and every rune that is not a
// letter or digit, and drops whitespace entirely.
func Key(name string) string {
	lower := cases.Lower(language.Und).String(name)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, lower)
	if err != nil {
		folded = lower
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
