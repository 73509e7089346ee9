package assembly

import (
	"strconv"
	"strings"
	"unicode"
)

// fallbackKey is used for titles with no usable characters.
const fallbackKey = "section"

// DeriveKey turns a human section title into the identifier that correlates
// outline, instruction and draft entries. It lowercases the title, collapses
// every whitespace run to a single underscore and drops forward slashes.
//
// Keys are derived once, when a section is created. Renaming a section never
// re-derives its key.
func DeriveKey(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return fallbackKey
	}

	var sb strings.Builder
	sb.Grow(len(title))
	inSpace := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				sb.WriteByte('_')
			}
			inSpace = true
		case r == '/':
			// dropped; does not end a whitespace run
		default:
			sb.WriteRune(r)
			inSpace = false
		}
	}

	key := sb.String()
	if key == "" {
		return fallbackKey
	}
	return key
}

// uniqueKey returns base, or base with the smallest numeric suffix that is not
// already taken.
func uniqueKey(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "_" + strconv.Itoa(n)
		if !taken(candidate) {
			return candidate
		}
	}
}
