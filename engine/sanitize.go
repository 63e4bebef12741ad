package engine

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// internalTablePrefix plus 32 hex characters forms every generated
// backing-table name. The sandbox's ownership scan keys off this shape.
const internalTablePrefix = "tbl_"

// InternalTablePattern matches a generated internal table name.
var InternalTablePattern = regexp.MustCompile(`^tbl_[0-9a-f]{32}$`)

// NewInternalTableName generates a globally unique backing-table
// identifier. User input never contributes to it.
func NewInternalTableName() string {
	return internalTablePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func allowedIdentRune(r rune) bool {
	if r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// SanitizeIdentifier turns an arbitrary user-supplied name into a safe
// bare relational identifier: letters, digits, underscore and CJK only,
// never starting with a digit, never empty.
func SanitizeIdentifier(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if allowedIdentRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "column"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// UniqueIdentifier suffixes _1, _2, ... until taken no longer reports a
// collision. Comparison is case-insensitive.
func UniqueIdentifier(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// quoteIdent wraps an identifier in double quotes, doubling any embedded
// quote. Callers allowlist identifiers before reaching this point.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
