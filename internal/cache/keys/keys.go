package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// MergeKey builds the cache key for a merge response: a sanitized source
// label followed by the merge mode, cell resolution and the hash of the
// canonical request payload. The "extent:<source>:" prefix is what
// invalidation scans for.
func MergeKey(source, mode string, cellsRes int, payload []byte) string {
	src := sanitizeSource(strings.TrimSpace(source))
	sum := xxhash.Sum64(payload)
	return fmt.Sprintf("extent:%s:%s:r%d:%016x", src, mode, cellsRes, sum)
}

// SourcePattern is the SCAN pattern matching every cached extent of one
// source.
func SourcePattern(source string) string {
	return "extent:" + sanitizeSource(strings.TrimSpace(source)) + ":*"
}

func sanitizeSource(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case isASCIIWhitespace(r):
			out = '_'
		case isAlphaNum(r) || r == '.' || r == '_' || r == '-' || r == '/':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isASCIIWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
