// Package jsonpath implements the path algebra shared by flattening and
// resolution: one grammar for logical dot/bracket paths, one underscore
// normal form for flattened column names, and a resolver mapping the former
// onto the latter across the encoding variants older exports produced.
package jsonpath

import (
	"strconv"
	"strings"
)

// Separator joins structural levels in flattened column names.
const Separator = "_"

// Wildcard is the segment matching any key in a logical path.
const Wildcard = "*"

// Token is one segment of a logical path: an object key, an array index,
// or a wildcard.
type Token struct {
	Key      string
	Index    int
	IsIndex  bool
	Wildcard bool
}

// Parse splits a logical path written in dot/bracket notation
// ("doc.items[2].price") into tokens. Bracketed numbers become index
// tokens; "*" segments become wildcards. Parse never fails: malformed
// bracket text is kept as a key token, matching the tolerant behavior the
// resolver needs for historical paths.
func Parse(path string) []Token {
	var tokens []Token
	for _, part := range strings.Split(path, ".") {
		for part != "" {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				tokens = appendKey(tokens, part)
				break
			}
			if open > 0 {
				tokens = appendKey(tokens, part[:open])
			}
			rest := part[open+1:]
			closing := strings.IndexByte(rest, ']')
			if closing < 0 {
				// Unterminated bracket, keep literally.
				tokens = appendKey(tokens, part[open:])
				break
			}
			if idx, err := strconv.Atoi(rest[:closing]); err == nil {
				tokens = append(tokens, Token{Index: idx, IsIndex: true})
			} else {
				tokens = appendKey(tokens, rest[:closing])
			}
			part = rest[closing+1:]
		}
	}
	return tokens
}

func appendKey(tokens []Token, key string) []Token {
	if key == "" {
		return tokens
	}
	if key == Wildcard {
		return append(tokens, Token{Wildcard: true})
	}
	return append(tokens, Token{Key: key})
}

// Normalize renders tokens in the underscore normal form used by flattened
// columns: keys and indices joined by "_", indices as plain numbers.
func Normalize(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		switch {
		case t.IsIndex:
			parts = append(parts, strconv.Itoa(t.Index))
		case t.Wildcard:
			parts = append(parts, Wildcard)
		default:
			parts = append(parts, t.Key)
		}
	}
	return strings.Join(parts, Separator)
}

// NormalizePath is Parse followed by Normalize.
func NormalizePath(path string) string {
	return Normalize(Parse(path))
}

// HasWildcard reports whether the logical path contains a wildcard segment.
func HasWildcard(path string) bool {
	for _, t := range Parse(path) {
		if t.Wildcard {
			return true
		}
	}
	return false
}
