package jsonpath

import (
	"regexp"
	"strings"
)

// Resolver maps logical paths onto the flattened column names of one
// dataset. Resolution walks a fixed strategy order, from exact match down
// to substring fallback, tolerating the index-encoding and
// filename-prefixing inconsistencies of historical exports. The order is
// heuristic: with similar trailing structure across documents an earlier
// strategy can pick an unintended column, which the interactive workflow
// accepts.
type Resolver struct {
	columns []string
	exact   map[string]int
	norm    map[string]int
}

var trailingIndexRe = regexp.MustCompile(`_\d+$`)
var bracketGroupRe = regexp.MustCompile(`\[\d+\]`)

// NewResolver builds a resolver over the available column names.
func NewResolver(columns []string) *Resolver {
	r := &Resolver{
		columns: append([]string(nil), columns...),
		exact:   make(map[string]int, len(columns)),
		norm:    make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, seen := r.exact[c]; !seen {
			r.exact[c] = i
		}
		n := NormalizePath(c)
		if _, seen := r.norm[n]; !seen {
			r.norm[n] = i
		}
	}
	return r
}

// Columns returns the resolver's column set.
func (r *Resolver) Columns() []string {
	return r.columns
}

// Resolve maps one logical path to a column name, returning false when
// every strategy fails.
func (r *Resolver) Resolve(path string) (string, bool) {
	// 1. Exact match.
	if i, ok := r.exact[path]; ok {
		return r.columns[i], true
	}

	// 2. Full normalization of dot/bracket syntax.
	if col, ok := r.lookup(NormalizePath(path)); ok {
		return col, true
	}

	// 3. Bracket-index variants, each also tried with a trailing index
	// trimmed.
	for _, variant := range r.bracketVariants(path) {
		if col, ok := r.lookup(variant); ok {
			return col, true
		}
		if trimmed := trailingIndexRe.ReplaceAllString(variant, ""); trimmed != variant {
			if col, ok := r.lookup(trimmed); ok {
				return col, true
			}
		}
	}

	// 4. Filename-prefix heuristic: treat the path as *.<rest> and match
	// <rest> against each column with its own first segment dropped.
	for _, rest := range r.restCandidates(path) {
		for i, col := range r.columns {
			if colRestMatches(col, rest) {
				return r.columns[i], true
			}
		}
	}

	// 5. Substring fallback.
	for _, col := range r.columns {
		if strings.Contains(col, path) {
			return col, true
		}
	}
	norm := NormalizePath(path)
	for _, col := range r.columns {
		if strings.HasSuffix(col, norm) {
			return col, true
		}
	}
	return "", false
}

// ResolveAll expands a possibly wildcarded path against the column set.
// Without a wildcard it behaves like Resolve; with one it returns every
// matching column in column order.
func (r *Resolver) ResolveAll(path string) []string {
	if !HasWildcard(path) {
		if col, ok := r.Resolve(path); ok {
			return []string{col}
		}
		return nil
	}

	re, err := wildcardRegexp(path)
	if err != nil {
		return nil
	}
	var out []string
	for _, col := range r.columns {
		if re.MatchString(NormalizePath(col)) {
			out = append(out, col)
		}
	}
	return out
}

func (r *Resolver) lookup(candidate string) (string, bool) {
	if i, ok := r.exact[candidate]; ok {
		return r.columns[i], true
	}
	if i, ok := r.norm[candidate]; ok {
		return r.columns[i], true
	}
	return "", false
}

// bracketVariants produces the historical index spellings of a bracketed
// path: index glued to its key, index as an underscore segment, and index
// removed entirely.
func (r *Resolver) bracketVariants(path string) []string {
	underscored := strings.ReplaceAll(path, ".", Separator)
	glued := strings.NewReplacer("[", "", "]", "").Replace(underscored)
	segmented := strings.NewReplacer("[", Separator, "]", "").Replace(underscored)
	stripped := bracketGroupRe.ReplaceAllString(underscored, "")
	return []string{glued, segmented, stripped}
}

func (r *Resolver) restCandidates(path string) []string {
	tokens := Parse(path)
	var rests []string
	if len(tokens) > 0 && tokens[0].Wildcard {
		rests = append(rests, Normalize(tokens[1:]))
	} else {
		rests = append(rests, Normalize(tokens))
		if len(tokens) > 1 {
			rests = append(rests, Normalize(tokens[1:]))
		}
	}
	return rests
}

// colRestMatches drops the column's first underscore segment and compares
// the remainder, or accepts an underscore-separated suffix match.
func colRestMatches(col, rest string) bool {
	if rest == "" {
		return false
	}
	if _, after, found := strings.Cut(col, Separator); found && after == rest {
		return true
	}
	return strings.HasSuffix(col, Separator+rest)
}

// wildcardRegexp converts a wildcarded logical path into a regexp over the
// underscore normal form. A wildcard spans one or more whole segments.
func wildcardRegexp(path string) (*regexp.Regexp, error) {
	tokens := Parse(path)

	// Split into literal chunks around wildcards.
	var chunks [][]Token
	current := []Token{}
	for _, t := range tokens {
		if t.Wildcard {
			chunks = append(chunks, current)
			current = nil
			continue
		}
		current = append(current, t)
	}
	chunks = append(chunks, current)

	var b strings.Builder
	b.WriteString("^")
	for i, chunk := range chunks {
		literal := regexp.QuoteMeta(Normalize(chunk))
		if i == 0 {
			b.WriteString(literal)
			continue
		}
		// A wildcard sits between the previous chunk and this one.
		switch {
		case literal == "":
			// Trailing wildcard.
			if len(chunks[i-1]) > 0 {
				b.WriteString("(?:" + Separator + ".*)?")
			} else {
				b.WriteString(".*")
			}
		case len(chunks[i-1]) == 0:
			// Leading wildcard.
			b.WriteString("(?:.*" + Separator + ")?" + literal)
		default:
			b.WriteString(Separator + "(?:.*" + Separator + ")?" + literal)
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
