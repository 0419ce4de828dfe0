package jsonpath

import (
	"sort"
	"strconv"
	"strings"
)

// Flatten converts arbitrarily nested JSON values (objects, arrays,
// scalars) into a single-level map from underscore-joined path to scalar.
// Object keys join with "_", array elements get their index as a numeric
// segment. Flattening is deterministic: the same structure always yields
// the same path set. Structural type is lost by design; the resolver
// compensates on the way back.
func Flatten(value any, prefix string) map[string]any {
	out := make(map[string]any)
	flattenInto(value, prefix, out)
	return out
}

func flattenInto(value any, prefix string, out map[string]any) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			return
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenInto(v[k], join(prefix, k), out)
		}
	case []any:
		for i, elem := range v {
			flattenInto(elem, join(prefix, strconv.Itoa(i)), out)
		}
	default:
		if prefix == "" {
			prefix = "value"
		}
		out[prefix] = v
	}
}

// join appends a segment to a prefix. A prefix already ending in the
// separator is not doubled, so callers may pass "invoice_" style filename
// prefixes directly.
func join(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	if strings.HasSuffix(prefix, Separator) {
		return prefix + segment
	}
	return prefix + Separator + segment
}

// FlattenDocuments flattens a decoded JSON value into one record per
// logical document: a top-level list becomes one record per element,
// anything else one record total.
func FlattenDocuments(value any, prefix string) []map[string]any {
	if list, ok := value.([]any); ok {
		records := make([]map[string]any, 0, len(list))
		for _, elem := range list {
			records = append(records, Flatten(elem, prefix))
		}
		return records
	}
	return []map[string]any{Flatten(value, prefix)}
}
