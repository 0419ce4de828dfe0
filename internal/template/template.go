// Package template defines the stored invoice template model and the SQLite
// repository it is read from. Region geometry and config are stored as JSON
// columns; their values stay loosely typed here and are normalized by the
// geometry package at extraction time.
package template

import (
	"encoding/json"
	"strings"
)

// Section identifies one of the three logical table categories.
type Section string

const (
	SectionHeader  Section = "header"
	SectionItems   Section = "items"
	SectionSummary Section = "summary"
)

// Sections lists the extractable sections in processing order.
func Sections() []Section {
	return []Section{SectionHeader, SectionItems, SectionSummary}
}

// Template types.
const (
	TypeSingle = "single"
	TypeMulti  = "multi"
)

// Template is one stored extraction template.
type Template struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	PageCount int    `json:"page_count"`

	// Single-page representation: one map applied to every processed page.
	Regions     map[Section][]any `json:"regions,omitempty"`
	ColumnLines map[Section][]any `json:"column_lines,omitempty"`

	// Multi-page representation: one map per page role. Index 0 = first
	// page, 1 = middle/repeating page, 2 = last page.
	PageRegions     []map[Section][]any `json:"page_regions,omitempty"`
	PageColumnLines []map[Section][]any `json:"page_column_lines,omitempty"`

	Config Config `json:"config,omitempty"`

	// ValidationRules is the serialized rule map persisted alongside the
	// template, kept opaque here; the validation package owns its shape.
	ValidationRules json.RawMessage `json:"validation_rules,omitempty"`
}

// Info is the listing projection of a template.
type Info struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	PageCount int    `json:"page_count"`
}

// RoleCount returns how many page roles the template defines.
func (t *Template) RoleCount() int {
	if t.Type == TypeSingle {
		return 1
	}
	n := len(t.PageRegions)
	if len(t.PageColumnLines) > n {
		n = len(t.PageColumnLines)
	}
	return n
}

// RoleRegions returns the region map for a page role. For single templates
// the role argument is ignored. Returns nil when the role is out of range.
func (t *Template) RoleRegions(role int) map[Section][]any {
	if t.Type == TypeSingle {
		return t.Regions
	}
	if role < 0 || role >= len(t.PageRegions) {
		return nil
	}
	return t.PageRegions[role]
}

// RoleColumnLines returns the column marker map for a page role.
func (t *Template) RoleColumnLines(role int) map[Section][]any {
	if t.Type == TypeSingle {
		return t.ColumnLines
	}
	if role < 0 || role >= len(t.PageColumnLines) {
		return nil
	}
	return t.PageColumnLines[role]
}

// Config is the template's nested configuration map. Keys of interest:
// extraction_params (per-section row_tol, split_text, strip_text, flavor),
// regex_patterns (per-section start/end/skip), page_configs (per page role
// overrides), use_middle_page, fixed_page_count.
type Config map[string]any

// Extraction parameter defaults applied when a key resolves at no level.
const (
	DefaultSplitText = true
	DefaultStripText = "\n"
	DefaultFlavor    = "stream"
)

// UseMiddlePage reports the middle-page-repeating strategy flag.
func (c Config) UseMiddlePage() bool {
	return asBool(c["use_middle_page"])
}

// FixedPageCount reports the fixed-page-count strategy flag.
func (c Config) FixedPageCount() bool {
	return asBool(c["fixed_page_count"])
}

// RowTol resolves the row tolerance for a section, walking
// extraction_params.<section>.row_tol, then <section>.row_tol, then the
// global row_tol. Returns false when none of the levels define it.
func (c Config) RowTol(section Section) (float64, bool) {
	if params := c.subMap("extraction_params"); params != nil {
		if sec := subMapOf(params, string(section)); sec != nil {
			if v, ok := numberAt(sec, "row_tol"); ok {
				return v, true
			}
		}
	}
	if sec := c.subMap(string(section)); sec != nil {
		if v, ok := numberAt(sec, "row_tol"); ok {
			return v, true
		}
	}
	if v, ok := numberAt(c, "row_tol"); ok {
		return v, true
	}
	return 0, false
}

// SplitText resolves split_text with the same fallback chain as RowTol,
// defaulting permissively to true.
func (c Config) SplitText(section Section) bool {
	if v, ok := c.lookup(section, "split_text"); ok {
		return asBool(v)
	}
	return DefaultSplitText
}

// StripText resolves the strip_text character set, default "\n".
func (c Config) StripText(section Section) string {
	if v, ok := c.lookup(section, "strip_text"); ok {
		if s, isStr := v.(string); isStr {
			return s
		}
	}
	return DefaultStripText
}

// Flavor resolves the engine flavor, default "stream".
func (c Config) Flavor(section Section) string {
	if v, ok := c.lookup(section, "flavor"); ok {
		if s, isStr := v.(string); isStr && s != "" {
			return s
		}
	}
	return DefaultFlavor
}

// Patterns holds the boundary and skip patterns for one section.
type Patterns struct {
	Start string
	End   string
	Skip  string
}

// Empty reports whether no pattern is set.
func (p Patterns) Empty() bool {
	return p.Start == "" && p.End == "" && p.Skip == ""
}

// PatternsFor resolves the regex patterns for a section on a given page
// role. Precedence is page-specific, then section-level, then global; the
// order is load-bearing and must not change.
func (c Config) PatternsFor(section Section, role int) Patterns {
	if pages := c.subList("page_configs"); role >= 0 && role < len(pages) {
		if pageCfg, ok := pages[role].(map[string]any); ok {
			if p := patternsFromMap(subMapOf(pageCfg, "regex_patterns"), section); !p.Empty() {
				return p
			}
		}
	}
	if p := patternsFromMap(c.subMap("regex_patterns"), section); !p.Empty() {
		return p
	}
	return patternsFromMap(map[string]any(c), section)
}

func patternsFromMap(m map[string]any, section Section) Patterns {
	if m == nil {
		return Patterns{}
	}
	sec := subMapOf(m, string(section))
	if sec == nil {
		return Patterns{}
	}
	return Patterns{
		Start: stringAt(sec, "start"),
		End:   stringAt(sec, "end"),
		Skip:  stringAt(sec, "skip"),
	}
}

func (c Config) lookup(section Section, key string) (any, bool) {
	if params := c.subMap("extraction_params"); params != nil {
		if sec := subMapOf(params, string(section)); sec != nil {
			if v, ok := sec[key]; ok {
				return v, true
			}
		}
	}
	if sec := c.subMap(string(section)); sec != nil {
		if v, ok := sec[key]; ok {
			return v, true
		}
	}
	if v, ok := c[key]; ok {
		return v, true
	}
	return nil, false
}

func (c Config) subMap(key string) map[string]any {
	return subMapOf(map[string]any(c), key)
}

func (c Config) subList(key string) []any {
	if c == nil {
		return nil
	}
	l, _ := c[key].([]any)
	return l
}

func subMapOf(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]any)
	return sub
}

func numberAt(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(b) {
		case "true", "1", "yes":
			return true
		}
	case float64:
		return b != 0
	}
	return false
}
