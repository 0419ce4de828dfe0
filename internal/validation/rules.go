// Package validation implements the typed rule engine applied to flattened
// extraction results, and the persistence of rule sets to plain files and
// template records.
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// RuleType enumerates the supported validation rule kinds.
type RuleType string

const (
	RuleRequired    RuleType = "required"
	RuleNumeric     RuleType = "numeric"
	RuleDate        RuleType = "date"
	RuleEmail       RuleType = "email"
	RuleRegex       RuleType = "regex"
	RuleRowTotal    RuleType = "row_total"
	RuleColumnTotal RuleType = "column_total"
	RuleMergeRow    RuleType = "merge_row"
	RuleItemType    RuleType = "item_type"
	RuleTableStart  RuleType = "table_start"
	RuleTableEnd    RuleType = "table_end"
	RuleSkipLine    RuleType = "skip_line"
)

// Logical sections a rule can be tagged with. SectionMetadata is the
// default for untagged rules, including everything loaded from plain rule
// files.
const (
	SectionHeader   = "header"
	SectionItems    = "items"
	SectionSummary  = "summary"
	SectionMetadata = "metadata"
)

// Rule is one validation rule bound to a logical path. Params carries the
// rule's argument: a pattern, a comma list of columns, or an allowed-value
// list, depending on the type.
type Rule struct {
	Type    RuleType `json:"type"`
	Params  string   `json:"params,omitempty"`
	Section string   `json:"section,omitempty"`
}

// RuleSet maps logical paths (wildcards allowed) to their rules, keeping
// insertion order for stable evaluation and round-trips.
type RuleSet struct {
	rules map[string][]Rule
	order []string
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string][]Rule)}
}

// Add appends a rule for the path. Many rules per path are allowed.
func (s *RuleSet) Add(path string, rule Rule) {
	if _, seen := s.rules[path]; !seen {
		s.order = append(s.order, path)
	}
	s.rules[path] = append(s.rules[path], rule)
}

// Remove drops every rule for the path.
func (s *RuleSet) Remove(path string) {
	if _, seen := s.rules[path]; !seen {
		return
	}
	delete(s.rules, path)
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Paths returns the rule paths in insertion order.
func (s *RuleSet) Paths() []string {
	return append([]string(nil), s.order...)
}

// Rules returns the rules stored for a path.
func (s *RuleSet) Rules(path string) []Rule {
	return s.rules[path]
}

// Len returns the number of paths carrying rules.
func (s *RuleSet) Len() int {
	return len(s.order)
}

// fileRule is the plain-file serialization, which omits the section tag.
type fileRule struct {
	Type   RuleType `json:"type"`
	Params string   `json:"params,omitempty"`
}

// MarshalFile serializes the set for a standalone rules file: a JSON object
// mapping logical path to rule list, section tags omitted.
func (s *RuleSet) MarshalFile() ([]byte, error) {
	out := make(map[string][]fileRule, len(s.rules))
	for path, rules := range s.rules {
		list := make([]fileRule, len(rules))
		for i, r := range rules {
			list[i] = fileRule{Type: r.Type, Params: r.Params}
		}
		out[path] = list
	}
	return json.MarshalIndent(out, "", "  ")
}

// MarshalTemplate serializes the set for persistence inside a template
// record, section tags included.
func (s *RuleSet) MarshalTemplate() ([]byte, error) {
	out := make(map[string][]Rule, len(s.rules))
	for path, rules := range s.rules {
		out[path] = rules
	}
	return json.Marshal(out)
}

// ParseRules reconstructs a rule set from either serialized form. Paths
// come back sorted so round-trips are deterministic regardless of the
// original insertion order.
func ParseRules(data []byte) (*RuleSet, error) {
	var raw map[string][]Rule
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	set := NewRuleSet()
	paths := make([]string, 0, len(raw))
	for path := range raw {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		for _, rule := range raw[path] {
			set.Add(path, rule)
		}
	}
	return set, nil
}

// SaveFile writes the plain-file serialization to path.
func (s *RuleSet) SaveFile(path string) error {
	data, err := s.MarshalFile()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write rules file: %w", err)
	}
	return nil
}

// LoadFile reads a rule set from a plain rules file.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}
