package validation

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/veridata/invoiceminer/internal/jsonpath"
)

// Numeric totals compare within this tolerance.
const totalTolerance = 0.01

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Date layouts accepted by the date rule.
var dateLayouts = []string{
	"2006-01-02", "02/01/2006", "01/02/2006", "02.01.2006",
	"2006/01/02", "02-01-2006", "Jan 2, 2006", "2 Jan 2006",
}

// Dataset is the flattened tabular view validation runs against: one
// record per row, every value stringified.
type Dataset struct {
	Records []map[string]string
}

// Columns returns the union of all record keys, ordered by first
// appearance across records.
func (d *Dataset) Columns() []string {
	var cols []string
	seen := make(map[string]bool)
	for _, rec := range d.Records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		// Deterministic within a record.
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// IssueKind distinguishes per-check failures from structural issues.
type IssueKind string

const (
	// KindRuleFailure is a failed check for one (row, path, rule).
	KindRuleFailure IssueKind = "rule_failure"
	// KindNoMatch means a template path matched no column at all.
	KindNoMatch IssueKind = "no_match"
)

// Issue is one reported validation problem.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Path    string    `json:"path"`
	Column  string    `json:"column,omitempty"`
	Row     int       `json:"row"`
	Rule    RuleType  `json:"rule,omitempty"`
	Message string    `json:"message"`
}

// SectionTally is the pass/fail count for one logical section.
type SectionTally struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Report is the outcome of validating one dataset against a rule set.
type Report struct {
	Sections map[string]*SectionTally `json:"sections"`
	Issues   []Issue                  `json:"issues"`
}

// Passed reports whether no check failed.
func (r *Report) Passed() bool {
	for _, t := range r.Sections {
		if t.Failed > 0 {
			return false
		}
	}
	return true
}

// Engine evaluates rule sets. Any error raised while evaluating a single
// rule is swallowed into a failed verdict for that (row, path, rule);
// other checks are unaffected.
type Engine struct {
	log *slog.Logger
}

// NewEngine creates a validation engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{log: logger}
}

// Validate applies every rule of the set to the dataset. Wildcarded paths
// expand against the available columns first; a path matching nothing is
// reported as its own issue kind, distinct from per-row failures.
func (e *Engine) Validate(data *Dataset, rules *RuleSet) *Report {
	report := &Report{Sections: map[string]*SectionTally{
		SectionHeader:   {},
		SectionItems:    {},
		SectionSummary:  {},
		SectionMetadata: {},
	}}

	resolver := jsonpath.NewResolver(data.Columns())

	for _, path := range rules.Paths() {
		pathRules := rules.Rules(path)
		columns := resolver.ResolveAll(path)
		if len(columns) == 0 {
			for _, rule := range pathRules {
				report.tally(rule.Section).Failed++
			}
			report.Issues = append(report.Issues, Issue{
				Kind:    KindNoMatch,
				Path:    path,
				Row:     -1,
				Message: "no paths match template",
			})
			continue
		}

		for _, column := range columns {
			for _, rule := range pathRules {
				e.applyRule(data, resolver, path, column, rule, report)
			}
		}
	}
	return report
}

func (e *Engine) applyRule(data *Dataset, resolver *jsonpath.Resolver,
	path, column string, rule Rule, report *Report,
) {
	for row, rec := range data.Records {
		value, present := rec[column]
		if !present && rule.Type != RuleRequired {
			continue
		}
		ok, msg := e.checkValue(data, resolver, rec, column, value, rule)
		tally := report.tally(rule.Section)
		if ok {
			tally.Passed++
			continue
		}
		tally.Failed++
		report.Issues = append(report.Issues, Issue{
			Kind:    KindRuleFailure,
			Path:    path,
			Column:  column,
			Row:     row,
			Rule:    rule.Type,
			Message: msg,
		})
	}
}

// checkValue evaluates one rule against one cell. It never propagates a
// failure mode out: panics and internal errors become failed verdicts.
func (e *Engine) checkValue(data *Dataset, resolver *jsonpath.Resolver,
	rec map[string]string, column, value string, rule Rule,
) (ok bool, msg string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("rule evaluation panicked, counted as failure",
				"rule", rule.Type, "column", column, "panic", r)
			ok, msg = false, fmt.Sprintf("evaluation error: %v", r)
		}
	}()

	trimmed := strings.TrimSpace(value)
	switch rule.Type {
	case RuleRequired:
		if trimmed == "" {
			return false, "value is blank"
		}
	case RuleNumeric:
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return false, fmt.Sprintf("%q is not numeric", value)
		}
	case RuleDate:
		if !parsesAsDate(trimmed) {
			return false, fmt.Sprintf("%q is not a date", value)
		}
	case RuleEmail:
		if !emailRe.MatchString(trimmed) {
			return false, fmt.Sprintf("%q is not an email address", value)
		}
	case RuleRegex, RuleTableStart, RuleTableEnd:
		re, err := regexp.Compile("^(?:" + rule.Params + ")")
		if err != nil {
			return false, fmt.Sprintf("bad pattern %q: %v", rule.Params, err)
		}
		if !re.MatchString(value) {
			return false, fmt.Sprintf("%q does not match %q", value, rule.Params)
		}
	case RuleSkipLine:
		re, err := regexp.Compile("^(?:" + rule.Params + ")")
		if err != nil {
			return false, fmt.Sprintf("bad pattern %q: %v", rule.Params, err)
		}
		if re.MatchString(value) {
			return false, fmt.Sprintf("%q matches skip pattern %q", value, rule.Params)
		}
	case RuleRowTotal:
		return e.checkRowTotal(resolver, rec, trimmed, rule.Params)
	case RuleColumnTotal:
		return e.checkColumnTotal(data, resolver, trimmed, rule.Params)
	case RuleMergeRow:
		return e.checkMergeRow(resolver, rec, trimmed, rule.Params)
	case RuleItemType:
		for _, allowed := range strings.Split(rule.Params, ",") {
			if trimmed == strings.TrimSpace(allowed) {
				return true, ""
			}
		}
		return false, fmt.Sprintf("%q not in allowed values", value)
	default:
		return false, fmt.Sprintf("unknown rule type %q", rule.Type)
	}
	return true, ""
}

func (e *Engine) checkRowTotal(resolver *jsonpath.Resolver,
	rec map[string]string, value, params string,
) (bool, string) {
	target, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false, fmt.Sprintf("target %q is not numeric", value)
	}
	sum := 0.0
	for _, name := range strings.Split(params, ",") {
		cell, err := e.namedCell(resolver, rec, name)
		if err != nil {
			return false, err.Error()
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return false, fmt.Sprintf("column %q value %q is not numeric", name, cell)
		}
		sum += n
	}
	if math.Abs(sum-target) > totalTolerance {
		return false, fmt.Sprintf("row total %g != %g", sum, target)
	}
	return true, ""
}

func (e *Engine) checkColumnTotal(data *Dataset, resolver *jsonpath.Resolver,
	value, params string,
) (bool, string) {
	target, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false, fmt.Sprintf("target %q is not numeric", value)
	}
	column, ok := resolver.Resolve(strings.TrimSpace(params))
	if !ok {
		return false, fmt.Sprintf("column %q not found", params)
	}
	sum := 0.0
	for _, rec := range data.Records {
		cell, present := rec[column]
		if !present || strings.TrimSpace(cell) == "" {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return false, fmt.Sprintf("column %q value %q is not numeric", params, cell)
		}
		sum += n
	}
	if math.Abs(sum-target) > totalTolerance {
		return false, fmt.Sprintf("column total %g != %g", sum, target)
	}
	return true, ""
}

func (e *Engine) checkMergeRow(resolver *jsonpath.Resolver,
	rec map[string]string, value, params string,
) (bool, string) {
	for _, name := range strings.Split(params, ",") {
		cell, err := e.namedCell(resolver, rec, name)
		if err != nil {
			return false, err.Error()
		}
		if strings.TrimSpace(cell) != value {
			return false, fmt.Sprintf("column %q value %q != %q", name, cell, value)
		}
	}
	return true, ""
}

// namedCell resolves a params column reference, trying the resolver first
// and falling back to the literal record key.
func (e *Engine) namedCell(resolver *jsonpath.Resolver,
	rec map[string]string, name string,
) (string, error) {
	name = strings.TrimSpace(name)
	if column, ok := resolver.Resolve(name); ok {
		if cell, present := rec[column]; present {
			return cell, nil
		}
	}
	if cell, present := rec[name]; present {
		return cell, nil
	}
	return "", fmt.Errorf("column %q not found", name)
}

func (r *Report) tally(section string) *SectionTally {
	if section == "" {
		section = SectionMetadata
	}
	t, ok := r.Sections[section]
	if !ok {
		t = &SectionTally{}
		r.Sections[section] = t
	}
	return t
}

func parsesAsDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
