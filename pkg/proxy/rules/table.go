package rules

import (
	"fmt"
	"net/url"
	"sort"
)

// Match is the result of a successful table lookup.
type Match struct {
	Rule   Rule
	Target *url.URL
	Index  int // position of Rule in the table's declaration order
}

type entry struct {
	rule    Rule
	matcher Matcher
	target  *url.URL
	index   int
}

// Table is an immutable, compiled set of proxy rules.
//
// Lookup order: the longest matching prefix wins, so overlapping prefixes
// such as "/cas/proxy" and "/cas/proxyValidate" resolve deterministically.
// Glob rules are tried afterwards in declaration order.
type Table struct {
	rules    []Rule
	prefixes []entry
	globs    []entry
}

// NewTable validates and compiles rules. Keys (prefix or glob) must be unique.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{rules: append([]Rule(nil), rules...)}

	seen := make(map[string]int, len(rules))
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule[%d]: %w", i, err)
		}
		if first, dup := seen[rule.Key()]; dup {
			return nil, fmt.Errorf("rule[%d]: duplicate path %q (already declared by rule[%d])", i, rule.Key(), first)
		}
		seen[rule.Key()] = i

		target, _ := rule.TargetURL()
		e := entry{rule: rule, target: target, index: i}

		if rule.Glob != "" {
			m, err := NewGlobMatcher(rule.Glob)
			if err != nil {
				return nil, fmt.Errorf("rule[%d]: %w", i, err)
			}
			e.matcher = m
			t.globs = append(t.globs, e)
			continue
		}

		e.matcher = NewPrefixMatcher(rule.Prefix)
		t.prefixes = append(t.prefixes, e)
	}

	sort.SliceStable(t.prefixes, func(a, b int) bool {
		return len(t.prefixes[a].rule.Prefix) > len(t.prefixes[b].rule.Prefix)
	})

	return t, nil
}

// Match finds the rule for a request path.
func (t *Table) Match(path string) (Match, bool) {
	for _, e := range t.prefixes {
		if e.matcher.Match(path) {
			return e.match(), true
		}
	}
	for _, e := range t.globs {
		if e.matcher.Match(path) {
			return e.match(), true
		}
	}
	return Match{}, false
}

func (e entry) match() Match {
	// copy so callers cannot mutate the table's URL
	target := *e.target
	return Match{Rule: e.rule, Target: &target, Index: e.index}
}

// Rules returns the rules in declaration order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}
