// Package autotag derives classification labels for tasks from their title
// and description using keyword rules.
package autotag

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kazz187/sprintguild/internal/task"
)

// Rule assigns Label when any of Keywords occurs as a token.
type Rule struct {
	Label    string   `json:"label" yaml:"label"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

type RuleSet []Rule

// suffixes are the inflections accepted after a keyword: "bug" matches
// "bugs", "test" matches "testing".
var suffixes = []string{"s", "es", "ed", "ing", "er", "ers", "ion", "ions"}

var DefaultRules = RuleSet{
	{Label: "ui", Keywords: []string{"ui", "ux", "design", "interface", "responsive", "layout", "css", "style"}},
	{Label: "bug", Keywords: []string{"bug", "fix", "error", "issue", "crash", "broken"}},
	{Label: "backend", Keywords: []string{"backend", "api", "server", "database", "db", "endpoint", "service"}},
	{Label: "frontend", Keywords: []string{"frontend", "react", "component", "page", "view", "client"}},
	{Label: "feature", Keywords: []string{"feature", "implement", "add", "new", "create", "support"}},
	{Label: "docs", Keywords: []string{"docs", "doc", "documentation", "readme", "guide", "document"}},
	{Label: "testing", Keywords: []string{"test", "testing", "spec", "coverage", "qa", "e2e"}},
	{Label: "security", Keywords: []string{"security", "auth", "authentication", "permission", "vulnerability", "xss", "csrf", "encrypt", "password"}},
	{Label: "performance", Keywords: []string{"performance", "optimize", "optimization", "speed", "slow", "latency", "cache", "fast"}},
	{Label: "refactor", Keywords: []string{"refactor", "cleanup", "restructure", "simplify", "rename"}},
}

// Validate rejects rules that could never match: empty labels and keywords
// that are not a single lower-case token.
func (rs RuleSet) Validate() error {
	if len(rs) == 0 {
		return fmt.Errorf("rule set is empty")
	}
	for i, r := range rs {
		if strings.TrimSpace(r.Label) == "" {
			return fmt.Errorf("rule %d: label is empty", i)
		}
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule %q: no keywords", r.Label)
		}
		for _, kw := range r.Keywords {
			if kw != strings.ToLower(kw) || len(tokenize(kw)) != 1 || tokenize(kw)[0] != kw {
				return fmt.Errorf("rule %q: keyword %q is not a single lower-case token", r.Label, kw)
			}
		}
	}
	return nil
}

// Tag returns the sorted, deduplicated labels whose rules match the text.
// It has no side effects and depends only on its input and the rule set.
func (rs RuleSet) Tag(title, description string) []string {
	tokens := make(map[string]struct{})
	for _, tok := range tokenize(strings.ToLower(title + " " + description)) {
		tokens[tok] = struct{}{}
	}
	var labels []string
	for _, r := range rs {
		if r.matches(tokens) {
			labels = append(labels, r.Label)
		}
	}
	return task.NormalizeTags(labels)
}

func (r Rule) matches(tokens map[string]struct{}) bool {
	for _, kw := range r.Keywords {
		if _, ok := tokens[kw]; ok {
			return true
		}
		for _, sfx := range suffixes {
			if _, ok := tokens[kw+sfx]; ok {
				return true
			}
		}
	}
	return false
}

// Tag applies DefaultRules.
func Tag(title, description string) []string {
	return DefaultRules.Tag(title, description)
}

// Merge returns the union of existing and generated tags, so manual tags
// survive re-tagging.
func Merge(existing, generated []string) []string {
	all := make([]string, 0, len(existing)+len(generated))
	all = append(all, existing...)
	all = append(all, generated...)
	return task.NormalizeTags(all)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
