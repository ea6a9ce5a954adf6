package autotag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag(t *testing.T) {
	tests := []struct {
		name  string
		title string
		desc  string
		want  []string
	}{
		{
			name:  "bug from title",
			title: "Fix login bug",
			want:  []string{"bug"},
		},
		{
			name:  "backend and feature",
			title: "Implement new API endpoint",
			desc:  "backend service",
			want:  []string{"backend", "feature"},
		},
		{
			name:  "inflected keywords",
			title: "Crashes when rendering layouts",
			want:  []string{"bug", "ui"},
		},
		{
			name:  "no substring matches inside words",
			title: "Debugging podcast",
			want:  nil,
		},
		{
			name:  "case insensitive",
			title: "UPDATE README",
			desc:  "Security review of PASSWORD storage",
			want:  []string{"docs", "security"},
		},
		{
			name:  "nothing matches",
			title: "Weekly sync",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tag(tt.title, tt.desc)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTag_Deterministic(t *testing.T) {
	title, desc := "Refactor auth service and add tests", "Improve performance of the cache"
	first := Tag(title, desc)
	for range 10 {
		assert.Equal(t, first, Tag(title, desc))
	}
	assert.Equal(t, []string{"backend", "feature", "performance", "refactor", "security", "testing"}, first)
}

func TestTag_RuleOrderIrrelevant(t *testing.T) {
	reversed := make(RuleSet, len(DefaultRules))
	for i, r := range DefaultRules {
		reversed[len(DefaultRules)-1-i] = r
	}
	title, desc := "Fix slow dashboard page", "api latency"
	assert.Equal(t, DefaultRules.Tag(title, desc), reversed.Tag(title, desc))
}

func TestMerge(t *testing.T) {
	got := Merge([]string{"Urgent", "bug"}, []string{"bug", "ui"})
	assert.Equal(t, []string{"bug", "ui", "urgent"}, got)

	// Tagging a task twice adds nothing the first pass did not.
	once := Merge([]string{"urgent"}, Tag("Fix login bug", ""))
	twice := Merge(once, Tag("Fix login bug", ""))
	assert.Equal(t, once, twice)
}

func TestRuleSet_Validate(t *testing.T) {
	require.NoError(t, DefaultRules.Validate())

	assert.Error(t, RuleSet{}.Validate())
	assert.Error(t, RuleSet{{Label: "", Keywords: []string{"x"}}}.Validate())
	assert.Error(t, RuleSet{{Label: "x"}}.Validate())
	assert.Error(t, RuleSet{{Label: "x", Keywords: []string{"two words"}}}.Validate())
	assert.Error(t, RuleSet{{Label: "x", Keywords: []string{"Upper"}}}.Validate())
}
