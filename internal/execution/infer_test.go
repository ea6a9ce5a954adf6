package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kazz187/sprintguild/internal/task"
)

func TestInferCompletions(t *testing.T) {
	tasks := []*task.Task{
		{ID: "login", Title: "Fix login bug"},
		{ID: "api", Title: "Implement new API endpoint"},
		{ID: "docs", Title: "Write docs"},
	}
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{name: "quoted title then keyword", response: "Task 'Fix login bug' completed successfully", want: []string{"login"}},
		{name: "title alone", response: "Fix login bug is still open", want: nil},
		{name: "keyword before title", response: "Done: Fix login bug.", want: []string{"login"}},
		{name: "case insensitive", response: "IMPLEMENT NEW API ENDPOINT - DELIVERED", want: []string{"api"}},
		{name: "markdown", response: "- **Write docs**: finished\n- Fix login bug: pending", want: []string{"docs"}},
		{name: "several", response: "Fix login bug done. Write docs implemented.", want: []string{"login", "docs"}},
		{name: "keyword must be a whole word", response: "Fix login bug doneness review", want: nil},
		{name: "keyword prefix does not count", response: "Fix login bug undone", want: nil},
		{name: "sentence punctuation breaks adjacency", response: "Fix login bug. Completed the rest later", want: nil},
		{name: "keyword far away", response: "Fix login bug needs more work; other items completed", want: nil},
		{name: "neither mention adjacent", response: "Fix login bug was hard. In the end Fix login bug was completed", want: nil},
		{name: "second mention adjacent", response: "Fix login bug was hard. Update: Fix login bug completed", want: []string{"login"}},
		{name: "line break ends a mention", response: "Write docs\ndone with review", want: nil},
		{name: "empty response", response: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, tk := range InferCompletions(tasks, tt.response) {
				got = append(got, tk.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferCompletions_EmptyTitleIgnored(t *testing.T) {
	got := InferCompletions([]*task.Task{{ID: "blank", Title: "  "}}, "done")
	assert.Empty(t, got)
}
