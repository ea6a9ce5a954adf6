package execution

import (
	"fmt"
	"strings"

	"github.com/kazz187/sprintguild/internal/sprint"
	"github.com/kazz187/sprintguild/internal/task"
)

const instructionSuffix = `Please analyze these tasks and provide:
1. A complexity analysis of each task
2. A recommended execution order
3. Potential blockers and dependencies
4. An effort estimate for each task
5. Recommendations for completing the sprint

When you report progress, name each task by its exact title followed by its state, for example "Task 'Title' completed".`

// BuildPrompt renders the sprint and its tasks, in the given order, followed
// by a fixed instruction block. The output depends only on the arguments.
func BuildPrompt(s *sprint.Sprint, tasks []*task.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sprint: %s\n\n", s.Name)
	if len(tasks) == 0 {
		sb.WriteString("Tasks: none\n")
	} else {
		sb.WriteString("Tasks:\n")
	}
	for i, t := range tasks {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t.Title)
		fmt.Fprintf(&sb, "   Priority: %s\n", t.Priority)
		if d := strings.TrimSpace(t.Description); d != "" {
			fmt.Fprintf(&sb, "   Description: %s\n", strings.ReplaceAll(d, "\n", "\n   "))
		}
		if len(t.Tags) > 0 {
			fmt.Fprintf(&sb, "   Tags: %s\n", strings.Join(t.Tags, ", "))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(instructionSuffix)
	sb.WriteString("\n")
	return sb.String()
}
