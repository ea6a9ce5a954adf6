package task

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          string   `json:"id" yaml:"id"`
	SprintID    string   `json:"sprint_id" yaml:"sprint_id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Priority    Priority `json:"priority" yaml:"priority"`
	Status      Status   `json:"status" yaml:"status"`
	Tags        []string `json:"tags" yaml:"tags"`
	OrderIndex  int      `json:"order_index" yaml:"order_index"`

	// Archive provenance. ArchivedAt and ArchivedBy are set together.
	ArchivedAt    *time.Time `json:"archived_at,omitempty" yaml:"archived_at,omitempty"`
	ArchivedBy    string     `json:"archived_by,omitempty" yaml:"archived_by,omitempty"`
	ArchiveReason string     `json:"archive_reason,omitempty" yaml:"archive_reason,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

func (t *Task) Archived() bool {
	return t.ArchivedAt != nil
}

// Validate is the entity boundary check applied to every record read from or
// written to a store.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is empty")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task %s: title is empty", t.ID)
	}
	if t.SprintID == "" {
		return fmt.Errorf("task %s: sprint id is empty", t.ID)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("task %s: unknown priority %q", t.ID, t.Priority)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("task %s: unknown status %q", t.ID, t.Status)
	}
	if (t.ArchivedAt == nil) != (t.ArchivedBy == "") {
		return fmt.Errorf("task %s: archived_at and archived_by must be set together", t.ID)
	}
	if t.ArchivedAt == nil && t.ArchiveReason != "" {
		return fmt.Errorf("task %s: archive_reason set on a visible task", t.ID)
	}
	return nil
}

func (t *Task) Clone() *Task {
	c := *t
	c.Tags = slices.Clone(t.Tags)
	if t.ArchivedAt != nil {
		at := *t.ArchivedAt
		c.ArchivedAt = &at
	}
	return &c
}

// NormalizeTags trims, lower-cases, drops empties and collapses duplicates.
// The result is sorted so equal tag sets compare equal.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// SortByOrder orders tasks for display: OrderIndex first, then creation time
// and ID so duplicate indexes still render in a stable order.
func SortByOrder(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
