package task

import "context"

// Partition selects archived or visible tasks.
type Partition int

const (
	PartitionAll Partition = iota
	PartitionVisible
	PartitionArchived
)

type ListFilter struct {
	SprintID  string // empty matches every sprint
	Partition Partition
}

func (f ListFilter) Match(t *Task) bool {
	if f.SprintID != "" && t.SprintID != f.SprintID {
		return false
	}
	switch f.Partition {
	case PartitionVisible:
		return !t.Archived()
	case PartitionArchived:
		return t.Archived()
	}
	return true
}

// Placement is a partial update of a task's column position.
type Placement struct {
	TaskID     string
	SprintID   string
	OrderIndex int
}

type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	// List returns matching tasks sorted with SortByOrder.
	List(ctx context.Context, filter ListFilter) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	// ApplyPlacements writes the placements in order and returns how many
	// were applied. Implementations that can do so apply all or none.
	ApplyPlacements(ctx context.Context, placements []Placement) (int, error)
	Delete(ctx context.Context, id string) error
}
