package sprint

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusPlanned Status = "planned"
	StatusClosed  Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPlanned, StatusClosed:
		return true
	}
	return false
}

// Sprint is a board column. OrderIndex orders the non-hidden sprints; hidden
// sprints keep their last index but are not shown.
type Sprint struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	OrderIndex int       `json:"order_index" yaml:"order_index"`
	Status     Status    `json:"status" yaml:"status"`
	Hidden     bool      `json:"hidden" yaml:"hidden"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// Validate rejects records that cannot be placed on a board.
func (s *Sprint) Validate() error {
	if s.ID == "" {
		return errors.New("sprint id is empty")
	}
	if s.Name == "" {
		return fmt.Errorf("sprint %s: name is empty", s.ID)
	}
	if !s.Status.Valid() {
		return fmt.Errorf("sprint %s: unknown status %q", s.ID, s.Status)
	}
	return nil
}

func (s *Sprint) Clone() *Sprint {
	c := *s
	return &c
}
