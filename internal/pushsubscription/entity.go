package pushsubscription

import (
	"slices"
	"time"
)

// Subscription is a browser push endpoint. SprintIDs narrows delivery to
// events of those sprints; empty means every sprint.
type Subscription struct {
	ID        string    `json:"id" yaml:"id"`
	Endpoint  string    `json:"endpoint" yaml:"endpoint"`
	P256dhKey string    `json:"-" yaml:"p256dh_key"`
	AuthKey   string    `json:"-" yaml:"auth_key"`
	SprintIDs []string  `json:"sprint_ids,omitempty" yaml:"sprint_ids,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Watches reports whether an event of sprintID should reach this endpoint.
// Board-wide events carry no sprint and reach everyone.
func (s *Subscription) Watches(sprintID string) bool {
	if sprintID == "" || len(s.SprintIDs) == 0 {
		return true
	}
	return slices.Contains(s.SprintIDs, sprintID)
}
