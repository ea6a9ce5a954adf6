package executionlog

import (
	"errors"
	"fmt"
	"time"
)

// Log records one prompt/response exchange with the text-generation
// service. AIResponse is nil until the response is supplied; after that the
// log is final. ReconciledAt is set once the response has been applied to
// the sprint's tasks.
type Log struct {
	ID            string     `json:"id" yaml:"id"`
	SprintID      string     `json:"sprint_id" yaml:"sprint_id"`
	PromptSent    string     `json:"prompt_sent" yaml:"prompt_sent"`
	AIResponse    *string    `json:"ai_response,omitempty" yaml:"ai_response,omitempty"`
	ExecutionDate time.Time  `json:"execution_date" yaml:"execution_date"`
	ModelUsed     string     `json:"model_used" yaml:"model_used"`
	FinalizedAt   *time.Time `json:"finalized_at,omitempty" yaml:"finalized_at,omitempty"`
	ReconciledAt  *time.Time `json:"reconciled_at,omitempty" yaml:"reconciled_at,omitempty"`
}

func (l *Log) Finalized() bool {
	return l.FinalizedAt != nil
}

func (l *Log) Reconciled() bool {
	return l.ReconciledAt != nil
}

func (l *Log) Validate() error {
	if l.ID == "" {
		return errors.New("execution log id is empty")
	}
	if l.SprintID == "" {
		return fmt.Errorf("execution log %s: sprint id is empty", l.ID)
	}
	if l.PromptSent == "" {
		return fmt.Errorf("execution log %s: prompt is empty", l.ID)
	}
	if (l.FinalizedAt == nil) != (l.AIResponse == nil) {
		return fmt.Errorf("execution log %s: response and finalized_at must be set together", l.ID)
	}
	if l.ReconciledAt != nil && l.FinalizedAt == nil {
		return fmt.Errorf("execution log %s: reconciled before finalized", l.ID)
	}
	return nil
}
