package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	claudeagent "github.com/kazz187/claude-agent-sdk-go"
)

// Generator is the text-generation service a prompt is sent to.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const generatorSystemPrompt = "You are a sprint planning assistant. Answer the request about the listed tasks. " +
	"Refer to tasks by their exact titles."

// ClaudeGenerator runs a single-turn Claude query per prompt.
type ClaudeGenerator struct {
	workDir string
	timeout time.Duration
}

func NewClaudeGenerator(workDir string, timeout time.Duration) *ClaudeGenerator {
	return &ClaudeGenerator{workDir: workDir, timeout: timeout}
}

func (g *ClaudeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	maxTurns := 1
	result, err := claudeagent.RunQuerySync(ctx, prompt, &claudeagent.ClaudeAgentOptions{
		SystemPrompt:   generatorSystemPrompt,
		Cwd:            g.workDir,
		PermissionMode: claudeagent.PermissionModeDefault,
		MaxTurns:       &maxTurns,
	})
	if err != nil {
		return "", fmt.Errorf("claude query failed: %w", err)
	}
	if result.Result == nil {
		return "", errors.New("claude query returned no result")
	}
	if result.Result.IsError {
		return "", fmt.Errorf("claude query returned error: %s", result.Result.Result)
	}
	return result.Result.Result, nil
}
