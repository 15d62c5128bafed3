// Package autopilot drives a goal to completion by alternating model-proposed
// shell commands with their execution in a remote sandbox.
package autopilot

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/shsh-autopilot/internal/llm"
)

// ErrModel marks a failed model call. It aborts the run.
var ErrModel = errors.New("model call failed")

const systemPromptTemplate = `You are a world-class Linux system administration assistant, given the ability to access and run commands on a remote Debian/Ubuntu-based Linux container. Your mission is to help achieve the following goal: %s. 
Rules:
1. Return only shell commands needed, line-by-line, no explanation.
2. If previous attempts failed, refine your approach and fix the issues based on the provided errors and output.
3. If you need to run multiple commands, separate them by new lines.
4. Consider common steps: updating package lists, installing packages, verifying installation.
5. The container might be minimal, so consider installing or fixing repositories if needed.
6. Always ensure commands are non-interactive.
7. Do not use markdown formatting at all ever.
8. All commands are non-interactive
9. If installing packages, always use -y to allow for non-interactive commands
`

// BuildPrompts returns the system and user prompts for one model query.
func BuildPrompts(history, goal string) (system, user string) {
	system = fmt.Sprintf(systemPromptTemplate, goal)
	user = "CONTEXT:\n" + history + "\n\nGOAL: " + goal + "\n\nPlease provide the exact shell commands to achieve the goal above."
	return system, user
}

// InstructionSource produces the raw instruction batch for one iteration.
type InstructionSource interface {
	Generate(ctx context.Context, history, goal, modelSecret string) (string, error)
}

// Generator asks a language model for shell commands.
type Generator struct {
	client llm.Client
}

var _ InstructionSource = (*Generator)(nil)

// NewGenerator creates a generator backed by client.
func NewGenerator(client llm.Client) *Generator {
	return &Generator{client: client}
}

// Generate returns the model's raw reply for the given history and goal.
func (g *Generator) Generate(ctx context.Context, history, goal, modelSecret string) (string, error) {
	system, user := BuildPrompts(history, goal)
	out, err := g.client.Complete(ctx, system, user, modelSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModel, err)
	}
	return out, nil
}
