package autopilot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ashureev/shsh-autopilot/internal/executor"
)

// Step is one executed command and its output.
type Step struct {
	Command string
	Result  executor.Result
}

// Attempt records one iteration: the model's instructions and the commands
// that actually ran. Commands after the first failure are not recorded.
type Attempt struct {
	Iteration    int
	Instructions string
	Steps        []Step
	Succeeded    bool
}

// Render formats the attempt as the text block appended to the run context.
func (a Attempt) Render() string {
	var b strings.Builder
	b.WriteString("Attempt #")
	b.WriteString(strconv.Itoa(a.Iteration))
	b.WriteString(":\n**AI instructions:**\n\n```bash\n")
	b.WriteString(a.Instructions)
	b.WriteString("\n```\n\n**Command results:**\n\n")
	for _, s := range a.Steps {
		b.WriteString("\n> ")
		b.WriteString(s.Command)
		b.WriteString("\n```plaintext\nstdout:\n")
		b.WriteString(s.Result.Stdout)
		b.WriteString("\n\nTerminal:\n")
		b.WriteString(s.Result.Stderr)
		b.WriteString("\n```\n")
	}
	return b.String()
}

// RunAttempt runs commands in order and stops at the first one that writes to
// its error stream. An empty batch succeeds. A transport error stops the
// attempt and is returned alongside the partial record.
func RunAttempt(ctx context.Context, exec executor.Executor, logger *slog.Logger, iteration int, instructions string, commands []string, workDir, secret string) (Attempt, error) {
	if logger == nil {
		logger = slog.Default()
	}
	attempt := Attempt{
		Iteration:    iteration,
		Instructions: instructions,
		Succeeded:    true,
	}

	for _, cmd := range commands {
		logger.InfoContext(ctx, "Executing command", "command", cmd)

		res, err := exec.Exec(ctx, cmd, workDir, secret)
		if err != nil {
			attempt.Succeeded = false
			return attempt, err
		}
		logger.InfoContext(ctx, "Command finished",
			"command", cmd,
			"stdout", displayStream(res.Stdout),
			"terminal", displayStream(res.Stderr))

		attempt.Steps = append(attempt.Steps, Step{Command: cmd, Result: res})

		if res.Failed() {
			logger.InfoContext(ctx, "Command failed with output on the error stream, requesting refined instructions")
			attempt.Succeeded = false
			break
		}
	}

	return attempt, nil
}

func displayStream(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(empty)"
	}
	return s
}
