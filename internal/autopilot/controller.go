package autopilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ashureev/shsh-autopilot/internal/domain"
	"github.com/ashureev/shsh-autopilot/internal/executor"
)

const (
	// DefaultMaxIterations bounds model queries per goal.
	DefaultMaxIterations = 5
	// DefaultWorkDir is where every command runs.
	DefaultWorkDir = "/home"

	successBanner = "The goal was successfully achieved."
	failureBanner = "Failed to achieve the goal within the maximum number of iterations."
	logsHeader    = "\n\n**Logs:**\n\n"
)

// ErrEmptyGoal is returned when Run is called without a goal.
var ErrEmptyGoal = errors.New("goal is empty")

// InitialContext is the preamble every run starts from.
func InitialContext(goal string) string {
	return "Initial attempt. No commands have been run yet.\n" +
		"We are working with a Debian/Ubuntu container.\n" +
		"Goal: " + goal
}

// Run is the state of one goal invocation. It is discarded once reported.
type Run struct {
	ID         string
	Goal       string
	State      State
	Iterations int
	// Context is the only memory carried between iterations; it only grows.
	Context    string
	Attempts   []Attempt
	Transcript string
}

func (r *Run) transition(to State) error {
	if !isAllowedTransition(r.State, to) {
		return fmt.Errorf("run %s: disallowed transition %s -> %s", r.ID, r.State, to)
	}
	r.State = to
	return nil
}

func (r *Run) record(a Attempt) {
	block := a.Render()
	r.Attempts = append(r.Attempts, a)
	r.Context += "\n\n" + block
	r.Transcript += block
}

// Succeeded reports whether the run ended in success.
func (r *Run) Succeeded() bool {
	return r.State == StateSucceeded
}

// Report returns the user-facing summary: a banner followed by every attempt.
func (r *Run) Report() string {
	banner := failureBanner
	if r.Succeeded() {
		banner = successBanner
	}
	return banner + logsHeader + r.Transcript
}

// Controller owns the bounded generate, parse and execute loop.
type Controller struct {
	gen           InstructionSource
	exec          executor.Executor
	maxIterations int
	workDir       string
	logger        *slog.Logger
}

// NewController creates a controller. Non-positive maxIterations and an empty
// workDir fall back to the defaults.
func NewController(gen InstructionSource, exec executor.Executor, maxIterations int, workDir string, logger *slog.Logger) *Controller {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if workDir == "" {
		workDir = DefaultWorkDir
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		gen:           gen,
		exec:          exec,
		maxIterations: maxIterations,
		workDir:       workDir,
		logger:        logger,
	}
}

// MaxIterations returns the iteration budget.
func (c *Controller) MaxIterations() int {
	return c.maxIterations
}

// Run drives goal until an attempt succeeds or the budget is spent.
// Exhaustion is not an error. A model or transport failure aborts the run and
// is returned together with everything accumulated so far.
func (c *Controller) Run(ctx context.Context, goal string, creds domain.Credentials) (*Run, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrEmptyGoal
	}

	run := &Run{
		ID:      uuid.NewString(),
		Goal:    goal,
		State:   StateInit,
		Context: InitialContext(goal),
	}
	logger := c.logger.With("run_id", run.ID)
	logger.InfoContext(ctx, "Starting process to achieve goal", "goal", goal, "max_iterations", c.maxIterations)

	if err := run.transition(StateIterating); err != nil {
		return run, err
	}

	for {
		run.Iterations++
		iterLogger := logger.With("iteration", run.Iterations)
		iterLogger.InfoContext(ctx, fmt.Sprintf("Iteration %d of %d", run.Iterations, c.maxIterations))

		iterLogger.InfoContext(ctx, "Asking model for instructions")
		instructions, err := c.gen.Generate(ctx, run.Context, goal, creds.ModelAPIKey)
		if err != nil {
			return c.abort(ctx, run, iterLogger, err)
		}
		iterLogger.InfoContext(ctx, "Model provided commands", "instructions", instructions)

		commands := ParseCommands(instructions)
		attempt, err := RunAttempt(ctx, c.exec, iterLogger, run.Iterations, instructions, commands, c.workDir, creds.SandboxAPIKey)
		if err != nil {
			return c.abort(ctx, run, iterLogger, err)
		}
		run.record(attempt)

		switch {
		case attempt.Succeeded:
			iterLogger.InfoContext(ctx, "All commands executed successfully")
			if err := run.transition(StateSucceeded); err != nil {
				return run, err
			}
			logger.InfoContext(ctx, "Goal achieved", "iterations", run.Iterations)
			return run, nil
		case run.Iterations >= c.maxIterations:
			if err := run.transition(StateExhausted); err != nil {
				return run, err
			}
			logger.WarnContext(ctx, "Failed to achieve goal within max iterations", "iterations", run.Iterations)
			return run, nil
		default:
			iterLogger.InfoContext(ctx, "At least one command failed, the model will refine its approach")
			if err := run.transition(StateIterating); err != nil {
				return run, err
			}
		}
	}
}

func (c *Controller) abort(ctx context.Context, run *Run, logger *slog.Logger, cause error) (*Run, error) {
	if err := run.transition(StateAborted); err != nil {
		return run, errors.Join(cause, err)
	}
	kind := "model"
	if executor.IsTransport(cause) {
		kind = "sandbox"
	}
	logger.ErrorContext(ctx, "Run aborted", "kind", kind, "error", cause)
	return run, fmt.Errorf("run %s aborted at iteration %d: %w", run.ID, run.Iterations, cause)
}
