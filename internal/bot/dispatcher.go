// Package bot turns chat messages into onboarding flows and goal runs.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/shsh-autopilot/internal/autopilot"
	"github.com/ashureev/shsh-autopilot/internal/domain"
	"github.com/ashureev/shsh-autopilot/internal/store"
)

const (
	defaultOnboardingTimeout = time.Minute
	failureReportTimeout     = 10 * time.Second
)

var (
	// ErrOnboardingTimeout is returned when no credential reply arrived in time.
	ErrOnboardingTimeout = errors.New("onboarding timed out")
	// ErrInvalidCredentials is returned when the credential reply has the wrong shape.
	ErrInvalidCredentials = errors.New("invalid credential format")
	// ErrRateLimited is returned when a user exceeds the goal rate limit.
	ErrRateLimited = errors.New("goal rate limit exceeded")
)

// GoalRunner runs one goal to a terminal state.
type GoalRunner interface {
	Run(ctx context.Context, goal string, creds domain.Credentials) (*autopilot.Run, error)
}

// Options tunes a Dispatcher.
type Options struct {
	OnboardingTimeout time.Duration
	// MessageLimit caps outgoing message size on top of each sink's own limit.
	MessageLimit int
	Limiter      *RateLimiter
	Logger       *slog.Logger
}

// Dispatcher routes incoming events. Each event is handled on its own
// goroutine; runs for different goals never share state.
type Dispatcher struct {
	repo              store.Repository
	runner            GoalRunner
	limiter           *RateLimiter
	onboardingTimeout time.Duration
	messageLimit      int
	logger            *slog.Logger

	mu      sync.Mutex
	pending map[string]chan string

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher over repo and runner.
func NewDispatcher(repo store.Repository, runner GoalRunner, opts Options) *Dispatcher {
	if opts.OnboardingTimeout <= 0 {
		opts.OnboardingTimeout = defaultOnboardingTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		repo:              repo,
		runner:            runner,
		limiter:           opts.Limiter,
		onboardingTimeout: opts.OnboardingTimeout,
		messageLimit:      opts.MessageLimit,
		logger:            opts.Logger,
		pending:           make(map[string]chan string),
	}
}

// HandleIncoming dispatches ev and returns a handle to its processing.
// A direct message from a user with a pending onboarding resolves that
// onboarding instead of being processed on its own.
func (d *Dispatcher) HandleIncoming(ctx context.Context, ev Event) *Task {
	d.mu.Lock()
	if waiter, ok := d.pending[ev.key()]; ok {
		if ev.Direct {
			delete(d.pending, ev.key())
			waiter <- ev.Text
		}
		d.mu.Unlock()
		return completedTask(nil)
	}
	d.mu.Unlock()

	task := newTask()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		task.finish(d.process(ctx, ev))
	}()
	return task
}

// Wait blocks until every dispatched event has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, ev Event) error {
	logger := d.logger.With("transport", ev.Transport, "user_id", ev.UserID)

	user, err := d.repo.GetUser(ctx, ev.UserID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to look up user", "error", err)
		d.send(ctx, logger, ev.Reply, GoalFailedMessage)
		return fmt.Errorf("look up user %s: %w", ev.UserID, err)
	}
	if user == nil || !user.Credentials.Complete() {
		return d.onboard(ctx, logger, ev)
	}

	goal, ok := ParseGoal(ev.Text)
	if !ok {
		return nil
	}
	if goal == "" {
		d.send(ctx, logger, ev.Reply, GoalUsageMessage)
		return nil
	}
	if d.limiter != nil && !d.limiter.Allow(ev.key()) {
		logger.WarnContext(ctx, "Goal rate limit exceeded")
		d.send(ctx, logger, ev.Reply, RateLimitedMessage)
		return ErrRateLimited
	}

	run, err := d.runner.Run(ctx, goal, user.Credentials)
	if err != nil {
		logger.ErrorContext(ctx, "Goal run failed", "goal", goal, "error", err)
		msg := GoalFailedMessage
		if run != nil && run.Transcript != "" {
			msg += "\n\n**Logs:**\n\n" + run.Transcript
		}
		// The failure is reported even when ctx was canceled by shutdown.
		reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureReportTimeout)
		defer cancel()
		if sendErr := d.deliver(reportCtx, ev.Reply, msg); sendErr != nil {
			logger.ErrorContext(ctx, "Failed to report goal failure", "error", sendErr)
		}
		return err
	}

	logger.InfoContext(ctx, "Goal run finished", "run_id", run.ID, "state", run.State.String(), "iterations", run.Iterations)
	if err := d.deliver(ctx, ev.Reply, run.Report()); err != nil {
		logger.ErrorContext(ctx, "Failed to deliver report", "run_id", run.ID, "error", err)
		return err
	}
	return nil
}

// onboard collects credentials over DM. Only one onboarding per user runs at
// a time; further triggers while it is pending are ignored.
func (d *Dispatcher) onboard(ctx context.Context, logger *slog.Logger, ev Event) error {
	waiter, ok := d.registerWaiter(ev.key())
	if !ok {
		return nil
	}
	defer d.clearWaiter(ev.key(), waiter)

	logger.InfoContext(ctx, "Starting onboarding")
	if err := ev.DM.Send(ctx, WelcomeMessage); err != nil {
		logger.ErrorContext(ctx, "Failed to send onboarding prompt", "error", err)
		d.send(ctx, logger, ev.Reply, OnboardingErrorMessage)
		return fmt.Errorf("send onboarding prompt: %w", err)
	}

	timer := time.NewTimer(d.onboardingTimeout)
	defer timer.Stop()

	reply, err := d.awaitReply(ctx, ev.key(), waiter, timer.C)
	if errors.Is(err, ErrOnboardingTimeout) {
		logger.InfoContext(ctx, "Onboarding timed out", "timeout", d.onboardingTimeout)
		d.send(ctx, logger, ev.DM, OnboardingTimeoutMessage)
		return err
	}
	if err != nil {
		return err
	}

	creds, ok := ParseCredentials(reply)
	if !ok {
		logger.InfoContext(ctx, "Onboarding reply had invalid format")
		d.send(ctx, logger, ev.DM, InvalidFormatMessage)
		return ErrInvalidCredentials
	}

	err = d.repo.CreateUser(ctx, &domain.User{
		UserID:      ev.UserID,
		Username:    ev.Username,
		Credentials: creds,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to store credentials", "error", err)
		d.send(ctx, logger, ev.DM, OnboardingErrorMessage)
		return fmt.Errorf("store credentials: %w", err)
	}

	logger.InfoContext(ctx, "Onboarding completed")
	d.send(ctx, logger, ev.DM, KeysSavedMessage)
	return nil
}

// awaitReply waits for the credential reply. On expiry the waiter is
// withdrawn first, so a reply handed over at the deadline still wins.
func (d *Dispatcher) awaitReply(ctx context.Context, key string, waiter chan string, expired <-chan time.Time) (string, error) {
	select {
	case reply := <-waiter:
		return reply, nil
	case <-expired:
		d.clearWaiter(key, waiter)
		select {
		case reply := <-waiter:
			return reply, nil
		default:
			return "", ErrOnboardingTimeout
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Dispatcher) registerWaiter(key string) (chan string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.pending[key]; exists {
		return nil, false
	}
	// Buffered so the resolver never blocks while holding the lock.
	ch := make(chan string, 1)
	d.pending[key] = ch
	return ch, true
}

func (d *Dispatcher) clearWaiter(key string, ch chan string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.pending[key]; ok && cur == ch {
		delete(d.pending, key)
	}
}

// Pending reports whether an onboarding is waiting for the user's reply.
func (d *Dispatcher) Pending(transport, userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[transport+":"+userID]
	return ok
}

// deliver sends text in order, split to fit the sink.
func (d *Dispatcher) deliver(ctx context.Context, sink Sink, text string) error {
	limit := sink.MaxMessageLength()
	if d.messageLimit > 0 && (limit <= 0 || d.messageLimit < limit) {
		limit = d.messageLimit
	}
	for i, segment := range autopilot.Chunk(text, limit) {
		if err := sink.Send(ctx, segment); err != nil {
			return fmt.Errorf("send segment %d: %w", i, err)
		}
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, logger *slog.Logger, sink Sink, text string) {
	if err := d.deliver(ctx, sink, text); err != nil {
		logger.ErrorContext(ctx, "Failed to send message", "error", err)
	}
}
