package autopilot

import (
	"context"
	"errors"
	"strings"

	"github.com/ashureev/shsh-autopilot/internal/executor"
)

// scriptedSource returns replies in order and records every history it saw.
type scriptedSource struct {
	replies   []string
	err       error
	histories []string
	secrets   []string
}

func (s *scriptedSource) Generate(_ context.Context, history, _ string, secret string) (string, error) {
	s.histories = append(s.histories, history)
	s.secrets = append(s.secrets, secret)
	if s.err != nil {
		return "", s.err
	}
	if len(s.histories) > len(s.replies) {
		return s.replies[len(s.replies)-1], nil
	}
	return s.replies[len(s.histories)-1], nil
}

// mapExecutor answers commands from a table; unknown commands succeed silently.
type mapExecutor struct {
	results map[string]executor.Result
	errs    map[string]error
	ran     []string
	workDir string
	secret  string
}

func (m *mapExecutor) Exec(_ context.Context, command, workDir, secret string) (executor.Result, error) {
	if strings.TrimSpace(command) == "" {
		return executor.Result{}, executor.ErrEmptyCommand
	}
	m.ran = append(m.ran, command)
	m.workDir = workDir
	m.secret = secret
	if err, ok := m.errs[command]; ok {
		return executor.Result{}, err
	}
	return m.results[command], nil
}

var errUnreachable = errors.New("connection refused")
