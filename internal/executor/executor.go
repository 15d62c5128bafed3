// Package executor runs single shell commands inside a remote Linux sandbox.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport marks failures to reach the sandbox or to understand its reply.
	ErrTransport = errors.New("sandbox transport failure")
	// ErrEmptyCommand is returned when asked to run a blank command.
	ErrEmptyCommand = errors.New("empty command")
)

// Result holds the captured output streams of one command.
type Result struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Failed reports whether the command wrote anything but whitespace to its
// error stream. This is the only success signal; exit codes are not observed.
func (r Result) Failed() bool {
	return strings.TrimSpace(r.Stderr) != ""
}

// Executor runs one command in the sandbox identified by secret.
// Effects on the sandbox are not idempotent and are never rolled back.
type Executor interface {
	Exec(ctx context.Context, command, workDir, secret string) (Result, error)
}

// TransportError wraps a failure that happened before a command result could
// be obtained. It always unwraps to ErrTransport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrTransport.Error(), e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransport.Error(), e.Op, e.Err)
}

// Unwrap exposes both the transport kind and the underlying cause.
func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// IsTransport reports whether err is a sandbox transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

func transportErr(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}
