// Package orchestrate invokes the system-under-test and captures its
// output as a raw trace. It is the only blocking stage of the pipeline:
// the subprocess runs under a wall-clock timeout and is torn down
// (process group kill) on every exit path. The verifier core never
// inspects how a trace was captured.
package orchestrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ErrorKind distinguishes "it didn't run" failure modes. These are
// reported before any trace analysis occurs, distinct from rule-level
// verdicts.
type ErrorKind string

const (
	BuildFailed    ErrorKind = "BuildFailed"
	TimedOut       ErrorKind = "TimedOut"
	ProcessCrashed ErrorKind = "ProcessCrashed"
)

// Error is the adapter's structured error type.
type Error struct {
	Kind     ErrorKind
	ExitCode int
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf returns the ErrorKind for a structured error, or "" if unknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// CapturedTrace is the raw combined stdout/stderr of one run.
type CapturedTrace struct {
	Output   string
	Duration time.Duration
}

// Run executes cfg.Command under cfg timeout and captures its combined
// output. The child is started in its own process group and the whole
// group is killed when the deadline expires, so a timeout can never
// block the caller indefinitely.
func Run(ctx context.Context, cfg Config) (CapturedTrace, error) {
	if len(cfg.Command) == 0 {
		return CapturedTrace{}, &Error{Kind: BuildFailed, Message: "orchestrate: no command configured"}
	}

	timeout := cfg.Timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = cfg.Dir
	cmd.Env = os.Environ()
	if !cfg.UseLocalTarget && cfg.TargetAddress != "" {
		cmd.Env = append(cmd.Env, "REMOTE_PEER="+cfg.TargetAddress)
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid signals the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	captured := CapturedTrace{Output: buf.String(), Duration: time.Since(start)}
	if err == nil {
		return captured, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return captured, &Error{
			Kind:    TimedOut,
			Message: fmt.Sprintf("orchestrate: system-under-test exceeded %s timeout", timeout),
			Cause:   err,
		}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return captured, &Error{
			Kind:     ProcessCrashed,
			ExitCode: exitErr.ExitCode(),
			Message:  fmt.Sprintf("orchestrate: system-under-test exited with code %d", exitErr.ExitCode()),
			Cause:    err,
		}
	}
	return captured, &Error{
		Kind:    BuildFailed,
		Message: fmt.Sprintf("orchestrate: failed to start system-under-test: %v", err),
		Cause:   err,
	}
}
