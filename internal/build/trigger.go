// Package build invokes the external downstream transformation build and
// waits for it to finish. A trigger failure never unwinds warehouse appends
// that already committed.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const CodeBuildFailed = "E_BUILD_FAILED"

// Error wraps a downstream build failure or a process that could not start.
type Error struct {
	Code     string
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s (exit %d): %v", e.Code, e.ExitCode, e.Err)
}

func (e *Error) Unwrap() error     { return e.Err }
func (e *Error) CodeValue() string { return e.Code }

// IsBuildError reports whether err is a downstream build failure.
func IsBuildError(err error) bool {
	var be *Error
	return errors.As(err, &be)
}

// Result captures a completed build.
type Result struct {
	ExitCode int
	Duration time.Duration
	Output   string
}

// Trigger runs an external transformation build synchronously.
type Trigger struct {
	// Command is the build executable, e.g. "dbt".
	Command string
	// Args are passed verbatim, e.g. ["build", "--target", "prod"].
	Args []string
	// Dir is the working directory; empty means the caller's.
	Dir string
	// Env entries are appended to the parent environment.
	Env []string
	// Timeout bounds the whole build; zero means no bound.
	Timeout time.Duration

	Logger *zap.Logger
}

// Run starts the build, blocks until completion, and returns its result.
func (t *Trigger) Run(ctx context.Context) (*Result, error) {
	if t.Command == "" {
		return nil, &Error{Code: CodeBuildFailed, ExitCode: -1, Err: fmt.Errorf("build command is required")}
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.Command, t.Args...)
	cmd.Dir = t.Dir
	// A cancelled context kills the process, but Wait would still block
	// until the output pipe closes; abandon the pipe shortly after the kill
	// so Timeout actually bounds Run.
	cmd.WaitDelay = time.Second
	if len(t.Env) > 0 {
		cmd.Env = append(os.Environ(), t.Env...)
	}

	if t.Logger != nil {
		t.Logger.Info("triggering downstream build",
			zap.String("command", t.Command),
			zap.Strings("args", t.Args))
	}

	start := time.Now()
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &Error{
			Code:     CodeBuildFailed,
			ExitCode: exitCode,
			Err:      fmt.Errorf("%s: %w", t.Command, err),
		}
	}

	if t.Logger != nil {
		t.Logger.Info("downstream build complete",
			zap.Duration("duration", elapsed))
	}

	return &Result{
		ExitCode: 0,
		Duration: elapsed,
		Output:   string(output),
	}, nil
}
