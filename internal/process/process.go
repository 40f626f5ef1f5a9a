// Package process runs the external commands gh-please delegates to: the
// GitHub CLI and the package manager.
package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
)

// Result is the outcome of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success reports whether the process exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// StderrText returns trimmed standard error, falling back to standard output
// when the process wrote nothing to stderr.
func (r Result) StderrText() string {
	if s := strings.TrimSpace(string(r.Stderr)); s != "" {
		return s
	}
	return strings.TrimSpace(string(r.Stdout))
}

// Runner defines an interface for running external processes.
// A non-zero exit status is reported through Result.ExitCode, not as an error;
// the error is reserved for processes that could not be started or were
// stopped by the context.
type Runner interface {
	Run(ctx context.Context, path string, args []string, stdin io.Reader) (Result, error)
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct{}

// NewExecRunner creates a new os/exec backed runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a real external process and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, path string, args []string, stdin io.Reader) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, path, args...) // #nosec G204 - Commands are fixed tool invocations
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, ctxErr
	}

	if err != nil {
		exitErr := &exec.ExitError{}
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, err
	}

	return result, nil
}
