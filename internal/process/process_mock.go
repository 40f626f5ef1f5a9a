package process

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// MockRunner is a mock implementation of Runner for testing.
type MockRunner struct {
	// RunFunc allows tests to provide custom behavior
	RunFunc func(ctx context.Context, path string, args []string, stdin io.Reader) (Result, error)

	// Delay simulates slow process execution
	Delay time.Duration

	// ShouldTimeout if true, will block until context is cancelled
	ShouldTimeout bool

	mu        sync.Mutex
	callCount int
	lastPath  string
	lastArgs  []string
	calls     [][]string
}

// Run executes the mock behavior.
func (m *MockRunner) Run(ctx context.Context, path string, args []string, stdin io.Reader) (Result, error) {
	m.mu.Lock()
	m.callCount++
	m.lastPath = path
	m.lastArgs = append([]string(nil), args...)
	m.calls = append(m.calls, append([]string{path}, args...))
	m.mu.Unlock()

	if m.ShouldTimeout {
		<-ctx.Done()
		return Result{ExitCode: -1}, ctx.Err()
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Result{ExitCode: -1}, ctx.Err()
		}
	}

	if m.RunFunc != nil {
		return m.RunFunc(ctx, path, args, stdin)
	}

	return Result{}, nil
}

// CallCount returns how many times Run was called.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPath returns the last path passed to Run.
func (m *MockRunner) LastPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPath
}

// LastArgs returns the last args passed to Run.
func (m *MockRunner) LastArgs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastArgs
}

// Calls returns every invocation as path followed by args.
func (m *MockRunner) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// NewMockRunner creates a new mock process runner that always succeeds.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// NewTimeoutMockRunner creates a mock that simulates a process that never exits.
func NewTimeoutMockRunner() *MockRunner {
	return &MockRunner{
		ShouldTimeout: true,
	}
}

// NewExitMockRunner creates a mock whose process exits with code and writes stderr.
func NewExitMockRunner(code int, stderr string) *MockRunner {
	return &MockRunner{
		RunFunc: func(ctx context.Context, path string, args []string, stdin io.Reader) (Result, error) {
			return Result{ExitCode: code, Stderr: []byte(stderr)}, nil
		},
	}
}

// NewErrorMockRunner creates a mock whose process fails to start.
func NewErrorMockRunner(errMsg string) *MockRunner {
	return &MockRunner{
		RunFunc: func(ctx context.Context, path string, args []string, stdin io.Reader) (Result, error) {
			return Result{ExitCode: -1}, errors.New(errMsg)
		},
	}
}
