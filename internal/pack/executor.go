package pack

import (
	"bytes"
	"context"
	"os/exec"
	"slices"
	"sync"
)

// CommandExecutor abstracts command execution so tests can fake the packer.
type CommandExecutor interface {
	// Run executes a command and returns stdout, stderr, and any error.
	Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error)

	// LookPath reports where name is found on PATH.
	LookPath(name string) (string, error)
}

// RealExecutor executes commands using os/exec.
type RealExecutor struct{}

// NewRealExecutor returns a new RealExecutor.
func NewRealExecutor() *RealExecutor {
	return &RealExecutor{}
}

// Run executes a command and returns stdout, stderr, and any error.
func (e *RealExecutor) Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), err
}

// LookPath wraps exec.LookPath.
func (e *RealExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// MockCall records a command invocation for verification.
type MockCall struct {
	Dir  string
	Name string
	Args []string
}

// MockExecutor returns canned results. OnRun, when set, runs before the
// result is returned so a test can create the packer's output file.
type MockExecutor struct {
	mu sync.Mutex

	Missing bool
	Stdout  []byte
	Stderr  []byte
	Err     error
	OnRun   func(args []string) error

	calls []MockCall
}

// Run records the call and returns the canned result.
func (m *MockExecutor) Run(_ context.Context, dir string, name string, args ...string) ([]byte, []byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Dir: dir, Name: name, Args: slices.Clone(args)})
	onRun := m.OnRun
	m.mu.Unlock()

	if onRun != nil {
		if err := onRun(args); err != nil {
			return nil, m.Stderr, err
		}
	}
	return m.Stdout, m.Stderr, m.Err
}

// LookPath fails when Missing is set.
func (m *MockExecutor) LookPath(name string) (string, error) {
	if m.Missing {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return "/usr/local/bin/" + name, nil
}

// Calls returns the recorded invocations.
func (m *MockExecutor) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// OutputArg returns the value following --output in args.
func OutputArg(args []string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "--output" {
			return args[i+1]
		}
	}
	return ""
}
