package node

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ProcessState tracks the lifecycle of a spawned process.
type ProcessState int

const (
	// StateNotStarted indicates the process has not been launched
	StateNotStarted ProcessState = iota
	// StateRunning indicates the process has been launched and not yet reaped
	StateRunning
	// StateCompleted indicates the process exited and its output is memoized
	StateCompleted
)

// String returns the string representation of ProcessState
func (s ProcessState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ProcessHandle wraps one spawned external process. Output is captured
// exactly once: the first successful WaitOutput reaps the process and
// memoizes both streams, later calls return the memoized result.
type ProcessHandle struct {
	command string

	cmd    *exec.Cmd
	outBuf bytes.Buffer
	errBuf bytes.Buffer
	done   chan error

	mu     sync.Mutex
	state  ProcessState
	stdout string
	stderr string
}

// StartProcess launches bin with args and begins capturing its combined
// output. The call returns as soon as the process has started.
func StartProcess(bin string, args ...string) (*ProcessHandle, error) {
	h := &ProcessHandle{
		command: strings.TrimSpace(bin + " " + strings.Join(args, " ")),
		cmd:     exec.Command(bin, args...),
		done:    make(chan error, 1),
	}
	h.cmd.Stdout = &h.outBuf
	h.cmd.Stderr = &h.errBuf

	if err := h.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %q: %w", h.command, err)
	}
	h.state = StateRunning

	go func() {
		h.done <- h.cmd.Wait()
	}()

	return h, nil
}

// newCompletedHandle builds a handle that already carries its result.
// Used by tests to substitute canned command output.
func newCompletedHandle(command, stdout, stderr string) *ProcessHandle {
	return &ProcessHandle{
		command: command,
		state:   StateCompleted,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// Command returns the command line this handle was spawned with.
func (h *ProcessHandle) Command() string {
	return h.command
}

// State returns the current lifecycle state.
func (h *ProcessHandle) State() ProcessState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// WaitOutput blocks until the process exits and returns its decoded stdout
// and stderr. A timeout of zero waits indefinitely. The call is idempotent:
// once the process has been reaped the memoized result is returned without
// touching the process again.
//
// A non-zero exit status is not an error here. The wallet CLI reports RPC
// failures as text on stderr with a non-zero exit, and callers interpret
// that text themselves.
func (h *ProcessHandle) WaitOutput(timeout time.Duration) (string, string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateCompleted:
		return h.stdout, h.stderr, nil
	case StateNotStarted:
		return "", "", fmt.Errorf("process %q was never started", h.command)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-h.done:
		h.state = StateCompleted
		h.stdout = h.outBuf.String()
		h.stderr = h.errBuf.String()
		return h.stdout, h.stderr, nil
	case <-expired:
		return "", "", &OutputTimeoutError{Command: h.command, Timeout: timeout}
	}
}
