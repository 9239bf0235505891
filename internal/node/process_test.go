package node

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartProcess_CapturesStdout(t *testing.T) {
	handle, err := StartProcess("echo", "hello")
	require.NoError(t, err)

	stdout, stderr, err := handle.WaitOutput(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", stdout)
	assert.Empty(t, stderr)
	assert.Equal(t, StateCompleted, handle.State())
}

func TestStartProcess_CapturesStderr(t *testing.T) {
	handle, err := StartProcess("sh", "-c", "echo oops >&2")
	require.NoError(t, err)

	stdout, stderr, err := handle.WaitOutput(5 * time.Second)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, "oops\n", stderr)
}

func TestStartProcess_UnknownBinary(t *testing.T) {
	_, err := StartProcess("/nonexistent/binary-xyz")
	assert.Error(t, err)
}

func TestWaitOutput_Memoized(t *testing.T) {
	handle, err := StartProcess("echo", "once")
	require.NoError(t, err)

	first, _, err := handle.WaitOutput(5 * time.Second)
	require.NoError(t, err)

	// The process is reaped exactly once, later calls return the memoized
	// result even with a zero timeout.
	second, _, err := handle.WaitOutput(0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, StateCompleted, handle.State())
}

func TestWaitOutput_NonZeroExitIsNotAnError(t *testing.T) {
	handle, err := StartProcess("sh", "-c", "echo failed >&2; exit 1")
	require.NoError(t, err)

	stdout, stderr, err := handle.WaitOutput(5 * time.Second)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, "failed\n", stderr)
}

func TestWaitOutput_Timeout(t *testing.T) {
	handle, err := StartProcess("sleep", "10")
	require.NoError(t, err)

	_, _, err = handle.WaitOutput(50 * time.Millisecond)
	require.Error(t, err)

	var timeoutErr *OutputTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)
	assert.Equal(t, StateRunning, handle.State())

	// Clean up the straggler.
	_ = handle.cmd.Process.Kill()
	<-handle.done
}

func TestWaitOutput_NeverStarted(t *testing.T) {
	handle := &ProcessHandle{command: "noop"}
	_, _, err := handle.WaitOutput(time.Second)
	assert.Error(t, err)
}

func TestProcessState_String(t *testing.T) {
	assert.Equal(t, "not_started", StateNotStarted.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "completed", StateCompleted.String())
}
