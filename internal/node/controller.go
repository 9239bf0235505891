package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/syncvisor/syncvisor/pkg/logger"
)

// Markers the wallet CLI prints on its output streams. The unreachable
// marker means the daemon is not serving RPC at all; the warmup marker is
// the transient "still loading block index" RPC error.
const (
	unreachableMarker = "couldn't connect to server"
	warmupMarker      = "error code: -28"
)

// Default timing for the controller's retry and polling behavior.
const (
	DefaultWarmupRetryDelay  = 5 * time.Second
	DefaultWarmupMaxAttempts = 15
	DefaultStopPollInterval  = 1 * time.Second
	DefaultHeightTimeout     = 8 * time.Second
)

// Controller drives the external wallet CLI and daemon that share a data
// directory: it issues RPC commands, starts and stops the daemon, and
// deletes on-disk chain-state artifacts during remediation.
type Controller struct {
	endpoint    *Endpoint
	wipeTargets []string
	logger      *logger.Logger

	// spawn is swapped out by tests to avoid launching real processes.
	spawn func(bin string, args ...string) (*ProcessHandle, error)

	warmupRetryDelay  time.Duration
	warmupMaxAttempts int
	stopPollInterval  time.Duration
	heightTimeout     time.Duration
}

// NewController creates a controller for the given endpoint. wipeTargets
// are paths relative to the data directory that WipeChainData removes.
func NewController(endpoint *Endpoint, wipeTargets []string, log *logger.Logger) *Controller {
	return &Controller{
		endpoint:          endpoint,
		wipeTargets:       wipeTargets,
		logger:            log,
		spawn:             StartProcess,
		warmupRetryDelay:  DefaultWarmupRetryDelay,
		warmupMaxAttempts: DefaultWarmupMaxAttempts,
		stopPollInterval:  DefaultStopPollInterval,
		heightTimeout:     DefaultHeightTimeout,
	}
}

// DataDir returns the data directory the controller operates on.
func (c *Controller) DataDir() string {
	return c.endpoint.DataDir
}

// baseArgs returns the arguments every CLI and daemon invocation carries.
func (c *Controller) baseArgs() []string {
	args := []string{"-datadir=" + c.endpoint.DataDir}
	if c.endpoint.ConfPath != "" {
		args = append(args, "-conf="+c.endpoint.ConfPath)
	}
	return args
}

// RunCommand invokes the wallet CLI with the endpoint's base arguments
// followed by args.
func (c *Controller) RunCommand(args ...string) (*ProcessHandle, error) {
	full := append(c.baseArgs(), args...)
	c.logger.Debug("running wallet command",
		zap.String("binary", c.endpoint.CLIPath),
		zap.Strings("args", full))
	return c.spawn(c.endpoint.CLIPath, full...)
}

// RunCommandSafe wraps RunCommand with two failure detectors evaluated on
// the decoded output streams:
//
//   - the daemon-unreachable response fails immediately with *ConnectionError
//   - the transient warming-up RPC error is retried on a fixed delay, up to
//     the attempt budget, then fails with *WarmupStuckError
//
// There is exactly one retry loop here; the reissued command goes through
// RunCommand directly and is never retried recursively.
func (c *Controller) RunCommandSafe(ctx context.Context, timeout time.Duration, args ...string) (*ProcessHandle, error) {
	for attempt := 1; ; attempt++ {
		handle, err := c.RunCommand(args...)
		if err != nil {
			return nil, err
		}

		stdout, stderr, err := handle.WaitOutput(timeout)
		if err != nil {
			return nil, err
		}

		combined := stdout + stderr
		if strings.Contains(combined, unreachableMarker) {
			return nil, &ConnectionError{Command: handle.Command()}
		}
		if !strings.Contains(combined, warmupMarker) {
			return handle, nil
		}

		if attempt >= c.warmupMaxAttempts {
			return nil, &WarmupStuckError{Command: handle.Command(), Attempts: attempt}
		}

		c.logger.Warn("wallet daemon warming up, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.warmupMaxAttempts),
			zap.Duration("delay", c.warmupRetryDelay))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.warmupRetryDelay):
		}
	}
}

// StartDaemon launches the wallet daemon in background mode with the
// endpoint's base arguments plus extraArgs. It does not wait for the
// daemon to become ready.
func (c *Controller) StartDaemon(ctx context.Context, extraArgs ...string) (*ProcessHandle, error) {
	args := append(c.baseArgs(), "-daemon")
	args = append(args, extraArgs...)

	c.logger.Info("starting wallet daemon",
		zap.String("binary", c.endpoint.DaemonPath),
		zap.Strings("args", args))

	return c.spawn(c.endpoint.DaemonPath, args...)
}

// StopDaemon issues the stop command and then polls once per second, up to
// wait, with a plain height query as a liveness probe. The first
// daemon-unreachable response confirms shutdown and ends the wait early.
// If the wait elapses without that signal the handle is still returned;
// shutdown confirmation is best effort.
func (c *Controller) StopDaemon(ctx context.Context, wait time.Duration) (*ProcessHandle, error) {
	handle, err := c.RunCommand("stop")
	if err != nil {
		return nil, err
	}

	c.logger.Info("stopping wallet daemon", zap.Duration("wait", wait))

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return handle, ctx.Err()
		case <-time.After(c.stopPollInterval):
		}

		// The probe deliberately skips RunCommandSafe: warming-up retries
		// must not stack under the shutdown wait.
		probe, err := c.RunCommand("getblockcount")
		if err != nil {
			return handle, err
		}
		stdout, stderr, err := probe.WaitOutput(c.heightTimeout)
		if err != nil {
			var timeoutErr *OutputTimeoutError
			if errors.As(err, &timeoutErr) {
				continue
			}
			return handle, err
		}
		if strings.Contains(stdout+stderr, unreachableMarker) {
			c.logger.Info("wallet daemon shutdown confirmed")
			return handle, nil
		}
	}

	c.logger.Warn("wallet daemon shutdown not confirmed within wait",
		zap.Duration("wait", wait))
	return handle, nil
}

// WipeChainData removes the configured chain-state artifacts under the
// data directory. Entries that do not exist are silently skipped.
func (c *Controller) WipeChainData() error {
	if c.endpoint.DataDir == "" {
		return fmt.Errorf("refusing to wipe: data directory not set")
	}

	for _, target := range c.wipeTargets {
		path := filepath.Join(c.endpoint.DataDir, target)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		c.logger.Info("removing chain-state artifact", zap.String("path", path))
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// LocalHeight queries the daemon for its current block count.
func (c *Controller) LocalHeight(ctx context.Context) (int64, error) {
	handle, err := c.RunCommandSafe(ctx, c.heightTimeout, "getblockcount")
	if err != nil {
		return 0, err
	}

	stdout, _, err := handle.WaitOutput(c.heightTimeout)
	if err != nil {
		return 0, err
	}

	raw := strings.TrimSpace(stdout)
	height, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &HeightParseError{Raw: raw}
	}
	return height, nil
}
