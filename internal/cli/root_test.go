package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncvisor/syncvisor/internal/config"
)

func TestRootCommand_MissingPathsExitCleanly(t *testing.T) {
	dir := t.TempDir()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{
		"--disable-logs",
		"--currency-bin-cli", filepath.Join(dir, "absent-cli"),
		"--currency-bin-daemon", filepath.Join(dir, "absent-daemon"),
		"--currency-datadir", filepath.Join(dir, "absent-datadir"),
	})

	// A missing-path misconfiguration is reported but is not a failure.
	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "configuration error")
	assert.Contains(t, out.String(), "required paths are missing")
}

func TestRootCommand_InvalidConfigurationFails(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--disable-logs", "--threshold", "-1"})

	assert.Error(t, cmd.Execute())
}

func TestRootCommand_UnknownExplorerFails(t *testing.T) {
	dir := t.TempDir()

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--disable-logs",
		"--currency-bin-cli", "sh",
		"--currency-bin-daemon", "sh",
		"--currency-datadir", dir,
		"--explorer", "no-such-explorer",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown explorer")
}

func TestApplyChangedFlags(t *testing.T) {
	cmd := NewRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--currency-handle", "ltc", "--threshold", "9"}))

	flagCfg := config.DefaultConfig()
	flagCfg.CurrencyHandle = "ltc"
	flagCfg.Threshold = 9
	flagCfg.Explorer = "should-not-leak" // flag not set, must not override

	cfg := config.DefaultConfig()
	cfg.Explorer = "chainz"
	applyChangedFlags(cmd, flagCfg, cfg)

	assert.Equal(t, "ltc", cfg.CurrencyHandle)
	assert.Equal(t, int64(9), cfg.Threshold)
	assert.Equal(t, "chainz", cfg.Explorer)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SYNCVISOR_CURRENCY_HANDLE", "ltc")
	t.Setenv("SYNCVISOR_THRESHOLD", "12")
	t.Setenv("SYNCVISOR_CACHE_TTL", "45s")
	t.Setenv("SYNCVISOR_CACHE_DIR", "/var/cache/syncvisor")
	t.Setenv("SYNCVISOR_GRACE_MIN", "10m")
	t.Setenv("SYNCVISOR_GRACE_MULTIPLIER", "0.5")
	t.Setenv("SYNCVISOR_STOP_WAIT", "90s")
	t.Setenv("SYNCVISOR_WIPE_TARGETS", "blocks,chainstate")
	t.Setenv("SYNCVISOR_DISABLE_LOGS", "true")
	t.Setenv("SYNCVISOR_TIME_FORMAT_LOGS", "rfc3339")

	cfg := config.DefaultConfig()
	applyEnv(cfg)

	assert.Equal(t, "ltc", cfg.CurrencyHandle)
	assert.Equal(t, int64(12), cfg.Threshold)
	assert.Equal(t, 45*time.Second, cfg.CacheTTL)
	assert.Equal(t, "/var/cache/syncvisor", cfg.CacheDir)
	assert.Equal(t, 10*time.Minute, cfg.GraceMin)
	assert.Equal(t, 0.5, cfg.GraceMultiplier)
	assert.Equal(t, 90*time.Second, cfg.StopWait)
	assert.Equal(t, []string{"blocks", "chainstate"}, cfg.WipeTargets)
	assert.True(t, cfg.DisableLogs)
	assert.Equal(t, "rfc3339", cfg.TimeFormatLogs)

	// Unset variables leave the existing values alone.
	assert.Equal(t, config.DefaultDaemonName, cfg.DaemonPath)
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	assert.Contains(t, out.String(), "syncvisor")
}
