package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default configuration values
const (
	DefaultCurrencyHandle  = "btc"
	DefaultCLIName         = "bitcoin-cli"
	DefaultDaemonName      = "bitcoind"
	DefaultThreshold       = 5
	DefaultExplorer        = "chainz"
	DefaultCacheTTL        = 300 * time.Second
	DefaultGraceMin        = 1800 * time.Second
	DefaultGraceMultiplier = 1.0
	DefaultStopWait        = 180 * time.Second
	DefaultTimeFormatLogs  = "kitchen"
)

// DefaultWipeTargets are the chain-state artifacts removed during
// remediation, relative to the data directory. Wallet files are never
// listed here.
var DefaultWipeTargets = []string{
	"blocks",
	"chainstate",
	"indexes",
	"database",
	"peers.dat",
	"banlist.dat",
	"mempool.dat",
	"fee_estimates.dat",
}

// Config holds all configuration for syncvisor. It is built once at
// startup and immutable afterwards.
type Config struct {
	// Node endpoint
	CurrencyHandle string `toml:"currency_handle" yaml:"currency_handle"`
	CLIPath        string `toml:"currency_bin_cli" yaml:"currency_bin_cli"`
	DaemonPath     string `toml:"currency_bin_daemon" yaml:"currency_bin_daemon"`
	ConfPath       string `toml:"currency_conf" yaml:"currency_conf"`
	DataDir        string `toml:"currency_datadir" yaml:"currency_datadir"`

	// Health decision
	Threshold int64 `toml:"threshold" yaml:"threshold"`

	// Remote height lookup
	Explorer    string        `toml:"explorer" yaml:"explorer"`
	ExplorerURL string        `toml:"explorer_url" yaml:"explorer_url"`
	CacheTTL    time.Duration `toml:"cache_ttl" yaml:"cache_ttl"`
	CacheDir    string        `toml:"cache_dir" yaml:"cache_dir"`

	// Recovery grace window
	GraceMin        time.Duration `toml:"grace_min" yaml:"grace_min"`
	GraceMultiplier float64       `toml:"grace_multiplier" yaml:"grace_multiplier"`

	// Remediation
	StopWait    time.Duration `toml:"stop_wait" yaml:"stop_wait"`
	WipeTargets []string      `toml:"wipe_targets" yaml:"wipe_targets"`

	// Metrics
	MetricsTextfile string `toml:"metrics_textfile" yaml:"metrics_textfile"`

	// Logging
	DisableLogs    bool   `toml:"disable_logs" yaml:"disable_logs"`
	ColorLogs      bool   `toml:"color_logs" yaml:"color_logs"`
	TimeFormatLogs string `toml:"time_format_logs" yaml:"time_format_logs"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		CurrencyHandle:  DefaultCurrencyHandle,
		CLIPath:         DefaultCLIName,
		DaemonPath:      DefaultDaemonName,
		DataDir:         defaultDataDir(),
		Threshold:       DefaultThreshold,
		Explorer:        DefaultExplorer,
		CacheTTL:        DefaultCacheTTL,
		GraceMin:        DefaultGraceMin,
		GraceMultiplier: DefaultGraceMultiplier,
		StopWait:        DefaultStopWait,
		WipeTargets:     append([]string(nil), DefaultWipeTargets...),
		ColorLogs:       true,
		TimeFormatLogs:  DefaultTimeFormatLogs,
	}
}

// defaultDataDir is the conventional dotfile directory of the default coin.
func defaultDataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".bitcoin")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.CurrencyHandle == "" {
		return fmt.Errorf("currency handle not set")
	}
	if c.CLIPath == "" {
		return fmt.Errorf("wallet CLI path not set")
	}
	if c.DaemonPath == "" {
		return fmt.Errorf("wallet daemon path not set")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory not set")
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold cannot be negative")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache TTL cannot be negative")
	}
	if c.GraceMin < 0 {
		return fmt.Errorf("grace minimum cannot be negative")
	}
	if c.GraceMultiplier < 0 {
		return fmt.Errorf("grace multiplier cannot be negative")
	}
	if c.StopWait <= 0 {
		return fmt.Errorf("stop wait must be positive")
	}
	if len(c.WipeTargets) == 0 {
		return fmt.Errorf("wipe target list is empty")
	}
	for _, target := range c.WipeTargets {
		if target == "" || target == "." || target == ".." || filepath.IsAbs(target) {
			return fmt.Errorf("invalid wipe target %q", target)
		}
	}
	return nil
}
