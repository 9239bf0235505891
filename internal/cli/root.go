package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syncvisor/syncvisor/internal/config"
	"github.com/syncvisor/syncvisor/internal/explorer"
	"github.com/syncvisor/syncvisor/internal/ledger"
	"github.com/syncvisor/syncvisor/internal/metrics"
	"github.com/syncvisor/syncvisor/internal/monitor"
	"github.com/syncvisor/syncvisor/internal/node"
	"github.com/syncvisor/syncvisor/pkg/logger"
)

// NewRootCommand creates the root command for syncvisor. The root command
// itself runs one evaluation cycle; syncvisor is meant to be invoked once
// per external scheduling tick.
func NewRootCommand() *cobra.Command {
	defaults := config.DefaultConfig()
	cfg := *defaults
	var configFile string

	cmd := &cobra.Command{
		Use:   "syncvisor",
		Short: "Blockchain node sync watchdog",
		Long: `Syncvisor compares a node daemon's local block height against an
explorer-observed height and, when the node has fallen too far behind,
remediates by stopping the daemon, wiping chain state and restarting it
with a forced reindex. A grace-time recovery record prevents remediation
loops across invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycle(cmd, &cfg, configFile)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "Optional TOML or YAML configuration file")
	flags.StringVar(&cfg.CurrencyHandle, "currency-handle", cfg.CurrencyHandle, "Currency identity used for remote lookups")
	flags.StringVar(&cfg.CLIPath, "currency-bin-cli", cfg.CLIPath, "Wallet CLI binary path or name")
	flags.StringVar(&cfg.DaemonPath, "currency-bin-daemon", cfg.DaemonPath, "Wallet daemon binary path or name")
	flags.StringVar(&cfg.DataDir, "currency-datadir", cfg.DataDir, "Node data directory")
	flags.StringVar(&cfg.ConfPath, "currency-conf", cfg.ConfPath, "Optional node configuration file")
	flags.Int64Var(&cfg.Threshold, "threshold", cfg.Threshold, "Maximum tolerated remote minus local height delta")
	flags.StringVar(&cfg.Explorer, "explorer", cfg.Explorer, "Explorer backend for the remote height")
	flags.StringVar(&cfg.ExplorerURL, "explorer-url", cfg.ExplorerURL, "Custom explorer URL template ({handle} is substituted)")
	flags.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Remote height cache lifetime")
	flags.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Remote height cache directory (default: system temp)")
	flags.DurationVar(&cfg.GraceMin, "grace-min", cfg.GraceMin, "Minimum remediation grace window")
	flags.Float64Var(&cfg.GraceMultiplier, "grace-multiplier", cfg.GraceMultiplier, "Grace window seconds added per remote block")
	flags.DurationVar(&cfg.StopWait, "stop-wait", cfg.StopWait, "How long to wait for confirmed daemon shutdown")
	flags.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "Write Prometheus textfile metrics here after the run")
	flags.BoolVar(&cfg.ColorLogs, "color-logs", cfg.ColorLogs, "Colorize log output")
	flags.BoolVar(&cfg.DisableLogs, "disable-logs", cfg.DisableLogs, "Disable log output")
	flags.StringVar(&cfg.TimeFormatLogs, "time-format-logs", cfg.TimeFormatLogs, "Log time format (kitchen, rfc3339, rfc3339nano, iso8601)")

	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// runCycle resolves the effective configuration and executes one
// monitoring cycle. Precedence: defaults < config file < environment <
// explicit flags.
func runCycle(cmd *cobra.Command, flagCfg *config.Config, configFile string) error {
	cfg := config.DefaultConfig()
	if configFile != "" {
		if err := config.LoadFile(configFile, cfg); err != nil {
			return err
		}
	}
	applyEnv(cfg)
	applyChangedFlags(cmd, flagCfg, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.ColorLogs, cfg.DisableLogs, cfg.TimeFormatLogs)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	endpoint, err := node.NewEndpoint(cfg.CLIPath, cfg.DaemonPath, cfg.ConfPath, cfg.DataDir)
	if err != nil {
		var missing *node.MissingPathError
		if errors.As(err, &missing) {
			// Operator-visible misconfiguration, not a crash: report it
			// and exit cleanly without touching the node.
			fmt.Fprintf(cmd.OutOrStdout(), "configuration error: %v\n", err)
			return nil
		}
		return err
	}

	source, err := explorer.ForName(cfg.Explorer, cfg.ExplorerURL, log)
	if err != nil {
		return err
	}

	controller := node.NewController(endpoint, cfg.WipeTargets, log)
	cache := explorer.NewFileCache(source, cfg.CacheDir, cfg.CacheTTL, log)
	recovery := ledger.New(cfg.DataDir, cfg.GraceMin, cfg.GraceMultiplier, log)
	currency := explorer.Currency{Handle: cfg.CurrencyHandle}

	mon := monitor.New(controller, cache, recovery, currency, cfg.Threshold, cfg.StopWait, log)

	report, err := mon.Run(cmd.Context())
	if err != nil {
		return err
	}

	if cfg.MetricsTextfile != "" {
		if err := exportMetrics(report, cfg.MetricsTextfile); err != nil {
			return err
		}
	}
	return nil
}

// exportMetrics renders the cycle's report for the node_exporter textfile
// collector.
func exportMetrics(report *monitor.Report, path string) error {
	rec := metrics.NewRecorder()
	rec.SetHeights(report.Verdict.LocalHeight, report.Verdict.RemoteHeight)
	rec.SetHealthy(report.Verdict.Healthy)
	rec.SetCoolingDown(report.Action == monitor.ActionCoolingDown)
	if report.Action == monitor.ActionRemediated {
		rec.IncRemediations()
	}
	rec.SetLastRun(time.Now().Unix())
	return rec.WriteTextfile(path)
}

// applyEnv overlays SYNCVISOR_* environment variables onto cfg.
func applyEnv(cfg *config.Config) {
	v := viper.New()
	v.SetEnvPrefix("SYNCVISOR")
	v.AutomaticEnv()

	if s := v.GetString("currency_handle"); s != "" {
		cfg.CurrencyHandle = s
	}
	if s := v.GetString("currency_bin_cli"); s != "" {
		cfg.CLIPath = s
	}
	if s := v.GetString("currency_bin_daemon"); s != "" {
		cfg.DaemonPath = s
	}
	if s := v.GetString("currency_datadir"); s != "" {
		cfg.DataDir = s
	}
	if s := v.GetString("currency_conf"); s != "" {
		cfg.ConfPath = s
	}
	if s := v.GetString("threshold"); s != "" {
		if threshold, err := strconv.ParseInt(s, 10, 64); err == nil {
			cfg.Threshold = threshold
		}
	}
	if s := v.GetString("explorer"); s != "" {
		cfg.Explorer = s
	}
	if s := v.GetString("explorer_url"); s != "" {
		cfg.ExplorerURL = s
	}
	if s := v.GetString("cache_ttl"); s != "" {
		if ttl, err := time.ParseDuration(s); err == nil {
			cfg.CacheTTL = ttl
		}
	}
	if s := v.GetString("cache_dir"); s != "" {
		cfg.CacheDir = s
	}
	if s := v.GetString("grace_min"); s != "" {
		if graceMin, err := time.ParseDuration(s); err == nil {
			cfg.GraceMin = graceMin
		}
	}
	if s := v.GetString("grace_multiplier"); s != "" {
		if multiplier, err := strconv.ParseFloat(s, 64); err == nil {
			cfg.GraceMultiplier = multiplier
		}
	}
	if s := v.GetString("stop_wait"); s != "" {
		if wait, err := time.ParseDuration(s); err == nil {
			cfg.StopWait = wait
		}
	}
	if s := v.GetString("wipe_targets"); s != "" {
		cfg.WipeTargets = strings.Split(s, ",")
	}
	if s := v.GetString("metrics_textfile"); s != "" {
		cfg.MetricsTextfile = s
	}
	if s := v.GetString("color_logs"); s != "" {
		if color, err := strconv.ParseBool(s); err == nil {
			cfg.ColorLogs = color
		}
	}
	if s := v.GetString("disable_logs"); s != "" {
		if disable, err := strconv.ParseBool(s); err == nil {
			cfg.DisableLogs = disable
		}
	}
	if s := v.GetString("time_format_logs"); s != "" {
		cfg.TimeFormatLogs = s
	}
}

// applyChangedFlags overlays every flag the user set explicitly. Flag
// values were parsed into flagCfg; only Changed flags win over file and
// environment values.
func applyChangedFlags(cmd *cobra.Command, flagCfg, cfg *config.Config) {
	overrides := map[string]func(){
		"currency-handle":     func() { cfg.CurrencyHandle = flagCfg.CurrencyHandle },
		"currency-bin-cli":    func() { cfg.CLIPath = flagCfg.CLIPath },
		"currency-bin-daemon": func() { cfg.DaemonPath = flagCfg.DaemonPath },
		"currency-datadir":    func() { cfg.DataDir = flagCfg.DataDir },
		"currency-conf":       func() { cfg.ConfPath = flagCfg.ConfPath },
		"threshold":           func() { cfg.Threshold = flagCfg.Threshold },
		"explorer":            func() { cfg.Explorer = flagCfg.Explorer },
		"explorer-url":        func() { cfg.ExplorerURL = flagCfg.ExplorerURL },
		"cache-ttl":           func() { cfg.CacheTTL = flagCfg.CacheTTL },
		"cache-dir":           func() { cfg.CacheDir = flagCfg.CacheDir },
		"grace-min":           func() { cfg.GraceMin = flagCfg.GraceMin },
		"grace-multiplier":    func() { cfg.GraceMultiplier = flagCfg.GraceMultiplier },
		"stop-wait":           func() { cfg.StopWait = flagCfg.StopWait },
		"metrics-textfile":    func() { cfg.MetricsTextfile = flagCfg.MetricsTextfile },
		"color-logs":          func() { cfg.ColorLogs = flagCfg.ColorLogs },
		"disable-logs":        func() { cfg.DisableLogs = flagCfg.DisableLogs },
		"time-format-logs":    func() { cfg.TimeFormatLogs = flagCfg.TimeFormatLogs },
	}
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
}
