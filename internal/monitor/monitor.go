package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"github.com/syncvisor/syncvisor/internal/explorer"
	"github.com/syncvisor/syncvisor/pkg/logger"
)

// reindexFlag forces the restarted daemon to rebuild chain state
// from scratch after the wipe.
const reindexFlag = "-reindex"

// Verdict is the derived health decision for one cycle. It is computed,
// never stored.
type Verdict struct {
	LocalHeight  int64
	RemoteHeight int64
	Delta        int64
	Healthy      bool
}

// Action is what the monitor did with a cycle's verdict.
type Action int

const (
	// ActionHealthy means the node is in sync and any recovery record was cleared
	ActionHealthy Action = iota
	// ActionCoolingDown means the node is behind but a remediation is already pending
	ActionCoolingDown
	// ActionRemediated means a stop/wipe/mark/restart sequence was executed
	ActionRemediated
)

// String returns the string representation of Action
func (a Action) String() string {
	switch a {
	case ActionHealthy:
		return "healthy"
	case ActionCoolingDown:
		return "cooling_down"
	case ActionRemediated:
		return "remediated"
	default:
		return "unknown"
	}
}

// Report is the outcome of one evaluation cycle.
type Report struct {
	Verdict Verdict
	Action  Action
}

// Monitor compares the daemon's local height against the explorer-observed
// height and remediates a stuck node by wiping chain state and forcing a
// resynchronization, guarded by the recovery ledger's grace window.
type Monitor struct {
	controller NodeController
	cache      HeightCache
	ledger     RecoveryLedger
	currency   explorer.Currency
	threshold  int64
	stopWait   time.Duration
	logger     *logger.Logger
}

// New creates a monitor. threshold and stopWait are used as configured;
// a threshold of zero tolerates no lag at all.
func New(controller NodeController, cache HeightCache, lgr RecoveryLedger, currency explorer.Currency, threshold int64, stopWait time.Duration, log *logger.Logger) *Monitor {
	return &Monitor{
		controller: controller,
		cache:      cache,
		ledger:     lgr,
		currency:   currency,
		threshold:  threshold,
		stopWait:   stopWait,
		logger:     log,
	}
}

// check queries both heights and derives the verdict.
func (m *Monitor) check(ctx context.Context) (Verdict, error) {
	local, err := m.controller.LocalHeight(ctx)
	if err != nil {
		return Verdict{}, fmt.Errorf("local height query failed: %w", err)
	}
	remote, err := m.cache.Get(ctx, m.currency)
	if err != nil {
		return Verdict{}, fmt.Errorf("remote height lookup failed: %w", err)
	}

	delta := remote - local
	return Verdict{
		LocalHeight:  local,
		RemoteHeight: remote,
		Delta:        delta,
		Healthy:      delta <= m.threshold,
	}, nil
}

// Run performs one evaluation cycle: observe both heights, re-check freshly
// before deciding, then clear the ledger, skip during cooldown, or run the
// remediation sequence.
func (m *Monitor) Run(ctx context.Context) (*Report, error) {
	// Initial readings, held for logging. The decision below re-queries
	// both so it never acts on a verdict that went stale mid-cycle.
	observed, err := m.check(ctx)
	if err != nil {
		return nil, err
	}
	m.logger.Info("sync state observed",
		zap.String("currency", m.currency.Handle),
		zap.Int64("local_height", observed.LocalHeight),
		zap.Int64("remote_height", observed.RemoteHeight),
		zap.Int64("delta", observed.Delta))

	verdict, err := m.check(ctx)
	if err != nil {
		return nil, err
	}

	if verdict.Healthy {
		if err := m.ledger.Clear(); err != nil {
			return nil, err
		}
		m.logger.Info("node is in sync",
			zap.Int64("delta", verdict.Delta),
			zap.Int64("threshold", m.threshold))
		return &Report{Verdict: verdict, Action: ActionHealthy}, nil
	}

	cooling, err := m.ledger.IsCoolingDown(verdict.RemoteHeight)
	if err != nil {
		return nil, err
	}
	if cooling {
		m.logger.Warn("node is behind but remediation is cooling down",
			zap.Int64("delta", verdict.Delta),
			zap.Int64("threshold", m.threshold))
		return &Report{Verdict: verdict, Action: ActionCoolingDown}, nil
	}

	if err := m.remediate(ctx, verdict); err != nil {
		return nil, err
	}
	return &Report{Verdict: verdict, Action: ActionRemediated}, nil
}

// remediate drives the stop -> wipe -> mark -> restart sequence. The
// ledger write happens after the wipe, mirroring the persisted layout a
// crash-recovering run will find on disk.
func (m *Monitor) remediate(ctx context.Context, verdict Verdict) error {
	m.logger.Warn("node is stuck, starting remediation",
		zap.Int64("local_height", verdict.LocalHeight),
		zap.Int64("remote_height", verdict.RemoteHeight),
		zap.Int64("delta", verdict.Delta))

	m.logDiskUsage(ctx)

	if _, err := m.controller.StopDaemon(ctx, m.stopWait); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	if err := m.controller.WipeChainData(); err != nil {
		return fmt.Errorf("failed to wipe chain data: %w", err)
	}
	if err := m.ledger.MarkTriggered(); err != nil {
		return fmt.Errorf("failed to record remediation: %w", err)
	}
	if _, err := m.controller.StartDaemon(ctx, reindexFlag); err != nil {
		return fmt.Errorf("failed to restart daemon: %w", err)
	}

	m.logger.Info("remediation complete, daemon restarted with reindex")
	return nil
}

// logDiskUsage records how much space the data directory's volume has
// before the wipe. Purely informational.
func (m *Monitor) logDiskUsage(ctx context.Context) {
	usage, err := disk.UsageWithContext(ctx, m.controller.DataDir())
	if err != nil {
		m.logger.Debug("disk usage unavailable", zap.Error(err))
		return
	}
	m.logger.Info("data directory disk usage",
		zap.String("path", m.controller.DataDir()),
		zap.Uint64("used_bytes", usage.Used),
		zap.Uint64("free_bytes", usage.Free),
		zap.Float64("used_percent", usage.UsedPercent))
}
