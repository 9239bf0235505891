package monitor

import (
	"context"
	"time"

	"github.com/syncvisor/syncvisor/internal/explorer"
	"github.com/syncvisor/syncvisor/internal/node"
)

// NodeController drives the managed wallet daemon. Satisfied by
// *node.Controller; tests substitute a mock.
type NodeController interface {
	DataDir() string
	LocalHeight(ctx context.Context) (int64, error)
	StopDaemon(ctx context.Context, wait time.Duration) (*node.ProcessHandle, error)
	StartDaemon(ctx context.Context, extraArgs ...string) (*node.ProcessHandle, error)
	WipeChainData() error
}

// HeightCache provides the externally observed chain height, possibly
// stale within its TTL. Satisfied by *explorer.FileCache.
type HeightCache interface {
	Get(ctx context.Context, currency explorer.Currency) (int64, error)
}

// RecoveryLedger records whether a remediation is cooling down.
// Satisfied by *ledger.Ledger.
type RecoveryLedger interface {
	IsCoolingDown(remoteHeight int64) (bool, error)
	MarkTriggered() error
	Clear() error
}
