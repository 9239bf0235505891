package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/syncvisor/syncvisor/pkg/logger"
)

// CooldownFile is the fixed filename of the recovery record inside the
// node's data directory. It encodes a cooldown timestamp, not a mutual
// exclusion lock.
const CooldownFile = "resync.cooldown"

// State describes where the ledger's grace-time state machine currently is.
type State int

const (
	// StateIdle means no remediation record exists
	StateIdle State = iota
	// StateCoolingDown means a record exists and its grace window is open
	StateCoolingDown
	// StateExpired means a record exists but its grace window has elapsed;
	// for triggering purposes this is equivalent to idle
	StateExpired
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCoolingDown:
		return "cooling_down"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Ledger persists whether a remediation is cooling down and until when.
// The record survives process exit; it is the only durable cross-invocation
// state of the monitor.
type Ledger struct {
	path       string
	graceMin   time.Duration
	multiplier float64
	logger     *logger.Logger

	now func() time.Time
}

// New creates a ledger persisted under dataDir. graceMin and multiplier
// are used as configured; both may be zero for a window that opens and
// closes with the record itself.
func New(dataDir string, graceMin time.Duration, multiplier float64, log *logger.Logger) *Ledger {
	return &Ledger{
		path:       filepath.Join(dataDir, CooldownFile),
		graceMin:   graceMin,
		multiplier: multiplier,
		logger:     log,
		now:        time.Now,
	}
}

// GraceWindow returns how long a remediation record suppresses the next
// trigger: graceMin plus multiplier seconds per remote block, so the
// cooldown scales with how far a resynchronization has to travel.
func (l *Ledger) GraceWindow(remoteHeight int64) time.Duration {
	scaled := time.Duration(l.multiplier * float64(remoteHeight) * float64(time.Second))
	return l.graceMin + scaled
}

// State evaluates the grace-time state machine against the current remote
// height.
func (l *Ledger) State(remoteHeight int64) (State, error) {
	triggeredAt, ok, err := l.read()
	if err != nil {
		return StateIdle, err
	}
	if !ok {
		return StateIdle, nil
	}
	if l.now().Sub(triggeredAt) < l.GraceWindow(remoteHeight) {
		return StateCoolingDown, nil
	}
	return StateExpired, nil
}

// IsCoolingDown reports whether a remediation record exists and its grace
// window is still open.
func (l *Ledger) IsCoolingDown(remoteHeight int64) (bool, error) {
	state, err := l.State(remoteHeight)
	if err != nil {
		return false, err
	}
	return state == StateCoolingDown, nil
}

// MarkTriggered overwrites the record with the current timestamp. Called
// immediately before a remediation is initiated.
func (l *Ledger) MarkTriggered() error {
	ts := strconv.FormatInt(l.now().Unix(), 10)
	if err := os.WriteFile(l.path, []byte(ts), 0o644); err != nil {
		return fmt.Errorf("failed to write recovery record: %w", err)
	}
	l.logger.Info("remediation recorded", zap.String("path", l.path))
	return nil
}

// Clear removes the record. An already absent record is not an error.
func (l *Ledger) Clear() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear recovery record: %w", err)
	}
	if err == nil {
		l.logger.Info("recovery record cleared", zap.String("path", l.path))
	}
	return nil
}

// read loads the persisted trigger time. ok is false when no record exists.
func (l *Ledger) read() (time.Time, bool, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read recovery record: %w", err)
	}

	unix, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt recovery record %s: %w", l.path, err)
	}
	return time.Unix(unix, 0), true, nil
}
