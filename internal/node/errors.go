package node

import (
	"fmt"
	"strings"
	"time"
)

// MissingPathError reports every endpoint path that failed the existence
// check, aggregated so an operator sees all misconfigurations at once.
type MissingPathError struct {
	Missing []string
}

func (e *MissingPathError) Error() string {
	if len(e.Missing) == 1 {
		return fmt.Sprintf("required path is missing: %s", e.Missing[0])
	}
	return fmt.Sprintf("required paths are missing: %s", strings.Join(e.Missing, ", "))
}

// ConnectionError indicates the wallet daemon refused or was unreachable
// for an RPC command. During shutdown polling this doubles as the
// confirmation signal that the daemon has stopped.
type ConnectionError struct {
	Command string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("wallet daemon unreachable while running %q", e.Command)
}

// WarmupStuckError indicates the daemon kept reporting its warming-up RPC
// error for every attempt of the retry budget.
type WarmupStuckError struct {
	Command  string
	Attempts int
}

func (e *WarmupStuckError) Error() string {
	return fmt.Sprintf("wallet daemon still warming up after %d attempts of %q", e.Attempts, e.Command)
}

// OutputTimeoutError indicates a spawned process produced no result within
// the allowed wait.
type OutputTimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *OutputTimeoutError) Error() string {
	return fmt.Sprintf("no output from %q within %v", e.Command, e.Timeout)
}

// HeightParseError indicates the CLI returned something other than a
// decimal block count.
type HeightParseError struct {
	Raw string
}

func (e *HeightParseError) Error() string {
	return fmt.Sprintf("cannot parse block height from %q", e.Raw)
}
