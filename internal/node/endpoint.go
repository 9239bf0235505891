package node

import (
	"os"
	"os/exec"
)

// Endpoint describes where the wallet CLI, daemon, optional configuration
// file, and data directory of a managed node live. An Endpoint is validated
// once at construction and immutable afterwards.
type Endpoint struct {
	CLIPath    string
	DaemonPath string
	ConfPath   string
	DataDir    string
}

// NewEndpoint validates every required path and returns the endpoint.
// A path counts as present if it exists on the filesystem or resolves as
// an executable on the search path. All paths are checked before failing
// so a single *MissingPathError lists every missing entry.
func NewEndpoint(cliPath, daemonPath, confPath, dataDir string) (*Endpoint, error) {
	type pathCheck struct {
		path  string
		label string
	}
	checks := []pathCheck{
		{cliPath, "wallet CLI binary"},
		{daemonPath, "wallet daemon binary"},
		{dataDir, "wallet data directory"},
	}
	if confPath != "" {
		checks = append(checks, pathCheck{confPath, "wallet configuration file"})
	}

	var missing []string
	for _, c := range checks {
		if !pathExists(c.path) {
			missing = append(missing, c.label+" ("+c.path+")")
		}
	}
	if len(missing) > 0 {
		return nil, &MissingPathError{Missing: missing}
	}

	return &Endpoint{
		CLIPath:    cliPath,
		DaemonPath: daemonPath,
		ConfPath:   confPath,
		DataDir:    dataDir,
	}, nil
}

// pathExists reports whether p is a filesystem path or a PATH-resolvable
// executable name.
func pathExists(p string) bool {
	if p == "" {
		return false
	}
	if _, err := os.Stat(p); err == nil {
		return true
	}
	if _, err := exec.LookPath(p); err == nil {
		return true
	}
	return false
}
