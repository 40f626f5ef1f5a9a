package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/go-ps"
)

const executableName = "gh-please"

// otherInstances returns the PIDs of other running gh-please processes.
func otherInstances() ([]int, error) {
	processes, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	self := os.Getpid()
	var pids []int
	for _, p := range processes {
		if p.Pid() == self {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(p.Executable()), ".exe")
		if name == executableName {
			pids = append(pids, p.Pid())
		}
	}
	return pids, nil
}

// warnConcurrentRuns logs a warning when another gh-please is running.
// Installs of the same plugin are not locked against each other.
func warnConcurrentRuns(logger hclog.Logger) {
	pids, err := otherInstances()
	if err != nil {
		logger.Debug("failed to list processes", "error", err)
		return
	}
	if len(pids) > 0 {
		logger.Warn("another gh-please process is running; concurrent installs of the same plugin may conflict", "pids", pids)
	}
}
