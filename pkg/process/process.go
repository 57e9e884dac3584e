// Package process inspects and signals local processes by PID.
package process

import (
	"os"
	"syscall"
)

// IsProcessAlive reports whether pid names a running process. Signal 0 probes
// for existence; EPERM means the process exists under another user.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// Terminate sends SIGTERM to pid. A pid that is not running yields
// os.ErrProcessDone.
func Terminate(pid int) error {
	if !IsProcessAlive(pid) {
		return os.ErrProcessDone
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(syscall.SIGTERM)
}
