// Package singleinstance prevents duplicate checker launches by scanning
// the process table.
package singleinstance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrAlreadyRunning indicates another checker instance is already running.
var ErrAlreadyRunning = errors.New("another instance of the checker is already running")

// Check returns ErrAlreadyRunning if a live process other than this one
// shares the checker's executable name.
func Check() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	running, err := AnotherInstanceRunning(filepath.Base(exe))
	if err != nil {
		return err
	}
	if running {
		return ErrAlreadyRunning
	}
	return nil
}

// AnotherInstanceRunning scans the process table for a process with the
// given name and a PID other than this process's own.
func AnotherInstanceRunning(name string) (bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return false, fmt.Errorf("scan process table: %w", err)
	}

	self := int32(os.Getpid())
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		pname, err := p.Name()
		if err != nil {
			// Processes come and go during the scan; the ones we
			// cannot inspect are not ours.
			continue
		}
		if pname == name {
			return true, nil
		}
	}
	return false, nil
}
