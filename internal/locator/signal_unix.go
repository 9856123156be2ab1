//go:build !windows

package locator

import (
	"errors"
	"syscall"
)

// probe sends signal 0 to pid to check process existence without
// delivering anything. EPERM means the process exists but belongs to
// another user — still alive from our perspective.
func probe(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// sendSignal delivers sig to pid.
func sendSignal(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
