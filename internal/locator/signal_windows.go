//go:build windows

package locator

import (
	"errors"
	"syscall"
)

// probe is not supported on Windows.
func probe(_ int) bool { return false }

// sendSignal is not supported on Windows.
func sendSignal(_ int, _ syscall.Signal) error {
	return errors.New("signaling processes is not supported on windows")
}
