//go:build windows

package daemon

import "errors"

// Run is not supported on Windows: there is no POSIX process model to
// detach within, and none is emulated.
func Run(_ Config) (*Result, error) {
	return nil, errors.New("daemonization is not supported on windows")
}

// Bootstrap is a no-op on Windows.
func Bootstrap() {}

// Detach is not supported on Windows.
func Detach(cfg Config) error {
	_, err := Run(cfg)
	return err
}
