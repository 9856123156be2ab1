//go:build !windows && !linux

package daemon

import "golang.org/x/sys/unix"

// dupTo installs oldfd as newfd.
func dupTo(oldfd, newfd int) error {
	return unix.Dup2(oldfd, newfd)
}
