//go:build linux

package daemon

import "golang.org/x/sys/unix"

// dupTo installs oldfd as newfd. Dup3 because plain dup2 does not
// exist on every linux architecture.
func dupTo(oldfd, newfd int) error {
	return unix.Dup3(oldfd, newfd, 0)
}
