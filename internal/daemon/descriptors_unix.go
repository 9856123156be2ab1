//go:build !windows

package daemon

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	// fallbackDescriptorLimit is the close-sweep bound when the real
	// limit cannot be discovered. Closing an unopened descriptor is a
	// no-op, so sweeping blind up to a fixed bound is safe.
	fallbackDescriptorLimit = 64

	// maxSweep caps the sweep on systems whose descriptor limit is
	// effectively unbounded.
	maxSweep = 1 << 20
)

// descriptorLimit discovers the size of the descriptor table, computed
// once per Run and threaded through the stage rather than cached
// process-wide.
func descriptorLimit() int {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return fallbackDescriptorLimit
	}
	if rl.Cur == unix.RLIM_INFINITY || rl.Cur == 0 {
		return fallbackDescriptorLimit
	}
	if rl.Cur > maxSweep {
		return maxSweep
	}
	return int(rl.Cur)
}

// sweepDescriptors closes every descriptor from 3 up to limit except
// the preserved set. Errors are ignored: closing a descriptor that was
// never open is a no-op, not a failure. Descriptors 0-2 are handled by
// reopenStreams.
func sweepDescriptors(limit int, preserved map[int]bool) {
	for fd := 3; fd < limit; fd++ {
		if preserved[fd] {
			continue
		}
		_ = unix.Close(fd)
	}
}

// reopenStreams points descriptors 0, 1, and 2 at the configured
// targets with the configured modes. A preserved standard handle is
// left untouched. Any reopen failure is fatal to the caller.
func reopenStreams(norm Config) error {
	targets := []struct {
		fd     int
		target StreamTarget
	}{
		{0, norm.Stdin},
		{1, norm.Stdout},
		{2, norm.Stderr},
	}
	for _, t := range targets {
		if norm.preserved[t.fd] {
			continue
		}
		if err := redirect(t.fd, t.target); err != nil {
			return err
		}
	}
	return nil
}

// redirect opens the target and installs it as descriptor fd.
func redirect(fd int, target StreamTarget) error {
	flags, err := openFlags(target.Mode)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(target.Path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("reopening descriptor %d on %s: %w", fd, target.Path, err)
	}
	src := int(f.Fd())
	if src == fd {
		return nil // landed in place, nothing to dup
	}
	if err := dupTo(src, fd); err != nil {
		f.Close() //nolint:errcheck // cleanup on error
		return fmt.Errorf("installing descriptor %d: %w", fd, err)
	}
	return f.Close()
}
