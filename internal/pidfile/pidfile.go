// Package pidfile reads and writes plain-text PID files.
//
// A PID file holds a single integer followed by a newline. Files are a
// hint, not authoritative: the PID a file names must still be confirmed
// alive independently (see the locator package).
package pidfile

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/steveyegge/stoker/internal/fsys"
)

// Write writes pid to path, creating parent directories as needed.
// The file is world-readable so status tooling run as other users can
// resolve it.
func Write(fs fsys.FS, path string, pid int) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating pid file directory: %w", err)
	}
	if err := fs.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// Read returns the PID stored at path. Returns 0 if the file is missing,
// empty, or unparseable — a malformed PID file means "no PID", never an
// error.
func Read(fs fsys.FS, path string) int {
	data, err := fs.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// Remove deletes the PID file at path. A missing file is not an error.
func Remove(fs fsys.FS, path string) error {
	err := fs.Remove(path)
	if err == nil {
		return nil
	}
	if _, statErr := fs.Stat(path); statErr != nil {
		return nil // already gone
	}
	return fmt.Errorf("removing pid file: %w", err)
}

// Alive reports whether the PID named by the file refers to a live
// process. probe confirms liveness (typically Locator.IsAlive). A
// missing or malformed file is simply not alive.
func Alive(fs fsys.FS, path string, probe func(pid int) bool) bool {
	pid := Read(fs, path)
	return pid != 0 && probe(pid)
}

// Lock takes an exclusive advisory lock guarding writes to the PID file
// at path, blocking until the lock is free. Two daemonization sequences
// targeting the same path serialize here instead of interleaving their
// writes. Callers must Unlock the returned lock. The companion .lock
// file stays behind; removing it races with a concurrent locker.
func Lock(path string) (*flock.Flock, error) {
	lk := flock.New(path + ".lock")
	if err := lk.Lock(); err != nil {
		return nil, fmt.Errorf("locking pid file: %w", err)
	}
	return lk, nil
}
