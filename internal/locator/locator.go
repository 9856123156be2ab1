// Package locator resolves a daemon reference — an explicit PID, a PID
// file, or a command-line substring — to a live process, and probes or
// signals it.
package locator

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/steveyegge/stoker/internal/fsys"
	"github.com/steveyegge/stoker/internal/pidfile"
)

// ErrNoTable is returned when a command-line reference is resolved on a
// locator constructed without a process table. This is a configuration
// problem, distinct from "no matching process".
var ErrNoTable = errors.New("no process table facility configured")

// RefKind discriminates the three reference forms.
type RefKind int

// Reference kinds.
const (
	KindPID RefKind = iota
	KindPIDFile
	KindCmdline
)

// Ref identifies a daemon by PID, PID-file path, or command-line
// substring. Construct with [PIDRef], [FileRef], or [CmdlineRef].
type Ref struct {
	kind    RefKind
	pid     int
	path    string
	pattern string
}

// PIDRef references a process by its numeric PID.
func PIDRef(pid int) Ref { return Ref{kind: KindPID, pid: pid} }

// FileRef references a process through a PID file.
func FileRef(path string) Ref { return Ref{kind: KindPIDFile, path: path} }

// CmdlineRef references a process by a substring of its command line.
func CmdlineRef(pattern string) Ref { return Ref{kind: KindCmdline, pattern: pattern} }

// Kind returns the reference kind.
func (r Ref) Kind() RefKind { return r.kind }

// String renders the reference for messages and logs.
func (r Ref) String() string {
	switch r.kind {
	case KindPID:
		return strconv.Itoa(r.pid)
	case KindPIDFile:
		return r.path
	default:
		return r.pattern
	}
}

// ParseRef interprets a CLI argument as a reference: a number is a PID,
// an existing file is a PID file, anything else is a command-line
// substring.
func ParseRef(fs fsys.FS, arg string) Ref {
	if pid, err := strconv.Atoi(strings.TrimSpace(arg)); err == nil && pid > 0 {
		return PIDRef(pid)
	}
	if fi, err := fs.Stat(arg); err == nil && !fi.IsDir() {
		return FileRef(arg)
	}
	return CmdlineRef(arg)
}

// Locator resolves references against the filesystem and an optional
// process table.
type Locator struct {
	fs    fsys.FS
	table Table
	self  int
}

// New returns a Locator. table may be nil, in which case command-line
// references fail with [ErrNoTable].
func New(fs fsys.FS, table Table) *Locator {
	return &Locator{fs: fs, table: table, self: os.Getpid()}
}

// Resolve maps ref to a PID. The boolean reports whether a PID was
// found; "not found" is an expected outcome, not an error. An explicit
// PID is returned as-is without a liveness check — liveness is the
// caller's subsequent concern. A PID file is a hint: malformed or
// unreadable content resolves to not-found.
func (l *Locator) Resolve(ref Ref) (int, bool, error) {
	switch ref.kind {
	case KindPID:
		return ref.pid, true, nil
	case KindPIDFile:
		pid := pidfile.Read(l.fs, ref.path)
		return pid, pid != 0, nil
	case KindCmdline:
		if l.table == nil {
			return 0, false, ErrNoTable
		}
		procs, err := l.table.Procs()
		if err != nil {
			return 0, false, fmt.Errorf("scanning process table: %w", err)
		}
		for _, p := range procs {
			if p.PID == l.self {
				continue // our own command line carries the pattern
			}
			if strings.Contains(p.Cmdline, ref.pattern) {
				return p.PID, true, nil
			}
		}
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("unknown reference kind %d", ref.kind)
	}
}

// IsAlive reports whether pid refers to a live process. Permission
// denied counts as alive (the process exists, owned by someone else);
// no-such-process and anything else count as dead.
func (l *Locator) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return probe(pid)
}

// Signal sends sig to pid, returning the number of processes actually
// signaled (0 or 1). An already-dead PID yields 0 — the daemon simply
// not running is not an error. Callers wanting guaranteed termination
// pass SIGKILL.
func (l *Locator) Signal(pid int, sig syscall.Signal) (int, error) {
	if !l.IsAlive(pid) {
		return 0, nil
	}
	if err := sendSignal(pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return 0, nil // died between probe and delivery
		}
		return 0, fmt.Errorf("signaling pid %d: %w", pid, err)
	}
	return 1, nil
}

// Terminate resolves ref and sends sig to the result. Callers that have
// already resolved the reference should use [Signal] with that PID so
// the process signaled is the one they resolved — a command-line
// pattern can match a different process between two resolutions.
func (l *Locator) Terminate(ref Ref, sig syscall.Signal) (int, error) {
	pid, ok, err := l.Resolve(ref)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return l.Signal(pid, sig)
}
