//go:build !windows

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/steveyegge/stoker/internal/fsys"
	"github.com/steveyegge/stoker/internal/pidfile"
	"golang.org/x/sys/unix"
)

// handoffFD is where the launcher's pipe write end lands in the
// intermediate (first ExtraFiles slot).
const handoffFD = 3

// fatal aborts the current stage. Past the first re-exec there is no
// channel for a rich error back to the caller — the launcher observes
// the aborted handoff instead.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "stoker daemon: "+format+"\n", args...) //nolint:errcheck // best-effort stderr
	os.Exit(1)
}

// runIntermediate is the first re-exec stage. It runs as a session
// leader (spawned with Setsid), enters the working directory, clears
// the umask, starts the final stage as a plain child of the new
// session, writes the final PID to the PID file and the handoff pipe,
// and exits. It never returns.
func runIntermediate(cfg Config, seq int) {
	norm, err := cfg.normalized()
	if err != nil {
		fatal("config: %v", err)
	}

	if err := os.Chdir(norm.WorkDir); err != nil {
		fatal("entering %s: %v", norm.WorkDir, err)
	}
	unix.Umask(0)

	// Spawned with Setsid, this process already leads a fresh session.
	// If that attribute was lost (launcher not the direct parent,
	// unusual exec paths) try again; failure leaves us a leader
	// candidate, which is tolerable.
	_, _ = unix.Setsid()

	exe, err := os.Executable()
	if err != nil {
		fatal("locating executable: %v", err)
	}
	env, err := stageEnviron(stageFinal, norm, seq)
	if err != nil {
		fatal("%v", err)
	}

	// A plain child of a session leader: in the session, never its
	// leader, so it can never reacquire a controlling terminal.
	cmd := exec.Command(exe)
	cmd.Args = os.Args
	cmd.Env = env
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		fatal("starting final stage: %v", err)
	}
	pid := cmd.Process.Pid

	// PID file first, then pipe: when the launcher unblocks, the file
	// already names the daemon. Written before any uid/gid switch, so
	// ownership is the launcher's original identity.
	if norm.PIDFile != "" {
		lk, err := pidfile.Lock(norm.PIDFile)
		if err != nil {
			fatal("%v", err)
		}
		writeErr := pidfile.Write(fsys.OSFS{}, norm.PIDFile, pid)
		lk.Unlock() //nolint:errcheck // lock file cleanup
		if writeErr != nil {
			fatal("%v", writeErr)
		}
	}

	pipe := os.NewFile(handoffFD, "handoff")
	if pipe == nil {
		fatal("handoff pipe missing")
	}
	if _, err := fmt.Fprintf(pipe, "%d\n", pid); err != nil {
		fatal("writing handoff: %v", err)
	}
	pipe.Close() //nolint:errcheck // handoff complete

	// The final process outlives us; release rather than wait.
	cmd.Process.Release() //nolint:errcheck // no further use
	os.Exit(0)
}

// runFinal is the second re-exec stage: the daemon itself. It assumes
// the configured identity, sweeps the descriptor table, reopens the
// standard streams, and then either replaces itself with the target
// program or returns control to the caller's code.
func runFinal(cfg Config, seq int) (*Result, error) {
	norm, err := cfg.normalized()
	if err != nil {
		fatal("config: %v", err)
	}

	// Identity first, streams second: files opened below belong to the
	// daemon's identity. Switch failures fall back to the original
	// identity — an under-privileged caller is not an error.
	if norm.GID > 0 {
		_ = unix.Setgid(norm.GID)
	}
	if norm.UID > 0 {
		_ = unix.Setuid(norm.UID)
	}

	limit := descriptorLimit()
	sweepDescriptors(limit, norm.preserved)

	if err := reopenStreams(norm); err != nil {
		// A daemon with unusable standard streams cannot safely run.
		fatal("%v", err)
	}

	if len(norm.Exec) > 0 {
		argv := norm.Exec[seq]
		path, err := exec.LookPath(argv[0])
		if err != nil {
			fatal("resolving %s: %v", argv[0], err)
		}
		if err := syscall.Exec(path, argv, scrubEnviron(os.Environ())); err != nil {
			fatal("exec %s: %v", path, err)
		}
		panic("unreachable")
	}

	clearStageEnv()
	return &Result{Role: RoleDaemon}, nil
}
