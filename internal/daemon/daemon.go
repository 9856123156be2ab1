// Package daemon detaches a process (or a configured command) from its
// controlling terminal and turns it into a background daemon.
//
// Go cannot fork, so the classic double fork is rendered as a two-stage
// re-exec pipeline: the launcher starts an intermediate copy of the
// current binary in a new session (Setsid), and the intermediate starts
// the final process as an ordinary child — in the session but not its
// leader, so it can never reacquire a controlling terminal. The
// intermediate hands the final PID back to the launcher over a pipe and
// exits.
//
// Callers that use the return-to-caller form (no Exec commands) must
// invoke [Run] or [Detach] before doing any other work in main: the
// daemon context is a fresh re-exec of the same binary.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sentinel errors for the failure classes callers branch on.
var (
	// ErrRetryExhausted reports that process creation kept failing for
	// the whole retry window.
	ErrRetryExhausted = errors.New("process creation retries exhausted")

	// ErrWorkDir reports an unusable working directory.
	ErrWorkDir = errors.New("working directory not usable")
)

// defaultRetryWindow bounds the spawn retry loop.
const defaultRetryWindow = 30 * time.Second

// Mode is the open mode for a redirected standard stream.
type Mode string

// Stream open modes, equivalent to the POSIX open flag combinations.
const (
	ModeRead      Mode = "read"       // O_RDONLY
	ModeWrite     Mode = "write"      // O_WRONLY|O_CREATE|O_TRUNC
	ModeAppend    Mode = "append"     // O_WRONLY|O_CREATE|O_APPEND
	ModeReadWrite Mode = "read-write" // O_RDWR|O_CREATE
)

// StreamTarget names the file a standard stream is reopened against.
type StreamTarget struct {
	Path string `json:"path"`
	Mode Mode   `json:"mode"`
}

// Descriptor identifies a file descriptor to exempt from the close
// sweep: either a raw number or a named standard handle. Named handles
// are resolved to numbers during config normalization, before any
// process is created.
type Descriptor struct {
	FD   int    `json:"fd"`
	Name string `json:"name,omitempty"` // "stdin", "stdout", or "stderr"
}

// FD references a descriptor by number.
func FD(fd int) Descriptor { return Descriptor{FD: fd} }

// Named references a standard handle by name.
func Named(name string) Descriptor { return Descriptor{Name: name} }

// resolve maps the descriptor to a number.
func (d Descriptor) resolve() (int, error) {
	if d.Name == "" {
		if d.FD < 0 {
			return 0, fmt.Errorf("negative descriptor %d", d.FD)
		}
		return d.FD, nil
	}
	switch d.Name {
	case "stdin":
		return 0, nil
	case "stdout":
		return 1, nil
	case "stderr":
		return 2, nil
	default:
		return 0, fmt.Errorf("unknown descriptor name %q", d.Name)
	}
}

// Config describes one daemonization attempt. It is consumed entirely
// within [Run]; a Config is not reused across sequences.
type Config struct {
	// WorkDir is the daemon's working directory. Default "/". It must
	// exist and be enterable before detachment proceeds.
	WorkDir string `json:"workdir"`

	// UID and GID, when nonzero, are the identity the final process
	// assumes before reopening its streams. Failure to switch is
	// non-fatal: an under-privileged caller keeps its own identity.
	UID int `json:"uid,omitempty"`
	GID int `json:"gid,omitempty"`

	// Stdin, Stdout, and Stderr are the targets the final process
	// reopens descriptors 0/1/2 against. Defaults: /dev/null, read for
	// stdin and read-write for the output streams.
	Stdin  StreamTarget `json:"stdin"`
	Stdout StreamTarget `json:"stdout"`
	Stderr StreamTarget `json:"stderr"`

	// Preserve lists descriptors exempt from the close sweep. A
	// preserved standard handle is neither closed nor reopened.
	Preserve []Descriptor `json:"preserve,omitempty"`

	// PIDFile, when set, receives the final PID, written by the
	// intermediate process under the launcher's original identity.
	PIDFile string `json:"pidfile,omitempty"`

	// Exec lists programs to daemonize. Each entry is spawned as its
	// own full detaching sequence and contributes one PID to the
	// result, in order. When empty, Run returns control to the caller
	// inside the daemonized context instead.
	Exec [][]string `json:"exec,omitempty"`

	// RetryWindow bounds the spawn retry loop. Default 30s.
	RetryWindow time.Duration `json:"retry_window,omitempty"`

	// preserved is the resolved numeric form of Preserve.
	preserved map[int]bool
}

// Role discriminates the two contexts Run can return in.
type Role int

// Run outcomes.
const (
	// RoleLauncher is the original caller: Result.PIDs carries one PID
	// per daemonized program.
	RoleLauncher Role = iota
	// RoleDaemon is the detached background context: the caller's own
	// code continues as the daemon. PIDs is empty.
	RoleDaemon
)

// Result is the discriminated outcome of [Run].
type Result struct {
	Role Role
	PIDs []int

	// Retries counts failed start attempts across all sequences that
	// were recovered by the retry loop. Zero on the happy path.
	Retries int
}

// normalized returns a copy of cfg with defaults filled in, every
// relative path made absolute, and preserved descriptors resolved to
// numbers. Absolutizing happens here — at configuration-adjustment
// time, before any process split — so two daemons configured relative
// to different working directories can never collide on derived paths.
func (c Config) normalized() (Config, error) {
	out := c

	if out.WorkDir == "" {
		out.WorkDir = "/"
	}
	abs, err := filepath.Abs(out.WorkDir)
	if err != nil {
		return out, fmt.Errorf("resolving working directory: %w", err)
	}
	out.WorkDir = abs

	if out.Stdin.Path == "" {
		out.Stdin = StreamTarget{Path: os.DevNull, Mode: ModeRead}
	}
	if out.Stdin.Mode == "" {
		out.Stdin.Mode = ModeRead
	}
	if out.Stdout.Path == "" {
		out.Stdout = StreamTarget{Path: os.DevNull, Mode: ModeReadWrite}
	}
	if out.Stdout.Mode == "" {
		out.Stdout.Mode = ModeReadWrite
	}
	if out.Stderr.Path == "" {
		out.Stderr = StreamTarget{Path: os.DevNull, Mode: ModeReadWrite}
	}
	if out.Stderr.Mode == "" {
		out.Stderr.Mode = ModeReadWrite
	}

	out.Stdin.Path = absAgainst(out.WorkDir, out.Stdin.Path)
	out.Stdout.Path = absAgainst(out.WorkDir, out.Stdout.Path)
	out.Stderr.Path = absAgainst(out.WorkDir, out.Stderr.Path)
	if out.PIDFile != "" {
		out.PIDFile = absAgainst(out.WorkDir, out.PIDFile)
	}

	for _, m := range []Mode{out.Stdin.Mode, out.Stdout.Mode, out.Stderr.Mode} {
		if _, err := openFlags(m); err != nil {
			return out, err
		}
	}

	out.preserved = make(map[int]bool, len(out.Preserve))
	for _, d := range out.Preserve {
		fd, err := d.resolve()
		if err != nil {
			return out, fmt.Errorf("preserve list: %w", err)
		}
		out.preserved[fd] = true
	}

	for i, argv := range out.Exec {
		if len(argv) == 0 {
			return out, fmt.Errorf("exec entry %d is empty", i)
		}
	}

	if out.RetryWindow <= 0 {
		out.RetryWindow = defaultRetryWindow
	}
	return out, nil
}

// absAgainst makes path absolute relative to dir.
func absAgainst(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}
