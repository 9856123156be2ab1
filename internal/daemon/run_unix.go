//go:build !windows

package daemon

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Spawn retry pacing: doubling backoff, capped so the ~30s window gets
// a steady stream of attempts rather than one giant sleep.
const (
	retryInitialDelay = 100 * time.Millisecond
	retryMaxDelay     = 2 * time.Second
)

// Run executes the detachment protocol for cfg and returns a
// discriminated result: RoleLauncher with the ordered PIDs in the
// original caller, or RoleDaemon in the detached background context.
//
// Run must be called early in main: the background context is a
// re-exec of the current binary, and Run is where the re-exec'd copy
// picks up its stage duties. The intermediate stage never returns — it
// exits after handing off the final PID.
func Run(cfg Config) (*Result, error) {
	stage, stageCfg, seq, err := stageFromEnviron()
	if err != nil {
		return nil, err
	}
	switch stage {
	case stageIntermediate:
		runIntermediate(stageCfg, seq) // exits, never returns
		panic("unreachable")
	case stageFinal:
		return runFinal(stageCfg, seq)
	default:
		return runLauncher(cfg)
	}
}

// Bootstrap handles stage duties in re-exec'd copies of the current
// binary and is a no-op in the original process. Call it first thing in
// main, before flag parsing: a stage child carries its whole config in
// the environment and must not fall through to normal CLI behavior.
func Bootstrap() {
	if os.Getenv(stageEnv) == "" {
		return
	}
	if _, err := Run(Config{}); err != nil {
		fatal("%v", err)
	}
	os.Exit(0)
}

// Detach is the fire-and-forget form of [Run]: the launcher exits
// instead of returning, so on a nil error the caller is always the
// daemon.
func Detach(cfg Config) error {
	res, err := Run(cfg)
	if err != nil {
		return err
	}
	if res.Role == RoleLauncher {
		os.Exit(0)
	}
	return nil
}

// runLauncher normalizes and validates the config, then spawns one
// detaching sequence per requested program and collects the PIDs from
// the handoff pipes.
func runLauncher(cfg Config) (*Result, error) {
	norm, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	if err := checkWorkDir(norm.WorkDir); err != nil {
		return nil, err
	}

	sequences := len(norm.Exec)
	if sequences == 0 {
		sequences = 1
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}

	pids := make([]int, 0, sequences)
	retries := 0
	for seq := 0; seq < sequences; seq++ {
		pid, tried, err := spawnSequence(exe, norm, seq, startCmd)
		retries += tried
		if err != nil {
			return nil, err
		}
		pids = append(pids, pid)
	}
	return &Result{Role: RoleLauncher, PIDs: pids, Retries: retries}, nil
}

// checkWorkDir verifies the working directory exists and is enterable.
func checkWorkDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWorkDir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrWorkDir, dir)
	}
	if err := unix.Access(dir, unix.X_OK); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWorkDir, dir, err)
	}
	return nil
}

// startCmd is the production starter for spawnSequence.
func startCmd(cmd *exec.Cmd) error { return cmd.Start() }

// spawnSequence starts one intermediate stage and blocks until it hands
// back the final PID over the pipe. Start failures (fork pressure,
// EAGAIN) are retried with backoff inside the config's retry window.
// The launcher reaps the intermediate before returning, so a returned
// PID implies the intermediate has already exited.
func spawnSequence(exe string, norm Config, seq int, start func(*exec.Cmd) error) (pid, retries int, err error) {
	rd, wr, err := os.Pipe()
	if err != nil {
		return 0, 0, fmt.Errorf("creating handoff pipe: %w", err)
	}
	defer rd.Close() //nolint:errcheck // best-effort cleanup

	env, err := stageEnviron(stageIntermediate, norm, seq)
	if err != nil {
		wr.Close() //nolint:errcheck // cleanup on error
		return 0, 0, err
	}

	newCmd := func() *exec.Cmd {
		cmd := exec.Command(exe)
		cmd.Args = os.Args
		cmd.Env = env
		cmd.Stdin = nil
		cmd.Stdout = nil
		cmd.Stderr = nil
		cmd.ExtraFiles = []*os.File{wr} // handoff pipe on fd 3
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		return cmd
	}

	cmd, retries, err := startWithRetry(newCmd, start, norm.RetryWindow)
	// The write end lives on in the intermediate; close our copy so a
	// dead intermediate surfaces as EOF instead of a hang.
	wr.Close() //nolint:errcheck // launcher's copy only
	if err != nil {
		return 0, retries, err
	}

	pid, readErr := readHandoff(rd)

	// The intermediate exits promptly after the handoff write; reap it
	// so the launcher never returns while it is still running.
	waitErr := cmd.Wait()

	if readErr != nil {
		return 0, retries, readErr
	}
	if waitErr != nil {
		return 0, retries, fmt.Errorf("intermediate process failed: %w", waitErr)
	}
	return pid, retries, nil
}

// startWithRetry starts a fresh command, retrying with doubling backoff
// until the window closes. A new exec.Cmd is built per attempt — a
// failed Cmd cannot be restarted. The retry count is returned alongside
// the command so callers can report recovered fork pressure.
func startWithRetry(newCmd func() *exec.Cmd, start func(*exec.Cmd) error, window time.Duration) (*exec.Cmd, int, error) {
	deadline := time.Now().Add(window)
	delay := retryInitialDelay
	retries := 0
	for {
		cmd := newCmd()
		err := start(cmd)
		if err == nil {
			return cmd, retries, nil
		}
		if time.Now().After(deadline) {
			return nil, retries, fmt.Errorf("%w: %v", ErrRetryExhausted, err)
		}
		retries++
		time.Sleep(delay)
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}

// readHandoff reads the final PID line from the pipe. EOF without a
// line means the intermediate died before writing — a failure of the
// whole sequence, never an indefinite block.
func readHandoff(rd *os.File) (int, error) {
	scanner := bufio.NewScanner(rd)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, fmt.Errorf("reading handoff pipe: %w", err)
		}
		return 0, fmt.Errorf("intermediate process exited before PID handoff")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed PID handoff %q", scanner.Text())
	}
	return pid, nil
}
