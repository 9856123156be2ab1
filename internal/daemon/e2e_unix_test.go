//go:build !windows

package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/steveyegge/stoker/internal/fsys"
	"github.com/steveyegge/stoker/internal/pidfile"
)

// These tests detach real processes by re-execing the test binary; see
// TestMain for the stage dispatch.

// alive probes a PID with signal 0.
func alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// reapLater kills a detached PID when the test ends.
func reapLater(t *testing.T, pid int) {
	t.Helper()
	t.Cleanup(func() {
		syscall.Kill(pid, syscall.SIGKILL) //nolint:errcheck // best-effort cleanup
	})
}

func TestRunDetachesLiveProcess(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(Config{
		WorkDir: dir,
		PIDFile: "d.pid",
		Exec:    [][]string{{"sleep", "30"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Role != RoleLauncher {
		t.Fatalf("Role = %v, want RoleLauncher", res.Role)
	}
	if len(res.PIDs) != 1 {
		t.Fatalf("PIDs = %v, want one", res.PIDs)
	}
	pid := res.PIDs[0]
	reapLater(t, pid)

	if !alive(pid) {
		t.Errorf("daemon %d not alive after Run returned", pid)
	}
	if pid == os.Getpid() {
		t.Error("daemon PID is the launcher's own")
	}

	// The PID file is written before the handoff, so it is already
	// consistent here.
	got := pidfile.Read(fsys.OSFS{}, filepath.Join(dir, "d.pid"))
	if got != pid {
		t.Errorf("pid file = %d, want %d", got, pid)
	}
}

func TestRunMultipleSequences(t *testing.T) {
	res, err := Run(Config{
		WorkDir: t.TempDir(),
		Exec:    [][]string{{"sleep", "30"}, {"sleep", "30"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.PIDs) != 2 {
		t.Fatalf("PIDs = %v, want two", res.PIDs)
	}
	for _, pid := range res.PIDs {
		reapLater(t, pid)
	}
	if res.PIDs[0] == res.PIDs[1] {
		t.Errorf("duplicate PIDs: %v", res.PIDs)
	}
	for _, pid := range res.PIDs {
		if !alive(pid) {
			t.Errorf("daemon %d not alive", pid)
		}
	}
}

func TestRunRedirectsStdoutInWorkDir(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(Config{
		WorkDir: dir,
		Stdout:  StreamTarget{Path: "out.log", Mode: ModeWrite},
		Exec:    [][]string{{"sh", "-c", "pwd"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	reapLater(t, res.PIDs[0])

	// The daemon is fully detached; poll for its output.
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.log")
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(out)
		if err == nil && strings.TrimSpace(string(data)) != "" {
			got, err := filepath.EvalSymlinks(strings.TrimSpace(string(data)))
			if err != nil {
				got = strings.TrimSpace(string(data))
			}
			if got != want {
				t.Errorf("daemon cwd = %q, want %q", got, want)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no output in %s (read err: %v)", out, err)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestRunReturnsDaemonRole(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "role.txt")
	t.Setenv(roleReportEnv, report)

	// No Exec target: the final stage returns to the caller's own code,
	// which in the re-exec'd copy is reportRole (see TestMain).
	res, err := Run(Config{WorkDir: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Role != RoleLauncher {
		t.Fatalf("Role = %v in the caller, want RoleLauncher", res.Role)
	}
	if len(res.PIDs) != 1 {
		t.Fatalf("PIDs = %v, want one", res.PIDs)
	}
	reapLater(t, res.PIDs[0])

	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}

	// The detached copy writes its report after Run returns; poll for it.
	var lines []string
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(report)
		if err == nil {
			lines = strings.Split(string(data), "\n")
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no role report at %s (read err: %v)", report, err)
		}
		time.Sleep(25 * time.Millisecond)
	}
	if len(lines) < 3 {
		t.Fatalf("role report = %q", lines)
	}

	if lines[0] != strconv.Itoa(int(RoleDaemon)) {
		t.Errorf("detached role = %s, want %d (RoleDaemon)", lines[0], RoleDaemon)
	}
	got, err := filepath.EvalSymlinks(lines[1])
	if err != nil {
		got = lines[1]
	}
	if got != want {
		t.Errorf("detached cwd = %q, want %q", got, want)
	}
	// Run scrubs the stage markers before returning control.
	if lines[2] != "" {
		t.Errorf("stage marker survived into the daemon: %q", lines[2])
	}
}

func TestRunDaemonSurvivesLauncherExit(t *testing.T) {
	res, err := Run(Config{
		WorkDir: t.TempDir(),
		Exec:    [][]string{{"sleep", "30"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	pid := res.PIDs[0]
	reapLater(t, pid)

	// The intermediate has been reaped by the time Run returns, so the
	// daemon is already reparented and must stay up on its own.
	time.Sleep(200 * time.Millisecond)
	if !alive(pid) {
		t.Errorf("daemon %d died after detachment", pid)
	}
}
