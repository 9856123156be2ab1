package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rogpeppe/go-internal/testscript"
	"github.com/steveyegge/stoker/internal/daemon"
	"github.com/steveyegge/stoker/internal/events"
)

func TestMain(m *testing.M) {
	// Stage children re-exec this test binary; Bootstrap intercepts them
	// before the suite (or a testscript command) runs.
	daemon.Bootstrap()
	testscript.Main(m, map[string]func(){
		"stoker": func() {
			daemon.Bootstrap()
			os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
		},
	})
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
	})
}

// --- run ---

func TestRunNoArgs(t *testing.T) {
	var stdout bytes.Buffer
	code := run(nil, &stdout, &bytes.Buffer{})
	if code != 0 {
		t.Errorf("run(nil) = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "Available Commands") {
		t.Errorf("stdout missing help text: %q", stdout.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := run([]string{"blorp"}, &bytes.Buffer{}, &stderr)
	if code != 1 {
		t.Errorf("run([blorp]) = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), `unknown command "blorp"`) {
		t.Errorf("stderr = %q, want 'unknown command'", stderr.String())
	}
}

// --- stoker version ---

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	code := run([]string{"version"}, &stdout, &bytes.Buffer{})
	if code != 0 {
		t.Errorf("run([version]) = %d, want 0", code)
	}
	out := stdout.String()
	// Default values when not built with ldflags.
	if !strings.Contains(out, "stoker dev") {
		t.Errorf("stdout missing 'stoker dev': %q", out)
	}
	if !strings.Contains(out, "commit:") {
		t.Errorf("stdout missing 'commit:': %q", out)
	}
}

// --- stoker spawn: argument validation ---

func TestSpawnMissingCommand(t *testing.T) {
	t.Setenv("STOKER_DIR", t.TempDir())
	var stderr bytes.Buffer
	code := run([]string{"spawn"}, &bytes.Buffer{}, &stderr)
	if code != 1 {
		t.Errorf("run([spawn]) = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "missing command") {
		t.Errorf("stderr = %q, want 'missing command'", stderr.String())
	}
}

func TestSpawnConfigNotFound(t *testing.T) {
	t.Setenv("STOKER_DIR", t.TempDir())
	var stderr bytes.Buffer
	code := run([]string{"spawn", "--config", filepath.Join(t.TempDir(), "absent.toml")}, &bytes.Buffer{}, &stderr)
	if code != 1 {
		t.Errorf("run([spawn --config absent]) = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "loading config") {
		t.Errorf("stderr = %q, want 'loading config'", stderr.String())
	}
}

// --- stoker kill: signal parsing ---

func TestKillUnknownSignal(t *testing.T) {
	t.Setenv("STOKER_DIR", t.TempDir())
	var stderr bytes.Buffer
	code := run([]string{"kill", "--signal", "BLORP", "12345"}, &bytes.Buffer{}, &stderr)
	if code != 1 {
		t.Errorf("run([kill --signal BLORP]) = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), `unknown signal "BLORP"`) {
		t.Errorf("stderr = %q, want 'unknown signal'", stderr.String())
	}
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"TERM", false},
		{"term", false},
		{"SIGKILL", false},
		{"9", false},
		{"", true},
		{"-3", true},
		{"BLORP", true},
	}
	for _, tt := range tests {
		_, err := parseSignal(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSignal(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

// --- stoker events (doEvents against a crafted log) ---

func TestDoEventsEmpty(t *testing.T) {
	var stdout bytes.Buffer
	code := doEvents(filepath.Join(t.TempDir(), "events.jsonl"), "", "", "", &stdout, &bytes.Buffer{})
	if code != 0 {
		t.Errorf("doEvents = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "No events.") {
		t.Errorf("stdout = %q, want 'No events.'", stdout.String())
	}
}

func TestDoEventsListsAndFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec, err := events.NewFileRecorder(path, os.Stderr)
	if err != nil {
		t.Fatal(err)
	}
	rec.Record(events.Event{Type: events.DaemonSpawned, Actor: "human", Subject: "100", Message: "fetcher"})
	rec.Record(events.Event{Type: events.DaemonKilled, Actor: "human", Subject: "100", Message: "signal TERM"})
	rec.Close() //nolint:errcheck // test cleanup

	var stdout bytes.Buffer
	code := doEvents(path, "", "", "", &stdout, &bytes.Buffer{})
	if code != 0 {
		t.Fatalf("doEvents = %d, want 0", code)
	}
	out := stdout.String()
	for _, want := range []string{"SEQ", "daemon.spawned", "daemon.killed", "fetcher", "100"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}

	stdout.Reset()
	code = doEvents(path, events.DaemonKilled, "", "", &stdout, &bytes.Buffer{})
	if code != 0 {
		t.Fatalf("doEvents filtered = %d, want 0", code)
	}
	if strings.Contains(stdout.String(), "daemon.spawned") {
		t.Errorf("type filter leaked spawned events: %q", stdout.String())
	}
}

func TestDoEventsBadSince(t *testing.T) {
	var stderr bytes.Buffer
	code := doEvents(filepath.Join(t.TempDir(), "e.jsonl"), "", "", "yesterday", &bytes.Buffer{}, &stderr)
	if code != 1 {
		t.Errorf("doEvents bad --since = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "invalid --since") {
		t.Errorf("stderr = %q, want 'invalid --since'", stderr.String())
	}
}

// --- uptime ---

func TestUptimeFromSpawnEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec, err := events.NewFileRecorder(path, os.Stderr)
	if err != nil {
		t.Fatal(err)
	}
	rec.Record(events.Event{
		Type:    events.DaemonSpawned,
		Subject: "4242",
		Ts:      time.Now().Add(-90 * time.Second),
	})
	rec.Close() //nolint:errcheck // test cleanup

	up := uptime(path, 4242)
	if up < 80*time.Second || up > 100*time.Second {
		t.Errorf("uptime = %v, want ~90s", up)
	}
	if got := uptime(path, 9999); got != 0 {
		t.Errorf("uptime(unknown pid) = %v, want 0", got)
	}
}

// --- stateDir resolution ---

func TestStateDir(t *testing.T) {
	t.Setenv("STOKER_DIR", "/tmp/custom")
	if got := stateDir(); got != "/tmp/custom" {
		t.Errorf("stateDir = %q, want env override", got)
	}

	dirFlag = "/tmp/flagged"
	defer func() { dirFlag = "" }()
	if got := stateDir(); got != "/tmp/flagged" {
		t.Errorf("stateDir = %q, want flag override", got)
	}
}
