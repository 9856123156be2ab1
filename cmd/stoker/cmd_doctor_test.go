package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDoctorHealthyStateDir(t *testing.T) {
	t.Setenv("STOKER_DIR", t.TempDir())

	var stdout, stderr bytes.Buffer
	if code := run([]string{"doctor"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr: %s\nstdout: %s", code, stderr.String(), stdout.String())
	}
	out := stdout.String()
	for _, want := range []string{"state-dir", "event-log", "null-device", "proc-table", "pid-files", "config"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing check %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "passed") {
		t.Errorf("output missing summary:\n%s", out)
	}
}

func TestDoctorFixCreatesStateDir(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state")
	t.Setenv("STOKER_DIR", state)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"doctor"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit = %d, want 1 for missing state dir\n%s", code, stdout.String())
	}

	stdout.Reset()
	if code := run([]string{"doctor", "--fix"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit with --fix = %d\n%s", code, stdout.String())
	}
	if !strings.Contains(stdout.String(), "(fixed)") {
		t.Errorf("output missing fixed marker:\n%s", stdout.String())
	}
	if _, err := os.Stat(state); err != nil {
		t.Errorf("state dir not created: %v", err)
	}
}

func TestDoctorValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STOKER_DIR", dir)
	bad := filepath.Join(dir, "stoker.toml")
	if err := os.WriteFile(bad, []byte("[[daemons]]\nname = \"web\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"doctor", "--config", bad}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit = %d, want 1 for invalid config\n%s", code, stdout.String())
	}
	if !strings.Contains(stdout.String(), "missing command") {
		t.Errorf("output missing validation error:\n%s", stdout.String())
	}
}
