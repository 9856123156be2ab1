package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/steveyegge/stoker/internal/events"
)

// writeEventLog seeds a JSONL event log through the production recorder.
func writeEventLog(t *testing.T, path string, evts ...events.Event) {
	t.Helper()
	rec, err := events.NewFileRecorder(path, os.Stderr)
	if err != nil {
		t.Fatalf("NewFileRecorder: %v", err)
	}
	for _, e := range evts {
		rec.Record(e)
	}
	rec.Close() //nolint:errcheck // test writer
}

func TestEventsWatchExplicitAfterAlreadySatisfied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	writeEventLog(t, path,
		events.Event{Type: events.DaemonSpawned, Actor: "a"},
		events.Event{Type: events.DaemonKilled, Actor: "a", Subject: "77"},
	)

	// --after 1 is already satisfied by seq 2; no waiting happens.
	var stdout, stderr bytes.Buffer
	code := doEventsWatch(path, "", 1, "5s", &stdout, &stderr)
	if code != 0 {
		t.Fatalf("doEventsWatch = %d; stderr: %s", code, stderr.String())
	}
	var e events.Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout.String())), &e); err != nil {
		t.Fatalf("output %q is not a JSON event: %v", stdout.String(), err)
	}
	if e.Seq != 2 || e.Type != events.DaemonKilled {
		t.Errorf("event = %+v, want seq 2 daemon.killed", e)
	}
}

func TestEventsWatchTimesOutEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	var stdout, stderr bytes.Buffer
	code := doEventsWatch(path, "", 0, "300ms", &stdout, &stderr)
	if code != 0 {
		t.Errorf("doEventsWatch = %d; stderr: %s", code, stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty on timeout", stdout.String())
	}
}

func TestEventsWatchDeliversNewMatchingEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	writeEventLog(t, path, events.Event{Type: events.DaemonSpawned, Actor: "old"})

	go func() {
		time.Sleep(200 * time.Millisecond)
		rec, err := events.NewFileRecorder(path, os.Stderr)
		if err != nil {
			return
		}
		// The spawned event does not match the type filter below.
		rec.Record(events.Event{Type: events.DaemonSpawned, Actor: "new"})
		rec.Record(events.Event{Type: events.DaemonKilled, Actor: "new", Subject: "77"})
		rec.Close() //nolint:errcheck // test writer
	}()

	var stdout, stderr bytes.Buffer
	code := doEventsWatch(path, events.DaemonKilled, 0, "10s", &stdout, &stderr)
	if code != 0 {
		t.Fatalf("doEventsWatch = %d; stderr: %s", code, stderr.String())
	}
	out := stdout.String()
	if strings.Contains(out, `"daemon.spawned"`) {
		t.Errorf("filtered-out event printed:\n%s", out)
	}
	if !strings.Contains(out, `"daemon.killed"`) || !strings.Contains(out, `"77"`) {
		t.Errorf("matching event missing:\n%s", out)
	}
}

func TestEventsTruncatesLongMessagesOnRunes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	long := strings.Repeat("é", 50)
	writeEventLog(t, path, events.Event{Type: events.DaemonSpawned, Actor: "a", Message: long})

	var stdout, stderr bytes.Buffer
	code := doEvents(path, "", "", "", &stdout, &stderr)
	if code != 0 {
		t.Fatalf("doEvents = %d; stderr: %s", code, stderr.String())
	}
	want := strings.Repeat("é", 37) + "..."
	if !strings.Contains(stdout.String(), want) {
		t.Errorf("output missing rune-truncated message %q:\n%s", want, stdout.String())
	}
	if !utf8.ValidString(stdout.String()) {
		t.Errorf("truncation split a rune:\n%s", stdout.String())
	}
}
