package events

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestRecorder(t *testing.T) (*FileRecorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	r, err := NewFileRecorder(path, os.Stderr)
	if err != nil {
		t.Fatalf("NewFileRecorder: %v", err)
	}
	t.Cleanup(func() { r.Close() }) //nolint:errcheck // test cleanup
	return r, path
}

func TestFileRecorderAppendsJSONLines(t *testing.T) {
	r, path := newTestRecorder(t)

	r.Record(Event{Type: DaemonSpawned, Actor: "fetcher", Subject: "1234"})
	r.Record(Event{Type: DaemonKilled, Actor: "fetcher", Subject: "1234", Message: "signal 15"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"type":"daemon.spawned"`) {
		t.Errorf("line 1 = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"subject":"1234"`) {
		t.Errorf("line 2 = %s", lines[1])
	}
}

func TestFileRecorderSequenceIsMonotonic(t *testing.T) {
	r, _ := newTestRecorder(t)
	for i := 0; i < 5; i++ {
		r.Record(Event{Type: DaemonProbed, Actor: "x"})
	}
	evts, err := r.List(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range evts {
		if e.Seq != uint64(i+1) {
			t.Errorf("event %d has seq %d", i, e.Seq)
		}
		if e.Ts.IsZero() {
			t.Errorf("event %d has zero timestamp", i)
		}
	}
}

func TestFileRecorderResumesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	r1, err := NewFileRecorder(path, os.Stderr)
	if err != nil {
		t.Fatal(err)
	}
	r1.Record(Event{Type: DaemonSpawned, Actor: "a"})
	r1.Record(Event{Type: DaemonSpawned, Actor: "b"})
	r1.Close() //nolint:errcheck // reopened below

	r2, err := NewFileRecorder(path, os.Stderr)
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Close() //nolint:errcheck // test cleanup
	r2.Record(Event{Type: DaemonKilled, Actor: "a"})

	seq, err := r2.LatestSeq()
	if err != nil {
		t.Fatal(err)
	}
	if seq != 3 {
		t.Errorf("LatestSeq = %d, want 3", seq)
	}
}

func TestFileRecorderErrorsGoToStderr(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "events.jsonl")
	r, err := NewFileRecorder(path, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	r.Close() //nolint:errcheck // forcing the write failure below

	r.Record(Event{Type: DaemonSpawned, Actor: "x"})
	if !strings.Contains(stderr.String(), "events: write") {
		t.Errorf("stderr = %q, want write error", stderr.String())
	}
}

func TestListFilters(t *testing.T) {
	r, _ := newTestRecorder(t)
	r.Record(Event{Type: DaemonSpawned, Actor: "fetcher", Subject: "100"})
	r.Record(Event{Type: DaemonSpawned, Actor: "pruner", Subject: "200"})
	r.Record(Event{Type: DaemonKilled, Actor: "fetcher", Subject: "100"})

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"by type", Filter{Type: DaemonSpawned}, 2},
		{"by actor", Filter{Actor: "fetcher"}, 2},
		{"by subject", Filter{Subject: "200"}, 1},
		{"type and actor", Filter{Type: DaemonKilled, Actor: "fetcher"}, 1},
		{"after seq", Filter{AfterSeq: 2}, 1},
		{"no match", Filter{Actor: "ghost"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.List(tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReadAllMissingFile(t *testing.T) {
	evts, err := ReadAll(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil || evts != nil {
		t.Errorf("ReadAll = (%v, %v), want (nil, nil)", evts, err)
	}
}

func TestReadAllSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"seq":1,"type":"daemon.spawned","actor":"a"}
not json at all
{"seq":2,"type":"daemon.killed","actor":"a"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	evts, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 2 {
		t.Errorf("got %d events, want 2", len(evts))
	}
}

func TestWatchDeliversNewEvents(t *testing.T) {
	r, _ := newTestRecorder(t)
	r.Record(Event{Type: DaemonSpawned, Actor: "old"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w, err := r.Watch(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close() //nolint:errcheck // test cleanup

	go r.Record(Event{Type: DaemonKilled, Actor: "new"})

	e, err := w.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e.Actor != "new" || e.Seq != 2 {
		t.Errorf("Next = %+v, want the new event", e)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	r, _ := newTestRecorder(t)
	ctx, cancel := context.WithCancel(context.Background())
	w, err := r.Watch(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := w.Next(); err == nil {
		t.Error("Next after cancel = nil error")
	}
}

func TestFakeRecords(t *testing.T) {
	f := NewFake()
	f.Record(Event{Type: DaemonSpawned, Actor: "a"})
	f.Record(Event{Type: DaemonKilled, Actor: "a"})

	if len(f.Events) != 2 || f.Events[1].Seq != 2 {
		t.Errorf("Events = %+v", f.Events)
	}
	got, err := f.List(Filter{Type: DaemonKilled})
	if err != nil || len(got) != 1 {
		t.Errorf("List = (%v, %v)", got, err)
	}
}
