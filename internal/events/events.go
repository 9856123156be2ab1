// Package events provides tier-0 observability for stoker.
//
// Events are simple, synchronous, append-only records of what happened
// to managed daemons. The recorder writes JSON lines to events.jsonl;
// the reader scans them back. Recording is best-effort: errors are
// logged to stderr but never returned to callers.
package events

import (
	"context"
	"time"
)

// Event type constants. Only types we actually emit today.
const (
	DaemonSpawned = "daemon.spawned"
	DaemonKilled  = "daemon.killed"
	DaemonProbed  = "daemon.probed"
)

// Event is a single recorded occurrence in the system. Subject carries
// the daemon PID (as a decimal string) when one is known.
type Event struct {
	Seq     uint64    `json:"seq"`
	Type    string    `json:"type"`
	Ts      time.Time `json:"ts"`
	Actor   string    `json:"actor"`
	Subject string    `json:"subject,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Recorder records events. Safe for concurrent use. Best-effort.
type Recorder interface {
	Record(e Event)
}

// Provider can both record and read events back.
type Provider interface {
	Recorder
	List(filter Filter) ([]Event, error)
	LatestSeq() (uint64, error)
	Watch(ctx context.Context, afterSeq uint64) (Watcher, error)
	Close() error
}

// Watcher delivers events as they are recorded.
type Watcher interface {
	// Next blocks until an event is available or the context given to
	// Watch is canceled.
	Next() (Event, error)
	Close() error
}

// Discard silently drops all events.
var Discard Recorder = discardRecorder{}

type discardRecorder struct{}

func (discardRecorder) Record(Event) {}
