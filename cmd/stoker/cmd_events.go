package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/steveyegge/stoker/internal/events"
)

func newEventsCmd(stdout, stderr io.Writer) *cobra.Command {
	var typeFilter string
	var subjectFilter string
	var sinceFlag string
	var watchFlag bool
	var timeoutFlag string
	var afterFlag uint64

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the daemon event log",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if watchFlag {
				if doEventsWatch(eventsPath(), typeFilter, afterFlag, timeoutFlag, stdout, stderr) != 0 {
					return errExit
				}
				return nil
			}
			if doEvents(eventsPath(), typeFilter, subjectFilter, sinceFlag, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typeFilter, "type", "", "Filter by event type (e.g. daemon.spawned)")
	cmd.Flags().StringVar(&subjectFilter, "pid", "", "Filter by daemon PID")
	cmd.Flags().StringVar(&sinceFlag, "since", "", "Show events since duration ago (e.g. 1h, 30m)")
	cmd.Flags().BoolVar(&watchFlag, "watch", false, "Block until matching events arrive")
	cmd.Flags().StringVar(&timeoutFlag, "timeout", "30s", "Max wait duration for --watch (e.g. 30s, 5m)")
	cmd.Flags().Uint64Var(&afterFlag, "after", 0, "Resume watching from this sequence number (0 = current head)")
	return cmd
}

// doEvents reads and displays events from the log file. Accepts the path
// directly for testability.
func doEvents(path, typeFilter, subjectFilter, sinceFlag string, stdout, stderr io.Writer) int {
	filter := events.Filter{Type: typeFilter, Subject: subjectFilter}

	if sinceFlag != "" {
		d, err := time.ParseDuration(sinceFlag)
		if err != nil {
			fmt.Fprintf(stderr, "stoker events: invalid --since %q: %v\n", sinceFlag, err) //nolint:errcheck // best-effort stderr
			return 1
		}
		filter.Since = time.Now().Add(-d)
	}

	evts, err := events.ReadFiltered(path, filter)
	if err != nil {
		fmt.Fprintf(stderr, "stoker events: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	if len(evts) == 0 {
		fmt.Fprintln(stdout, "No events.") //nolint:errcheck // best-effort stdout
		return 0
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTYPE\tACTOR\tPID\tMESSAGE\tTIME") //nolint:errcheck // best-effort stdout
	for _, e := range evts {
		msg := e.Message
		if r := []rune(msg); len(r) > 40 {
			msg = string(r[:37]) + "..."
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck // best-effort stdout
			e.Seq, e.Type, e.Actor, e.Subject, msg,
			e.Ts.Format("2006-01-02 15:04:05"),
		)
	}
	tw.Flush() //nolint:errcheck // best-effort stdout
	return 0
}

// doEventsWatch blocks until an event past the cursor matches the
// filter or the timeout expires. Matching events are output as JSON
// lines. Returns 0 on timeout — empty stdout means nothing arrived.
func doEventsWatch(path, typeFilter string, afterSeq uint64, timeoutFlag string, stdout, stderr io.Writer) int {
	timeout, err := time.ParseDuration(timeoutFlag)
	if err != nil {
		fmt.Fprintf(stderr, "stoker events: invalid --timeout %q: %v\n", timeoutFlag, err) //nolint:errcheck // best-effort stderr
		return 1
	}

	rec, err := events.NewFileRecorder(path, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "stoker events: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer rec.Close() //nolint:errcheck // read-mostly handle

	if afterSeq == 0 {
		seq, err := rec.LatestSeq()
		if err != nil {
			fmt.Fprintf(stderr, "stoker events: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
		afterSeq = seq
	} else {
		// An explicit --after may already be satisfied by logged events.
		matches, err := rec.List(events.Filter{Type: typeFilter, AfterSeq: afterSeq})
		if err != nil {
			fmt.Fprintf(stderr, "stoker events: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
		if len(matches) > 0 {
			return printEventsJSON(matches, stdout, stderr)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	w, err := rec.Watch(ctx, afterSeq)
	if err != nil {
		fmt.Fprintf(stderr, "stoker events: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer w.Close() //nolint:errcheck // no-op for file watchers

	for {
		e, err := w.Next()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return 0
			}
			fmt.Fprintf(stderr, "stoker events: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
		if typeFilter != "" && e.Type != typeFilter {
			continue
		}
		return printEventsJSON([]events.Event{e}, stdout, stderr)
	}
}

// printEventsJSON writes events as JSON lines to stdout. Returns 0.
func printEventsJSON(evts []events.Event, stdout, stderr io.Writer) int {
	for _, e := range evts {
		data, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(stderr, "stoker events: marshal: %v\n", err) //nolint:errcheck // best-effort stderr
			continue
		}
		fmt.Fprintln(stdout, string(data)) //nolint:errcheck // best-effort stdout
	}
	return 0
}
