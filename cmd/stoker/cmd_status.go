package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/steveyegge/stoker/internal/events"
	"github.com/steveyegge/stoker/internal/fsys"
	"github.com/steveyegge/stoker/internal/locator"
	"github.com/steveyegge/stoker/internal/telemetry"
)

func newStatusCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status <pid | pidfile | cmdline-substring>",
		Short: "Probe whether a daemon is running (exit 0 alive, 1 not)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rec := openRecorder(stderr)
			if doStatus(newLocator(), args[0], eventsPath(), rec, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
}

// doStatus resolves the reference, probes liveness with signal 0, and
// prints the verdict. Exit 0 means alive; 1 means not running (or a
// resolution failure, which is reported on stderr).
func doStatus(loc *locator.Locator, arg, evPath string, rec events.Recorder, stdout, stderr io.Writer) int {
	ref := locator.ParseRef(fsys.OSFS{}, arg)
	pid, ok, err := loc.Resolve(ref)
	if err != nil {
		fmt.Fprintf(stderr, "stoker status: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	alive := ok && loc.IsAlive(pid)
	rec.Record(events.Event{
		Type:    events.DaemonProbed,
		Actor:   eventActor(),
		Subject: strconv.Itoa(pid),
		Message: ref.String(),
	})
	telemetry.RecordStatusProbe(context.Background(), ref.String(), alive)

	if !alive {
		fmt.Fprintf(stdout, "%s: not running\n", ref) //nolint:errcheck // best-effort stdout
		return 1
	}
	if up := uptime(evPath, pid); up > 0 {
		fmt.Fprintf(stdout, "%s: running (pid %d, up %s)\n", ref, pid, up) //nolint:errcheck // best-effort stdout
	} else {
		fmt.Fprintf(stdout, "%s: running (pid %d)\n", ref, pid) //nolint:errcheck // best-effort stdout
	}
	return 0
}

// uptime derives how long the daemon has been up from its most recent
// spawn event. Returns 0 when the PID never appears in the event log
// (spawned by something other than stoker, or the log was pruned).
func uptime(evPath string, pid int) time.Duration {
	evts, err := events.ReadFiltered(evPath, events.Filter{
		Type:    events.DaemonSpawned,
		Subject: strconv.Itoa(pid),
	})
	if err != nil || len(evts) == 0 {
		return 0
	}
	return time.Since(evts[len(evts)-1].Ts).Round(time.Second)
}
