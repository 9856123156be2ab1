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
	"github.com/steveyegge/stoker/internal/pidfile"
	"github.com/steveyegge/stoker/internal/telemetry"
)

func newKillCmd(stdout, stderr io.Writer) *cobra.Command {
	var signalFlag string
	var waitFlag bool
	var timeoutFlag time.Duration

	cmd := &cobra.Command{
		Use:   "kill <pid | pidfile | cmdline-substring>",
		Short: "Signal a daemon (exit 0 when a signal was delivered)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rec := openRecorder(stderr)
			if doKill(newLocator(), args[0], signalFlag, waitFlag, timeoutFlag, rec, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&signalFlag, "signal", "KILL", "signal to send (name or number, e.g. TERM, KILL, 9)")
	cmd.Flags().BoolVar(&waitFlag, "wait", false, "block until the daemon is gone")
	cmd.Flags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "max wait duration for --wait")
	return cmd
}

// doKill resolves the reference and delivers the signal. With --wait it
// blocks until the process dies or its PID file is removed, whichever
// comes first, bounded by --timeout.
func doKill(loc *locator.Locator, arg, sigName string, wait bool, timeout time.Duration, rec events.Recorder, stdout, stderr io.Writer) int {
	sig, err := parseSignal(sigName)
	if err != nil {
		fmt.Fprintf(stderr, "stoker kill: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	ref := locator.ParseRef(fsys.OSFS{}, arg)
	pid, ok, err := loc.Resolve(ref)
	if err != nil {
		fmt.Fprintf(stderr, "stoker kill: %v\n", err) //nolint:errcheck // best-effort stderr
		telemetry.RecordKill(context.Background(), ref.String(), sigName, 0, err)
		return 1
	}
	if !ok {
		fmt.Fprintf(stdout, "%s: not running\n", ref) //nolint:errcheck // best-effort stdout
		telemetry.RecordKill(context.Background(), ref.String(), sigName, 0, nil)
		return 1
	}

	// Signal the PID we resolved: re-resolving inside the signal path
	// could pick a different process for a command-line reference.
	delivered, err := loc.Signal(pid, sig)
	telemetry.RecordKill(context.Background(), ref.String(), sigName, delivered, err)
	if err != nil {
		fmt.Fprintf(stderr, "stoker kill: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	if delivered == 0 {
		fmt.Fprintf(stdout, "%s: not running\n", ref) //nolint:errcheck // best-effort stdout
		return 1
	}

	rec.Record(events.Event{
		Type:    events.DaemonKilled,
		Actor:   eventActor(),
		Subject: strconv.Itoa(pid),
		Message: "signal " + sigName,
	})

	if wait {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := awaitExit(ctx, loc, ref, pid); err != nil {
			fmt.Fprintf(stderr, "stoker kill: pid %d still running after %s\n", pid, timeout) //nolint:errcheck // best-effort stderr
			return 1
		}
		// The daemon is gone; a leftover PID file is stale.
		if ref.Kind() == locator.KindPIDFile {
			pidfile.Remove(fsys.OSFS{}, ref.String()) //nolint:errcheck // best-effort cleanup
		}
	}

	fmt.Fprintf(stdout, "killed pid %d\n", pid) //nolint:errcheck // best-effort stdout
	return 0
}

// awaitExit blocks until pid is dead. For PID-file references it also
// returns when the file is removed — a daemon that cleans up its own
// PID file on shutdown reports completion that way.
func awaitExit(ctx context.Context, loc *locator.Locator, ref locator.Ref, pid int) error {
	fileGone := make(chan struct{}, 1)
	if ref.Kind() == locator.KindPIDFile {
		go func() {
			if err := pidfile.WaitGone(ctx, ref.String()); err == nil {
				fileGone <- struct{}{}
			}
		}()
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if !loc.IsAlive(pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fileGone:
			return nil
		case <-ticker.C:
		}
	}
}
