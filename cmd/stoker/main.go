// stoker is a daemonizer CLI. It detaches programs from the terminal,
// tracks them through PID files, and signals them by PID, PID file, or
// command-line substring.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/steveyegge/stoker/internal/daemon"
	"github.com/steveyegge/stoker/internal/events"
	"github.com/steveyegge/stoker/internal/fsys"
	"github.com/steveyegge/stoker/internal/locator"
	"github.com/steveyegge/stoker/internal/telemetry"
)

func main() {
	// Stage children re-exec this binary with their config in the
	// environment; they must never reach the CLI.
	daemon.Bootstrap()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit is a sentinel error returned by cobra RunE functions to signal
// non-zero exit. The command has already written its own error to stderr.
var errExit = errors.New("exit")

// dirFlag holds the value of the --dir persistent flag.
// Empty means "use STOKER_DIR or ~/.stoker".
var dirFlag string

// run executes the stoker CLI with the given args, writing output to
// stdout and errors to stderr. Returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	shutdown, err := telemetry.Init(context.Background(), version)
	if err != nil {
		// Telemetry is best-effort; a broken exporter never blocks the CLI.
		fmt.Fprintf(stderr, "stoker: telemetry: %v\n", err) //nolint:errcheck // best-effort stderr
		shutdown = func(context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		shutdown(ctx) //nolint:errcheck // best-effort flush
	}()

	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

// newRootCmd creates the root cobra command with all subcommands.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "stoker",
		Short:         "Run programs as background daemons and manage them",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			fmt.Fprintf(stderr, "stoker: unknown command %q\n", args[0]) //nolint:errcheck // best-effort stderr
			return errExit
		},
	}
	root.PersistentFlags().StringVar(&dirFlag, "dir", "",
		"state directory for the event log (default: $STOKER_DIR or ~/.stoker)")
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newSpawnCmd(stdout, stderr),
		newStatusCmd(stdout, stderr),
		newKillCmd(stdout, stderr),
		newEventsCmd(stdout, stderr),
		newDoctorCmd(stdout, stderr),
		newVersionCmd(stdout),
	)
	root.AddCommand(newGenDocCmd(stdout, stderr, root))
	return root
}

// stateDir returns the stoker state directory: --dir, then STOKER_DIR,
// then ~/.stoker. Falls back to the cwd-relative ".stoker" when no home
// directory can be determined.
func stateDir() string {
	if dirFlag != "" {
		return dirFlag
	}
	if d := os.Getenv("STOKER_DIR"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stoker"
	}
	return filepath.Join(home, ".stoker")
}

// eventsPath returns the path of the JSONL event log.
func eventsPath() string {
	return filepath.Join(stateDir(), "events.jsonl")
}

// openRecorder returns a Recorder appending to the state directory's
// events.jsonl. Returns events.Discard on any error — commands always
// get a valid recorder.
func openRecorder(stderr io.Writer) events.Recorder {
	rec, err := events.NewFileRecorder(eventsPath(), stderr)
	if err != nil {
		return events.Discard
	}
	return rec
}

// eventActor returns the actor identity for events. If the STOKER_ACTOR
// env var is set (automation), it returns that; otherwise "human".
func eventActor() string {
	if a := os.Getenv("STOKER_ACTOR"); a != "" {
		return a
	}
	return "human"
}

// newLocator returns the production locator: real filesystem, real
// process table.
func newLocator() *locator.Locator {
	return locator.New(fsys.OSFS{}, locator.PSTable{})
}
