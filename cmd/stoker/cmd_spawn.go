package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/steveyegge/stoker/internal/config"
	"github.com/steveyegge/stoker/internal/daemon"
	"github.com/steveyegge/stoker/internal/events"
	"github.com/steveyegge/stoker/internal/fsys"
	"github.com/steveyegge/stoker/internal/telemetry"
)

func newSpawnCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		configFlag  string
		nameFlag    string
		workdirFlag string
		pidfileFlag string
		stdinFlag   string
		stdoutFlag  string
		stderrFlag  string
		truncFlag   bool
		preserve    []string
		uidFlag     int
		gidFlag     int
		retryFlag   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "spawn [flags] -- <command> [args...]",
		Short: "Detach a command as a background daemon",
		Args:  cobra.ArbitraryArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			rec := openRecorder(stderr)
			if configFlag != "" {
				if doSpawnConfig(configFlag, args, rec, stdout, stderr) != 0 {
					return errExit
				}
				return nil
			}
			if len(args) == 0 {
				fmt.Fprintln(stderr, "stoker spawn: missing command (or --config)") //nolint:errcheck // best-effort stderr
				return errExit
			}

			outMode, errMode := daemon.ModeAppend, daemon.ModeAppend
			if truncFlag {
				outMode, errMode = daemon.ModeWrite, daemon.ModeWrite
			}
			cfg := daemon.Config{
				WorkDir:     workdirFlag,
				UID:         uidFlag,
				GID:         gidFlag,
				PIDFile:     pidfileFlag,
				Exec:        [][]string{args},
				RetryWindow: retryFlag,
			}
			if stdinFlag != "" {
				cfg.Stdin = daemon.StreamTarget{Path: stdinFlag, Mode: daemon.ModeRead}
			}
			if stdoutFlag != "" {
				cfg.Stdout = daemon.StreamTarget{Path: stdoutFlag, Mode: outMode}
			}
			if stderrFlag != "" {
				cfg.Stderr = daemon.StreamTarget{Path: stderrFlag, Mode: errMode}
			}
			for _, p := range preserve {
				if fd, err := strconv.Atoi(p); err == nil {
					cfg.Preserve = append(cfg.Preserve, daemon.FD(fd))
				} else {
					cfg.Preserve = append(cfg.Preserve, daemon.Named(p))
				}
			}

			name := nameFlag
			if name == "" {
				name = args[0]
			}
			if doSpawn(cfg, name, rec, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configFlag, "config", "", "spawn daemons declared in a stoker.toml file")
	cmd.Flags().StringVar(&nameFlag, "name", "", "daemon name used in events (default: the command)")
	cmd.Flags().StringVar(&workdirFlag, "workdir", "", "daemon working directory (default /)")
	cmd.Flags().StringVar(&pidfileFlag, "pidfile", "", "write the daemon PID here (relative to workdir)")
	cmd.Flags().StringVar(&stdinFlag, "stdin", "", "file to reopen stdin from (default /dev/null)")
	cmd.Flags().StringVar(&stdoutFlag, "stdout", "", "file to append stdout to (default /dev/null)")
	cmd.Flags().StringVar(&stderrFlag, "stderr", "", "file to append stderr to (default /dev/null)")
	cmd.Flags().BoolVar(&truncFlag, "truncate", false, "truncate stdout/stderr files instead of appending")
	cmd.Flags().StringSliceVar(&preserve, "preserve", nil, "descriptors to keep open (numbers or stdin/stdout/stderr)")
	cmd.Flags().IntVar(&uidFlag, "uid", 0, "run the daemon as this user ID (best-effort)")
	cmd.Flags().IntVar(&gidFlag, "gid", 0, "run the daemon as this group ID (best-effort)")
	cmd.Flags().DurationVar(&retryFlag, "retry-window", 0, "how long to retry process creation under load (default 30s)")
	return cmd
}

// doSpawnConfig spawns daemons declared in a stoker.toml file: the named
// entries, or every entry when no names are given.
func doSpawnConfig(path string, names []string, rec events.Recorder, stdout, stderr io.Writer) int {
	cfg, err := config.Load(fsys.OSFS{}, path)
	if err != nil {
		fmt.Fprintf(stderr, "stoker spawn: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	entries := make([]*config.Daemon, 0, len(cfg.Daemons))
	if len(names) == 0 {
		for i := range cfg.Daemons {
			entries = append(entries, &cfg.Daemons[i])
		}
	} else {
		for _, name := range names {
			d, err := cfg.Find(name)
			if err != nil {
				fmt.Fprintf(stderr, "stoker spawn: %v\n", err) //nolint:errcheck // best-effort stderr
				return 1
			}
			entries = append(entries, d)
		}
	}

	for _, d := range entries {
		if code := doSpawn(d.ToDaemonConfig(), d.Name, rec, stdout, stderr); code != 0 {
			return code
		}
	}
	return 0
}

// doSpawn runs one detachment and reports the resulting PIDs, one per
// line. name labels the daemon in events and telemetry.
func doSpawn(cfg daemon.Config, name string, rec events.Recorder, stdout, stderr io.Writer) int {
	ctx := context.Background()
	telemetry.SetProcessOTELAttrs(name)

	began := time.Now()
	res, err := daemon.Run(cfg)
	elapsedMs := float64(time.Since(began)) / float64(time.Millisecond)
	if err != nil {
		fmt.Fprintf(stderr, "stoker spawn: %v\n", err) //nolint:errcheck // best-effort stderr
		telemetry.RecordSpawn(ctx, name, nil, elapsedMs, err)
		return 1
	}
	if res.Retries > 0 {
		telemetry.RecordRetry(ctx, name, res.Retries, nil)
	}

	for _, pid := range res.PIDs {
		rec.Record(events.Event{
			Type:    events.DaemonSpawned,
			Actor:   eventActor(),
			Subject: strconv.Itoa(pid),
			Message: name,
		})
		fmt.Fprintln(stdout, pid) //nolint:errcheck // best-effort stdout
	}
	telemetry.RecordSpawn(ctx, name, res.PIDs, elapsedMs, nil)
	return 0
}
