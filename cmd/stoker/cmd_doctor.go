package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/steveyegge/stoker/internal/doctor"
	"github.com/steveyegge/stoker/internal/fsys"
	"github.com/steveyegge/stoker/internal/locator"
)

func newDoctorCmd(stdout, stderr io.Writer) *cobra.Command {
	var fix, verbose bool
	var configPath string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check stoker installation health",
		Long: `Run diagnostic health checks on the stoker installation.

Checks the state directory, event log integrity, null device access,
process table visibility, and stale PID files. With --config, also
validates a stoker.toml file. Use --fix to attempt automatic repairs.`,
		Example: `  stoker doctor
  stoker doctor --fix
  stoker doctor --config stoker.toml`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if doDoctor(configPath, fix, verbose, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "attempt to fix issues automatically")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show extra diagnostic details")
	cmd.Flags().StringVar(&configPath, "config", "", "stoker.toml file to validate")
	return cmd
}

// doDoctor runs all health checks and prints results.
func doDoctor(configPath string, fix, verbose bool, stdout, _ io.Writer) int {
	fs := fsys.OSFS{}
	loc := newLocator()

	d := &doctor.Doctor{}
	ctx := &doctor.CheckContext{
		StateDir:   stateDir(),
		ConfigPath: configPath,
		Verbose:    verbose,
	}

	d.Register(doctor.NewStateDirCheck(fs))
	d.Register(doctor.NewEventLogCheck(fs))
	d.Register(&doctor.NullDeviceCheck{})
	d.Register(doctor.NewProcTableCheck(locator.PSTable{}))
	d.Register(doctor.NewStalePIDFilesCheck(fs, loc.IsAlive))
	d.Register(doctor.NewConfigCheck(fs))

	fmt.Fprintf(stdout, "Checking stoker at %s\n\n", ctx.StateDir) //nolint:errcheck // best-effort stdout
	r := d.Run(ctx, stdout, fix)
	doctor.PrintSummary(stdout, r)

	if r.Failed > 0 {
		return 1
	}
	return 0
}
