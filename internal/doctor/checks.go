package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/stoker/internal/config"
	"github.com/steveyegge/stoker/internal/fsys"
	"github.com/steveyegge/stoker/internal/locator"
	"github.com/steveyegge/stoker/internal/pidfile"
)

// StateDirCheck verifies the state directory exists and is writable.
type StateDirCheck struct {
	fs fsys.FS
}

// NewStateDirCheck creates a state directory check.
func NewStateDirCheck(fs fsys.FS) *StateDirCheck {
	return &StateDirCheck{fs: fs}
}

// Name implements Check.
func (c *StateDirCheck) Name() string { return "state-dir" }

// Run implements Check.
func (c *StateDirCheck) Run(ctx *CheckContext) *CheckResult {
	info, err := c.fs.Stat(ctx.StateDir)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("state directory %s does not exist", ctx.StateDir),
			FixHint: "run with --fix to create it",
		}
	}
	if !info.IsDir() {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("%s exists but is not a directory", ctx.StateDir),
		}
	}

	// Probe writability with a throwaway file.
	probe := filepath.Join(ctx.StateDir, ".doctor-probe")
	if err := c.fs.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("state directory %s is not writable: %v", ctx.StateDir, err),
		}
	}
	_ = c.fs.Remove(probe)

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: fmt.Sprintf("state directory %s is writable", ctx.StateDir),
	}
}

// CanFix implements Check. The state directory can be created.
func (c *StateDirCheck) CanFix() bool { return true }

// Fix implements Check.
func (c *StateDirCheck) Fix(ctx *CheckContext) error {
	return c.fs.MkdirAll(ctx.StateDir, 0o755)
}

// EventLogCheck verifies the event log parses as JSONL.
type EventLogCheck struct {
	fs fsys.FS
}

// NewEventLogCheck creates an event log check.
func NewEventLogCheck(fs fsys.FS) *EventLogCheck {
	return &EventLogCheck{fs: fs}
}

// Name implements Check.
func (c *EventLogCheck) Name() string { return "event-log" }

// Run implements Check.
func (c *EventLogCheck) Run(ctx *CheckContext) *CheckResult {
	path := filepath.Join(ctx.StateDir, "events.jsonl")
	data, err := c.fs.ReadFile(path)
	if err != nil {
		// A missing log just means nothing has been recorded yet.
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "no event log yet",
		}
	}

	total, malformed := 0, 0
	var bad []string
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		total++
		if !json.Valid([]byte(line)) {
			malformed++
			bad = append(bad, fmt.Sprintf("line %d is not valid JSON", i+1))
		}
	}

	if malformed > 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: fmt.Sprintf("event log has %d malformed of %d lines", malformed, total),
			Details: bad,
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: fmt.Sprintf("event log has %d events", total),
	}
}

// CanFix implements Check.
func (c *EventLogCheck) CanFix() bool { return false }

// Fix implements Check.
func (c *EventLogCheck) Fix(_ *CheckContext) error { return nil }

// NullDeviceCheck verifies the null device opens for read and write.
// Detached daemons get it as their default stdin, stdout, and stderr.
type NullDeviceCheck struct{}

// Name implements Check.
func (c *NullDeviceCheck) Name() string { return "null-device" }

// Run implements Check.
func (c *NullDeviceCheck) Run(_ *CheckContext) *CheckResult {
	for _, mode := range []struct {
		flag int
		verb string
	}{
		{os.O_RDONLY, "read"},
		{os.O_WRONLY, "write"},
	} {
		f, err := os.OpenFile(os.DevNull, mode.flag, 0)
		if err != nil {
			return &CheckResult{
				Name:    c.Name(),
				Status:  StatusError,
				Message: fmt.Sprintf("cannot open %s for %s: %v", os.DevNull, mode.verb, err),
			}
		}
		_ = f.Close()
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: fmt.Sprintf("%s opens for read and write", os.DevNull),
	}
}

// CanFix implements Check.
func (c *NullDeviceCheck) CanFix() bool { return false }

// Fix implements Check.
func (c *NullDeviceCheck) Fix(_ *CheckContext) error { return nil }

// ProcTableCheck verifies the process table is readable. Cmdline lookup
// needs it.
type ProcTableCheck struct {
	table locator.Table
}

// NewProcTableCheck creates a process table check.
func NewProcTableCheck(table locator.Table) *ProcTableCheck {
	return &ProcTableCheck{table: table}
}

// Name implements Check.
func (c *ProcTableCheck) Name() string { return "proc-table" }

// Run implements Check.
func (c *ProcTableCheck) Run(_ *CheckContext) *CheckResult {
	procs, err := c.table.Procs()
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("cannot read process table: %v", err),
			FixHint: "cmdline lookup (status/kill by substring) will not work",
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: fmt.Sprintf("process table readable (%d processes)", len(procs)),
	}
}

// CanFix implements Check.
func (c *ProcTableCheck) CanFix() bool { return false }

// Fix implements Check.
func (c *ProcTableCheck) Fix(_ *CheckContext) error { return nil }

// StalePIDFilesCheck scans the state directory for PID files whose
// process is gone.
type StalePIDFilesCheck struct {
	fs    fsys.FS
	alive func(pid int) bool
}

// NewStalePIDFilesCheck creates a stale PID file check. alive reports
// whether a PID refers to a live process.
func NewStalePIDFilesCheck(fs fsys.FS, alive func(pid int) bool) *StalePIDFilesCheck {
	return &StalePIDFilesCheck{fs: fs, alive: alive}
}

// Name implements Check.
func (c *StalePIDFilesCheck) Name() string { return "pid-files" }

// stale returns the PID files under the state dir that no longer point
// at a live process.
func (c *StalePIDFilesCheck) stale(ctx *CheckContext) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(ctx.StateDir, "*.pid"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paths {
		if !pidfile.Alive(c.fs, p, c.alive) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Run implements Check.
func (c *StalePIDFilesCheck) Run(ctx *CheckContext) *CheckResult {
	stale, err := c.stale(ctx)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("scanning PID files: %v", err),
		}
	}
	if len(stale) > 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d stale PID file(s) in %s", len(stale), ctx.StateDir),
			Details: stale,
			FixHint: "run with --fix to remove them",
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "no stale PID files",
	}
}

// CanFix implements Check. Stale PID files can be removed.
func (c *StalePIDFilesCheck) CanFix() bool { return true }

// Fix implements Check.
func (c *StalePIDFilesCheck) Fix(ctx *CheckContext) error {
	stale, err := c.stale(ctx)
	if err != nil {
		return err
	}
	for _, p := range stale {
		if err := c.fs.Remove(p); err != nil {
			return err
		}
	}
	return nil
}

// ConfigCheck validates a stoker.toml file when one is given.
type ConfigCheck struct {
	fs fsys.FS
}

// NewConfigCheck creates a config validation check.
func NewConfigCheck(fs fsys.FS) *ConfigCheck {
	return &ConfigCheck{fs: fs}
}

// Name implements Check.
func (c *ConfigCheck) Name() string { return "config" }

// Run implements Check.
func (c *ConfigCheck) Run(ctx *CheckContext) *CheckResult {
	if ctx.ConfigPath == "" {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "no config file to validate",
		}
	}
	cfg, err := config.Load(c.fs, ctx.ConfigPath)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("%v", err),
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: fmt.Sprintf("%s valid (%d daemons)", ctx.ConfigPath, len(cfg.Daemons)),
	}
}

// CanFix implements Check.
func (c *ConfigCheck) CanFix() bool { return false }

// Fix implements Check.
func (c *ConfigCheck) Fix(_ *CheckContext) error { return nil }
