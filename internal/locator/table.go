package locator

import (
	"github.com/shirou/gopsutil/v4/process"
)

// Proc is one process-table entry: the PID and its full command line.
type Proc struct {
	PID     int
	Cmdline string
}

// Table lists the live processes on the system. The production
// implementation is [PSTable]; tests inject a fake.
type Table interface {
	Procs() ([]Proc, error)
}

// PSTable reads the OS process table via gopsutil.
type PSTable struct{}

// Procs returns every visible process with its command line. Entries
// whose command line cannot be read (they exited mid-scan, or belong to
// another user on a locked-down kernel) are skipped rather than failing
// the whole scan.
func (PSTable) Procs() ([]Proc, error) {
	ps, err := process.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]Proc, 0, len(ps))
	for _, p := range ps {
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		out = append(out, Proc{PID: int(p.Pid), Cmdline: cmdline})
	}
	return out, nil
}

var _ Table = PSTable{}
