// Package config handles loading and parsing stoker.toml configuration files.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/steveyegge/stoker/internal/daemon"
	"github.com/steveyegge/stoker/internal/fsys"
)

// File is the top-level configuration: a list of daemons to detach.
type File struct {
	Daemons []Daemon `toml:"daemons"`
}

// Daemon declares one background program.
type Daemon struct {
	// Name identifies this daemon within the file. Must be unique.
	Name string `toml:"name"`
	// Command is the argv to execute, program first.
	Command []string `toml:"command"`
	// WorkDir is the working directory for the daemon. Defaults to "/".
	WorkDir string `toml:"workdir,omitempty"`
	// Stdin is a path opened read-only as the daemon's standard input.
	// Defaults to /dev/null.
	Stdin string `toml:"stdin,omitempty"`
	// Stdout is a path opened for append as the daemon's standard output.
	// Defaults to /dev/null.
	Stdout string `toml:"stdout,omitempty"`
	// Stderr is a path opened for append as the daemon's standard error.
	// Defaults to /dev/null.
	Stderr string `toml:"stderr,omitempty"`
	// PIDFile is where the daemon's PID is written before detaching.
	PIDFile string `toml:"pidfile,omitempty"`
	// UID to switch to after detaching. Zero means no change.
	UID int `toml:"uid,omitempty"`
	// GID to switch to after detaching. Zero means no change.
	GID int `toml:"gid,omitempty"`
}

// Load reads and parses a stoker.toml file at the given path using the
// provided filesystem. All file I/O goes through fs for testability.
func Load(fs fsys.FS, path string) (*File, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML data into a File and validates it.
func Parse(data []byte) (*File, error) {
	var cfg File
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks every daemon entry has a name and a command, and that
// names are unique.
func (f *File) validate() error {
	seen := make(map[string]bool, len(f.Daemons))
	for i, d := range f.Daemons {
		if d.Name == "" {
			return fmt.Errorf("daemons[%d]: missing name", i)
		}
		if len(d.Command) == 0 {
			return fmt.Errorf("daemon %q: missing command", d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate daemon name %q", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// Find returns the daemon entry with the given name.
func (f *File) Find(name string) (*Daemon, error) {
	for i := range f.Daemons {
		if f.Daemons[i].Name == name {
			return &f.Daemons[i], nil
		}
	}
	return nil, fmt.Errorf("no daemon %q in config", name)
}

// ToDaemonConfig maps a declarative entry onto the detachment config.
// Relative paths stay relative here; they are made absolute against the
// working directory during normalization, before any process is created.
func (d *Daemon) ToDaemonConfig() daemon.Config {
	cfg := daemon.Config{
		WorkDir: d.WorkDir,
		UID:     d.UID,
		GID:     d.GID,
		PIDFile: d.PIDFile,
		Exec:    [][]string{d.Command},
	}
	if d.Stdin != "" {
		cfg.Stdin = daemon.StreamTarget{Path: d.Stdin, Mode: daemon.ModeRead}
	}
	if d.Stdout != "" {
		cfg.Stdout = daemon.StreamTarget{Path: d.Stdout, Mode: daemon.ModeAppend}
	}
	if d.Stderr != "" {
		cfg.Stderr = daemon.StreamTarget{Path: d.Stderr, Mode: daemon.ModeAppend}
	}
	return cfg
}
