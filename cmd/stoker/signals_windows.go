//go:build windows

package main

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"
)

// signalsByName carries the few signal names the Windows syscall
// package defines.
var signalsByName = map[string]syscall.Signal{
	"INT":  syscall.SIGINT,
	"KILL": syscall.SIGKILL,
	"TERM": syscall.SIGTERM,
}

// parseSignal interprets a --signal value: a name with or without the
// SIG prefix, or a raw signal number.
func parseSignal(s string) (syscall.Signal, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "SIG")
	if sig, ok := signalsByName[name]; ok {
		return sig, nil
	}
	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		return syscall.Signal(n), nil
	}
	return 0, fmt.Errorf("unknown signal %q", s)
}
